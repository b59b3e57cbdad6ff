package configs

import "time"

// Tracking configures click sessions and persistence calls.
type Tracking struct {
	// Storage selects the persistence adapter: "postgres" or "memory".
	Storage string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	// SessionTimeout is the inactivity after which a session ends.
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	// SweepInterval is how often timed-out sessions are ended.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"2m"`
	// StoreTimeout bounds every repository call.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
}
