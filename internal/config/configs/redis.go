package configs

import "time"

// Redis configures the cache holding traffic-source counters. An empty Addr
// keeps the counters in process memory.
type Redis struct {
	Addr      string        `env:"ADDR"`
	Password  string        `env:"PASSWORD"`
	DB        int           `env:"DB" envDefault:"0"`
	PoolSize  int           `env:"POOL_SIZE" envDefault:"10"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"500ms"`
	KeyPrefix string        `env:"KEY_PREFIX" envDefault:"clickflow:"`
}
