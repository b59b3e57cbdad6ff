package configs

import "time"

// Fraud configures conversion fraud scoring. Policy is "soft_flag" or
// "hard_block".
type Fraud struct {
	Threshold           int           `env:"THRESHOLD" envDefault:"50"`
	Policy              string        `env:"POLICY" envDefault:"soft_flag"`
	VelocityLimit       int           `env:"VELOCITY_LIMIT" envDefault:"5"`
	VelocityWindow      time.Duration `env:"VELOCITY_WINDOW" envDefault:"24h"`
	FastConversionFloor time.Duration `env:"FAST_CONVERSION_FLOOR" envDefault:"10s"`
	BlockedNetworks     []string      `env:"BLOCKED_NETWORKS" envSeparator:","`
	HighValueThreshold  float64       `env:"HIGH_VALUE_THRESHOLD" envDefault:"0"`
}
