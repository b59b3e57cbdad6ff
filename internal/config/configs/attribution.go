package configs

import "time"

// Attribution configures the credit split of conversions.
type Attribution struct {
	Lookback      time.Duration `env:"LOOKBACK" envDefault:"720h"`
	HalfLife      time.Duration `env:"HALF_LIFE" envDefault:"168h"`
	EndpointShare float64       `env:"ENDPOINT_SHARE" envDefault:"0.4"`
	DefaultModel  string        `env:"DEFAULT_MODEL" envDefault:"last_click"`
}
