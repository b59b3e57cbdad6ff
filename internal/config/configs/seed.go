package configs

// Seed points at a YAML file with conversion rules and store pixels loaded
// on startup. Empty disables seeding.
type Seed struct {
	File string `env:"FILE"`
}
