package configs

import "time"

// Kafka configures trigger publishing. With no brokers, trigger events are
// only logged.
type Kafka struct {
	Brokers     []string `env:"BROKERS" envSeparator:","`
	TopicPrefix string   `env:"TOPIC_PREFIX" envDefault:"clickflow."`
	// Workers, QueueSize, MaxAttempts, RetryDelay and RatePerSecond tune
	// the dispatcher in front of the publisher.
	Workers       int           `env:"WORKERS" envDefault:"4"`
	QueueSize     int           `env:"QUEUE_SIZE" envDefault:"1024"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"2s"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"RETRY_DELAY" envDefault:"1s"`
	RatePerSecond float64       `env:"RATE_PER_SECOND" envDefault:"0"`
}
