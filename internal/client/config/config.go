// Package config assembles the client initialization contract from defaults,
// environment variables, an optional JSON file, and command-line flags.
// Later sources take precedence over earlier ones.
package config

import "time"

// Queue store driver names accepted in configuration.
const (
	QueueDriverMemory = "memory"
	QueueDriverFile   = "file"
	QueueDriverRedis  = "redis"
)

// Config holds runtime settings for the NVLP client.
//
// The two transports get separate base URLs and timeouts: table access is
// quick single queries, edge functions may be multi-step and get a longer
// default deadline.
type Config struct {
	RestURL      string
	AuthURL      string
	FunctionsURL string
	APIKey       string

	RestTimeout      time.Duration
	FunctionsTimeout time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryStrategy    string // constant | linear | exponential

	TokenSkew time.Duration

	QueueEnabled     bool
	QueueMaxSize     int
	QueueDriver      string
	QueuePath        string
	QueueRedisAddr   string
	QueueEvictOldest bool

	DeviceIDFile string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RestTimeout = 10 * time.Second
	c.FunctionsTimeout = 30 * time.Second

	c.RetryMaxAttempts = 3
	c.RetryBaseDelay = 100 * time.Millisecond
	c.RetryStrategy = "exponential"

	c.TokenSkew = 5 * time.Minute

	c.QueueEnabled = true
	c.QueueMaxSize = 100
	c.QueueDriver = QueueDriverFile
	c.QueuePath = ".nvlp/queue.json"

	c.DeviceIDFile = ".nvlp/device_id"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, a JSON file (if one is named via -c/-config), and
// command-line flags, in that order.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
