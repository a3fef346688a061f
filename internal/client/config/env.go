package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from the process environment. A .env
// file in the working directory is loaded first when present; real
// environment variables win over .env entries (godotenv does not override).
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("NVLP_REST_URL", &cfg.RestURL)
	setString("NVLP_AUTH_URL", &cfg.AuthURL)
	setString("NVLP_FUNCTIONS_URL", &cfg.FunctionsURL)
	setString("NVLP_API_KEY", &cfg.APIKey)
	setString("NVLP_QUEUE_DRIVER", &cfg.QueueDriver)
	setString("NVLP_QUEUE_PATH", &cfg.QueuePath)
	setString("NVLP_QUEUE_REDIS_ADDR", &cfg.QueueRedisAddr)
	setString("NVLP_DEVICE_ID_FILE", &cfg.DeviceIDFile)

	if v, ok := os.LookupEnv("NVLP_QUEUE_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.QueueEnabled = b
		}
	}
	if v, ok := os.LookupEnv("NVLP_QUEUE_MAX_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueueMaxSize = n
		}
	}
}
