package config

import (
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thelarryrutledge/nvlp-go/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations are
// given in milliseconds so the file stays plain numbers.
type JsonConfig struct {
	RestURL      *string `json:"rest_url"`
	AuthURL      *string `json:"auth_url"`
	FunctionsURL *string `json:"functions_url"`
	APIKey       *string `json:"api_key"`

	RestTimeoutMs      *int `json:"rest_timeout_ms"`
	FunctionsTimeoutMs *int `json:"functions_timeout_ms"`

	RetryMaxAttempts *int    `json:"retry_max_attempts"`
	RetryBaseDelayMs *int    `json:"retry_base_delay_ms"`
	RetryStrategy    *string `json:"retry_strategy"`

	TokenSkewMs *int `json:"token_skew_ms"`

	QueueEnabled     *bool   `json:"queue_enabled"`
	QueueMaxSize     *int    `json:"queue_max_size"`
	QueueDriver      *string `json:"queue_driver"`
	QueuePath        *string `json:"queue_path"`
	QueueRedisAddr   *string `json:"queue_redis_addr"`
	QueueEvictOldest *bool   `json:"queue_evict_oldest"`

	DeviceIDFile *string `json:"device_id_file"`
}

// parseJson overlays Config with values loaded from the JSON file named via
// the -c/-config flags. Absent file path means no JSON layer. Only fields
// present in the file override the current values.
//
// Panics on read or unmarshal errors, matching the fail-fast startup
// behavior of the flag layer.
func parseJson(cfg *Config) {
	path := flagx.ConfigFileFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, ms *int) {
		if ms != nil {
			*dst = time.Duration(*ms) * time.Millisecond
		}
	}

	setString(&cfg.RestURL, jc.RestURL)
	setString(&cfg.AuthURL, jc.AuthURL)
	setString(&cfg.FunctionsURL, jc.FunctionsURL)
	setString(&cfg.APIKey, jc.APIKey)

	setDuration(&cfg.RestTimeout, jc.RestTimeoutMs)
	setDuration(&cfg.FunctionsTimeout, jc.FunctionsTimeoutMs)
	setDuration(&cfg.RetryBaseDelay, jc.RetryBaseDelayMs)
	setDuration(&cfg.TokenSkew, jc.TokenSkewMs)

	if jc.RetryMaxAttempts != nil {
		cfg.RetryMaxAttempts = *jc.RetryMaxAttempts
	}
	setString(&cfg.RetryStrategy, jc.RetryStrategy)

	if jc.QueueEnabled != nil {
		cfg.QueueEnabled = *jc.QueueEnabled
	}
	if jc.QueueMaxSize != nil {
		cfg.QueueMaxSize = *jc.QueueMaxSize
	}
	setString(&cfg.QueueDriver, jc.QueueDriver)
	setString(&cfg.QueuePath, jc.QueuePath)
	setString(&cfg.QueueRedisAddr, jc.QueueRedisAddr)
	if jc.QueueEvictOldest != nil {
		cfg.QueueEvictOldest = *jc.QueueEvictOldest
	}

	setString(&cfg.DeviceIDFile, jc.DeviceIDFile)
}
