package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const prefix = "AZLABELER"

var (
	ErrNoDestination = errors.New("at least one output destination is required")
	ErrInvalidValue  = errors.New("invalid configuration value")
)

// Parse reads the configuration file given as parameter. Environment
// variables override it, e.g. AZLABELER_ENGINE_MAXCONCURRENCY.
func Parse(confFile string) (*Config, error) {
	v := viper.New()

	setDefault(v)

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		v.SetConfigFile(confFile)

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	conf := Config{}

	err := v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	err = conf.Validate()
	if err != nil {
		return nil, err
	}

	return &conf, nil
}

// Validate checks the values the engine can not default by itself.
func (c Config) Validate() error {
	if c.Engine.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: engine.maxConcurrency must be positive", ErrInvalidValue)
	}

	if c.Engine.RetryMaxAttempts == 0 {
		return fmt.Errorf("%w: engine.retryMaxAttempts must be positive", ErrInvalidValue)
	}

	if c.Engine.CacheTTLSeconds < 0 {
		return fmt.Errorf("%w: engine.cacheTtlSeconds can not be negative", ErrInvalidValue)
	}

	if c.Engine.RetryBaseDelayMs < 0 || c.Engine.RetryMaxDelayMs < c.Engine.RetryBaseDelayMs {
		return fmt.Errorf("%w: engine retry delays must satisfy 0 <= base <= max", ErrInvalidValue)
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: poll.interval must be positive", ErrInvalidValue)
	}

	if c.Cache.Valkey.URL != "" && !c.Cache.PersistAcrossCycles {
		return fmt.Errorf("%w: cache.valkey.url requires cache.persistAcrossCycles", ErrInvalidValue)
	}

	if len(c.Output.Destinations) == 0 {
		return ErrNoDestination
	}

	return nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("logs.level", 0)
	v.SetDefault("logs.encoder", EncoderTypeConsole)
	v.SetDefault("gracefulDuration", "10s")
	v.SetDefault("metrics.port", 7777)
	v.SetDefault("metrics.namespace", "azlabeler")

	v.SetDefault("engine.maxConcurrency", 8)
	v.SetDefault("engine.cacheTtlSeconds", 3600)
	v.SetDefault("engine.retryMaxAttempts", 5)
	v.SetDefault("engine.retryBaseDelayMs", 200)
	v.SetDefault("engine.retryMaxDelayMs", 10000)
	v.SetDefault("engine.runTimeoutMs", 600000)

	v.SetDefault("cache.persistAcrossCycles", false)
	v.SetDefault("cache.sweepInterval", "1m")
	v.SetDefault("cache.valkey.url", "")
	v.SetDefault("cache.valkey.creds.password", "")

	// Registered so that environment variables can set them.
	v.SetDefault("azure.tenantId", "")
	v.SetDefault("azure.creds.clientId", "")
	v.SetDefault("azure.creds.clientSecret", "")

	v.SetDefault("labeler.frameworks", []string{"Microsoft cloud security benchmark", "Azure CIS 1.1.0"})

	v.SetDefault("output.destinations", []string{})
	v.SetDefault("output.retry.maxAttempt", 3)
	v.SetDefault("output.retry.delay", "500ms")
	v.SetDefault("output.retry.maxDelay", "10s")
	v.SetDefault("output.s3.region", "eu-west-1")
	v.SetDefault("output.s3.baseEndpoint", "")
	v.SetDefault("output.s3.creds.accessKeyId", "")
	v.SetDefault("output.s3.creds.secretAccessKey", "")
	v.SetDefault("output.kafka.broker.urls", "")
	v.SetDefault("output.kafka.broker.version", "3.6.0")
	v.SetDefault("output.kafka.broker.creds.user", "")
	v.SetDefault("output.kafka.broker.creds.password", "")
	v.SetDefault("output.kafka.broker.creds.mechanism", "SCRAM-SHA-512")

	v.SetDefault("poll.interval", "1h")
}
