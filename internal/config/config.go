// Package config loads the Kestrel application configuration from a
// YAML file and KESTREL_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Load builds configuration from file, environment, and defaults.
// Tier-specific infrastructure defaults (sqlite/channel/memory for
// community, postgres/nats/redis for pro) are applied after the file is
// read so the tier key can come from the file or the environment.
func Load(path string) (*domain.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KESTREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("kestrel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	setTierDefaults(v, domain.Tier(v.GetString("tier")))

	var cfg domain.Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tier", string(domain.TierCommunity))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("pipeline.anomaly_threshold", 2.5)
	v.SetDefault("pipeline.top_anomalies", 5)
	v.SetDefault("pipeline.feedback_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "kestrel")

	v.SetDefault("repository.max_open_conns", 10)
	v.SetDefault("repository.max_idle_conns", 5)
	v.SetDefault("repository.conn_max_lifetime", "30m")
}

func setTierDefaults(v *viper.Viper, tier domain.Tier) {
	if tier == domain.TierPro {
		v.SetDefault("repository.driver", "postgres")
		v.SetDefault("repository.postgres_host", "localhost")
		v.SetDefault("repository.postgres_port", 5432)
		v.SetDefault("repository.postgres_db", "kestrel")
		v.SetDefault("repository.postgres_sslmode", "disable")

		v.SetDefault("cache.type", "redis")
		v.SetDefault("cache.redis_addr", "localhost:6379")
		v.SetDefault("cache.enable_two_phase", true)
		v.SetDefault("cache.local_max_size", 1000)

		v.SetDefault("event_bus.type", "nats")
		v.SetDefault("event_bus.nats_url", "nats://localhost:4222")
		v.SetDefault("event_bus.nats_max_reconnects", 10)
		v.SetDefault("event_bus.nats_reconnect_wait", 5)
		return
	}

	v.SetDefault("repository.driver", "sqlite")
	v.SetDefault("repository.sqlite_path", "./kestrel.db")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.local_max_size", 10000)
	v.SetDefault("cache.local_ttl", "5m")

	v.SetDefault("event_bus.type", "channel")
	v.SetDefault("event_bus.channel_buffer_size", 1000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// LoadRuleDocument reads a rule configuration document (YAML or JSON)
// into the raw map the screening engine consumes. Viper lower-cases all
// keys, which matches the canonical rule document key names.
func LoadRuleDocument(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return v.AllSettings(), nil
}

// Validate performs basic sanity checks on the configuration values.
func Validate(c *domain.Config) error {
	switch c.Tier {
	case domain.TierCommunity, domain.TierPro:
	default:
		return fmt.Errorf("tier must be %q or %q", domain.TierCommunity, domain.TierPro)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("repository.driver must be sqlite or postgres")
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.type must be memory or redis")
	}
	switch c.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("event_bus.type must be channel or nats")
	}
	if c.Pipeline.AnomalyThreshold <= 0 {
		return fmt.Errorf("pipeline.anomaly_threshold must be greater than zero")
	}
	if c.Pipeline.TopAnomalies <= 0 {
		return fmt.Errorf("pipeline.top_anomalies must be greater than zero")
	}
	return nil
}
