package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/dispatch"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/metrics"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/notify"
)

// APIConfig defines the HTTP listener settings.
type APIConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// StorageConfig selects the dispatch record store backend.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Path == "" {
		c.Path = "dispatch.db"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	if c.Backend != "sqlite" && c.Backend != "memory" {
		return fmt.Errorf("unknown storage backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

// NotifierConfig selects the invitation transport.
type NotifierConfig struct {
	// Backend is "mqtt" or "log".
	Backend string        `json:"backend"`
	MQTT    notify.Config `json:"mqtt"`
}

// SetDefaults applies sane defaults.
func (c *NotifierConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "log"
	}
}

// Validate checks mandatory fields.
func (c NotifierConfig) Validate() error {
	switch c.Backend {
	case "log":
		return nil
	case "mqtt":
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown notifier backend %s", c.Backend)
	}
}

// MetricsConfig groups the observability sinks.
type MetricsConfig struct {
	Prometheus metrics.PromConfig   `json:"prometheus"`
	Influx     metrics.InfluxConfig `json:"influx"`
}

// RosterConfig points at the contractor roster fixture used to seed the
// in-memory registry. Production deployments replace this with the CRM
// registry adapter.
type RosterConfig struct {
	Path string `json:"path"`
}

// Config is the root service configuration.
type Config struct {
	API      APIConfig       `json:"api"`
	Dispatch dispatch.Config `json:"dispatch"`
	Storage  StorageConfig   `json:"storage"`
	Notifier NotifierConfig  `json:"notifier"`
	Metrics  MetricsConfig   `json:"metrics"`
	Roster   RosterConfig    `json:"roster"`
}

// Load reads the configuration file, applies K_* environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.API.SetDefaults()
	cfg.Storage.SetDefaults()
	cfg.Notifier.SetDefaults()
	cfg.Dispatch.SetDefaults()
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notifier.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
