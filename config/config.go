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

	"github.com/sevaops/seva/core/dispatch"
	"github.com/sevaops/seva/core/metrics"
	"github.com/sevaops/seva/core/track"
	"github.com/sevaops/seva/infra/notify"
)

type Config struct {
	Store     StoreConfig     `json:"store"`
	Dispatch  dispatch.Config `json:"dispatch"`
	Metrics   metrics.Config  `json:"metrics"`
	Track     track.Config    `json:"track"`
	Notify    NotifyConfig    `json:"notify"`
	Reconcile ReconcileConfig `json:"reconcile"`
	API       APIConfig       `json:"api"`
}

// APIConfig drives the read-only assignments HTTP API.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	// Token guards the API with a bearer token; empty disables the check.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// StoreConfig selects the data backend.
type StoreConfig struct {
	// Backend selects the store type: "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the database file location for the sqlite backend.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "seva.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	return nil
}

// NotifyConfig selects the notification transport.
type NotifyConfig struct {
	// Backend selects the notifier: "nop" or "mqtt".
	Backend string        `json:"backend"`
	MQTT    notify.Config `json:"mqtt"`
}

// SetDefaults applies sane defaults.
func (c *NotifyConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "nop"
	}
	c.MQTT.SetDefaults()
}

// Validate checks mandatory fields.
func (c NotifyConfig) Validate() error {
	switch c.Backend {
	case "nop", "mqtt":
	default:
		return fmt.Errorf("unknown notify backend %s", c.Backend)
	}
	if c.Backend == "mqtt" && c.MQTT.Broker == "" {
		return fmt.Errorf("notify.mqtt.broker is required")
	}
	return nil
}

// ReconcileConfig drives the periodic status repair job.
type ReconcileConfig struct {
	// Enabled turns the background reconcile loop on.
	Enabled bool `json:"enabled"`
	// IntervalSeconds is the time between reconcile passes.
	IntervalSeconds int `json:"interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *ReconcileConfig) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 300
	}
}

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
	if err := k.Load(env.Provider("S_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "s_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Store.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Track.SetDefaults()
	cfg.Notify.SetDefaults()
	cfg.Reconcile.SetDefaults()
	cfg.API.SetDefaults()
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notify.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
