package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

// Config represents the application configuration
type Config struct {
	Refresh       RefreshConfig       `yaml:"refresh"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Power         PowerConfig         `yaml:"power"`
	Record        RecordConfig        `yaml:"record"`
	Backends      []BackendConfig     `yaml:"backends"`
	Log           LogConfig           `yaml:"log"`
}

// RefreshConfig controls the periodic timer refresh
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// NotificationsConfig controls user-facing notifications
type NotificationsConfig struct {
	// Timers enables the batch of timer notification strings queued after
	// each refresh cycle.
	Timers bool `yaml:"timers"`
}

// PowerConfig contains power-management settings
type PowerConfig struct {
	DailyWakeup      bool   `yaml:"daily_wakeup"`
	DailyWakeupTime  string `yaml:"daily_wakeup_time"` // wall clock, "15:04"
	PrewakeMarginMin int    `yaml:"prewake_margin_min"`
	BackendIdleMin   int    `yaml:"backend_idle_min"`
}

// RecordConfig contains recording defaults
type RecordConfig struct {
	// InstantDurationMin is the window length for instant timers created
	// without guide data.
	InstantDurationMin int `yaml:"instant_duration_min"`
}

// BackendConfig describes one external timer backend. Without any backends
// configured the daemon runs against a built-in simulated backend.
type BackendConfig struct {
	// ClientID identifies the backend in timer entries; must be unique.
	ClientID int `yaml:"client_id"`

	// Type selects the adapter; "svdrp" is the only supported type.
	Type string `yaml:"type"`

	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig contains logging settings
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `yaml:"level"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	// Set defaults
	cfg := &Config{
		Refresh: RefreshConfig{
			Interval: 5 * time.Minute,
		},
		Notifications: NotificationsConfig{
			Timers: true,
		},
		Power: PowerConfig{
			DailyWakeup:      false,
			DailyWakeupTime:  "07:00",
			PrewakeMarginMin: 5,
			BackendIdleMin:   10,
		},
		Record: RecordConfig{
			InstantDurationMin: 120,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	// If config file exists, load it
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, nil // Use defaults if file doesn't exist
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("invalid refresh interval: %v", c.Refresh.Interval)
	}

	if _, _, err := c.Power.WakeupClock(); err != nil {
		return err
	}

	if c.Power.PrewakeMarginMin < 0 {
		return fmt.Errorf("invalid prewake margin: %d", c.Power.PrewakeMarginMin)
	}

	if c.Power.BackendIdleMin < 0 {
		return fmt.Errorf("invalid backend idle time: %d", c.Power.BackendIdleMin)
	}

	if c.Record.InstantDurationMin <= 0 {
		return fmt.Errorf("invalid instant record duration: %d", c.Record.InstantDurationMin)
	}

	seen := make(map[int]bool, len(c.Backends))
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.Type != "svdrp" {
			return fmt.Errorf("invalid backend type: %q (must be svdrp)", b.Type)
		}
		if b.Host == "" {
			return fmt.Errorf("backend %d: host is required", b.ClientID)
		}
		if b.Port <= 0 || b.Port > 65535 {
			return fmt.Errorf("backend %d: invalid port %d", b.ClientID, b.Port)
		}
		if seen[b.ClientID] {
			return fmt.Errorf("duplicate backend client_id %d", b.ClientID)
		}
		seen[b.ClientID] = true
		if b.Timeout <= 0 {
			b.Timeout = 5 * time.Second
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q (must be debug, info, warn, or error)", c.Log.Level)
	}

	return nil
}

// WakeupClock parses DailyWakeupTime into hour and minute
func (p *PowerConfig) WakeupClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", p.DailyWakeupTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid daily wakeup time %q: %w", p.DailyWakeupTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Save saves the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
