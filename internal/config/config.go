// Package config exposes strongly typed application configuration structs
// loaded from YAML, with API credentials pulled from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Market describes the underlying symbol and data-feed wiring.
type Market struct {
	Symbol           string `yaml:"symbol"`
	Provider         string `yaml:"provider"` // "stub" or "polygon"
	APIKey           string `yaml:"-"`        // POLYGON_API_KEY
	ChainRefreshSecs int    `yaml:"chain_refresh_secs"`
}

// Window is an intraday entry window in "HH:MM" ET bounds.
type Window struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Strategy groups the confirmation-pipeline knobs.
type Strategy struct {
	EntryWindows    []Window `yaml:"entry_windows"`
	RetestTolerance float64  `yaml:"retest_tolerance"`
	MaxRetests      int      `yaml:"max_retests"`
	BarHistory      int      `yaml:"bar_history"`
	EMAPeriod       int      `yaml:"ema_period"`
	CooldownSecs    int      `yaml:"cooldown_secs"`
	Variant         string   `yaml:"variant"`
}

// Risk encodes sizing, scaling, and invalidation guard-rails.
type Risk struct {
	AccountBalance     float64 `yaml:"account_balance"`
	RiskFraction       float64 `yaml:"risk_fraction"`
	DailyLossLimit     float64 `yaml:"daily_loss_limit"`
	TierMultiplier     float64 `yaml:"tier_multiplier"`
	Scale1Threshold    float64 `yaml:"scale1_threshold"`
	Scale1Fraction     float64 `yaml:"scale1_fraction"`
	Scale2Threshold    float64 `yaml:"scale2_threshold"`
	Scale2Fraction     float64 `yaml:"scale2_fraction"`
	TimeStop           string  `yaml:"time_stop"`
	MaxGivebackPct     float64 `yaml:"max_giveback_pct"`
	TightenGivebackPct float64 `yaml:"tighten_giveback_pct"`
}

// Alert configures the push-notification collaborator.
type Alert struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"-"` // PUSHOVER_TOKEN
	UserKey  string `yaml:"-"` // PUSHOVER_USER_KEY
}

// Broker configures the optional silent order-execution collaborator.
type Broker struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"-"` // TRADIER_TOKEN
	AccountID string `yaml:"-"` // TRADIER_ACCOUNT_ID
}

// Journal configures event recording.
type Journal struct {
	Path string `yaml:"path"` // JSONL output, empty disables
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Market   Market   `yaml:"market"`
	Strategy Strategy `yaml:"strategy"`
	Risk     Risk     `yaml:"risk"`
	Alert    Alert    `yaml:"alert"`
	Broker   Broker   `yaml:"broker"`
	Journal  Journal  `yaml:"journal"`
}

// Load reads a YAML file from disk, hydrates a Config struct, and overlays
// credentials from the environment (.env honored when present).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	config.Market.APIKey = os.Getenv("POLYGON_API_KEY")
	config.Alert.Token = os.Getenv("PUSHOVER_TOKEN")
	config.Alert.UserKey = os.Getenv("PUSHOVER_USER_KEY")
	config.Broker.Token = os.Getenv("TRADIER_TOKEN")
	config.Broker.AccountID = os.Getenv("TRADIER_ACCOUNT_ID")
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
