package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"agent-cost-governor/internal/catalog"
	"agent-cost-governor/internal/logging"
	"agent-cost-governor/internal/pricefeed"
	"agent-cost-governor/internal/recommend"
	"agent-cost-governor/internal/scorer"
	"agent-cost-governor/internal/storage"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    storage.Config    `mapstructure:"database"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	PriceFeed   pricefeed.Config  `mapstructure:"pricefeed"`
	PriceSource PriceSourceConfig `mapstructure:"price_source"`
	Scorer      scorer.Config     `mapstructure:"scorer"`
	Recommender recommend.Config  `mapstructure:"recommender"`
	Governor    GovernorConfig    `mapstructure:"governor"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Export      ExportConfig      `mapstructure:"export"`
	Candidates  []catalog.Seed    `mapstructure:"candidates"`
	Alerts      []AlertSeed       `mapstructure:"alerts"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SchedulerConfig governs refresh cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToStart    bool          `mapstructure:"align_to_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// PriceSourceConfig covers the external quote API.
type PriceSourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// GovernorConfig configures spend governance.
type GovernorConfig struct {
	WindowDuration time.Duration   `mapstructure:"window_duration"`
	Principals     []PrincipalSeed `mapstructure:"principals"`
}

// PrincipalSeed registers one autonomous wallet at startup.
type PrincipalSeed struct {
	ID                string    `mapstructure:"id"`
	Balance           float64   `mapstructure:"balance"`
	MaxPerTransaction float64   `mapstructure:"max_per_transaction"`
	MaxPerWindow      float64   `mapstructure:"max_per_window"`
	Payees            []string  `mapstructure:"payees"`
	TopUp             TopUpSeed `mapstructure:"top_up"`
}

// TopUpSeed configures auto-replenishment for a principal.
type TopUpSeed struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
	Amount    float64 `mapstructure:"amount"`
}

// PaymentConfig covers the on-chain settlement adapter.
type PaymentConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RPCURL         string        `mapstructure:"rpc_url"`
	TokenAddress   string        `mapstructure:"token_address"`
	PrivateKey     string        `mapstructure:"private_key"`
	ChainID        int64         `mapstructure:"chain_id"`
	TokenDecimals  int32         `mapstructure:"token_decimals"`
	GasLimit       uint64        `mapstructure:"gas_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// AlertSeed registers a threshold watch at startup.
type AlertSeed struct {
	CandidateID string  `mapstructure:"candidate_id"`
	Condition   string  `mapstructure:"condition"`
	Threshold   float64 `mapstructure:"threshold"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COSTGOVERNOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
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
	v.SetDefault("app.name", "costgovernor")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_start", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x636f7374))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("pricefeed.history_cap", 100)
	v.SetDefault("pricefeed.default_price", 0.01)
	v.SetDefault("pricefeed.significant_change_pct", 5.0)
	v.SetDefault("pricefeed.trend_deadband_pct", 2.0)
	v.SetDefault("pricefeed.trend_window", 5)
	v.SetDefault("pricefeed.alert_cooldown", "30m")

	v.SetDefault("price_source.request_timeout", "10s")
	v.SetDefault("price_source.user_agent", "costgovernor/1.0")

	v.SetDefault("scorer.points.automation", 25.0)
	v.SetDefault("scorer.points.decentralization", 15.0)
	v.SetDefault("scorer.points.cost_efficiency", 25.0)
	v.SetDefault("scorer.points.reversibility", 15.0)
	v.SetDefault("scorer.points.micropayments", 10.0)
	v.SetDefault("scorer.points.global_reach", 10.0)
	v.SetDefault("scorer.cheap_below", 0.005)
	v.SetDefault("scorer.costly_above", 0.02)

	v.SetDefault("recommender.units_per_token", 1.0)
	v.SetDefault("recommender.medium_multiplier", 1.2)
	v.SetDefault("recommender.complex_multiplier", 1.5)
	v.SetDefault("recommender.medium_tokens", 30)
	v.SetDefault("recommender.complex_tokens", 80)

	v.SetDefault("governor.window_duration", "24h")

	v.SetDefault("payment.enabled", false)
	v.SetDefault("payment.token_decimals", 6)
	v.SetDefault("payment.request_timeout", "30s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.PriceFeed.HistoryCap <= 0 {
		return fmt.Errorf("pricefeed.history_cap must be greater than zero")
	}
	if c.PriceFeed.SignificantChangePct < 0 {
		return fmt.Errorf("pricefeed.significant_change_pct cannot be negative")
	}
	if c.Governor.WindowDuration <= 0 {
		return fmt.Errorf("governor.window_duration must be greater than zero")
	}
	for _, p := range c.Governor.Principals {
		if p.ID == "" {
			return fmt.Errorf("governor principal id must not be empty")
		}
		if p.MaxPerTransaction <= 0 || p.MaxPerWindow <= 0 {
			return fmt.Errorf("governor principal %s limits must be greater than zero", p.ID)
		}
	}
	for _, a := range c.Alerts {
		switch a.Condition {
		case "above", "below", "percentChange":
		default:
			return fmt.Errorf("alert condition %q not recognised", a.Condition)
		}
	}
	if c.Payment.Enabled {
		if c.Payment.RPCURL == "" {
			return fmt.Errorf("payment.rpc_url is required when payment is enabled")
		}
		if c.Payment.TokenAddress == "" {
			return fmt.Errorf("payment.token_address is required when payment is enabled")
		}
		if c.Payment.PrivateKey == "" {
			return fmt.Errorf("payment.private_key is required when payment is enabled")
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
