package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration. It is loaded once per run and
// passed explicitly into each component constructor; nothing reads it from
// ambient global state.
type Config struct {
	IndexSymbol string `yaml:"index_symbol" default:"BTC-USD" validate:"required"`
	IndexName   string `yaml:"index_name" default:"BITCOIN"`

	DataFetchInterval  string `yaml:"data_fetch_interval" default:"5m"`
	DataLookbackPeriod string `yaml:"data_lookback_period" default:"2d"`

	UseWeeklyOptions bool    `yaml:"use_weekly_options" default:"true"`
	WeeklyExpiryDay  string  `yaml:"weekly_expiry_day" default:"friday"`
	ExpiryDate       string  `yaml:"expiry_date" default:"2025-05-02"`
	StrikeGap        float64 `yaml:"strike_gap" default:"1000" validate:"gt=0"`
	OptionType       string  `yaml:"option_type" default:"both" validate:"oneof=call put both"`

	MinProfitThreshold        float64 `yaml:"min_profit_threshold" default:"0.20" validate:"gt=0"`
	HighConfidenceThreshold   float64 `yaml:"high_confidence_threshold" default:"0.50" validate:"gt=0"`
	VolatilityThreshold       float64 `yaml:"volatility_threshold" default:"0.03" validate:"gt=0"`
	SignalConfidenceThreshold float64 `yaml:"signal_confidence_threshold" default:"70" validate:"gte=0,lte=100"`

	MaxRetries        int  `yaml:"max_retries" default:"3" validate:"gte=1"`
	RetryDelaySec     int  `yaml:"retry_delay" default:"10" validate:"gte=0"`
	APIRateLimitDelay int  `yaml:"api_rate_limit_delay" default:"5"`
	RequestTimeoutSec int  `yaml:"request_timeout" default:"15" validate:"gte=1"`
	FetchIntervalMin  int  `yaml:"fetch_interval" default:"15" validate:"gte=1"`
	LimitTradingHours bool `yaml:"limit_trading_hours"`

	UseMultipleDataSources bool   `yaml:"use_multiple_data_sources" default:"true"`
	CryptoExchange         string `yaml:"crypto_exchange" default:"deribit"`

	FeatureEngineeringEnabled bool    `yaml:"feature_engineering_enabled" default:"true"`
	EnsembleModels            bool    `yaml:"ensemble_models" default:"true"`
	MinAccuracyThreshold      float64 `yaml:"min_accuracy_threshold" default:"0.85"`

	DataDir  string `yaml:"data_dir" default:"data"`
	ModelDir string `yaml:"model_dir" default:"models"`

	LogLevel string `yaml:"log_level" default:"info"`

	// Secrets, environment only. Loaded from TELEGRAM_BOT_TOKEN,
	// TELEGRAM_CHAT_ID and DATABASE_URL; a .env file in the working
	// directory is honored when present.
	TelegramBotToken string `yaml:"-"`
	TelegramChatID   int64  `yaml:"-"`
	DatabaseURL      string `yaml:"-"`
}

// Load reads path (config.yaml conventionally), overlaying the file's
// keys onto the defaults, then env secrets, and validates the result.
// Defaults are applied before parsing so an explicit false or zero in
// the file survives; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// IsCrypto reports whether the configured instrument is a crypto index.
// Several stages widen thresholds and add crypto-only features based on it.
func (c *Config) IsCrypto() bool {
	return strings.Contains(strings.ToUpper(c.IndexSymbol), "BTC")
}
