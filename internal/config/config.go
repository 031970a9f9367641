// Package config defines all configuration for the auto-trading service.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via TRADER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Broker    BrokerConfig    `mapstructure:"broker"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	News      NewsConfig      `mapstructure:"news"`
	Screener  ScreenerConfig  `mapstructure:"screener"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Trader    TraderConfig    `mapstructure:"trader"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BrokerConfig holds brokerage API credentials and endpoints.
// AccountNo is the full "XXXXXXXX-XX" identifier; the client splits it into
// account number and product code at construction. Mock selects the paper
// trading environment and its transaction-id table.
type BrokerConfig struct {
	AppKey    string        `mapstructure:"app_key"`
	AppSecret string        `mapstructure:"app_secret"`
	AccountNo string        `mapstructure:"account_no"`
	Mock      bool          `mapstructure:"mock"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SentimentConfig tunes the fear/greed fuser.
//
//   - PrimaryURL / FallbackURL: the two public index endpoints. The fallback
//     is consulted only when the primary fails.
//   - CacheTTL: how long numeric and hybrid readings are reused.
//   - NumericWeight / NewsWeight: hybrid combination weights. On any
//     news-side failure the fuser collapses to numeric-only regardless.
type SentimentConfig struct {
	PrimaryURL    string        `mapstructure:"primary_url"`
	FallbackURL   string        `mapstructure:"fallback_url"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	NumericWeight float64       `mapstructure:"numeric_weight"`
	NewsWeight    float64       `mapstructure:"news_weight"`
}

// NewsConfig configures the RSS collector and the LLM analyser.
// An empty APIKey disables the news leg entirely (numeric-only sentiment).
type NewsConfig struct {
	APIKey       string   `mapstructure:"api_key"`
	Model        string   `mapstructure:"model"`
	BaseURL      string   `mapstructure:"base_url"`
	Feeds        []string `mapstructure:"feeds"`
	MaxHeadlines int      `mapstructure:"max_headlines"`
}

// ScreenerConfig holds the classification thresholds and the two
// sector-average benchmark tables (domestic and overseas).
type ScreenerConfig struct {
	ValueTrapROE      float64 `mapstructure:"value_trap_roe"`
	UndervaluedROE    float64 `mapstructure:"undervalued_roe"`
	PERDiscountRatio  float64 `mapstructure:"per_discount_ratio"`
	DividendThreshold float64 `mapstructure:"dividend_threshold"`

	DomesticSectors map[string]types.SectorBenchmark `mapstructure:"domestic_sectors"`
	OverseasSectors map[string]types.SectorBenchmark `mapstructure:"overseas_sectors"`
}

// RiskConfig sets the per-cycle global constraints.
//
//   - MaxDailyTrades: executed-trade budget per KST calendar day.
//   - MaxPositionFraction: one position's notional as a fraction of equity.
//   - MaxTotalPositionFraction: aggregate position value fraction of equity.
//   - MaxDailyLossFraction: peak-to-current equity drawdown that trips the
//     circuit breaker (buys abort, sells proceed).
//   - MinBuyScore / MaxSellScore: signal-score thresholds.
type RiskConfig struct {
	MaxDailyTrades           int     `mapstructure:"max_daily_trades"`
	MaxPositionFraction      float64 `mapstructure:"max_position_fraction"`
	MaxTotalPositionFraction float64 `mapstructure:"max_total_position_fraction"`
	MaxDailyLossFraction     float64 `mapstructure:"max_daily_loss_fraction"`
	MinBuyScore              float64 `mapstructure:"min_buy_score"`
	MaxSellScore             float64 `mapstructure:"max_sell_score"`
}

// TraderConfig is the operator-facing trading setup. DryRun defaults to
// true: decision logic runs end to end but no order leaves the executor.
type TraderConfig struct {
	Universe    string  `mapstructure:"universe"`
	DryRun      bool    `mapstructure:"dry_run"`
	NotionalCap float64 `mapstructure:"notional_cap"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig sets where operator state is persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: TRADER_APP_KEY, TRADER_APP_SECRET,
// TRADER_ACCOUNT_NO, TRADER_LLM_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("TRADER_APP_KEY"); key != "" {
		cfg.Broker.AppKey = key
	}
	if secret := os.Getenv("TRADER_APP_SECRET"); secret != "" {
		cfg.Broker.AppSecret = secret
	}
	if acct := os.Getenv("TRADER_ACCOUNT_NO"); acct != "" {
		cfg.Broker.AccountNo = acct
	}
	if key := os.Getenv("TRADER_LLM_API_KEY"); key != "" {
		cfg.News.APIKey = key
	}
	if model := os.Getenv("TRADER_LLM_MODEL"); model != "" {
		cfg.News.Model = model
	}
	if os.Getenv("TRADER_DRY_RUN") == "true" || os.Getenv("TRADER_DRY_RUN") == "1" {
		cfg.Trader.DryRun = true
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.timeout", 10*time.Second)
	v.SetDefault("broker.mock", true)

	v.SetDefault("sentiment.primary_url", "https://production.dataviz.cnn.io/index/fearandgreed/graphdata")
	v.SetDefault("sentiment.fallback_url", "https://api.alternative.me/fng/")
	v.SetDefault("sentiment.cache_ttl", 10*time.Minute)
	v.SetDefault("sentiment.numeric_weight", 0.5)
	v.SetDefault("sentiment.news_weight", 0.5)

	v.SetDefault("news.base_url", "https://api.openai.com/v1")
	v.SetDefault("news.model", "gpt-4o-mini")
	v.SetDefault("news.max_headlines", 20)

	v.SetDefault("screener.value_trap_roe", 5.0)
	v.SetDefault("screener.undervalued_roe", 10.0)
	v.SetDefault("screener.per_discount_ratio", 0.7)
	v.SetDefault("screener.dividend_threshold", 1.5)

	v.SetDefault("risk.max_daily_trades", 10)
	v.SetDefault("risk.max_position_fraction", 0.10)
	v.SetDefault("risk.max_total_position_fraction", 0.80)
	v.SetDefault("risk.max_daily_loss_fraction", 0.03)
	v.SetDefault("risk.min_buy_score", 35)
	v.SetDefault("risk.max_sell_score", -20)

	v.SetDefault("trader.universe", "kospi30")
	v.SetDefault("trader.dry_run", true)
	v.SetDefault("trader.notional_cap", 1_000_000)

	v.SetDefault("server.port", 8090)
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Broker.AppKey == "" {
		return fmt.Errorf("broker.app_key is required (set TRADER_APP_KEY)")
	}
	if c.Broker.AppSecret == "" {
		return fmt.Errorf("broker.app_secret is required (set TRADER_APP_SECRET)")
	}
	if c.Broker.AccountNo == "" {
		return fmt.Errorf("broker.account_no is required (set TRADER_ACCOUNT_NO)")
	}
	if !strings.Contains(c.Broker.AccountNo, "-") {
		return fmt.Errorf("broker.account_no must look like XXXXXXXX-XX")
	}
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url is required")
	}
	if c.Sentiment.NumericWeight < 0 || c.Sentiment.NewsWeight < 0 {
		return fmt.Errorf("sentiment weights must be >= 0")
	}
	if w := c.Sentiment.NumericWeight + c.Sentiment.NewsWeight; w <= 0 {
		return fmt.Errorf("sentiment weights must sum to > 0")
	}
	if c.Screener.PERDiscountRatio <= 0 || c.Screener.PERDiscountRatio > 1 {
		return fmt.Errorf("screener.per_discount_ratio must be in (0, 1]")
	}
	if c.Risk.MaxDailyTrades <= 0 {
		return fmt.Errorf("risk.max_daily_trades must be > 0")
	}
	if c.Risk.MaxPositionFraction <= 0 || c.Risk.MaxPositionFraction > 1 {
		return fmt.Errorf("risk.max_position_fraction must be in (0, 1]")
	}
	if c.Risk.MaxTotalPositionFraction <= 0 || c.Risk.MaxTotalPositionFraction > 1 {
		return fmt.Errorf("risk.max_total_position_fraction must be in (0, 1]")
	}
	if c.Trader.NotionalCap <= 0 {
		return fmt.Errorf("trader.notional_cap must be > 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port")
	}
	return nil
}
