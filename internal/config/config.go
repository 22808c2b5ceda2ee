package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/baseline"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/cascade"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/execution"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/monitor"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/polymarket"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/regime"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/screening"
)

// EnvPrefix is prepended to every environment override, e.g.
// POLYFADE_TELEGRAM_BOT_TOKEN for telegram.bot_token.
const EnvPrefix = "POLYFADE"

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Capital    CapitalConfig    `mapstructure:"capital"`
	Screening  ScreeningConfig  `mapstructure:"screening"`
	Regime     RegimeConfig     `mapstructure:"regime"`
	Cascade    cascade.Config   `mapstructure:"cascade"`
	Baseline   BaselineConfig   `mapstructure:"baseline"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Execution  execution.Config `mapstructure:"execution"`
	Review     ReviewConfig     `mapstructure:"review"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds the API transport and universe settings
type PolymarketConfig struct {
	polymarket.ClientConfig   `mapstructure:",squash"`
	polymarket.ProviderConfig `mapstructure:",squash"`
}

// CapitalConfig sizes the target position S = equity * target_pos_frac
type CapitalConfig struct {
	Equity        float64 `mapstructure:"equity"`
	TargetPosFrac float64 `mapstructure:"target_pos_frac"`
	MaxPosFrac    float64 `mapstructure:"max_pos_frac"`
}

// FamilyConfig holds one screening family's thresholds
type FamilyConfig struct {
	DepthMinMult float64 `mapstructure:"depth_min_mult"`
	VolMinMult   float64 `mapstructure:"vol_min_mult"`
	ExitRiskMax  float64 `mapstructure:"exit_risk_max"`
	ExitRiskWarn float64 `mapstructure:"exit_risk_warn"`
}

type ScreeningConfig struct {
	A FamilyConfig `mapstructure:"a"`
	H FamilyConfig `mapstructure:"h"`
}

// RegimeConfig selects the bot-score variant and its bucket edges
type RegimeConfig struct {
	Scorer            string  `mapstructure:"scorer"`
	BotThreshold      float64 `mapstructure:"bot_threshold"`
	HumanThreshold    float64 `mapstructure:"human_threshold"`
	ReferenceCapacity int     `mapstructure:"reference_capacity"`
}

// BaselineConfig holds rolling window capacities
type BaselineConfig struct {
	Window     int `mapstructure:"window"`
	MidWindow  int `mapstructure:"mid_window"`
	PMWVWindow int `mapstructure:"pmwv_window"`
}

// MonitorConfig holds cycle behavior configuration
type MonitorConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	MaxMarketsPerCycle int           `mapstructure:"max_markets_per_cycle"`
	TacticalSizeFrac   float64       `mapstructure:"tactical_size_frac"`
	CheckpointInterval int           `mapstructure:"checkpoint_interval"`
	TopK               int           `mapstructure:"top_k"`
	NotifyCooldown     time.Duration `mapstructure:"notify_cooldown"`
}

// ReviewConfig holds the H1 checklist settings
type ReviewConfig struct {
	MinEdge   float64 `mapstructure:"min_edge"`
	CasesPath string  `mapstructure:"cases_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	ChatID     string        `mapstructure:"chat_id"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath     string        `mapstructure:"db_path"`
	MaxMarkets int           `mapstructure:"max_markets"`
	Retention  time.Duration `mapstructure:"retention"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A .env file
// in the working directory is loaded first when present. An empty path uses
// defaults and the environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	client := polymarket.DefaultClientConfig()
	provider := polymarket.DefaultProviderConfig()
	v.SetDefault("polymarket.gamma_url", client.GammaURL)
	v.SetDefault("polymarket.clob_url", client.ClobURL)
	v.SetDefault("polymarket.timeout", client.Timeout)
	v.SetDefault("polymarket.max_retries", client.MaxRetries)
	v.SetDefault("polymarket.backoff_base", client.BackoffBase)
	v.SetDefault("polymarket.requests_per_second", client.RequestsPerSecond)
	v.SetDefault("polymarket.burst", client.Burst)
	v.SetDefault("polymarket.breaker_failures", client.BreakerFailures)
	v.SetDefault("polymarket.breaker_timeout", client.BreakerTimeout)
	v.SetDefault("polymarket.pages", provider.Pages)
	v.SetDefault("polymarket.page_size", provider.PageSize)
	v.SetDefault("polymarket.order", provider.Order)
	v.SetDefault("polymarket.allow_restricted", provider.AllowRestricted)
	v.SetDefault("polymarket.depth_levels", provider.DepthLevels)
	v.SetDefault("polymarket.max_tokens", provider.MaxTokens)

	sc := screening.DefaultConfig()
	v.SetDefault("capital.equity", sc.Equity)
	v.SetDefault("capital.target_pos_frac", sc.TargetPosFrac)
	v.SetDefault("capital.max_pos_frac", sc.MaxPosFrac)
	for prefix, th := range map[string]screening.FamilyThresholds{"screening.a": sc.A, "screening.h": sc.H} {
		v.SetDefault(prefix+".depth_min_mult", th.DepthMinMult)
		v.SetDefault(prefix+".vol_min_mult", th.VolMinMult)
		v.SetDefault(prefix+".exit_risk_max", th.ExitRiskMax)
		v.SetDefault(prefix+".exit_risk_warn", th.ExitRiskWarn)
	}

	th := regime.DefaultThresholds()
	v.SetDefault("regime.scorer", regime.ScorerSnapshot)
	v.SetDefault("regime.bot_threshold", th.Bot)
	v.SetDefault("regime.human_threshold", th.Human)
	v.SetDefault("regime.reference_capacity", regime.DefaultReferenceCapacity)

	cc := cascade.DefaultConfig()
	v.SetDefault("cascade.detector", cc.Detector)
	v.SetDefault("cascade.spread_mult", cc.SpreadMult)
	v.SetDefault("cascade.depth_collapse_mult", cc.DepthCollapseMult)
	v.SetDefault("cascade.sigma_k", cc.SigmaK)
	v.SetDefault("cascade.jump_sigma_mult", cc.JumpSigmaMult)
	v.SetDefault("cascade.pmwv_percentile", cc.PMWVPercentile)
	v.SetDefault("cascade.min_pmwv_history", cc.MinPMWVHistory)

	bc := baseline.DefaultConfig()
	v.SetDefault("baseline.window", bc.Capacity)
	v.SetDefault("baseline.mid_window", bc.MidCapacity)
	v.SetDefault("baseline.pmwv_window", bc.PMWVCapacity)

	mc := monitor.DefaultConfig()
	v.SetDefault("monitor.poll_interval", "30s")
	v.SetDefault("monitor.max_markets_per_cycle", mc.MaxMarketsPerCycle)
	v.SetDefault("monitor.tactical_size_frac", mc.TacticalSizeFrac)
	v.SetDefault("monitor.checkpoint_interval", mc.CheckpointInterval)
	v.SetDefault("monitor.top_k", mc.TopK)
	v.SetDefault("monitor.notify_cooldown", mc.NotifyCooldown)

	// Execution MUST stay disabled in research mode
	v.SetDefault("execution.enabled", false)

	v.SetDefault("review.min_edge", 0.10)
	v.SetDefault("review.cases_path", "")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay", "1s")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.max_markets", 5000)
	v.SetDefault("storage.retention", "72h")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9108")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polymarket config
	if c.Polymarket.GammaURL == "" {
		return fmt.Errorf("polymarket.gamma_url is required")
	}
	if c.Polymarket.ClobURL == "" {
		return fmt.Errorf("polymarket.clob_url is required")
	}
	if c.Polymarket.PageSize < 1 || c.Polymarket.PageSize > 1000 {
		return fmt.Errorf("polymarket.page_size must be between 1 and 1000")
	}
	if c.Polymarket.Pages < 1 {
		return fmt.Errorf("polymarket.pages must be at least 1")
	}
	if c.Polymarket.MaxRetries < 1 {
		return fmt.Errorf("polymarket.max_retries must be at least 1")
	}
	if c.Polymarket.RequestsPerSecond < 0 {
		return fmt.Errorf("polymarket.requests_per_second must not be negative")
	}
	if c.Polymarket.DepthLevels < 1 || c.Polymarket.MaxTokens < 1 {
		return fmt.Errorf("polymarket.depth_levels and polymarket.max_tokens must be at least 1")
	}

	// Validate capital and screening
	if c.Capital.Equity <= 0 {
		return fmt.Errorf("capital.equity must be positive")
	}
	if !fraction(c.Capital.TargetPosFrac) || !fraction(c.Capital.MaxPosFrac) {
		return fmt.Errorf("capital fractions must be in (0, 1]")
	}
	if c.Capital.MaxPosFrac < c.Capital.TargetPosFrac {
		return fmt.Errorf("capital.max_pos_frac must not be below capital.target_pos_frac")
	}
	for name, f := range map[string]FamilyConfig{"a": c.Screening.A, "h": c.Screening.H} {
		if f.DepthMinMult < 0 || f.VolMinMult < 0 || f.ExitRiskMax < 0 || f.ExitRiskWarn < 0 {
			return fmt.Errorf("screening.%s thresholds must not be negative", name)
		}
		if f.ExitRiskWarn > f.ExitRiskMax {
			return fmt.Errorf("screening.%s.exit_risk_warn must not exceed exit_risk_max", name)
		}
	}

	// Validate regime
	if _, err := regime.NewScorer(c.Regime.Scorer, 1); err != nil {
		return fmt.Errorf("regime.scorer: %w", err)
	}
	if c.Regime.HumanThreshold < 0 || c.Regime.BotThreshold > 1 || c.Regime.HumanThreshold >= c.Regime.BotThreshold {
		return fmt.Errorf("regime thresholds must satisfy 0 <= human_threshold < bot_threshold <= 1")
	}
	if c.Regime.ReferenceCapacity < 1 {
		return fmt.Errorf("regime.reference_capacity must be at least 1")
	}

	// Validate cascade
	if _, err := cascade.New(c.Cascade); err != nil {
		return fmt.Errorf("cascade.detector: %w", err)
	}
	if c.Cascade.SpreadMult < 0 || c.Cascade.DepthCollapseMult < 0 || c.Cascade.SigmaK < 0 || c.Cascade.JumpSigmaMult < 0 {
		return fmt.Errorf("cascade multipliers must not be negative")
	}
	if c.Cascade.PMWVPercentile < 0 || c.Cascade.PMWVPercentile > 1 {
		return fmt.Errorf("cascade.pmwv_percentile must be between 0.0 and 1.0")
	}

	// Validate baseline
	if c.Baseline.Window < 1 || c.Baseline.MidWindow < 1 || c.Baseline.PMWVWindow < 1 {
		return fmt.Errorf("baseline windows must be at least 1")
	}

	// Validate monitor
	if c.Monitor.PollInterval < time.Second {
		return fmt.Errorf("monitor.poll_interval must be at least 1 second")
	}
	if c.Monitor.MaxMarketsPerCycle < 1 {
		return fmt.Errorf("monitor.max_markets_per_cycle must be at least 1")
	}
	if !fraction(c.Monitor.TacticalSizeFrac) {
		return fmt.Errorf("monitor.tactical_size_frac must be in (0, 1]")
	}
	if c.Monitor.CheckpointInterval < 1 {
		return fmt.Errorf("monitor.checkpoint_interval must be at least 1")
	}
	if c.Monitor.TopK < 1 {
		return fmt.Errorf("monitor.top_k must be at least 1")
	}
	if c.Monitor.NotifyCooldown < 0 {
		return fmt.Errorf("monitor.notify_cooldown must not be negative")
	}

	if c.Review.MinEdge < 0 || c.Review.MinEdge > 1 {
		return fmt.Errorf("review.min_edge must be between 0.0 and 1.0")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.MaxMarkets < 1 {
		return fmt.Errorf("storage.max_markets must be at least 1")
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

func fraction(v float64) bool {
	return v > 0 && v <= 1
}

// ScreeningEngineConfig converts capital and family thresholds for the screener
func (c *Config) ScreeningEngineConfig() screening.Config {
	family := func(f FamilyConfig) screening.FamilyThresholds {
		return screening.FamilyThresholds{
			DepthMinMult: f.DepthMinMult,
			VolMinMult:   f.VolMinMult,
			ExitRiskMax:  f.ExitRiskMax,
			ExitRiskWarn: f.ExitRiskWarn,
		}
	}
	return screening.Config{
		Equity:        c.Capital.Equity,
		TargetPosFrac: c.Capital.TargetPosFrac,
		MaxPosFrac:    c.Capital.MaxPosFrac,
		A:             family(c.Screening.A),
		H:             family(c.Screening.H),
	}
}

func (c *Config) BaselineTrackerConfig() baseline.Config {
	return baseline.Config{
		Capacity:     c.Baseline.Window,
		MidCapacity:  c.Baseline.MidWindow,
		PMWVCapacity: c.Baseline.PMWVWindow,
	}
}

func (c *Config) MonitorEngineConfig() monitor.Config {
	return monitor.Config{
		CheckpointInterval: c.Monitor.CheckpointInterval,
		MaxMarketsPerCycle: c.Monitor.MaxMarketsPerCycle,
		TacticalSizeFrac:   c.Monitor.TacticalSizeFrac,
		TopK:               c.Monitor.TopK,
		NotifyCooldown:     c.Monitor.NotifyCooldown,
		Thresholds: regime.Thresholds{
			Bot:   c.Regime.BotThreshold,
			Human: c.Regime.HumanThreshold,
		},
	}
}
