// Package config provides configuration management for the options dashboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	yaml "gopkg.in/yaml.v3"
)

// Defaults applied when a value is unset.
const (
	defaultRiskFreeRate   = 0.05
	defaultCloseThreshold = 12.0
	defaultMinIV          = 0.10
	defaultMaxIV          = 1.00
	defaultPort           = 8080
	defaultRefreshCron    = "*/15 * * * *"
	defaultTimezone       = "America/New_York"
	defaultTimeout        = "10s"
	defaultReportPath     = "report.json"
	defaultDataDir        = "data"
	defaultConcurrency    = 8
)

// Market data provider names.
const (
	ProviderStatic = "static"
	ProviderMock   = "mock"
	ProviderFile   = "file"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Storage     StorageConfig     `yaml:"storage"`
	Data        DataConfig        `yaml:"data"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// AnalyticsConfig tunes the risk model.
type AnalyticsConfig struct {
	RiskFreeRate      *float64 `yaml:"risk_free_rate"` // unset means default; 0 is a valid rate
	CloseThresholdPct float64  `yaml:"close_threshold_pct"`
	MinIV             float64  `yaml:"min_iv"`
	MaxIV             float64  `yaml:"max_iv"`
}

// Rate returns the configured risk-free rate, or the default when unset.
func (a AnalyticsConfig) Rate() float64 {
	if a.RiskFreeRate == nil {
		return defaultRiskFreeRate
	}
	return *a.RiskFreeRate
}

// MarketDataConfig selects and tunes the market data provider.
type MarketDataConfig struct {
	Provider     string             `yaml:"provider"` // static | mock | file
	Quotes       map[string]float64 `yaml:"quotes"`
	VIX          float64            `yaml:"vix"`
	AccountValue float64            `yaml:"account_value"`
	QuotesFile   string             `yaml:"quotes_file"`
	Timeout      string             `yaml:"timeout"`
	Retries      int                `yaml:"retries"`
	Concurrency  int                `yaml:"concurrency"`
	Breaker      BreakerConfig      `yaml:"breaker"`
}

// BreakerConfig configures the market data circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32  `yaml:"max_requests"`
	Interval     string  `yaml:"interval"`
	Timeout      string  `yaml:"timeout"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// DashboardConfig defines the HTTP API settings.
type DashboardConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// ScheduleConfig defines report refresh timing and market hours.
type ScheduleConfig struct {
	RefreshCron     string `yaml:"refresh_cron"`
	Timezone        string `yaml:"timezone"`      // e.g., "America/New_York"
	TradingStart    string `yaml:"trading_start"` // "HH:MM"
	TradingEnd      string `yaml:"trading_end"`   // "HH:MM"
	MarketHoursOnly bool   `yaml:"market_hours_only"`
}

// StorageConfig defines where the latest report is persisted.
type StorageConfig struct {
	ReportPath string `yaml:"report_path"`
}

// DataConfig locates trade log statements.
type DataConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate applies defaults, then checks that all values are valid and consistent.
func (c *Config) Validate() error {
	c.applyDefaults()

	// Environment validation
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}
	switch c.Environment.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}

	// Analytics validation
	if r := c.Analytics.Rate(); r < 0 || r > 0.25 {
		return fmt.Errorf("analytics.risk_free_rate must be between 0 and 0.25")
	}
	if c.Analytics.CloseThresholdPct <= 0 {
		return fmt.Errorf("analytics.close_threshold_pct must be > 0")
	}
	if c.Analytics.MinIV <= 0 || c.Analytics.MinIV >= c.Analytics.MaxIV {
		return fmt.Errorf("analytics.min_iv (%.2f) must be > 0 and < analytics.max_iv (%.2f)",
			c.Analytics.MinIV, c.Analytics.MaxIV)
	}

	// Market data validation
	md := &c.MarketData
	switch md.Provider {
	case ProviderStatic, ProviderMock:
	case ProviderFile:
		if md.QuotesFile == "" {
			return fmt.Errorf("market_data.quotes_file is required for the file provider")
		}
	default:
		return fmt.Errorf("market_data.provider must be 'static', 'mock' or 'file'")
	}
	for sym, v := range md.Quotes {
		if v <= 0 {
			return fmt.Errorf("market_data.quotes.%s must be > 0", sym)
		}
	}
	if md.VIX < 0 || md.AccountValue < 0 {
		return fmt.Errorf("market_data.vix and market_data.account_value must be >= 0")
	}
	if _, err := time.ParseDuration(md.Timeout); err != nil {
		return fmt.Errorf("market_data.timeout invalid: %w", err)
	}
	if md.Retries < 0 {
		return fmt.Errorf("market_data.retries must be >= 0")
	}
	if md.Concurrency <= 0 {
		return fmt.Errorf("market_data.concurrency must be > 0")
	}
	if _, err := time.ParseDuration(md.Breaker.Interval); err != nil {
		return fmt.Errorf("market_data.breaker.interval invalid: %w", err)
	}
	if _, err := time.ParseDuration(md.Breaker.Timeout); err != nil {
		return fmt.Errorf("market_data.breaker.timeout invalid: %w", err)
	}
	if md.Breaker.FailureRatio <= 0 || md.Breaker.FailureRatio > 1 {
		return fmt.Errorf("market_data.breaker.failure_ratio must be in (0,1]")
	}

	// Dashboard validation
	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be between 1 and 65535")
	}
	if c.Environment.Mode == "live" && c.Dashboard.AuthToken == "" {
		return fmt.Errorf("dashboard.auth_token is required in live mode")
	}

	// Schedule validation
	if _, err := cron.ParseStandard(c.Schedule.RefreshCron); err != nil {
		return fmt.Errorf("schedule.refresh_cron invalid: %w", err)
	}
	if c.Schedule.MarketHoursOnly {
		loc := c.Location()
		s, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
		e, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
		if err1 != nil || err2 != nil || (s.Hour() > e.Hour() || (s.Hour() == e.Hour() && s.Minute() >= e.Minute())) {
			return fmt.Errorf("schedule trading window invalid (start/end parse/order)")
		}
	}

	return nil
}

// IsPaperTrading returns true if the dashboard is pointed at a paper account.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// MarketDataTimeout returns the per-request market data timeout.
func (c *Config) MarketDataTimeout() time.Duration {
	d, err := time.ParseDuration(c.MarketData.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// BreakerDurations returns the parsed breaker interval and open timeout.
func (c *Config) BreakerDurations() (interval, timeout time.Duration) {
	interval, err := time.ParseDuration(c.MarketData.Breaker.Interval)
	if err != nil {
		interval = time.Minute
	}
	timeout, err = time.ParseDuration(c.MarketData.Breaker.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}
	return interval, timeout
}

// Location returns the schedule timezone, falling back to a fixed ET offset
// when the tz database is unavailable.
func (c *Config) Location() *time.Location {
	tz := c.Schedule.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// Try fallback to America/New_York
		if fallbackLoc, err2 := time.LoadLocation(defaultTimezone); err2 == nil {
			return fallbackLoc
		}
		// Final fallback to DST-agnostic FixedZone
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}

// IsWithinTradingHours checks if the given time falls within configured trading hours.
func (c *Config) IsWithinTradingHours(now time.Time) bool {
	loc := c.Location()
	today := now.In(loc)

	// Only allow Monday–Friday trading
	if today.Weekday() == time.Saturday || today.Weekday() == time.Sunday {
		return false
	}

	startClock, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
	endClock, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
	if err1 != nil || err2 != nil {
		// Safe defaults if misconfigured
		startClock = time.Date(0, 1, 1, 9, 30, 0, 0, loc)
		endClock = time.Date(0, 1, 1, 16, 0, 0, 0, loc)
	}
	start := time.Date(today.Year(), today.Month(), today.Day(),
		startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end := time.Date(today.Year(), today.Month(), today.Day(),
		endClock.Hour(), endClock.Minute(), 0, 0, loc)

	// Inclusive start, exclusive end
	return !today.Before(start) && today.Before(end)
}

// ShouldRefresh reports whether a scheduled refresh should run at now.
func (c *Config) ShouldRefresh(now time.Time) bool {
	return !c.Schedule.MarketHoursOnly || c.IsWithinTradingHours(now)
}

// applyDefaults sets default values for unset fields
func (c *Config) applyDefaults() {
	if c.Environment.Mode == "" {
		c.Environment.Mode = "paper"
	}
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Analytics.RiskFreeRate == nil {
		rate := defaultRiskFreeRate
		c.Analytics.RiskFreeRate = &rate
	}
	if c.Analytics.CloseThresholdPct == 0 {
		c.Analytics.CloseThresholdPct = defaultCloseThreshold
	}
	if c.Analytics.MinIV == 0 {
		c.Analytics.MinIV = defaultMinIV
	}
	if c.Analytics.MaxIV == 0 {
		c.Analytics.MaxIV = defaultMaxIV
	}

	md := &c.MarketData
	if md.Provider == "" {
		md.Provider = ProviderStatic
	}
	if md.Timeout == "" {
		md.Timeout = defaultTimeout
	}
	if md.Concurrency == 0 {
		md.Concurrency = defaultConcurrency
	}
	if md.Breaker.MaxRequests == 0 {
		md.Breaker.MaxRequests = 3
	}
	if md.Breaker.Interval == "" {
		md.Breaker.Interval = "60s"
	}
	if md.Breaker.Timeout == "" {
		md.Breaker.Timeout = "30s"
	}
	if md.Breaker.MinRequests == 0 {
		md.Breaker.MinRequests = 5
	}
	if md.Breaker.FailureRatio == 0 {
		md.Breaker.FailureRatio = 0.6
	}

	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = defaultPort
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = defaultRefreshCron
	}
	if c.Storage.ReportPath == "" {
		c.Storage.ReportPath = defaultReportPath
	}
	if c.Data.Dir == "" {
		c.Data.Dir = defaultDataDir
	}
}
