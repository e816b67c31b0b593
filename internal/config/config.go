package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Report     ReportConfig     `yaml:"report"`
	Research   ResearchConfig   `yaml:"research"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	DBName   string        `yaml:"dbname"`
	SSLMode  string        `yaml:"sslmode"`
	MaxOpen  int           `yaml:"max_open"`
	MaxIdle  int           `yaml:"max_idle"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// MonitoringConfig represents metrics configuration
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusAddr    string `yaml:"prometheus_addr"`
	PrometheusPath    string `yaml:"prometheus_path"`
}

// ReportConfig represents the read-only report server configuration
type ReportConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ResearchConfig carries the whole research registry: the instrument
// universe, factor parameter grids, signal definitions and simulation
// settings. It is loaded once and passed explicitly into every stage;
// nothing in the pipeline reads ambient global state.
type ResearchConfig struct {
	Universe       []string         `yaml:"universe"`
	EquityIndex    string           `yaml:"equity_index"`
	ArtifactsDir   string           `yaml:"artifacts_dir"`
	MigrationsPath string           `yaml:"migrations_path"`
	Factors        FactorsConfig    `yaml:"factors"`
	MovAveWindows  []int            `yaml:"mov_ave_windows"`
	Signals        SignalsConfig    `yaml:"signals"`
	Simulation     SimulationConfig `yaml:"simulation"`
	Summary        SummaryConfig    `yaml:"summary"`
	Schedule       ScheduleConfig   `yaml:"schedule"`
}

// SummaryConfig holds the pick thresholds the summary reports flag
// factors and signals with.
type SummaryConfig struct {
	ICIRThreshold   float64 `yaml:"icir_threshold"`
	SharpeThreshold float64 `yaml:"sharpe_threshold"`
}

// FactorsConfig holds the parameter grids for every factor family.
// A factor label is derived from family + parameters, e.g. AMT063,
// SGM021, CTP063T10, POSHLQ05, SMTP005T02.
type FactorsConfig struct {
	AmtWindows    []int              `yaml:"amt_windows"`
	MoneyScale    float64            `yaml:"money_scale"`
	SgmWindows    []int              `yaml:"sgm_windows"`
	SizeWindows   []int              `yaml:"size_windows"`
	BetaWindows   []int              `yaml:"beta_windows"`
	CxWindows     map[string][]int   `yaml:"cx_windows"`
	TopProps      []float64          `yaml:"top_props"`
	TopPlayerQtys []int              `yaml:"top_player_qtys"`
	SmtWindows    []int              `yaml:"smt_windows"`
	SmtLambdas    []float64          `yaml:"smt_lambdas"`
	AmountScale   float64            `yaml:"amount_scale"`
	Multipliers   map[string]float64 `yaml:"multipliers"`
}

// SignalsConfig lists the signal definitions by weighting policy.
type SignalsConfig struct {
	Fixed   []FixedSignalConfig   `yaml:"fixed"`
	Dynamic []DynamicSignalConfig `yaml:"dynamic"`
}

// FixedSignalConfig defines a static factor-weight combination.
// Order selects when the trailing moving average is applied:
// "ma_syn" (default) drives the synthesis from already-averaged
// factor exposures; "syn_ma" synthesizes raw exposures first and
// averages the resulting signal over MAWindow days.
type FixedSignalConfig struct {
	SID      string             `yaml:"sid"`
	Weights  map[string]float64 `yaml:"weights"`
	Order    string             `yaml:"order"`
	MAWindow int                `yaml:"ma_window"`
}

// DynamicSignalConfig defines a periodically retrained combination.
type DynamicSignalConfig struct {
	SID          string   `yaml:"sid"`
	Factors      []string `yaml:"factors"`
	TrainMonths  int      `yaml:"train_months"`
	RiskAversion float64  `yaml:"risk_aversion"`
	MinModelDays int      `yaml:"min_model_days"`
}

// SimulationConfig holds backtest settings.
type SimulationConfig struct {
	CostRate float64 `yaml:"cost_rate"`
}

// ScheduleConfig holds the cron expression for daily append runs.
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	Workers int    `yaml:"workers"`
}

// Load loads configuration from a yaml file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets deployment environments override secrets and
// endpoints without touching the yaml file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FACTORLAB_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("FACTORLAB_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("FACTORLAB_DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("FACTORLAB_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("FACTORLAB_DB_NAME"); v != "" {
		c.Database.DBName = v
	}
	if v := os.Getenv("FACTORLAB_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("FACTORLAB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "factorlab"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Timeout <= 0 {
		c.Database.Timeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Research.ArtifactsDir == "" {
		c.Research.ArtifactsDir = "artifacts"
	}
	if c.Research.Factors.MoneyScale <= 0 {
		c.Research.Factors.MoneyScale = 1e4
	}
	if c.Research.Factors.AmountScale <= 0 {
		c.Research.Factors.AmountScale = 1e4
	}
	if c.Research.Schedule.Workers <= 0 {
		c.Research.Schedule.Workers = 4
	}
	if c.Research.Summary.ICIRThreshold <= 0 {
		c.Research.Summary.ICIRThreshold = 1.0
	}
	if c.Research.Summary.SharpeThreshold <= 0 {
		c.Research.Summary.SharpeThreshold = 0.8
	}
	for i := range c.Research.Signals.Fixed {
		f := &c.Research.Signals.Fixed[i]
		if f.Order == "" {
			f.Order = "ma_syn"
		}
		if f.Order == "syn_ma" && f.MAWindow <= 0 {
			f.MAWindow = 5
		}
	}
	for i := range c.Research.Signals.Dynamic {
		d := &c.Research.Signals.Dynamic[i]
		if d.TrainMonths <= 0 {
			d.TrainMonths = 3
		}
		if d.RiskAversion <= 0 {
			d.RiskAversion = 1000
		}
		if d.MinModelDays <= 0 {
			d.MinModelDays = 60
		}
	}
}

// Validate checks required fields and cross-references the signal
// definitions against the factor grids.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required")
	}
	if len(c.Research.Universe) == 0 {
		return fmt.Errorf("research.universe must not be empty")
	}
	seen := make(map[string]bool, len(c.Research.Universe))
	for _, instrument := range c.Research.Universe {
		if seen[instrument] {
			return fmt.Errorf("research.universe contains duplicate instrument %s", instrument)
		}
		seen[instrument] = true
	}
	for _, sig := range c.Research.Signals.Fixed {
		if sig.SID == "" {
			return fmt.Errorf("fixed signal without sid")
		}
		if len(sig.Weights) == 0 {
			return fmt.Errorf("fixed signal %s has no factor weights", sig.SID)
		}
		if sig.Order != "ma_syn" && sig.Order != "syn_ma" {
			return fmt.Errorf("fixed signal %s has unknown order %q", sig.SID, sig.Order)
		}
	}
	for _, sig := range c.Research.Signals.Dynamic {
		if sig.SID == "" {
			return fmt.Errorf("dynamic signal without sid")
		}
		if len(sig.Factors) == 0 {
			return fmt.Errorf("dynamic signal %s has no factors", sig.SID)
		}
	}
	return nil
}
