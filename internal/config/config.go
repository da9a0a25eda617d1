package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/spoonbill/claims-factoring/internal/domain/underwriting"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Pool         PoolConfig         `mapstructure:"pool"`
	Provider     ProviderConfig     `mapstructure:"provider"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Underwriting UnderwritingConfig `mapstructure:"underwriting"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// PoolConfig holds the capital pool bootstrap configuration
type PoolConfig struct {
	ID                string `mapstructure:"id"`
	TotalCapitalCents int64  `mapstructure:"total_capital_cents"`
	Currency          string `mapstructure:"currency"`
}

// ProviderConfig holds simulated payment provider configuration
type ProviderConfig struct {
	FailureRate   float64 `mapstructure:"failure_rate"`
	Deterministic bool    `mapstructure:"deterministic"`
	ForceFail     bool    `mapstructure:"force_fail"`
}

// KafkaConfig holds the audit event publisher configuration. An empty
// broker list disables Kafka and audit events go to the log only.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// UnderwritingConfig holds the policy knobs for the rules evaluator
type UnderwritingConfig struct {
	ApprovedPayers             []string           `mapstructure:"approved_payers"`
	ExcludedPlanKeywords       []string           `mapstructure:"excluded_plan_keywords"`
	AllowedProcedures          []string           `mapstructure:"allowed_procedures"`
	ProcedurePayRateThreshold  float64            `mapstructure:"procedure_pay_rate_threshold"`
	MinPracticeTenureMonths    int                `mapstructure:"min_practice_tenure_months"`
	MinPracticeCleanClaimRate  float64            `mapstructure:"min_practice_clean_claim_rate"`
	ProcedureHistoricalPayRate map[string]float64 `mapstructure:"procedure_historical_pay_rate"`
	ReviewAmountThresholdCents int64              `mapstructure:"review_amount_threshold_cents"`
}

// ToPolicy converts the configuration into the evaluator's policy form.
func (c UnderwritingConfig) ToPolicy() underwriting.Policy {
	payers := make(map[string]bool, len(c.ApprovedPayers))
	for _, p := range c.ApprovedPayers {
		payers[p] = true
	}
	procedures := make(map[string]bool, len(c.AllowedProcedures))
	for _, p := range c.AllowedProcedures {
		procedures[p] = true
	}
	return underwriting.Policy{
		ApprovedPayers:             payers,
		ExcludedPlanKeywords:       c.ExcludedPlanKeywords,
		AllowedProcedures:          procedures,
		ProcedurePayRateThreshold:  c.ProcedurePayRateThreshold,
		MinPracticeTenureMonths:    c.MinPracticeTenureMonths,
		MinPracticeCleanClaimRate:  c.MinPracticeCleanClaimRate,
		ProcedureHistoricalPayRate: c.ProcedureHistoricalPayRate,
	}
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/claims.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Pool defaults
	viper.SetDefault("pool.id", "pool-1")
	viper.SetDefault("pool.total_capital_cents", 100_000_000)
	viper.SetDefault("pool.currency", "USD")

	// Provider defaults
	viper.SetDefault("provider.failure_rate", 0.1)
	viper.SetDefault("provider.deterministic", false)
	viper.SetDefault("provider.force_fail", false)

	// Kafka defaults
	viper.SetDefault("kafka.topic", "claims.audit")

	// Underwriting defaults
	viper.SetDefault("underwriting.procedure_pay_rate_threshold", 0.80)
	viper.SetDefault("underwriting.min_practice_tenure_months", 12)
	viper.SetDefault("underwriting.min_practice_clean_claim_rate", 0.90)
	viper.SetDefault("underwriting.review_amount_threshold_cents", 500_000)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("pool.id", "POOL_ID")
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.topic", "KAFKA_TOPIC")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Pool.ID == "" {
		return fmt.Errorf("pool.id is required")
	}
	if c.Pool.TotalCapitalCents <= 0 {
		return fmt.Errorf("pool.total_capital_cents must be positive")
	}
	if c.Provider.FailureRate < 0 || c.Provider.FailureRate > 1 {
		return fmt.Errorf("provider.failure_rate must be within [0, 1]")
	}
	if c.Underwriting.ProcedurePayRateThreshold < 0 || c.Underwriting.ProcedurePayRateThreshold > 1 {
		return fmt.Errorf("underwriting.procedure_pay_rate_threshold must be within [0, 1]")
	}
	if c.Underwriting.ReviewAmountThresholdCents <= 0 {
		return fmt.Errorf("underwriting.review_amount_threshold_cents must be positive")
	}
	return nil
}
