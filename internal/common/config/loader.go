// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// over it and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if hasPlaceholder(val) {
				// unset variables expand to "" so validation reports them
				v.Set(key, os.ExpandEnv(val))
			}
		case []interface{}:
			out := make([]string, 0, len(val))
			for _, item := range val {
				s := fmt.Sprint(item)
				if hasPlaceholder(s) {
					s = os.ExpandEnv(s)
				}
				// an unset address drops out of the list instead of becoming ""
				if s != "" {
					out = append(out, s)
				}
			}
			v.Set(key, out)
		}
	}
}

func hasPlaceholder(s string) bool {
	return strings.Contains(s, "${") || (strings.HasPrefix(s, "$") && len(s) > 1)
}

// overrideEmptyConfig fills secrets that are commonly provided as plain env vars.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Settlement.APIKey == "" {
		cfg.Settlement.APIKey = os.Getenv("SETTLEMENT_API_KEY")
	}
	if cfg.Notifications.SNS.TopicARN == "" {
		cfg.Notifications.SNS.TopicARN = os.Getenv("LEDGER_EVENTS_TOPIC_ARN")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "franchise-ledger"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Store == "" {
		cfg.Database.Store = "postgres"
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.ConnMaxLife == 0 {
		cfg.Database.Postgres.ConnMaxLife = 300
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Database.Elasticsearch.Shards == 0 {
		cfg.Database.Elasticsearch.Shards = 1
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}
	if cfg.Database.Redis.MinIdleConns == 0 {
		cfg.Database.Redis.MinIdleConns = 2
	}
	if cfg.Database.Redis.DialTimeout == 0 {
		cfg.Database.Redis.DialTimeout = 5000
	}
	if cfg.Database.Redis.IOTimeout == 0 {
		cfg.Database.Redis.IOTimeout = 3000
	}

	if cfg.Ledger.TokenDecimals == 0 {
		cfg.Ledger.TokenDecimals = 18
	}
	if cfg.Ledger.OverfundingPolicy == "" {
		cfg.Ledger.OverfundingPolicy = "allow"
	}
	if cfg.Ledger.NativeCurrency == "" {
		cfg.Ledger.NativeCurrency = "ETH"
	}
	if cfg.Ledger.ReportingCurrency == "" {
		cfg.Ledger.ReportingCurrency = "USD"
	}
	if cfg.Ledger.SnapshotCacheTTL == 0 {
		cfg.Ledger.SnapshotCacheTTL = 300
	}
	if cfg.Ledger.ListLimitDefault == 0 {
		cfg.Ledger.ListLimitDefault = 50
	}
	if cfg.Ledger.ListLimitMax == 0 {
		cfg.Ledger.ListLimitMax = 500
	}

	if cfg.Settlement.Adapter == "" {
		cfg.Settlement.Adapter = "http"
	}
	if cfg.Settlement.Timeout == 0 {
		cfg.Settlement.Timeout = 10000
	}
	if cfg.Settlement.MaxAttempts == 0 {
		cfg.Settlement.MaxAttempts = 5
	}
	if cfg.Settlement.BatchSize == 0 {
		cfg.Settlement.BatchSize = 50
	}

	if cfg.Search.RevenueIndex == "" {
		cfg.Search.RevenueIndex = "franchise-revenue"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	switch cfg.Database.Store {
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.store must be postgres or memory, got %q", cfg.Database.Store)
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Search.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when search is enabled")
	}

	switch cfg.Ledger.OverfundingPolicy {
	case "allow", "clamp", "reject":
	default:
		return fmt.Errorf("ledger.overfunding_policy must be allow, clamp or reject, got %q", cfg.Ledger.OverfundingPolicy)
	}

	if cfg.Ledger.ConversionRate == "" {
		return fmt.Errorf("ledger.conversion_rate is required")
	}
	rate, err := decimal.NewFromString(cfg.Ledger.ConversionRate)
	if err != nil || !rate.IsPositive() {
		return fmt.Errorf("ledger.conversion_rate must be a positive decimal, got %q", cfg.Ledger.ConversionRate)
	}

	if cfg.Ledger.TokenDecimals < 0 || cfg.Ledger.TokenDecimals > 18 {
		return fmt.Errorf("ledger.token_decimals must be between 0 and 18")
	}

	switch cfg.Settlement.Adapter {
	case "http":
		if cfg.Settlement.GatewayURL == "" {
			return fmt.Errorf("settlement.gateway_url is required for the http adapter")
		}
	case "fake":
	default:
		return fmt.Errorf("settlement.adapter must be http or fake, got %q", cfg.Settlement.Adapter)
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
