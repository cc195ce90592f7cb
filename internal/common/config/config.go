// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Ledger        LedgerConfig            `mapstructure:"ledger"`
	Settlement    SettlementConfig        `mapstructure:"settlement"`
	Search        SearchConfig            `mapstructure:"search"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Registry      RegistryConfig          `mapstructure:"registry"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	// Store selects the ledger backend: "postgres" or "memory".
	Store         string              `mapstructure:"store"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	ConnMaxLife    int    `mapstructure:"conn_max_lifetime"` // seconds
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
	// Shards of the revenue index when the worker has to create it.
	Shards   int `mapstructure:"shards"`
	Replicas int `mapstructure:"replicas"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"` // milliseconds
	IOTimeout    int    `mapstructure:"io_timeout"`   // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
}

// --- Ledger Configuration ---

// LedgerConfig holds the bookkeeping policies.
type LedgerConfig struct {
	TokenDecimals     int32  `mapstructure:"token_decimals"`
	OverfundingPolicy string `mapstructure:"overfunding_policy"` // allow | clamp | reject
	NativeCurrency    string `mapstructure:"native_currency"`
	ReportingCurrency string `mapstructure:"reporting_currency"`
	// ConversionRate is the single native->reporting rate; amounts are never
	// converted with any other constant.
	ConversionRate   string `mapstructure:"conversion_rate"`
	SnapshotCacheTTL int    `mapstructure:"snapshot_cache_ttl"` // seconds
	ListLimitDefault int    `mapstructure:"list_limit_default"`
	ListLimitMax     int    `mapstructure:"list_limit_max"`
}

// SettlementConfig holds the external settlement gateway settings.
type SettlementConfig struct {
	Adapter     string `mapstructure:"adapter"` // http | fake
	GatewayURL  string `mapstructure:"gateway_url"`
	APIKey      string `mapstructure:"api_key"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
	MaxAttempts int    `mapstructure:"max_attempts"`
	BatchSize   int    `mapstructure:"batch_size"`
}

// SearchConfig holds the revenue projection index settings.
type SearchConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	RevenueIndex string `mapstructure:"revenue_index"`
}

// NotificationConfig holds the ledger event publisher settings.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// RegistryConfig points to the task registry file. Empty uses the embedded copy.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}
