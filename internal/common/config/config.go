package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	APIs     APIsConfig              `mapstructure:"apis"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Chatbot  ChatbotConfig           `mapstructure:"chatbot"`
	Server   ServerConfig            `mapstructure:"server"`
	Telegram TelegramConfig          `mapstructure:"telegram"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
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
	UsePlaintext   bool   `mapstructure:"use_plaintext"`
}

type DatabaseConfig struct {
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
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the lib/pq keyword connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// GetURL returns the postgres:// form used by the migration runner.
func (p PostgresConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // single URL, kept for older config files
}

// GetURL returns the URL field or the first address.
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
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// APIsConfig holds settings for the remote model API.
type APIsConfig struct {
	GenAI GenAIConfig `mapstructure:"genai"`
}

type GenAIConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	Timeout            int    `mapstructure:"timeout"` // milliseconds
	RetryAttempts      int    `mapstructure:"retry_attempts"`
	RetryDelay         int    `mapstructure:"retry_delay"` // milliseconds
	BreakerMaxFailures int    `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout int    `mapstructure:"breaker_open_timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// --- Chatbot ---

type ChatbotConfig struct {
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Templates  TemplatesConfig  `mapstructure:"templates"`
	History    HistoryConfig    `mapstructure:"history"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
}

// ClassifierConfig selects the intent classifier. Mode is "rules" or
// "remote"; remote falls back to the rules on failure.
type ClassifierConfig struct {
	Mode  string       `mapstructure:"mode"`
	Rules []RuleConfig `mapstructure:"rules"`
}

type RuleConfig struct {
	Intent   string   `mapstructure:"intent"`
	Keywords []string `mapstructure:"keywords"`
}

// TemplatesConfig selects the response generator. Mode is "templates" or
// "remote".
type TemplatesConfig struct {
	Mode         string `mapstructure:"mode"`
	RegistryPath string `mapstructure:"registry_path"`
}

// HistoryConfig selects where conversation history lives: "memory",
// "redis" or "postgres".
type HistoryConfig struct {
	Backend       string `mapstructure:"backend"`
	MaxEntries    int    `mapstructure:"max_entries"`
	TTL           int    `mapstructure:"ttl"` // milliseconds
	RunMigrations bool   `mapstructure:"run_migrations"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // milliseconds
}

type AnalyticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// --- Transports ---

type ServerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
