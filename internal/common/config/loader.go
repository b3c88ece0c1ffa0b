package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over
// it and applies environment overrides. A missing base file is not an
// error; every section has defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

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
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
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

// loadEnvFile loads the first .env found near the working directory or at
// the module root. It returns the path it loaded, or "".
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// findProjectRoot walks up from the working directory to the nearest go.mod.
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
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are commonly provided only through
// the environment.
func overrideEmptyConfig(cfg *Config) {
	envOverrides := []struct {
		target *string
		env    string
	}{
		{&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY"},
		{&cfg.APIs.GenAI.BaseURL, "GENAI_BASE_URL"},
		{&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
		{&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS"},
	}
	for _, o := range envOverrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "chatbot-parser"
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

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
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

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 10000
	}
	if cfg.APIs.GenAI.RetryAttempts == 0 {
		cfg.APIs.GenAI.RetryAttempts = 3
	}
	if cfg.APIs.GenAI.RetryDelay == 0 {
		cfg.APIs.GenAI.RetryDelay = 200
	}
	if cfg.APIs.GenAI.BreakerMaxFailures == 0 {
		cfg.APIs.GenAI.BreakerMaxFailures = 5
	}
	if cfg.APIs.GenAI.BreakerOpenTimeout == 0 {
		cfg.APIs.GenAI.BreakerOpenTimeout = 30000
	}

	if cfg.Chatbot.Classifier.Mode == "" {
		cfg.Chatbot.Classifier.Mode = "rules"
	}
	if cfg.Chatbot.Templates.Mode == "" {
		cfg.Chatbot.Templates.Mode = "templates"
	}
	if cfg.Chatbot.History.Backend == "" {
		cfg.Chatbot.History.Backend = "memory"
	}
	if cfg.Chatbot.History.MaxEntries == 0 {
		cfg.Chatbot.History.MaxEntries = 100
	}
	if cfg.Chatbot.History.TTL == 0 {
		cfg.Chatbot.History.TTL = 24 * 60 * 60 * 1000
	}
	if cfg.Chatbot.Cache.TTL == 0 {
		cfg.Chatbot.Cache.TTL = 10 * 60 * 1000
	}
	if cfg.Chatbot.Analytics.Index == "" {
		cfg.Chatbot.Analytics.Index = "chatbot-turns"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10000
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
}

// validateConfig reports every problem at once. Backends are only checked
// when something selects them.
func validateConfig(cfg *Config) error {
	var result *multierror.Error
	add := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	for name, w := range cfg.Workers {
		if w.Enabled && cfg.Camunda.BrokerAddress == "" {
			add("camunda.broker_address is required when worker %s is enabled", name)
			break
		}
	}

	switch cfg.Chatbot.Classifier.Mode {
	case "rules":
	case "remote":
		if cfg.APIs.GenAI.BaseURL == "" {
			add("apis.genai.base_url is required for classifier mode remote")
		}
	default:
		add("chatbot.classifier.mode must be rules or remote, got %q", cfg.Chatbot.Classifier.Mode)
	}

	switch cfg.Chatbot.Templates.Mode {
	case "templates":
	case "remote":
		if cfg.APIs.GenAI.BaseURL == "" {
			add("apis.genai.base_url is required for templates mode remote")
		}
	default:
		add("chatbot.templates.mode must be templates or remote, got %q", cfg.Chatbot.Templates.Mode)
	}

	switch cfg.Chatbot.History.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			add("database.redis.address is required for history backend redis")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			add("database.postgres.host is required for history backend postgres")
		}
		if cfg.Database.Postgres.Database == "" {
			add("database.postgres.database is required for history backend postgres")
		}
		if cfg.Database.Postgres.User == "" {
			add("database.postgres.user is required for history backend postgres")
		}
	default:
		add("chatbot.history.backend must be memory, redis or postgres, got %q", cfg.Chatbot.History.Backend)
	}

	if cfg.Chatbot.Cache.Enabled && cfg.Database.Redis.Address == "" {
		add("database.redis.address is required when chatbot.cache is enabled")
	}
	if cfg.Chatbot.Analytics.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		add("database.elasticsearch.addresses or url is required when chatbot.analytics is enabled")
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		add("telegram.token is required when telegram is enabled")
	}

	return result.ErrorOrNil()
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled reports whether a worker runs; unlisted workers are enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
