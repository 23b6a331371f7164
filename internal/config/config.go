// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./lodestone.yaml or ~/.lodestone/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Model: completion/embedding model selection and request limits
//   - Storage: PostgreSQL connection for the vector index and chat history
//   - Platform: source-config directory, docs directory, warehouse access
//   - Serve: HTTP listen address and auth toggle
//
// Security: secrets (database password, warehouse token) are never logged.
// Errors use sentinel values for Go-idiomatic checking with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidModelName indicates the completion model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top k")

	// ErrInvalidHistoryLimit indicates the history limit is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unsupported sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultRetrievalTopK is the number of chunks retrieved per question.
	DefaultRetrievalTopK = 5

	// DefaultHistoryLimit is the number of prior turns replayed into a prompt.
	DefaultHistoryLimit = 10

	// DefaultEmbeddingDimensions matches the vector(1536) column in the
	// doc_chunks migration. Changing the embedder model requires a matching
	// schema change.
	DefaultEmbeddingDimensions = 1536
)

// Config stores application configuration.
type Config struct {
	// Model configuration. APIKey is read from the LODESTONE_API_KEY (or
	// OPENAI_API_KEY) environment variable, never from the config file.
	ModelName      string  `mapstructure:"model_name"`
	EmbedderModel  string  `mapstructure:"embedder_model"`
	APIBaseURL     string  `mapstructure:"api_base_url"`
	Temperature    float32 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	RequestTimeout int     `mapstructure:"request_timeout_seconds"`
	RequestsPerSec float64 `mapstructure:"requests_per_second"`

	// Retrieval configuration
	RetrievalTopK int    `mapstructure:"retrieval_top_k"`
	HistoryLimit  int    `mapstructure:"history_limit"`
	DocsDir       string `mapstructure:"docs_dir"`

	// Platform collaborators
	SourcesDir     string `mapstructure:"sources_dir"`
	WarehouseHost  string `mapstructure:"warehouse_host"`
	WarehouseID    string `mapstructure:"warehouse_id"`
	WarehouseToken string `mapstructure:"warehouse_token"` // SENSITIVE

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Serve configuration
	HTTPAddr    string `mapstructure:"http_addr"`
	RequireAuth bool   `mapstructure:"require_auth"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".lodestone")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// LogValue implements slog.LogValuer so a logged Config never exposes the
// database password or warehouse token.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("model_name", c.ModelName),
		slog.String("embedder_model", c.EmbedderModel),
		slog.String("postgres_host", c.PostgresHost),
		slog.Int("postgres_port", c.PostgresPort),
		slog.String("postgres_db_name", c.PostgresDBName),
		slog.String("sources_dir", c.SourcesDir),
		slog.String("docs_dir", c.DocsDir),
		slog.String("warehouse_host", c.WarehouseHost),
		slog.String("http_addr", c.HTTPAddr),
		slog.Bool("require_auth", c.RequireAuth),
	)
}

// APIKey returns the model backend API key, or "" when not configured.
// An empty key puts the assistant into its degraded, backend-unavailable mode
// rather than failing startup.
func (c *Config) APIKey() string {
	if key := os.Getenv("LODESTONE_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Validate checks configuration values and fails fast on invalid settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return ErrInvalidModelName
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return ErrInvalidEmbedderModel
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be 0-2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: %d (must be 1-65536)", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 50 {
		return fmt.Errorf("%w: %d (must be 1-50)", ErrInvalidTopK, c.RetrievalTopK)
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > 200 {
		return fmt.Errorf("%w: %d (must be 1-200)", ErrInvalidHistoryLimit, c.HistoryLimit)
	}
	if strings.TrimSpace(c.PostgresHost) == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return ErrInvalidPostgresDBName
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

// PostgresConnectionString returns the PostgreSQL DSN for the pgx driver.
// The password is single-quoted to handle special characters.
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		quoteDSNValue(c.PostgresPassword),
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// PostgresURL returns the PostgreSQL URL for golang-migrate.
// Uses url.URL for proper encoding of special characters in credentials.
func (c *Config) PostgresURL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.PostgresSSLMode),
	}
	return u.String()
}

// quoteDSNValue quotes a value for PostgreSQL key=value DSN format.
// Within single quotes, backslashes and single quotes are escaped.
func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Model defaults
	viper.SetDefault("model_name", "gpt-4o-mini")
	viper.SetDefault("embedder_model", "text-embedding-3-small")
	viper.SetDefault("api_base_url", "")
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 1024)
	viper.SetDefault("request_timeout_seconds", 60)
	viper.SetDefault("requests_per_second", 2.0)

	// Retrieval defaults
	viper.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	viper.SetDefault("history_limit", DefaultHistoryLimit)
	viper.SetDefault("docs_dir", "docs")

	// Platform defaults
	viper.SetDefault("sources_dir", "conf/sources")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "lodestone")
	viper.SetDefault("postgres_password", "lodestone_dev_password")
	viper.SetDefault("postgres_db_name", "lodestone")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Serve defaults
	viper.SetDefault("http_addr", "127.0.0.1:8400")
	viper.SetDefault("require_auth", false)
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "LODESTONE_MODEL_NAME")
	mustBind("embedder_model", "LODESTONE_EMBEDDER_MODEL")
	mustBind("api_base_url", "LODESTONE_API_BASE_URL")
	mustBind("docs_dir", "LODESTONE_DOCS_DIR")
	mustBind("sources_dir", "LODESTONE_SOURCES_DIR")
	mustBind("warehouse_host", "LODESTONE_WAREHOUSE_HOST")
	mustBind("warehouse_id", "LODESTONE_WAREHOUSE_ID")
	mustBind("warehouse_token", "LODESTONE_WAREHOUSE_TOKEN")
	mustBind("postgres_host", "LODESTONE_POSTGRES_HOST")
	mustBind("postgres_port", "LODESTONE_POSTGRES_PORT")
	mustBind("postgres_password", "LODESTONE_POSTGRES_PASSWORD")
	mustBind("http_addr", "LODESTONE_HTTP_ADDR")
	mustBind("require_auth", "LODESTONE_REQUIRE_AUTH")

	// NOTE: LODESTONE_API_KEY / OPENAI_API_KEY are read directly in
	// Config.APIKey(), not via Viper, so they never land in a config dump.
}
