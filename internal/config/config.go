package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vector store drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the nyaya API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
	Auth        AuthConfig        `yaml:"auth"`
	Embedding   ProviderConfig    `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Redis       RedisConfig       `yaml:"redis"`
	Cache       CacheConfig       `yaml:"cache"`
	Budget      BudgetConfig      `yaml:"budget"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ProviderConfig holds settings for an OpenAI-compatible model endpoint.
type ProviderConfig struct {
	Provider   string `yaml:"provider"` // label used in metrics and logs
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"` // embedding only, 0 = model default
	TimeoutSec int    `yaml:"timeout_sec"`
}

// GenerationConfig holds text-generation settings.
type GenerationConfig struct {
	ProviderConfig `yaml:",inline"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"` // 0 = provider default
}

// VectorStoreConfig selects the similarity search backend.
type VectorStoreConfig struct {
	Driver           string         `yaml:"driver"` // postgres, redis (default: postgres)
	ReadinessTimeout int            `yaml:"readiness_timeout_sec"`
	Postgres         PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds pgvector settings.
type PostgresConfig struct {
	DSN           string `yaml:"dsn"`
	MatchFunction string `yaml:"match_function"`
	MaxConns      int32  `yaml:"max_conns"`
}

// RedisConfig holds Redis / valkey-search settings. The connection also backs
// the embedding cache and budget counters when configured.
type RedisConfig struct {
	Addrs        []string `yaml:"addrs"`
	Password     string   `yaml:"password"`
	Index        string   `yaml:"index"`
	ContentField string   `yaml:"content_field"`
	VectorField  string   `yaml:"vector_field"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// BudgetConfig holds token budget settings shared by embedding and generation.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RetrievalConfig holds retriever settings.
type RetrievalConfig struct {
	TopK                int  `yaml:"top_k"`
	StripLanguageMarker bool `yaml:"strip_language_marker"`
}

// PromptConfig holds prompt construction settings.
type PromptConfig struct {
	Jurisdiction      string `yaml:"jurisdiction"`
	MaxContextTokens  int    `yaml:"max_context_tokens"` // 0 = unbounded
	TokenizerEncoding string `yaml:"tokenizer_encoding"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120 // generation can take a while
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	applyProviderDefaults(&c.Embedding, "text-embedding-004")
	applyProviderDefaults(&c.Generation.ProviderConfig, "gemini-2.5-flash")

	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = DriverPostgres
	}
	if c.VectorStore.ReadinessTimeout <= 0 {
		c.VectorStore.ReadinessTimeout = 10
	}
	if c.VectorStore.Postgres.MatchFunction == "" {
		c.VectorStore.Postgres.MatchFunction = "match_documents"
	}
	if c.VectorStore.Postgres.MaxConns <= 0 {
		c.VectorStore.Postgres.MaxConns = 10
	}
	if c.Redis.Index == "" {
		c.Redis.Index = "nyaya:documents:idx"
	}
	if c.Redis.ContentField == "" {
		c.Redis.ContentField = "content"
	}
	if c.Redis.VectorField == "" {
		c.Redis.VectorField = "embedding"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Prompt.Jurisdiction == "" {
		c.Prompt.Jurisdiction = "Indian law"
	}
	if c.Prompt.TokenizerEncoding == "" {
		c.Prompt.TokenizerEncoding = "cl100k_base"
	}
}

func applyProviderDefaults(p *ProviderConfig, model string) {
	if p.Provider == "" {
		p.Provider = "gemini"
	}
	if p.BaseURL == "" {
		p.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if p.Model == "" {
		p.Model = model
	}
	if p.TimeoutSec <= 0 {
		p.TimeoutSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}

	switch c.VectorStore.Driver {
	case DriverPostgres:
		if c.VectorStore.Postgres.DSN == "" {
			return fmt.Errorf("vector_store.postgres.dsn is required for driver %q", DriverPostgres)
		}
	case DriverRedis:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("redis.addrs is required for driver %q", DriverRedis)
		}
	default:
		return fmt.Errorf("vector_store.driver must be %q or %q, got %q",
			DriverPostgres, DriverRedis, c.VectorStore.Driver)
	}

	if c.Cache.Enabled && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("cache.enabled requires redis.addrs")
	}

	switch c.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("budget.action must be \"warn\" or \"reject\", got %q", c.Budget.Action)
	}

	if c.Prompt.MaxContextTokens < 0 {
		return fmt.Errorf("prompt.max_context_tokens must not be negative, got %d", c.Prompt.MaxContextTokens)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
