package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Retriever backends
const (
	RetrieverSupabase = "supabase"
	RetrieverPostgres = "postgres"
)

// Stream protocols
const (
	StreamProtocolData = "data"
	StreamProtocolText = "text"
)

// Arguments of the similarity function. They are part of the retrieval
// contract and are not read from the environment.
const (
	MatchThreshold = 0.70
	MatchCount     = 3
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Supabase      SupabaseConfig
	Database      DatabaseConfig
	OpenAI        OpenAIConfig
	Pipeline      PipelineConfig
	Prompt        PromptConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // zero disables the write deadline so long streams are not cut off
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// SupabaseConfig points at the PostgREST endpoint exposing the similarity RPC
type SupabaseConfig struct {
	URL         string
	Key         string
	RPCFunction string
	Timeout     time.Duration
}

// DatabaseConfig holds the optional direct PostgreSQL connection used by the postgres retriever.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// OpenAIConfig holds the embedding and chat completion provider configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// PipelineConfig holds the fixed parameters of the retrieval-augmented chat pipeline
type PipelineConfig struct {
	EmbeddingModel  string
	CompletionModel string
	MatchThreshold  float64
	MatchCount      int
	Retriever       string // supabase or postgres
	StreamProtocol  string // data or text
}

// PromptConfig configures the system prompt template
type PromptConfig struct {
	TemplateFile string // optional YAML file overriding the built-in template
	Domain       string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console; console by default in development
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env when run from backend/)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	env := &envReader{}
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            env.port(),
			ReadTimeout:     env.asDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.asDuration("SERVER_WRITE_TIMEOUT", 0),
			ShutdownTimeout: env.asDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Supabase: SupabaseConfig{
			URL:         strings.TrimSuffix(getEnv("SUPABASE_URL", ""), "/"),
			Key:         getEnv("SUPABASE_KEY", ""),
			RPCFunction: getEnv("SUPABASE_RPC_FUNCTION", "get_relevant_chunks"),
			Timeout:     env.asDuration("SUPABASE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			MaxOpenConns:     env.asInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     env.asInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  env.asDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_API_BASE_URL", getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1")),
			Timeout: env.asDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Pipeline: PipelineConfig{
			EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			CompletionModel: getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
			MatchThreshold:  MatchThreshold,
			MatchCount:      MatchCount,
			Retriever:       strings.ToLower(getEnv("RETRIEVER_BACKEND", RetrieverSupabase)),
			StreamProtocol:  strings.ToLower(getEnv("STREAM_PROTOCOL", StreamProtocolData)),
		},
		Prompt: PromptConfig{
			TemplateFile: getEnv("PROMPT_TEMPLATE_FILE", ""),
			Domain:       getEnv("PROMPT_DOMAIN", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", ""),
		},
	}

	if err := env.err(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
		if cfg.IsDevelopment() {
			cfg.Observability.LogFormat = "console"
		}
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that every value the pipeline needs at request time is present.
// Missing credentials fail here instead of surfacing later as opaque provider errors.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OpenAI.BaseURL == "" {
		return fmt.Errorf("OPENAI_API_BASE_URL is required")
	}

	switch c.Pipeline.Retriever {
	case RetrieverSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase retriever")
		}
		if c.Supabase.Key == "" {
			return fmt.Errorf("SUPABASE_KEY is required for the supabase retriever")
		}
	case RetrieverPostgres:
		if c.Database.ConnectionString == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres retriever")
		}
	default:
		return fmt.Errorf("unknown retriever backend %q", c.Pipeline.Retriever)
	}
	if c.Supabase.RPCFunction == "" {
		return fmt.Errorf("SUPABASE_RPC_FUNCTION cannot be empty")
	}

	if c.Pipeline.EmbeddingModel == "" || c.Pipeline.CompletionModel == "" {
		return fmt.Errorf("embedding and completion models are required")
	}
	if c.Pipeline.MatchThreshold < 0 || c.Pipeline.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be between 0 and 1, got %v", c.Pipeline.MatchThreshold)
	}
	if c.Pipeline.MatchCount <= 0 {
		return fmt.Errorf("match count must be positive, got %d", c.Pipeline.MatchCount)
	}
	if c.Pipeline.StreamProtocol != StreamProtocolData && c.Pipeline.StreamProtocol != StreamProtocolText {
		return fmt.Errorf("unknown stream protocol %q", c.Pipeline.StreamProtocol)
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString == "" {
		return "<not configured>"
	}
	u, err := url.Parse(c.ConnectionString)
	if err != nil || u.Host == "" {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and remembers every value that is set but
// does not parse
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, value, kind string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid %s: %w", key, value, kind, err))
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// port returns the server port from PORT or SERVER_PORT (default: 8080)
func (e *envReader) port() int {
	if os.Getenv("PORT") != "" {
		return e.asInt("PORT", 8080)
	}
	return e.asInt("SERVER_PORT", 8080)
}

func (e *envReader) asInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		e.fail(key, valueStr, "integer", err)
		return defaultValue
	}
	return value
}

func (e *envReader) asDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		e.fail(key, valueStr, "duration", err)
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
