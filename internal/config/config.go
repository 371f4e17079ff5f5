package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends selected by the scheme of STORE_URL.
const (
	BackendChroma   = "chroma"
	BackendPostgres = "postgres"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8000"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	StoreURL      string `envconfig:"STORE_URL" required:"true"`
	StoreToken    string `envconfig:"STORE_TOKEN"`
	StoreTenant   string `envconfig:"STORE_TENANT" default:"default_tenant"`
	StoreDatabase string `envconfig:"STORE_DATABASE" default:"default_database"`

	CollectionName string `envconfig:"COLLECTION_NAME" default:"crawl_docs"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingBaseURL    string `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	FetchUserAgent string        `envconfig:"FETCH_USER_AGENT" default:"crawlvec/1.0"`
	FetchMaxBytes  int64         `envconfig:"FETCH_MAX_BYTES" default:"10485760"`
	FetchRateLimit float64       `envconfig:"FETCH_RATE_LIMIT" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"crawlvec-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// APIKey protects the mutating routes when set.
	APIKey string `envconfig:"API_KEY"`

	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CRAWLVEC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if _, err := cfg.StoreBackend(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// StoreBackend derives the vector store backend from the STORE_URL scheme.
func (c *Config) StoreBackend() (string, error) {
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return "", fmt.Errorf("invalid STORE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return BackendChroma, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	default:
		return "", fmt.Errorf("unsupported STORE_URL scheme %q (want http, https, postgres or postgresql)", u.Scheme)
	}
}

// StoreEndpoint returns STORE_URL with any password redacted, for reporting.
func (c *Config) StoreEndpoint() string {
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return ""
	}
	return u.Redacted()
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// HasEmbeddings reports whether an embedding provider can be reached: either
// an OpenAI key or an OpenAI-compatible base URL that may not need one.
func (c *Config) HasEmbeddings() bool {
	return c.OpenAIAPIKey != "" || c.EmbeddingBaseURL != ""
}

func (c *Config) HasRefresh() bool {
	return c.RefreshInterval > 0
}
