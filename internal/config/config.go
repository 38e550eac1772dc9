package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"docqa"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docqa"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	GenerationModel string `envconfig:"GENERATION_MODEL" default:"gemini-1.5-flash"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`

	// Segmenter
	SegmentLength  int `envconfig:"SEGMENT_LENGTH" default:"1000"`
	SegmentOverlap int `envconfig:"SEGMENT_OVERLAP" default:"200"`

	// Answer pipeline
	SearchTopK   int `envconfig:"SEARCH_TOP_K" default:"5"`
	ContextTurns int `envconfig:"CONTEXT_TURNS" default:"3"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	EnableAPI          bool `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker bool `envconfig:"ENABLE_INGEST_WORKER" default:"true"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell instead, so load errors are ignored.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.SegmentLength <= 0 {
		return fmt.Errorf("%w: SEGMENT_LENGTH must be positive", ErrMissingRequired)
	}
	if c.SegmentOverlap < 0 || c.SegmentOverlap >= c.SegmentLength {
		return fmt.Errorf("%w: SEGMENT_OVERLAP must be smaller than SEGMENT_LENGTH", ErrMissingRequired)
	}
	return nil
}
