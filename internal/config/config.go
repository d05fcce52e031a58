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
	DBUser string `envconfig:"DB_USER" default:"docpipe"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"docpipe"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	RerankAPIKey  string `envconfig:"RERANK_API_KEY"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Ingestion
	MaxUploadSizeMB     int64 `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	ChunkSize           int   `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap        int   `envconfig:"CHUNK_OVERLAP" default:"200"`
	EmbeddingDimension  int   `envconfig:"EMBEDDING_DIMENSION" default:"768"`
	EmbedMaxChars       int   `envconfig:"EMBED_MAX_CHARS" default:"8000"`
	RequestTimeoutSecs  int   `envconfig:"REQUEST_TIMEOUT_SECONDS" default:"60"`
	EnableSummaryWorker bool  `envconfig:"ENABLE_SUMMARY_WORKER" default:"false"`

	// PDF extraction
	EnableOCR       bool `envconfig:"ENABLE_OCR" default:"true"`
	PDFMinTextChars int  `envconfig:"PDF_MIN_TEXT_CHARS" default:"50"`

	// Entity extraction
	EnableEntityExtraction bool `envconfig:"ENABLE_ENTITY_EXTRACTION" default:"true"`
	ExtractionWindowSize   int  `envconfig:"EXTRACTION_WINDOW_SIZE" default:"8000"`
	ExtractionOverlap      int  `envconfig:"EXTRACTION_OVERLAP" default:"500"`
	ExtractionConcurrency  int  `envconfig:"EXTRACTION_CONCURRENCY" default:"4"`
	MaxEntitiesPerWindow   int  `envconfig:"MAX_ENTITIES_PER_WINDOW" default:"20"`

	// Search defaults
	SearchLimit         int     `envconfig:"SEARCH_LIMIT" default:"10"`
	SimilarityThreshold float32 `envconfig:"SIMILARITY_THRESHOLD" default:"0.3"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
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
	if c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be smaller than CHUNK_SIZE", ErrMissingRequired)
	}
	if c.ExtractionWindowSize > 0 && c.ExtractionOverlap >= c.ExtractionWindowSize {
		return fmt.Errorf("%w: EXTRACTION_OVERLAP must be smaller than EXTRACTION_WINDOW_SIZE", ErrMissingRequired)
	}
	return nil
}
