package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"docpipe/internal/config"
)

func TestLoadConfig(t *testing.T) {
	// Set env var directly to test envconfig logic
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	// Create a temp .env file
	content := []byte("DB_HOST=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, 50, cfg.PDFMinTextChars)
	assert.True(t, cfg.EnableOCR)
	assert.True(t, cfg.EnableEntityExtraction)
}

func TestLoadConfig_Toggles(t *testing.T) {
	os.Setenv("ENABLE_OCR", "false")
	os.Setenv("ENABLE_ENTITY_EXTRACTION", "false")
	os.Setenv("EXTRACTION_CONCURRENCY", "8")
	defer os.Unsetenv("ENABLE_OCR")
	defer os.Unsetenv("ENABLE_ENTITY_EXTRACTION")
	defer os.Unsetenv("EXTRACTION_CONCURRENCY")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.False(t, cfg.EnableOCR)
	assert.False(t, cfg.EnableEntityExtraction)
	assert.Equal(t, 8, cfg.ExtractionConcurrency)
}
