package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docpipe/internal/app"
	"docpipe/internal/config"
)

type flakyEnsurer struct {
	failures int
	calls    int
}

func (f *flakyEnsurer) EnsureSchema(ctx context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestEnsureSchemaWithRetry(t *testing.T) {
	t.Run("Succeeds After Failures", func(t *testing.T) {
		ensurer := &flakyEnsurer{failures: 2}
		err := app.EnsureSchemaWithRetry(context.Background(), ensurer, 5, 0)
		assert.NoError(t, err)
		assert.Equal(t, 3, ensurer.calls)
	})

	t.Run("Exhausts Attempts", func(t *testing.T) {
		ensurer := &flakyEnsurer{failures: 10}
		err := app.EnsureSchemaWithRetry(context.Background(), ensurer, 3, 0)
		assert.Error(t, err)
		assert.Equal(t, 3, ensurer.calls)
	})

	t.Run("First Try", func(t *testing.T) {
		ensurer := &flakyEnsurer{}
		err := app.EnsureSchemaWithRetry(context.Background(), ensurer, 1, 0)
		assert.NoError(t, err)
		assert.Equal(t, 1, ensurer.calls)
	})
}

func TestBootstrap_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                     "localhost",
		DBPort:                     54322, // Port likely closed
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "test",
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 0,
	}

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)
	duration := time.Since(start)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to ping db")
	assert.Less(t, duration, 2*time.Second)
}
