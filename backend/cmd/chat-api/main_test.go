package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/butterfly-chat/backend/config"
)

func TestMain(m *testing.M) {
	// Setup
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "error")

	// Run tests
	code := m.Run()

	// Teardown
	os.Exit(code)
}

// unsetEnv removes variables for the duration of a test so .env files can supply them
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.ObservabilityConfig
		wantErr   string
		wantDebug bool
	}{
		{
			name: "json logger",
			cfg:  config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"},
		},
		{
			name:      "development console logger",
			cfg:       config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"},
			wantDebug: true,
		},
		{
			name:    "invalid log level",
			cfg:     config.ObservabilityConfig{LogLevel: "invalid", LogFormat: "json"},
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initLogger(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, logger)
			defer logger.Sync()
			assert.Equal(t, tt.wantDebug, logger.Core().Enabled(zap.DebugLevel))
		})
	}
}

func TestSetup_LoggingFromDotEnv(t *testing.T) {
	unsetEnv(t, "LOG_LEVEL", "LOG_FORMAT", "OPENAI_API_KEY", "SUPABASE_URL", "SUPABASE_KEY")

	dir := t.TempDir()
	dotenv := "OPENAI_API_KEY=sk-test\n" +
		"SUPABASE_URL=https://project.supabase.co\n" +
		"SUPABASE_KEY=service-key\n" +
		"LOG_LEVEL=debug\n" +
		"LOG_FORMAT=json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600))
	t.Chdir(dir)
	t.Cleanup(func() {
		for _, key := range []string{"OPENAI_API_KEY", "SUPABASE_URL", "SUPABASE_KEY", "LOG_LEVEL", "LOG_FORMAT"} {
			os.Unsetenv(key)
		}
	})

	cfg, logger, err := setup(context.Background())
	require.NoError(t, err)
	defer logger.Sync()

	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestRun_ConfigError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestSetup_InvalidLogLevel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_KEY", "service-key")
	t.Setenv("LOG_LEVEL", "loud")

	_, _, err := setup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize logger")
}
