package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantErr   bool
		wantLevel zapcore.Level
	}{
		{"json info", "info", "json", false, zapcore.InfoLevel},
		{"console debug", "debug", "console", false, zapcore.DebugLevel},
		{"upper case level", "WARN", "json", false, zapcore.WarnLevel},
		{"invalid level", "verbose", "json", true, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			defer func() { _ = logger.Sync() }()
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}

func TestFromContext(t *testing.T) {
	fallback := zap.NewNop()

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	scoped := zap.NewExample()
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}
