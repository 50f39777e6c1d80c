package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/aiagenz/billing/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestNew_ProductionWritesJSONWithContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithEnvironment("production", "billing"),
		logger.WithOutput(&buf),
		logger.WithContextValue("request_id", ctxKey{}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	log.DebugContext(ctx, "dropped")
	log.InfoContext(ctx, "kept")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "billing", rec["service"])
	assert.Equal(t, "production", rec["env"])
	assert.Equal(t, "req-1", rec["request_id"])
}

func TestNew_DevelopmentWritesTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithEnvironment("development", "billing"), logger.WithOutput(&buf))

	log.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}
