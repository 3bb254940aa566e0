package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("info", "json", &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is below info")

	log.WithField("plugin", "feed").Info("Plugin initialized")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Plugin initialized", entry["msg"])
	assert.Equal(t, "feed", entry["plugin"])
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger("loud", "json", nil)
	assert.Error(t, err)

	_, err = NewLogger("info", "xml", nil)
	assert.Error(t, err)

	log, err := NewLogger("debug", "", nil)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestFromContext(t *testing.T) {
	logger, hook := test.NewNullLogger()

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", GetRequestID(ctx))

	FromContext(ctx).Info("handled")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "req-123", hook.LastEntry().Data["request_id"])

	assert.Equal(t, "", GetRequestID(context.Background()))
	assert.NotNil(t, FromContext(context.Background()))
}
