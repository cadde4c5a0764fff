package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerRedactsAndHashesVisitorFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := Wrap(zap.New(core), true)

	log.Info("identified visitor", "email", "a@b.com", "user_id", "a@b.com", "page", "stellar/home")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["email"])
	assert.Contains(t, fields["user_id"], "hash:")
	assert.NotContains(t, fields["user_id"], "a@b.com")
	assert.Equal(t, "stellar/home", fields["page"])
}

func TestLoggerRedactsNestedMaps(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := Wrap(zap.New(core), true)

	log.Debug("update", "payload", map[string]any{"email": "a@b.com", "name": "A"})

	payload, ok := logs.All()[0].ContextMap()["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", payload["email"])
	assert.Equal(t, "A", payload["name"])
}

func TestLoggerWithoutRedactionKeepsValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := Wrap(zap.New(core), false).With("visitor_id", "v-1")

	log.Warn("storage degraded", "email", "a@b.com")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "a@b.com", fields["email"])
	assert.Equal(t, "v-1", fields["visitor_id"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
