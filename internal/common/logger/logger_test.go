package logger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"worker": "notification.mail.send"})

	log.Debug("dropped", nil)
	log.Info("dispatched", map[string]interface{}{"sent": 2})
	log.WithError(fmt.Errorf("relay down")).Warn("retrying", nil)
	log.Error("failed", map[string]interface{}{"cause": fmt.Errorf("boom")})

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "dispatched", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "notification.mail.send", ctx["worker"])
	assert.EqualValues(t, 2, ctx["sent"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "relay down", entries[1].ContextMap()["error"])

	assert.Equal(t, "boom", entries[2].ContextMap()["cause"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNewWithOutput_BadSinkFallsBackToNop(t *testing.T) {
	l := NewWithOutput("info", "json", "unknown-scheme://nowhere")
	require.NotNil(t, l)
	l.Info("goes nowhere")
}
