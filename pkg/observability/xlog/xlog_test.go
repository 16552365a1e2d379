package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xkeylock/pkg/observability/xlog"
)

func build(t *testing.T, b *xlog.Builder) xlog.LoggerWithLevel {
	t.Helper()
	logger, cleanup, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cleanup()) })
	return logger
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    xlog.Level
		wantErr bool
	}{
		{"debug", xlog.LevelDebug, false},
		{"INFO", xlog.LevelInfo, false},
		{"Warn", xlog.LevelWarn, false},
		{"warning", xlog.LevelWarn, false},
		{" error\n", xlog.LevelError, false},
		{"", xlog.LevelInfo, true},
		{"trace", xlog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := xlog.ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_StringAndUnmarshal(t *testing.T) {
	assert.Equal(t, "DEBUG", xlog.LevelDebug.String())
	assert.Equal(t, "WARN", xlog.LevelWarn.String())
	assert.Equal(t, "INFO+2", xlog.Level(2).String())

	var l xlog.Level
	require.NoError(t, l.UnmarshalText([]byte("error")))
	assert.Equal(t, xlog.LevelError, l)
	assert.Error(t, l.UnmarshalText([]byte("loud")))
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetLevel(xlog.LevelWarn))
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")

	assert.False(t, logger.Enabled(ctx, xlog.LevelInfo))
	logger.SetLevel(xlog.LevelDebug)
	assert.Equal(t, xlog.LevelDebug, logger.GetLevel())
	logger.Debug(ctx, "debug after change")
	assert.Contains(t, buf.String(), "debug after change")
}

func TestLogger_DerivedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf))

	child := logger.With(xlog.Component("xkeylock")).WithGroup("lock")
	logger.SetLevel(xlog.LevelError)
	child.Info(context.Background(), "suppressed")
	assert.Empty(t, buf.String())

	logger.SetLevel(xlog.LevelInfo)
	child.Info(context.Background(), "created", xlog.LockKey("order:1"))
	out := buf.String()
	assert.Contains(t, out, "component=xkeylock")
	assert.Contains(t, out, "lock.lock_key=order:1")

	assert.Same(t, logger, logger.With())
	assert.Same(t, logger, logger.WithGroup(""))
}

func TestLogger_JSONAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetFormat(" JSON "))

	logger.Warn(context.Background(), "slow lock wait",
		xlog.LockKey(42),
		xlog.Wait(1500*time.Microsecond),
		xlog.Operation("run_exclusive"),
		xlog.Err(errors.New("boom")),
		xlog.Err(nil),
		xlog.Count(3),
		xlog.Duration(2*time.Second),
	)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "slow lock wait", rec["msg"])
	assert.EqualValues(t, 42, rec[xlog.KeyLockKey])
	assert.InDelta(t, 1.5, rec[xlog.KeyWait], 1e-9)
	assert.Equal(t, "run_exclusive", rec[xlog.KeyOperation])
	assert.Equal(t, "boom", rec[xlog.KeyError])
	assert.EqualValues(t, 3, rec[xlog.KeyCount])
	assert.Equal(t, "2s", rec[xlog.KeyDuration])
}

func TestLockKey_Types(t *testing.T) {
	type pair struct{ A, B int }
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, slog.KindString, xlog.LockKey("k").Value.Kind())
	assert.Equal(t, slog.KindInt64, xlog.LockKey(7).Value.Kind())
	assert.Equal(t, slog.KindUint64, xlog.LockKey(uint64(7)).Value.Kind())
	assert.Equal(t, slog.KindTime, xlog.LockKey(at).Value.Kind())
	assert.Equal(t, "{1 2}", xlog.LockKey(pair{1, 2}).Value.String())
}

func TestBuilder_Errors(t *testing.T) {
	_, _, err := xlog.New().SetFormat("xml").Build()
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = xlog.New().SetLevelString("loud").SetFormat("json").Build()
	assert.ErrorContains(t, err, "unknown level")

	_, _, err = xlog.New().SetOutput(nil).Build()
	assert.ErrorIs(t, err, xlog.ErrNilOutput)
}

func TestBuilder_ReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetReplaceAttr(func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == xlog.KeyLockKey {
			return slog.String(a.Key, "***")
		}
		return a
	}))

	logger.Info(context.Background(), "created", xlog.LockKey("secret-tenant"))
	assert.Contains(t, buf.String(), "lock_key=***")
	assert.NotContains(t, buf.String(), "secret-tenant")
}

func TestBuilder_Rotation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "xkeylock.log")
	logger, cleanup, err := xlog.New().SetRotation(file).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup(), "cleanup must be idempotent")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))

	_, _, err = xlog.New().SetRotation("").Build()
	assert.Error(t, err)
}
