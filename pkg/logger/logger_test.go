package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		want    zapcore.Level
		wantErr string
	}{
		{name: "empty defaults to info", give: "", want: zapcore.InfoLevel},
		{name: "debug", give: "debug", want: zapcore.DebugLevel},
		{name: "upper case", give: "WARN", want: zapcore.WarnLevel},
		{name: "invalid", give: "loud", wantErr: `invalid log level "loud"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_New_Output(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := Config{Level: zapcore.InfoLevel, Output: &buf}
	lggr, err := cfg.New()
	require.NoError(t, err)

	lggr.Named("run").Infow("operation applied", "id", "hostname")
	lggr.Debugw("hidden")
	require.NoError(t, lggr.Sync())

	out := buf.String()
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "operation applied")
	assert.Contains(t, out, `"id": "hostname"`)
	assert.NotContains(t, out, "hidden")
}

func TestTestObserved(t *testing.T) {
	t.Parallel()

	lggr, logs := TestObserved(t, zapcore.InfoLevel)
	lggr.Infow("hello", "k", "v")
	lggr.Debug("ignored")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "v", entry.ContextMap()["k"])
}

func TestNop(t *testing.T) {
	t.Parallel()

	lggr := Nop().Named("quiet")
	assert.Equal(t, "quiet", lggr.Name())
	assert.NotPanics(t, func() { lggr.Errorw("nothing", "k", 1) })
}
