package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestChannelLoggerTagsChannel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Writer = &buf

	logger, err := NewChanneledLogger(cfg)
	require.NoError(t, err)

	logger.Sync().Info("flushed", "step", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "sync", entry["channel"])
	require.Equal(t, "flushed", entry["msg"])
	require.EqualValues(t, 2, entry["step"])
}

func TestSetChannelLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Writer = &buf

	logger, err := NewChanneledLogger(cfg)
	require.NoError(t, err)

	logger.Backend().Debug("hidden")
	require.Empty(t, buf.String())

	require.NoError(t, logger.SetChannelLevel(ChannelBackend, slog.LevelDebug))
	logger.Backend().Debug("visible")
	require.True(t, strings.Contains(buf.String(), "visible"))

	require.Error(t, logger.SetChannelLevel(Channel("nope"), slog.LevelDebug))
}

func TestMaskID(t *testing.T) {
	require.Equal(t, "********", MaskID("short"))
	require.Equal(t, "01HZ****WXYZ", MaskID("01HZABCDEFGWXYZ"))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}
