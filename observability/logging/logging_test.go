package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "nftd", "test", slog.LevelInfo)
	logger.Info("listing created", slog.String("op", "market.list"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "listing created", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "nftd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
	require.Equal(t, "market.list", line["op"])
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "nftd", "", slog.LevelWarn)
	logger.Info("quiet")
	require.Zero(t, buf.Len())
}

func TestSetupWithFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nftd.log")
	logger := SetupWithOptions("nftd", "", Options{File: path, MaxSizeMB: 1})
	logger.Warn("written to disk")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "written to disk")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authSecret", "hunter2").Value.String())
	require.Equal(t, "market.sold", MaskField("op", "market.sold").Value.String())
	require.Equal(t, "", MaskField("authSecret", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "component")
	require.Equal(t, "sqlite", MaskField("Driver", "sqlite").Value.String())
	require.Equal(t, RedactedValue, MaskField("history_db", "/var/lib/nftd/history.db").Value.String())
}
