package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "debug", Output: &buf, JSON: true}))
	t.Cleanup(func() { Logger.SetOutput(os.Stderr) })

	LogAPICall("flows", "GET", "/flows/", 200, 15*time.Millisecond)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "API call", entry["msg"])
	assert.Equal(t, "flows", entry["resource"])
	assert.EqualValues(t, 200, entry["status"])
	assert.EqualValues(t, 15, entry["took_ms"])
}

func TestSetupLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "warn", Output: &buf}))
	t.Cleanup(func() { Logger.SetOutput(os.Stderr) })

	LogAPICall("status", "GET", "/status/", 200, time.Millisecond)
	assert.Empty(t, buf.String())

	LogAPIError("status", "GET", "/status/", errors.New("connection refused"))
	assert.Contains(t, buf.String(), "API call failed")
	assert.Contains(t, buf.String(), "connection refused")
	assert.Equal(t, logrus.WarnLevel, GetLogger().GetLevel())
}

func TestSetupRejectsBadLevel(t *testing.T) {
	assert.Error(t, Setup(Options{Level: "loud"}))
}

func TestSetupLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netguard.log")
	require.NoError(t, Setup(Options{Level: "info", File: path, MaxSizeMB: 1}))
	t.Cleanup(func() {
		Logger.SetOutput(os.Stderr)
		Logger.SetFormatter(&logrus.TextFormatter{})
	})

	Logger.Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
