package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := Setup("fortunexd", "test", WithOutput(&buf), WithLevel("debug"))
	defer closer.Close()

	logger.Debug("pool settled", "poolId", 7)
	line := strings.TrimSpace(buf.String())
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &payload))
	require.Equal(t, "DEBUG", payload["severity"])
	require.Equal(t, "pool settled", payload["message"])
	require.Equal(t, "fortunexd", payload["service"])
	require.Equal(t, "test", payload["env"])
	require.Contains(t, payload, "timestamp")
	require.EqualValues(t, 7, payload["poolId"])
}

func TestSetupFiltersLevelAndBridgesStdLog(t *testing.T) {
	var buf bytes.Buffer
	_, closer := Setup("fortunexd", "", WithOutput(&buf), WithLevel("info"))
	defer closer.Close()

	slog.Debug("dropped")
	require.Empty(t, buf.String())

	log.Printf("from std log")
	require.Contains(t, buf.String(), "from std log")
	require.NotContains(t, buf.String(), `"env"`)
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fortunexd.log")
	var buf bytes.Buffer
	logger, closer := Setup("fortunexd", "test", WithOutput(&buf), WithFile(path, 1, 1, 1))
	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, buf.String(), "hello")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("beaconKey", "abcd").Value.String())
	require.Equal(t, " ", MaskField("beaconKey", " ").Value.String())
}
