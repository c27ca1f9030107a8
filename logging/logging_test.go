package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWriterFields(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
	})

	var buf bytes.Buffer
	logger := SetupWriter(&buf, " storefront ", "test")
	logger.Info("cart updated", "items", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "storefront", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "cart updated", line["message"])
	require.Contains(t, line, "timestamp")
	require.EqualValues(t, 2, line["items"])
}

func TestSetupWriterBridgesStdLog(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
	})

	var buf bytes.Buffer
	SetupWriter(&buf, "storefront", "")
	log.Println("plain log line")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "plain log line", line["message"])
	require.NotContains(t, line, "env")
}
