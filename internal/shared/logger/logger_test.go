package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"uniqnum/internal/shared/types"
)

func TestInitWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(types.LogConf{Level: "warn"}, &buf))

	Info().Msg("hidden")
	Warn().Str("client_ip", "10.0.0.1").Int("n", 3).Msg("visible")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "visible", line["message"])
	assert.Equal(t, "10.0.0.1", line["client_ip"])
	assert.EqualValues(t, 3, line["n"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(types.LogConf{Level: "info"}, &buf))

	l := WithComponent("gateway")
	l.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"gateway"`)
}

func TestInitWithWriter_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(types.LogConf{Level: "loud"}, &buf))

	Debug().Msg("debug-line")
	Info().Msg("info-line")

	assert.NotContains(t, buf.String(), "debug-line")
	assert.Contains(t, buf.String(), "info-line")
}
