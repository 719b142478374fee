package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/logging"
)

func TestNew_TagsInstanceAndModule(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.Options{Out: &buf, InstanceName: "alice", Level: zerolog.DebugLevel, JSON: true})
	ml := logging.Module(l, "session")
	ml.Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "alice", line["instance"])
	assert.Equal(t, "session", line["module"])
	assert.Equal(t, "hello", line["message"])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.Options{Out: &buf, Level: zerolog.Disabled, JSON: true})
	l.Error().Msg("nope")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)

	lvl, err = logging.ParseLevel("trace")
	require.NoError(t, err)
	assert.Equal(t, zerolog.TraceLevel, lvl)

	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
}
