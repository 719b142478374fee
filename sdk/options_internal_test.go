package sdk

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/domain"
)

func TestOptions_LoggerLevel(t *testing.T) {
	l, err := Options{}.logger()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())

	l, err = Options{LogLevel: "debug"}.logger()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	l, err = Options{LogLevel: "3"}.logger()
	require.NoError(t, err)
	assert.Equal(t, zerolog.ErrorLevel, l.GetLevel())

	_, err = Options{LogLevel: "loud"}.logger()
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	custom := zerolog.Nop()
	l, err = Options{Logger: &custom, LogLevel: "loud"}.logger()
	require.NoError(t, err)
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
}
