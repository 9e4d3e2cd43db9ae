package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, InitLogger("development"))
	t.Cleanup(func() { _ = SetLogLevel("debug") })

	require.NoError(t, SetLogLevel("warn"))
	assert.False(t, GetLogger().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, SetLogLevel("loud"))
}
