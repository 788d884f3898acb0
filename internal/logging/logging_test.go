package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	l, err := New("debug", "console")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "json")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New("loud", "json")
	require.Error(t, err)
	_, err = New("info", "xml")
	require.Error(t, err)
}

func TestMask(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", Mask(""))
	require.Equal(t, "***", Mask("short"))
	require.Equal(t, "***wxyz", Mask("eyJhbGciOi.abc.wxyz"))
}
