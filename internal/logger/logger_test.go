package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		level string
		want  zapcore.Level
	}{
		{name: "Dev", mode: "dev", level: "debug", want: zapcore.DebugLevel},
		{name: "Prod", mode: "prod", level: "warn", want: zapcore.WarnLevel},
		{name: "BadLevel", mode: "dev", level: "loud", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.mode, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.SugaredLogger.Level())
			assert.NotNil(t, l.With("component", "test"))
		})
	}
}
