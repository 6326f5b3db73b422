package logger_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"feedkeep/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" info ", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, logger.ParseLevel(tc.input), "input %q", tc.input)
	}
}

func TestLogBeforeAndAfterInit(t *testing.T) {
	// Both must be safe to call in any order.
	logger.Info("before init", "k", "v")
	logger.Init(slog.LevelWarn)
	logger.Debug("filtered out")
	logger.Warn("after init", "k", "v")
}
