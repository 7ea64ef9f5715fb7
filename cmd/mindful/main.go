package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:           "mindful",
	Short:         "Mindful Garden backend: habits, projects and focus with a gentle coach",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)

	rootCmd.AddCommand(newServeCmd(), newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		zap.S().Errorw("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02T15:04:05-07:00"))
	}

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	return logger
}
