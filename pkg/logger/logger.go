package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a no-op until InitLogger runs so packages can log from tests.
var Log = zap.NewNop()

// InitLogger builds the process logger. Release mode emits JSON at info level,
// anything else a coloured console encoder at debug level.
func InitLogger(mode string) error {
	var cfg zap.Config
	if mode == "release" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.InitialFields = map[string]any{"service": "triad"}
	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Log = built
	zap.ReplaceGlobals(Log)
	return nil
}
