package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// JSON switches the console encoder to json.
	JSON  bool
	Debug bool
	// Color enables colored levels; ignored for json.
	Color bool
}

// New builds the process logger. Logs go to stderr so stdout stays free for
// rankings and extracted text.
func New(opts Options) (*zap.Logger, error) {
	return Config(opts).Build()
}

// Config returns the zap configuration New builds from.
func Config(opts Options) zap.Config {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encoding := "console"
	encodeLevel := zapcore.LowercaseLevelEncoder
	switch {
	case opts.JSON:
		encoding = "json"
	case opts.Color:
		encodeLevel = zapcore.LowercaseColorLevelEncoder
	}

	return zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: encodeLevel,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
}
