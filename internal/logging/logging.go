package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = zap.NewNop()

// L returns the process logger. Before Init is called it is a no-op logger.
func L() *zap.Logger {
	return logger
}

// Init builds the process logger. Output goes to a rotated file when
// path is set, to stderr otherwise.
func Init(path, level string) *zap.Logger {
	logger = New(path, level)
	return logger
}

func New(path, level string) *zap.Logger {
	var writeSyncer zapcore.WriteSyncer
	if path != "" {
		writeSyncer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 10,
			MaxAge:     7,
			LocalTime:  true,
		})
	} else {
		writeSyncer = zapcore.Lock(os.Stderr)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		MessageKey:     "M",
		CallerKey:      "C",
		NameKey:        "N",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		writeSyncer,
		ParseLevel(level),
	)
	return zap.New(core, zap.AddCaller())
}

func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Local().Format("2006-01-02 15:04:05.000"))
}
