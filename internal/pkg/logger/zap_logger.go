package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ILogger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
	Sync() error
}

type ZapLogger struct {
	logger *zap.Logger
}

func newRotator(logFilePath string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // Megabytes
		MaxBackups: 5,
		MaxAge:     30, // Days
		Compress:   true,
	}
}

func newJSONEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

// NewZapLogger writes JSON to a rotated file and to stdout (console format outside production).
func NewZapLogger(logFilePath string, isProd bool) *ZapLogger {
	jsonEncoder := newJSONEncoder()

	fileCore := zapcore.NewCore(jsonEncoder, zapcore.AddSync(newRotator(logFilePath)), zap.InfoLevel)

	var consoleEncoder zapcore.Encoder
	if isProd {
		consoleEncoder = jsonEncoder
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.DebugLevel)

	l := zap.New(zapcore.NewTee(fileCore, consoleCore), zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{logger: l}
}

// NewIsolatedLogger creates a logger that ONLY writes to the file, not console.
// The realtime hub is chatty (every connect, every frame error) and gets its own file.
func NewIsolatedLogger(logFilePath string) *ZapLogger {
	fileCore := zapcore.NewCore(newJSONEncoder(), zapcore.AddSync(newRotator(logFilePath)), zap.DebugLevel)
	l := zap.New(fileCore, zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{logger: l}
}

// NewNopLogger discards everything. Used by tests and tooling.
func NewNopLogger() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}

func fields(module string, details map[string]interface{}) []zap.Field {
	if details == nil {
		details = make(map[string]interface{})
	}
	fs := []zap.Field{zap.String("module", module), zap.Any("details", details)}
	if err, ok := details["error"].(error); ok {
		fs = append(fs, zap.NamedError("error_ref", err))
	}
	return fs
}

func (l *ZapLogger) Debug(module, message string, details map[string]interface{}) {
	l.logger.Debug(message, fields(module, details)...)
}

func (l *ZapLogger) Info(module, message string, details map[string]interface{}) {
	l.logger.Info(message, fields(module, details)...)
}

func (l *ZapLogger) Warn(module, message string, details map[string]interface{}) {
	l.logger.Warn(message, fields(module, details)...)
}

func (l *ZapLogger) Error(module, message string, details map[string]interface{}) {
	l.logger.Error(message, fields(module, details)...)
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
