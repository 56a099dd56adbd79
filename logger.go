package straincrawler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/api/option"
)

// logger is an interface for logging.
type logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Fatal(format string, args ...interface{})
	Summary(format string, args ...interface{})
	Printf(format string, args ...interface{})
}

// defaultLogger writes to storage/logs/<app>/ and stdout, optionally mirrored to Cloud Logging.
type defaultLogger struct {
	logger  *zap.Logger
	summary *zap.Logger
	cloud   *logging.Logger
	client  *logging.Client
}

// newDefaultLogger creates a new instance of defaultLogger.
func newDefaultLogger(appName, level string) *defaultLogger {
	currentDate := time.Now().Format("2006-01-02")
	directory := filepath.Join("storage", "logs", appName)
	err := os.MkdirAll(directory, 0755)
	if err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logFilePath := filepath.Join(directory, currentDate+"_application.log")
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	summaryPath := filepath.Join(directory, currentDate+"_summary.log")
	summaryFile, err := os.OpenFile(summaryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open summary file: %v", err)
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	return &defaultLogger{
		logger:  zap.New(newConsoleCore(io.MultiWriter(file, os.Stdout), lvl)),
		summary: zap.New(newConsoleCore(io.MultiWriter(summaryFile, os.Stdout), zapcore.InfoLevel)),
	}
}

func newConsoleCore(w io.Writer, lvl zapcore.Level) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), lvl)
}

// newLoggerFromZap wraps an existing zap logger. Used by tests and embedding callers.
func newLoggerFromZap(z *zap.Logger) *defaultLogger {
	return &defaultLogger{logger: z, summary: z}
}

// attachCloudLogging mirrors every entry to Cloud Logging under logID.
func (l *defaultLogger) attachCloudLogging(ctx context.Context, projectID, logID string, opts ...option.ClientOption) error {
	client, err := logging.NewClient(ctx, projectID, opts...)
	if err != nil {
		return err
	}
	l.client = client
	l.cloud = client.Logger(logID)
	return nil
}

func (l *defaultLogger) mirror(severity logging.Severity, msg string) {
	if l.cloud != nil {
		l.cloud.Log(logging.Entry{Severity: severity, Payload: msg})
	}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf("📢 "+format, args...)
	l.logger.Info(msg)
	l.mirror(logging.Info, msg)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf("⚠️ "+format, args...)
	l.logger.Warn(msg)
	l.mirror(logging.Warning, msg)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf("🛑 "+format, args...)
	l.logger.Error(msg)
	l.mirror(logging.Error, msg)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf("🐛 "+format, args...))
}

func (l *defaultLogger) Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("🚨 "+format, args...)
	l.mirror(logging.Critical, msg)
	l.Close()
	l.logger.Fatal(msg)
}

func (l *defaultLogger) Summary(format string, args ...interface{}) {
	msg := fmt.Sprintf("📊 "+format, args...)
	l.summary.Info(msg)
	l.mirror(logging.Notice, msg)
}

func (l *defaultLogger) Printf(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Close flushes buffered entries, local and remote.
func (l *defaultLogger) Close() {
	_ = l.logger.Sync()
	_ = l.summary.Sync()
	if l.client != nil {
		_ = l.client.Close()
		l.client = nil
		l.cloud = nil
	}
}
