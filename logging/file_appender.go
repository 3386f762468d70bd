package logging

import (
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppenderConfig controls rotation of a log file.
type FileAppenderConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// FileAppender writes console formatted lines to a size rotated log file.
type FileAppender struct {
	ConsoleAppender
	logger *lumberjack.Logger
}

// NewFileAppender returns an appender writing to cfg.Filename. A zero MaxSizeMB uses 100.
func NewFileAppender(cfg FileAppenderConfig) *FileAppender {
	logger := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(logger), logger: logger}
}

// Write outputs the log entry to the file.
func (appender *FileAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return appender.ConsoleAppender.Write(entry, fields)
}

// Sync is a no-op; lumberjack does not buffer.
func (appender *FileAppender) Sync() error {
	return nil
}

// Close closes the underlying file.
func (appender *FileAppender) Close() error {
	return appender.logger.Close()
}
