package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LineTimeLayout is the bracketed timestamp that prefixes every plain line.
const LineTimeLayout = "[2006-01-02 15:04:05]"

type Options struct {
	Level      string
	File       string
	Format     string // plain or json, file sink only
	MaxSizeMB  int    // 0 disables rotation
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Stdout     io.Writer
}

type Logger struct {
	*zap.SugaredLogger
	file string
}

func New(opts Options) (*Logger, error) {
	if opts.File != "" {
		logDir := filepath.Dir(opts.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	plainEncoder := zapcore.NewConsoleEncoder(plainEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(plainEncoder, zapcore.AddSync(stdout), level),
	}

	if opts.File != "" {
		fileWriter, err := newFileWriter(opts)
		if err != nil {
			return nil, err
		}

		fileEncoder := plainEncoder.Clone()
		if opts.Format == "json" {
			fileEncoder = zapcore.NewJSONEncoder(jsonEncoderConfig())
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, fileWriter, level))
	}

	// Sink write errors are dropped; logging never fails the caller.
	zapLogger := zap.New(zapcore.NewTee(cores...), zap.ErrorOutput(zapcore.AddSync(io.Discard)))
	return &Logger{SugaredLogger: zapLogger.Sugar(), file: opts.File}, nil
}

func newFileWriter(opts Options) (zapcore.WriteSyncer, error) {
	if opts.MaxSizeMB > 0 {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}), nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.Lock(f), nil
}

func plainEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "timestamp",
		MessageKey:       "message",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       bracketTimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return encoderConfig
}

func bracketTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format(LineTimeLayout))
}

// File returns the log file path, empty for console-only loggers.
func (l *Logger) File() string {
	return l.file
}

// Tail returns up to n trailing lines of the log file.
func (l *Logger) Tail(n int) ([]string, error) {
	if l.file == "" || n <= 0 {
		return []string{}, nil
	}
	_ = l.Sync()
	return TailFile(l.file, n)
}

func (l *Logger) Close() {
	_ = l.Sync()
}

// TailFile reads path and keeps the last n lines in a ring.
func TailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	start := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) < n {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[start] = scanner.Text()
		start = (start + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	return append(ring[start:], ring[:start]...), nil
}
