// Package logging builds the host's zap logger: a console core on stderr,
// teed with an optional rotating JSON file.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the log file
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 14
)

// Options configure the logger
type Options struct {
	// Level is debug, info, warn or error (default info)
	Level string

	// Development switches the console to colored levels and adds callers
	Development bool

	// File is the path of the JSON log file; empty disables it
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ParseLevel converts a level name, accepting "warning" as well as "warn"
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

func consoleEncoderConfig(dev bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if dev {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.CallerKey = "C"
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return cfg
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return cfg
}

// NewFileWriter returns a rotating writer for path
func NewFileWriter(opts Options) zapcore.WriteSyncer {
	size, backups, age := opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays
	if size <= 0 {
		size = DefaultMaxSizeMB
	}
	if backups <= 0 {
		backups = DefaultMaxBackups
	}
	if age <= 0 {
		age = DefaultMaxAgeDays
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    size,
		MaxBackups: backups,
		MaxAge:     age,
		Compress:   opts.Compress,
	})
}

// NewCore tees a console core on console with a JSON core on file. A nil
// file gives a console-only core.
func NewCore(level zapcore.LevelEnabler, console, file zapcore.WriteSyncer, dev bool) zapcore.Core {
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig(dev)), console, level)
	if file == nil {
		return consoleCore
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig()), file, level)
	return zapcore.NewTee(consoleCore, fileCore)
}

// New builds the logger and returns the level handle so it can be changed
// at runtime
func New(opts Options) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	var file zapcore.WriteSyncer
	if opts.File != "" {
		file = NewFileWriter(opts)
	}

	core := NewCore(level, zapcore.Lock(os.Stderr), file, opts.Development)
	zopts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if opts.Development {
		zopts = append(zopts, zap.AddCaller(), zap.Development())
	}
	return zap.New(core, zopts...), level, nil
}
