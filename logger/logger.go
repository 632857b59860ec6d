// Package logger configures the process-wide zerolog logger.
//
// The TUI owns the terminal, so log output goes to a rotated file in the
// data directory rather than stderr.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the shared logger. It discards everything until Configure runs.
var Logger = zerolog.Nop()

var closer io.Closer

type Options struct {
	DataDir string
	Debug   bool
	// Stderr mirrors warnings and errors to stderr. CLI subcommands set it;
	// the TUI must not.
	Stderr bool
}

// Configure points Logger at <DataDir>/djrag.log.
func Configure(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
		return err
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.DataDir, "djrag.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	var writer io.Writer = file
	if opts.Stderr {
		console := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}
		writer = zerolog.MultiLevelWriter(file, &levelFilter{w: console, min: zerolog.WarnLevel})
	}

	Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	log.Logger = Logger
	closer = file

	return nil
}

// Close flushes and closes the log file.
func Close() error {
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// With returns a child logger tagged with a component name.
func With(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}

type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f *levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *levelFilter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}
