// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls level and optional file output.
type Options struct {
	Level string
	// File, when set, receives a rotated copy of every log line.
	File string
}

type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

// New returns a new zerolog.Logger configured for the application and installs
// it as the global logger. Call sites should use .Stack() on error events to include stacks.
func New(serviceName string, opts Options) zerolog.Logger {
	return newWithWriter(serviceName, opts, os.Stdout)
}

func newWithWriter(serviceName string, opts Options, stdout io.Writer) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	l := zerolog.New(writer(stdout, opts.File)).With().
		Str("service", serviceName).
		Timestamp().
		Logger()

	log.Logger = l
	return l
}

func writer(stdout io.Writer, file string) io.Writer {
	if file == "" {
		return stdout
	}
	return zerolog.MultiLevelWriter(stdout, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})
}
