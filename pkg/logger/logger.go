package logger

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	zerologadapter "logur.dev/adapter/zerolog"
)

type (
	// Logger defines the interface for a logger.
	Logger interface {
		Trace(msg string, fields ...map[string]interface{})
		Debug(msg string, fields ...map[string]interface{})
		Info(msg string, fields ...map[string]interface{})
		Warn(msg string, fields ...map[string]interface{})
		Error(msg string, fields ...map[string]interface{})
	}

	Options struct {
		// Pretty writes human readable console lines instead of JSON.
		Pretty bool
		// Out defaults to stderr.
		Out io.Writer
		// Level is a zerolog level name; unknown or empty means info.
		Level string
	}
)

func New(opts *Options) Logger {
	if opts == nil {
		opts = &Options{}
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var writer io.Writer
	if opts.Pretty {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: !isTerminal(out)}
	} else {
		writer = out
	}

	return zerologadapter.New(zerolog.New(writer).Level(parseLevel(opts.Level)).With().Timestamp().Logger())
}

func NoOp() Logger {
	return zerologadapter.New(zerolog.Nop())
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}
