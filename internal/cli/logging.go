package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/laav10/astro-ingester/internal/constants"
	slogmulti "github.com/samber/slog-multi"
)

// SetVerbosity sets the logging level for the default logger based on the verbose flag count.
//
// This function has the same behaviors as slog.SetLogLoggerLevel.
func SetVerbosity(level int) {
	slog.SetLogLoggerLevel(getLevel(level))
}

// SetSlog sets the logging level and format for the default logger.
//
// When logFile is set, every record is also appended to it as JSON. The returned closer releases that file.
func SetSlog(level int, jsonLogs bool, logFile string) (io.Closer, error) {
	slogLevel := getLevel(level)
	opts := &slog.HandlerOptions{Level: slogLevel}

	if logFile == "" {
		if jsonLogs {
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
			return nopCloser{}, nil
		}
		SetVerbosity(level)
		return nopCloser{}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	var console slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if jsonLogs {
		console = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(slogmulti.Fanout(
		console,
		slog.NewJSONHandler(f, opts),
	)))

	return f, nil
}

func getLevel(level int) slog.Level {
	switch level {
	case 0:
		return constants.DefaultLogLevel
	case 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
