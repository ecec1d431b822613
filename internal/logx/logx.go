// Package logx builds the logrus logger shared by all commands.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

// Level maps the number of -v flags to a log level.
func Level(verbosity int) log.Level {
	switch {
	case verbosity <= 0:
		return log.InfoLevel
	case verbosity == 1:
		return log.DebugLevel
	default:
		return log.TraceLevel
	}
}

// New creates a logger writing to w. Timestamps are omitted on terminals.
func New(verbosity int, w io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(Level(verbosity))
	logger.SetFormatter(&log.TextFormatter{
		DisableTimestamp: isTerminal(w),
		FullTimestamp:    true,
	})
	return logger
}

// AttachFile makes logger also append to the file at path. The returned
// closer should be closed when logging is no longer needed.
func AttachFile(logger *log.Logger, path string) (io.Closer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(logger.Out, file))
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	return file, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
