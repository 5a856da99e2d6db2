package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileLogger logs JSON lines to logPath and text to stderr.
// The returned file must be closed by the caller.
func FileLogger(level logrus.Level, logPath string) (*os.File, *logrus.Logger, error) {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if logPath == "" {
		return nil, logger, nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger.AddHook(&fileHook{w: f, formatter: &logrus.JSONFormatter{}, levels: levelsUpTo(level)})
	return f, logger, nil
}

// Nop returns an entry that discards everything below panic.
func Nop() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type fileHook struct {
	w         io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

func levelsUpTo(level logrus.Level) []logrus.Level {
	out := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= level {
			out = append(out, l)
		}
	}
	return out
}
