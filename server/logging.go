package server

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ParseLevel parses a configured log level. "all" logs everything.
func ParseLevel(s string) (log.Level, error) {
	if strings.EqualFold(s, "all") {
		return log.TraceLevel, nil
	}
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return 0, errors.Wrapf(ErrConfig, "unknown log level %s", s)
	}
	return lvl, nil
}

// SetupLogging points the standard logger at the configured destination
// and tags every entry with the server name. The returned closer releases
// the log file, if one was opened.
func SetupLogging(c LoggingConfig, name string) (io.Closer, error) {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer
	var closer io.Closer = nopCloser{}
	switch strings.ToLower(c.File) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(c.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, errors.Wrapf(ErrConfig, "log file: %s", err)
		}
		out = f
		closer = f
	}

	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if name != "" {
		log.AddHook(nameHook(name))
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// nameHook adds the server name to every entry
type nameHook string

func (h nameHook) Levels() []log.Level {
	return log.AllLevels
}

func (h nameHook) Fire(e *log.Entry) error {
	e.Data["app"] = string(h)
	return nil
}
