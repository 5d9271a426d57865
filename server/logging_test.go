package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert := assert.New(t)
	levels := map[string]log.Level{
		"error": log.ErrorLevel,
		"warn":  log.WarnLevel,
		"info":  log.InfoLevel,
		"debug": log.DebugLevel,
		"trace": log.TraceLevel,
		"all":   log.TraceLevel,
		"All":   log.TraceLevel,
	}
	for s, want := range levels {
		got, err := ParseLevel(s)
		assert.NoError(err, s)
		assert.Equal(want, got, s)
	}

	_, err := ParseLevel("chatty")
	assert.Equal(ErrConfig, errors.Cause(err))
}

func TestSetupLoggingToFile(t *testing.T) {
	assert := assert.New(t)
	logger := log.StandardLogger()
	out, level, formatter := logger.Out, logger.GetLevel(), logger.Formatter
	defer func() {
		log.SetOutput(out)
		log.SetLevel(level)
		log.SetFormatter(formatter)
		logger.ReplaceHooks(make(log.LevelHooks))
	}()

	path := filepath.Join(t.TempDir(), "nvhttpd.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier line\n"), 0o644))

	closer, err := SetupLogging(LoggingConfig{Level: "warn", File: path}, "edge")
	require.NoError(t, err)
	log.Info("dropped")
	log.WithField("conn", "c1").Warn("kept")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(b)
	assert.Contains(content, "earlier line\n")
	assert.Contains(content, "msg=kept")
	assert.Contains(content, "app=edge")
	assert.Contains(content, "conn=c1")
	assert.NotContains(content, "dropped")
}

func TestSetupLoggingErrors(t *testing.T) {
	_, err := SetupLogging(LoggingConfig{Level: "nope", File: "stdout"}, "")
	assert.Equal(t, ErrConfig, errors.Cause(err))

	_, err = SetupLogging(LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "missing", "x.log")}, "")
	assert.Equal(t, ErrConfig, errors.Cause(err))
}
