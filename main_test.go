package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFile(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "nvhttpd.pid")

	require.NoError(t, writePID(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(strconv.Itoa(os.Getpid())+"\n", string(b))

	removePID(path)
	_, err = os.Stat(path)
	assert.True(os.IsNotExist(err))

	assert.Error(writePID(filepath.Join(t.TempDir(), "missing", "nvhttpd.pid")))
}
