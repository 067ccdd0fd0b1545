package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Output(t *testing.T) {
	var buf bytes.Buffer
	logger := Must(Output(&buf))

	logger.With("conn_id", "abc").Info("connection opened", "session", "main")
	logger.Debug("hidden at info level")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "connection opened", rec["msg"])
	assert.Equal(t, "abc", rec["conn_id"])
	assert.Equal(t, "main", rec["session"])
	assert.NotContains(t, buf.String(), "hidden at info level")
}

func TestNew_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := Must(Output(&buf), Debug())

	logger.Debug("resize ignored")
	assert.Contains(t, buf.String(), "resize ignored")
}

func TestAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := Must(Output(&buf), Attrs("service", "webtermd", "session", "main"))

	logger.Info("listening")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "webtermd", rec["service"])
	assert.Equal(t, "main", rec["session"])
}

func TestClose_ReportsEverySink(t *testing.T) {
	var closed []string
	sink := func(name string, err error) func() error {
		return func() error {
			closed = append(closed, name)
			return err
		}
	}

	logger := &Logger{cleanupFuncs: []func() error{
		sink("file", errors.New("disk full")),
		sink("sentry", errors.New("sentry flush timeout")),
		sink("other", nil),
	}}

	err := logger.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "sentry flush timeout")
	assert.Equal(t, []string{"file", "sentry", "other"}, closed)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "webtermd.log")
	logger, err := New(File(path))
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, logger.Close())
	assert.FileExists(t, path)

	_, err = New(File(""))
	assert.Error(t, err)
}

func TestSentry_EmptyDSN(t *testing.T) {
	logger, err := New(Output(&bytes.Buffer{}), Sentry(""))
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}
