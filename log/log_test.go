package log

import (
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	Info("Test log.Info", "value", 10)
	Infof("Test log.Infof %d", 10)
	Infow("Test log.Infow", "value", 10)
	Debugf("Test log.Debugf %d", 10)
	Debugw("Test log.Debugw", "value", 10)
	Error("Test log.Error", "value", 10)
	Errorf("Test log.Errorf %d", 10)
	Errorw("Test log.Errorw", "value", 10)
	Warnf("Test log.Warnf %d", 10)
	Warnw("Test log.Warnw", "value", 10)
}

func TestLogToFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "logtest")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.RemoveAll(dir)) }()
	logPath := path.Join(dir, "node.log")

	Init("info", []string{logPath}, "")
	defer Init("debug", []string{"stdout"}, "")
	Debugw("not written", "batchID", 1)
	Infow("batch finalized", "batchID", 7)

	content, err := ioutil.ReadFile(logPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "batch finalized"))
	assert.False(t, strings.Contains(string(content), "not written"))
}

func TestLogErrorsFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "logtest")
	require.NoError(t, err)
	defer func() { assert.NoError(t, os.RemoveAll(dir)) }()
	errorsPath := path.Join(dir, "errors.log")

	Init("debug", []string{"stdout"}, errorsPath)
	defer Init("debug", []string{"stdout"}, "")
	Warnw("not an error", "batchID", 1)
	Error("custody unlock failed")
	Errorf("batch %d not finalized", 7)
	Errorw("tick failed", "state", "DepositLeg1")

	content, err := ioutil.ReadFile(errorsPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Equal(t, 3, len(lines))
	assert.True(t, strings.HasSuffix(lines[0], " custody unlock failed"))
	assert.True(t, strings.HasSuffix(lines[1], " batch 7 not finalized"))
	assert.True(t, strings.HasSuffix(lines[2], " tick failed state DepositLeg1"))
	assert.False(t, strings.Contains(string(content), "not an error"))
}
