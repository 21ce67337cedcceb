package log

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newDiscardEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestNew(t *testing.T) {
	t.Run("default level", func(t *testing.T) {
		logger := New("")
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	})

	t.Run("explicit level", func(t *testing.T) {
		logger := New("debug")
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger := New("loud")
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	})
}

func TestBadgerAdapter(t *testing.T) {
	adapter := NewBadgerAdapter(newDiscardEntry())

	assert.NotPanics(t, func() { adapter.Errorf("error %s", "test") })
	assert.NotPanics(t, func() { adapter.Warningf("warning %d", 42) })
	assert.NotPanics(t, func() { adapter.Infof("info %v", true) })
	assert.NotPanics(t, func() { adapter.Debugf("debug") })
}
