package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := New("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerProdFormat(t *testing.T) {
	assert.NoError(t, os.Unsetenv("APP_ENV"))
	l := New("test")
	assert.NotNil(t, l)
	l.Infof("structured output")
}

func TestZerologLoggerLevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	l := New("test")
	assert.NotNil(t, l)
	l.Debugf("suppressed")
	l.Errorf("emitted")
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debugf("debug")
	l.Debugw("debug", nil)
	l.Infof("info")
	l.Warnf("warn")
	l.Errorf("error")
}
