package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestInitLogger_GetLoggerReturnsSameInstance(t *testing.T) {
	prev := globalLogger
	defer func() {
		loggerMutex.Lock()
		globalLogger = prev
		loggerMutex.Unlock()
	}()

	l := arbor.NewLogger()
	InitLogger(l)
	assert.Same(t, l, GetLogger())
}

func TestGetLogger_FallsBackWhenUninitialized(t *testing.T) {
	prev := globalLogger
	defer func() {
		loggerMutex.Lock()
		globalLogger = prev
		loggerMutex.Unlock()
	}()

	loggerMutex.Lock()
	globalLogger = nil
	loggerMutex.Unlock()

	assert.NotNil(t, GetLogger(), "GetLogger must never return nil even without InitLogger")
}
