package flagkit

import (
	"sync"

	"github.com/google/uuid"
)

// Using global state variables directly will lead to race conditions
// Instead, define an accessor below using the Mutex lock
type GlobalState struct {
	logger    *OutputLogger
	sessionID string
	mu        sync.RWMutex
}

var global GlobalState

// Logger returns the process-wide output logger, creating a default one on first use.
func Logger() *OutputLogger {
	global.mu.RLock()
	logger := global.logger
	global.mu.RUnlock()
	if logger != nil {
		return logger
	}
	InitializeGlobalOutputLogger(OutputLoggerOptions{})
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.logger
}

func InitializeGlobalOutputLogger(options OutputLoggerOptions) {
	logger := newOutputLogger(options)
	global.mu.Lock()
	defer global.mu.Unlock()
	global.logger = logger
}

func SessionID() string {
	global.mu.RLock()
	id := global.sessionID
	global.mu.RUnlock()
	if id != "" {
		return id
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.sessionID == "" {
		global.sessionID = uuid.NewString()
	}
	return global.sessionID
}
