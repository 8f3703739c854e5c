package flagkit

import (
	"errors"
	"fmt"
	"sync"
)

// errorBoundary keeps panics in user-supplied code (listeners, exposure
// callbacks, data adapters) from escaping into the caller or the poller.
type errorBoundary struct {
	observer *observer
	seen     map[string]bool
	seenLock sync.Mutex
}

func newErrorBoundary(observer *observer) *errorBoundary {
	return &errorBoundary{
		observer: observer,
		seen:     make(map[string]bool),
	}
}

func (e *errorBoundary) checkSeen(key string) bool {
	e.seenLock.Lock()
	defer e.seenLock.Unlock()
	if e.seen[key] {
		return true
	}
	e.seen[key] = true
	return false
}

func (e *errorBoundary) captureVoid(tag string, task func()) {
	defer e.ebRecover(tag, func() {})
	task()
}

// captureString returns fallback when task panics.
func (e *errorBoundary) captureString(tag string, task func() string, fallback string) (res string) {
	defer e.ebRecover(tag, func() { res = fallback })
	return task()
}

func (e *errorBoundary) ebRecover(tag string, recoverCallback func()) {
	if err := recover(); err != nil {
		e.logException(tag, toError(err))
		recoverCallback()
	}
}

// logException writes the first occurrence of each tag and message with a
// stack trace; repeats only reach the debug log.
func (e *errorBoundary) logException(tag string, exception error) {
	e.observer.increment(MetricPanics, 1, map[string]interface{}{"tag": tag})
	if e.checkSeen(tag + ":" + exception.Error()) {
		Logger().LogStep(FlagkitProcessSync, "Recovered repeated panic", "tag", tag, "error", exception.Error())
		return
	}
	Logger().LogError(fmt.Errorf("%s panicked: %w", tag, exception))
}

func toError(err interface{}) error {
	switch e := err.(type) {
	case error:
		return e
	case string:
		return errors.New(e)
	default:
		return fmt.Errorf("%v", e)
	}
}
