package flagkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"time"
)

type FlagkitProcess string

const (
	FlagkitProcessInitialize FlagkitProcess = "Initialize"
	FlagkitProcessSync       FlagkitProcess = "Sync"
)

var tokenPattern = regexp.MustCompile(`(?i)(token"?\s*[=:]\s*"?)[A-Za-z0-9+/=_%\-]{8,}`)

type OutputLogger struct {
	options OutputLoggerOptions
	logger  *slog.Logger
}

func newOutputLogger(options OutputLoggerOptions) *OutputLogger {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OutputLogger{
		options: options,
		logger:  logger.With(slog.String("component", "flagkit"), slog.String("sessionID", SessionID())),
	}
}

func (o *OutputLogger) Log(msg string, err error) {
	if o.options.LogCallback != nil {
		o.options.LogCallback(sanitize(msg), err)
		return
	}
	if err != nil {
		o.logger.Error(sanitize(msg), slog.String("error", sanitize(err.Error())))
	} else if msg != "" {
		o.logger.Info(sanitize(msg))
	}
}

func (o *OutputLogger) Debug(any interface{}) {
	if !o.options.EnableDebug {
		return
	}
	bytes, _ := json.MarshalIndent(any, "", "	")
	o.logger.Debug(sanitize(string(bytes)))
}

func (o *OutputLogger) LogStep(process FlagkitProcess, msg string, args ...any) {
	if !o.options.EnableDebug {
		return
	}
	if o.options.LogCallback != nil {
		o.options.LogCallback(sanitize(formatStep(process, msg, args)), nil)
		return
	}
	o.logger.Log(context.Background(), slog.LevelDebug, sanitize(msg), append([]any{slog.String("process", string(process))}, args...)...)
}

func (o *OutputLogger) LogError(err interface{}) {
	var errMsg error
	switch e := err.(type) {
	case string:
		errMsg = errors.New(e)
	case error:
		errMsg = e
	default:
		errMsg = fmt.Errorf("%v", err)
	}

	if o.options.LogCallback != nil {
		o.options.LogCallback(sanitize(errMsg.Error()), errMsg)
		return
	}
	stack := make([]byte, 1024)
	n := runtime.Stack(stack, false)
	o.logger.Error(sanitize(errMsg.Error()), slog.String("stack", string(stack[:n])))
}

// formatStep renders a step and its key/value args on one line for
// LogCallback consumers.
func formatStep(process FlagkitProcess, msg string, args []any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", process, msg)
	r := slog.NewRecord(time.Time{}, slog.LevelDebug, msg, 0)
	r.Add(args...)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	return b.String()
}

// sanitize masks session tokens so they never reach log output.
func sanitize(s string) string {
	return tokenPattern.ReplaceAllString(s, "${1}****")
}
