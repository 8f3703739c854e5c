package flagkit

import (
	"log/slog"
	"reflect"
	"time"
)

const (
	DefaultSessionTTL             = 24 * time.Hour
	DefaultSafetyMargin           = time.Minute
	DefaultPollInterval           = 15 * time.Second
	DefaultExposureDedupeInterval = time.Minute
	DefaultFetchTimeout           = 30 * time.Second

	// NoSafetyMargin keeps a session token for the whole SessionTTL.
	NoSafetyMargin time.Duration = -1
)

// Advanced options for configuring a fetcher or client
type Options struct {
	// Lifetime the provider grants a session token.
	SessionTTL time.Duration
	// Subtracted from SessionTTL so a token is refreshed before the provider
	// rejects it. Zero means DefaultSafetyMargin, any negative value means no
	// margin. A margin not shorter than SessionTTL is ignored.
	SafetyMargin time.Duration
	// Upper bound on one round trip to the source, shared by all callers
	// waiting on it.
	FetchTimeout time.Duration
	// Clock used for token expiration. Defaults to time.Now.
	Clock func() time.Time

	InitTimeout            time.Duration
	PollInterval           time.Duration
	ExposureCallback       func(decision Decision)
	ExposureDedupeInterval time.Duration

	// Receives the last good document after every change and serves it
	// when the first fetch fails.
	DataAdapter         DataAdapter
	ObservabilityClient ObservabilityClient

	OutputLoggerOptions OutputLoggerOptions
	IPCountryOptions    IPCountryOptions
	UAParserOptions     UAParserOptions
}

type OutputLoggerOptions struct {
	Logger      *slog.Logger
	LogCallback func(message string, err error)
	EnableDebug bool
}

type IPCountryOptions struct {
	Disabled     bool // Fully disable IP to country lookup
	LazyLoad     bool // Load in background
	EnsureLoaded bool // Wait until loaded when needed
}

type UAParserOptions struct {
	Disabled     bool // Fully disable UA parser
	LazyLoad     bool // Load in background
	EnsureLoaded bool // Wait until loaded when needed
}

func (o *Options) sessionTTL() time.Duration {
	return defaultDuration(o.SessionTTL, DefaultSessionTTL)
}

func (o *Options) safetyMargin() time.Duration {
	if o.SafetyMargin < 0 {
		return 0
	}
	return defaultDuration(o.SafetyMargin, DefaultSafetyMargin)
}

func (o *Options) clock() func() time.Time {
	if o.Clock != nil {
		return o.Clock
	}
	return time.Now
}

// GetOptionLoggingCopy returns the options that differ from their zero
// value in a form that is safe to log.
func GetOptionLoggingCopy(options Options) map[string]interface{} {
	loggingCopy := make(map[string]interface{})
	val := reflect.ValueOf(options)

	for i := 0; i < val.NumField(); i++ {
		field := val.Type().Field(i)
		fieldValue := val.Field(i)
		switch fieldValue.Kind() {
		case reflect.Bool:
			if fieldValue.Bool() {
				loggingCopy[field.Name] = true
			}

		case reflect.Int64:
			if fieldValue.Int() == 0 {
				break
			}
			if fieldValue.Type() == reflect.TypeOf(time.Duration(0)) {
				loggingCopy[field.Name] = time.Duration(fieldValue.Int()).String()
			} else {
				loggingCopy[field.Name] = fieldValue.Int()
			}

		case reflect.Struct:
			if !fieldValue.IsZero() {
				loggingCopy[field.Name] = "set"
			}

		case reflect.Func, reflect.Interface:
			if !fieldValue.IsNil() {
				loggingCopy[field.Name] = "set"
			}

		default:
			// ignore other fields
		}
	}
	return loggingCopy
}
