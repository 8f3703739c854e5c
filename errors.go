package flagkit

import (
	"errors"
	"fmt"
)

// Error Variables
type FlagkitError error

var (
	ErrRemoteFetch  FlagkitError = errors.New("failed remote configuration fetch")
	ErrConfigParse  FlagkitError = errors.New("failed to parse configuration")
	ErrFlagNotFound FlagkitError = errors.New("flag not found")
)

// RemoteFetchError is returned when the configuration source fails a call.
// The fetcher does not retry; callers decide whether to try again.
type RemoteFetchError struct {
	Op   string
	Code string
	Err  error
}

func (e *RemoteFetchError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Failed %s call (%s): %s", e.Op, e.Code, e.Err.Error())
	}
	return fmt.Sprintf("Failed %s call: %s", e.Op, e.Err.Error())
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

func (e *RemoteFetchError) Is(target error) bool { return target == ErrRemoteFetch }

// ConfigParseError is returned when a non-empty configuration payload
// cannot be decoded into a Document.
type ConfigParseError struct {
	Format string
	Err    error
}

func (e *ConfigParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Failed to parse %s configuration: %s", e.Format, e.Err.Error())
	}
	return fmt.Sprintf("Failed to parse %s configuration", e.Format)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

func (e *ConfigParseError) Is(target error) bool { return target == ErrConfigParse }

type FlagNotFoundError struct {
	Name   string
	Reason string
}

func (e *FlagNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("Flag %q not usable: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("Flag %q not found in configuration", e.Name)
}

func (e *FlagNotFoundError) Is(target error) bool { return target == ErrFlagNotFound }
