package flagkit

import (
	"context"
	"time"
)

// SessionParams identifies the configuration a session is opened for.
type SessionParams struct {
	Application string
	Environment string
	Profile     string
}

// LatestConfiguration is the result of a single poll of a configuration session.
// An empty Body means the configuration has not changed since the previous poll
// on the same session.
type LatestConfiguration struct {
	NextToken    string
	Body         []byte
	ContentType  string
	PollInterval time.Duration
}

// ConfigSource is a remote configuration service that hands out session
// tokens and returns configuration for them.
type ConfigSource interface {
	StartSession(ctx context.Context, params SessionParams) (string, error)
	GetLatest(ctx context.Context, token string) (LatestConfiguration, error)
}
