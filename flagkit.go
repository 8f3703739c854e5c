// Package flagkit fetches feature flag configuration from AWS AppConfig and
// compatible sources, caching the configuration session token between polls.
package flagkit

import (
	"context"
)

// NewAppConfigClient builds a Client reading the given AppConfig
// application, environment and configuration profile.
func NewAppConfigClient(ctx context.Context, params SessionParams, appConfig AppConfigOptions, options *Options) (*Client, error) {
	source, err := NewAppConfigSource(ctx, appConfig)
	if err != nil {
		return nil, err
	}
	return NewClient(source, params, options), nil
}
