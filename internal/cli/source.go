package cli

import (
	"context"
	"fmt"

	flagkit "github.com/flagkit/go-sdk"
	"github.com/flagkit/go-sdk/internal/config"
)

func buildSource(ctx context.Context, cfg *config.Config) (flagkit.ConfigSource, error) {
	switch cfg.Source {
	case config.SourceAppConfig:
		return flagkit.NewAppConfigSource(ctx, flagkit.AppConfigOptions{
			Region:              cfg.AppConfig.Region,
			MinimumPollInterval: cfg.AppConfig.MinimumPollInterval,
		})
	case config.SourceHTTP:
		return flagkit.NewHTTPSource(flagkit.HTTPSourceOptions{
			API:     cfg.HTTP.API,
			Retries: cfg.HTTP.Retries,
		}), nil
	case config.SourceFile:
		return flagkit.NewFileSource(cfg.File.Path), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
