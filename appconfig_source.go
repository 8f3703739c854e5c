package flagkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/appconfigdata"
	"github.com/aws/smithy-go"
)

// appConfigDataAPI is the subset of the AppConfig Data client used here.
type appConfigDataAPI interface {
	StartConfigurationSession(ctx context.Context, params *appconfigdata.StartConfigurationSessionInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.StartConfigurationSessionOutput, error)
	GetLatestConfiguration(ctx context.Context, params *appconfigdata.GetLatestConfigurationInput, optFns ...func(*appconfigdata.Options)) (*appconfigdata.GetLatestConfigurationOutput, error)
}

type AppConfigOptions struct {
	Region string
	// Asks the service not to accept polls more often than this. Zero leaves
	// the service default in place.
	MinimumPollInterval time.Duration
}

// AppConfigSource reads configuration from AWS AppConfig through the
// AppConfig Data API.
type AppConfigSource struct {
	client  appConfigDataAPI
	options AppConfigOptions
}

// NewAppConfigSource loads the default AWS configuration chain and builds
// an AppConfig Data client from it.
func NewAppConfigSource(ctx context.Context, options AppConfigOptions) (*AppConfigSource, error) {
	var loadOpts []func(*config.LoadOptions) error
	if options.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(options.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return newAppConfigSourceWithClient(appconfigdata.NewFromConfig(cfg), options), nil
}

func newAppConfigSourceWithClient(client appConfigDataAPI, options AppConfigOptions) *AppConfigSource {
	return &AppConfigSource{client: client, options: options}
}

func (s *AppConfigSource) StartSession(ctx context.Context, params SessionParams) (string, error) {
	input := &appconfigdata.StartConfigurationSessionInput{
		ApplicationIdentifier:          aws.String(params.Application),
		EnvironmentIdentifier:          aws.String(params.Environment),
		ConfigurationProfileIdentifier: aws.String(params.Profile),
	}
	if s.options.MinimumPollInterval > 0 {
		input.RequiredMinimumPollIntervalInSeconds = aws.Int32(int32(s.options.MinimumPollInterval / time.Second))
	}
	out, err := s.client.StartConfigurationSession(ctx, input)
	if err != nil {
		return "", classifyAWSError("StartSession", err)
	}
	token := aws.ToString(out.InitialConfigurationToken)
	if token == "" {
		return "", &RemoteFetchError{Op: "StartSession", Err: errors.New("response did not include an initial configuration token")}
	}
	return token, nil
}

func (s *AppConfigSource) GetLatest(ctx context.Context, token string) (LatestConfiguration, error) {
	out, err := s.client.GetLatestConfiguration(ctx, &appconfigdata.GetLatestConfigurationInput{
		ConfigurationToken: aws.String(token),
	})
	if err != nil {
		return LatestConfiguration{}, classifyAWSError("GetLatest", err)
	}
	if aws.ToString(out.NextPollConfigurationToken) == "" {
		return LatestConfiguration{}, &RemoteFetchError{Op: "GetLatest", Err: errors.New("response did not include a next poll configuration token")}
	}
	return LatestConfiguration{
		NextToken:    aws.ToString(out.NextPollConfigurationToken),
		Body:         out.Configuration,
		ContentType:  aws.ToString(out.ContentType),
		PollInterval: time.Duration(out.NextPollIntervalInSeconds) * time.Second,
	}, nil
}

func classifyAWSError(op string, err error) error {
	rfe := &RemoteFetchError{Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		rfe.Code = apiErr.ErrorCode()
	}
	return rfe
}
