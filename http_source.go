package flagkit

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/flagkit/go-sdk/internal/net"
)

const (
	sessionsEndpoint      = "/configurationsessions"
	configurationEndpoint = "/configuration"

	nextTokenHeader    = "Next-Poll-Configuration-Token"
	pollIntervalHeader = "Next-Poll-Interval-In-Seconds"
)

type HTTPSourceOptions struct {
	API        string
	HTTPClient *http.Client
	// Retries for 408/429/5xx responses. Zero disables retrying.
	Retries int
	Backoff time.Duration
}

// HTTPSource talks to a configuration endpoint that exposes the AppConfig
// Data REST shape, such as a local agent or a proxy.
type HTTPSource struct {
	net *net.Net
}

type startSessionInput struct {
	ApplicationIdentifier          string `json:"ApplicationIdentifier"`
	EnvironmentIdentifier          string `json:"EnvironmentIdentifier"`
	ConfigurationProfileIdentifier string `json:"ConfigurationProfileIdentifier"`
}

type startSessionResponse struct {
	InitialConfigurationToken string `json:"InitialConfigurationToken"`
}

func NewHTTPSource(options HTTPSourceOptions) *HTTPSource {
	metadata := getSDKMetadata()
	opts := []net.Option{net.WithHTTPClient(options.HTTPClient)}
	if options.Retries > 0 {
		opts = append(opts, net.WithRetries(options.Retries, defaultDuration(options.Backoff, net.DefaultBackoff)))
	}
	return &HTTPSource{
		net: net.New(options.API, net.Metadata{
			SDKType:         metadata.SDKType,
			SDKVersion:      metadata.SDKVersion,
			LanguageVersion: metadata.LanguageVersion,
			SessionID:       metadata.SessionID,
		}, opts...),
	}
}

func (s *HTTPSource) StartSession(ctx context.Context, params SessionParams) (string, error) {
	var out startSessionResponse
	err := s.net.PostJSON(ctx, sessionsEndpoint, startSessionInput{
		ApplicationIdentifier:          params.Application,
		EnvironmentIdentifier:          params.Environment,
		ConfigurationProfileIdentifier: params.Profile,
	}, &out)
	if err != nil {
		return "", httpFetchError("StartSession", err)
	}
	if out.InitialConfigurationToken == "" {
		return "", &RemoteFetchError{Op: "StartSession", Err: errors.New("response did not include an initial configuration token")}
	}
	return out.InitialConfigurationToken, nil
}

func (s *HTTPSource) GetLatest(ctx context.Context, token string) (LatestConfiguration, error) {
	res, err := s.net.Get(ctx, configurationEndpoint, url.Values{"configuration_token": {token}})
	if err != nil {
		return LatestConfiguration{}, httpFetchError("GetLatest", err)
	}
	if res.Header.Get(nextTokenHeader) == "" {
		return LatestConfiguration{}, &RemoteFetchError{Op: "GetLatest", Err: errors.New("response did not include a " + nextTokenHeader + " header")}
	}
	latest := LatestConfiguration{
		NextToken:   res.Header.Get(nextTokenHeader),
		Body:        res.Body,
		ContentType: res.Header.Get("Content-Type"),
	}
	if seconds, err := strconv.Atoi(res.Header.Get(pollIntervalHeader)); err == nil && seconds > 0 {
		latest.PollInterval = time.Duration(seconds) * time.Second
	}
	return latest, nil
}

func httpFetchError(op string, err error) error {
	rfe := &RemoteFetchError{Op: op, Err: err}
	var statusErr *net.StatusError
	if errors.As(err, &statusErr) {
		rfe.Code = "HTTP " + strconv.Itoa(statusErr.StatusCode)
	}
	return rfe
}
