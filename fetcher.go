package flagkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ConfigFetcher caches a configuration session token and the last
// configuration document received for it.
//
// A session is started only when no token is held or the held token has
// expired. Every fetch rotates the token to the one returned by the source,
// and replaces the cached document only when the source sends a body.
type ConfigFetcher struct {
	source ConfigSource
	params SessionParams
	ttl     time.Duration
	margin  time.Duration
	timeout time.Duration
	clock   func() time.Time
	group   singleflight.Group

	mu           sync.RWMutex
	token        string
	expiration   time.Time
	document     Document
	pollInterval time.Duration
}

func NewConfigFetcher(source ConfigSource, params SessionParams, options *Options) *ConfigFetcher {
	if options == nil {
		options = &Options{}
	}
	ttl := options.sessionTTL()
	margin := options.safetyMargin()
	if margin >= ttl {
		Logger().Log(fmt.Sprintf("Safety margin %s is not shorter than session TTL %s, using no margin", margin, ttl), nil)
		margin = 0
	}
	return &ConfigFetcher{
		source:   source,
		params:   params,
		ttl:      ttl,
		margin:   margin,
		timeout:  defaultDuration(options.FetchTimeout, DefaultFetchTimeout),
		clock:    options.clock(),
		document: Document{},
	}
}

// Fetch returns the latest configuration document. Concurrent callers share
// a single round trip to the source. The shared round trip is not cancelled
// when a caller gives up; it is bounded by Options.FetchTimeout instead, so
// one caller's cancellation never fails the others.
func (f *ConfigFetcher) Fetch(ctx context.Context) (Document, error) {
	ch := f.group.DoChan("fetch", func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		return f.fetch(shared)
	})
	select {
	case <-ctx.Done():
		return nil, &RemoteFetchError{Op: "Fetch", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Document), nil
	}
}

func (f *ConfigFetcher) fetch(ctx context.Context) (Document, error) {
	f.mu.RLock()
	token := f.token
	expiration := f.expiration
	f.mu.RUnlock()

	if token == "" || isExpired(f.clock(), expiration) {
		Logger().LogStep(FlagkitProcessSync, "Starting configuration session",
			"application", f.params.Application, "environment", f.params.Environment, "profile", f.params.Profile)
		initial, err := f.source.StartSession(ctx, f.params)
		if err != nil {
			return nil, asRemoteFetchError("StartSession", err)
		}
		token = initial
		f.mu.Lock()
		f.token = initial
		f.expiration = f.expirationFrom(f.clock())
		f.mu.Unlock()
	}

	latest, err := f.source.GetLatest(ctx, token)
	if err != nil {
		return nil, asRemoteFetchError("GetLatest", err)
	}
	if latest.NextToken == "" {
		return nil, &RemoteFetchError{Op: "GetLatest", Err: errors.New("response carried no next configuration token")}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = latest.NextToken
	f.expiration = f.expirationFrom(f.clock())
	if latest.PollInterval > 0 {
		f.pollInterval = latest.PollInterval
	}

	if len(latest.Body) == 0 {
		return f.document, nil
	}
	doc, err := ParseDocument(latest.Body, latest.ContentType)
	if err != nil {
		return nil, err
	}
	Logger().LogStep(FlagkitProcessSync, "Received new configuration", "flags", len(doc))
	f.document = doc
	return f.document, nil
}

// Current returns the cached document without contacting the source.
func (f *ConfigFetcher) Current() Document {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.document
}

// Expiration returns when the held token stops being used. It is the zero
// time before the first session has been started.
func (f *ConfigFetcher) Expiration() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.expiration
}

// LastPollInterval is the poll interval last suggested by the source, or zero.
func (f *ConfigFetcher) LastPollInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pollInterval
}

// seed installs doc as the cached document when nothing has been fetched
// yet. The token state is untouched.
func (f *ConfigFetcher) seed(doc Document) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.document) > 0 {
		return false
	}
	f.document = doc
	return true
}

// Invalidate drops the held token so the next Fetch starts a new session.
// The cached document is kept.
func (f *ConfigFetcher) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.expiration = time.Time{}
}

func (f *ConfigFetcher) expirationFrom(t time.Time) time.Time {
	return t.Add(f.ttl - f.margin)
}

func isExpired(now time.Time, expiration time.Time) bool {
	return !now.Before(expiration)
}

func asRemoteFetchError(op string, err error) error {
	var rfe *RemoteFetchError
	if errors.As(err, &rfe) {
		if rfe.Op == "" {
			rfe.Op = op
		}
		return rfe
	}
	return &RemoteFetchError{Op: op, Err: err}
}
