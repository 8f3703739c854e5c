package flagkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// A Client owns a ConfigFetcher and answers flag questions from the most
// recently fetched document.
type Client struct {
	fetcher   *ConfigFetcher
	options   *Options
	enricher  *userEnricher
	exposures *exposureSet
	poller    *poller
	observer  *observer
	boundary  *errorBoundary

	mu           sync.RWMutex
	listeners    []func(Document)
	initialized  bool
	shutdownOnce sync.Once
}

func NewClient(source ConfigSource, params SessionParams, options *Options) *Client {
	if options == nil {
		options = &Options{}
	}
	InitializeGlobalOutputLogger(options.OutputLoggerOptions)
	observer := newObserver(options.ObservabilityClient)
	c := &Client{
		fetcher:   NewConfigFetcher(source, params, options),
		options:   options,
		enricher:  newUserEnricher(options.IPCountryOptions, options.UAParserOptions),
		exposures: newExposureSet(defaultDuration(options.ExposureDedupeInterval, DefaultExposureDedupeInterval)),
		observer:  observer,
		boundary:  newErrorBoundary(observer),
	}
	c.poller = newPoller(c, defaultDuration(options.PollInterval, DefaultPollInterval))
	return c
}

// Initialize performs the first fetch. When Options.InitTimeout is set the
// fetch is abandoned after that long. If the fetch fails and the data
// adapter holds a document from an earlier run, the client starts from that
// document and Initialize succeeds.
func (c *Client) Initialize(ctx context.Context) error {
	start := time.Now()
	Logger().LogStep(FlagkitProcessInitialize, "Initializing", "options", GetOptionLoggingCopy(*c.options))
	c.observer.init(ctx)
	if c.options.DataAdapter != nil {
		c.boundary.captureVoid("DataAdapter.Initialize", c.options.DataAdapter.Initialize)
	}
	if c.options.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.InitTimeout)
		defer cancel()
	}
	c.enricher.init()

	initSource := "network"
	_, err := c.Fetch(ctx)
	if err != nil {
		if !c.bootstrapFromAdapter() {
			c.observer.distribution(MetricInitializationDuration, millisSince(start),
				map[string]interface{}{"success": false})
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("initialize timed out after %s: %w", c.options.InitTimeout, err)
			}
			return fmt.Errorf("initialize: %w", err)
		}
		Logger().Log("Initial fetch failed, serving the document stored by the data adapter", err)
		initSource = "data_adapter"
	}
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	c.observer.distribution(MetricInitializationDuration, millisSince(start),
		map[string]interface{}{"success": true, "init_source": initSource})
	Logger().LogStep(FlagkitProcessInitialize, "Done", "flags", len(c.Document()), "source", initSource)
	return nil
}

func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Fetch polls the source once and notifies update listeners when the
// document changed.
func (c *Client) Fetch(ctx context.Context) (Document, error) {
	start := time.Now()
	previous := c.fetcher.Current()
	doc, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.recordFetchError(err)
		c.observer.distribution(MetricFetchLatency, millisSince(start), map[string]interface{}{"success": false})
		return nil, err
	}
	c.observer.distribution(MetricFetchLatency, millisSince(start), map[string]interface{}{"success": true})
	if !doc.Equal(previous) {
		c.observer.increment(MetricConfigUpdates, 1, nil)
		c.observer.gauge(MetricConfigFlags, float64(len(doc)), nil)
		c.persistToAdapter(doc)
		c.notifyListeners(doc)
	}
	return doc, nil
}

func (c *Client) recordFetchError(err error) {
	tags := map[string]interface{}{}
	var rfe *RemoteFetchError
	var cpe *ConfigParseError
	switch {
	case errors.As(err, &rfe):
		tags["op"] = rfe.Op
		tags["code"] = defaultString(rfe.Code, "unknown")
	case errors.As(err, &cpe):
		tags["op"] = "parse"
		tags["format"] = cpe.Format
	}
	c.observer.increment(MetricFetchErrors, 1, tags)
}

func (c *Client) persistToAdapter(doc Document) {
	adapter := c.options.DataAdapter
	if adapter == nil {
		return
	}
	value, err := marshalDocument(doc)
	if err != nil {
		Logger().LogError(fmt.Errorf("encoding document for data adapter: %w", err))
		return
	}
	key := dataAdapterKey(c.fetcher.params)
	c.boundary.captureVoid("DataAdapter.Set", func() { adapter.Set(key, value) })
}

func (c *Client) bootstrapFromAdapter() bool {
	adapter := c.options.DataAdapter
	if adapter == nil {
		return false
	}
	key := dataAdapterKey(c.fetcher.params)
	value := c.boundary.captureString("DataAdapter.Get", func() string { return adapter.Get(key) }, "")
	if value == "" {
		return false
	}
	doc, err := ParseDocument([]byte(value), "application/json")
	if err != nil {
		Logger().Log("Ignoring unreadable document from data adapter", err)
		return false
	}
	return c.fetcher.seed(doc)
}

// Document returns the current document without contacting the source.
func (c *Client) Document() Document {
	return c.fetcher.Current()
}

// AddConfigUpdateListener registers fn to be called with every new document.
func (c *Client) AddConfigUpdateListener(fn func(Document)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Client) notifyListeners(doc Document) {
	c.mu.RLock()
	listeners := append([]func(Document){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		c.boundary.captureVoid("ConfigUpdateListener", func() { fn(doc) })
	}
}

// GetFlag looks the flag up in the current document.
func (c *Client) GetFlag(name string) (Flag, error) {
	return c.Document().Lookup(name)
}

// CheckFlag reports whether the flag is enabled. Missing flags are off.
func (c *Client) CheckFlag(name string) bool {
	flag, err := c.GetFlag(name)
	if err != nil {
		Logger().LogStep(FlagkitProcessSync, "Flag lookup failed", "flag", name, "error", err.Error())
		return false
	}
	return flag.Enabled
}

// Decide returns the decision for the user. Every user gets the flag's
// document value; the user's attributes are recorded on the decision.
func (c *Client) Decide(user User, name string) Decision {
	decision := Decision{
		FlagKey:    name,
		UserID:     user.UserID,
		Variables:  map[string]interface{}{},
		Attributes: c.enricher.attributes(user),
	}
	flag, err := c.GetFlag(name)
	switch {
	case err == nil:
		decision.Enabled = flag.Enabled
		decision.Variables = flag.Variables
		decision.Reason = ReasonEvaluated
	case !c.IsInitialized():
		decision.Reason = ReasonUninitialized
	default:
		decision.Reason = ReasonFlagNotFound
	}
	c.logExposure(decision)
	return decision
}

func (c *Client) logExposure(decision Decision) {
	if c.options.ExposureCallback == nil {
		return
	}
	if !c.exposures.markIfNew(decision.UserID + ":" + decision.FlagKey) {
		return
	}
	c.boundary.captureVoid("ExposureCallback", func() { c.options.ExposureCallback(decision) })
}

// StartPolling fetches in the background until Shutdown is called.
func (c *Client) StartPolling() {
	c.poller.start()
}

// Shutdown stops polling and background caches. Using the client after
// Shutdown is undefined.
func (c *Client) Shutdown() {
	c.poller.stop()
	c.shutdownOnce.Do(func() {
		c.exposures.Shutdown()
		if c.options.DataAdapter != nil {
			c.boundary.captureVoid("DataAdapter.Shutdown", c.options.DataAdapter.Shutdown)
		}
		c.observer.shutdown(context.Background())
	})
}
