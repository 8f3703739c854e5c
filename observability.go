package flagkit

import (
	"context"
	"time"
)

/**
 * ObservabilityClient lets users plug in their own metrics integration.
 * Errors returned by the client are logged at debug level and otherwise
 * ignored.
 */
type ObservabilityClient interface {
	Init(ctx context.Context) error
	// Increment adds value to a counter metric.
	Increment(metricName string, value int, tags map[string]interface{}) error
	// Gauge sets a gauge metric.
	Gauge(metricName string, value float64, tags map[string]interface{}) error
	// Distribution records one sample of a distribution metric.
	Distribution(metricName string, value float64, tags map[string]interface{}) error
	Shutdown(ctx context.Context) error
}

const (
	MetricInitializationDuration = "flagkit.initialization.duration_ms"
	MetricFetchLatency           = "flagkit.fetch.latency_ms"
	MetricFetchErrors            = "flagkit.fetch.errors"
	MetricConfigUpdates          = "flagkit.config.updates"
	MetricConfigFlags            = "flagkit.config.flags"
	MetricPanics                 = "flagkit.panics"
)

// observer forwards to an optional ObservabilityClient.
type observer struct {
	client ObservabilityClient
}

func newObserver(client ObservabilityClient) *observer {
	return &observer{client: client}
}

func (o *observer) init(ctx context.Context) {
	if o.client == nil {
		return
	}
	o.check("Init", o.client.Init(ctx))
}

func (o *observer) increment(name string, value int, tags map[string]interface{}) {
	if o.client == nil {
		return
	}
	o.check(name, o.client.Increment(name, value, tags))
}

func (o *observer) gauge(name string, value float64, tags map[string]interface{}) {
	if o.client == nil {
		return
	}
	o.check(name, o.client.Gauge(name, value, tags))
}

func (o *observer) distribution(name string, value float64, tags map[string]interface{}) {
	if o.client == nil {
		return
	}
	o.check(name, o.client.Distribution(name, value, tags))
}

func (o *observer) shutdown(ctx context.Context) {
	if o.client == nil {
		return
	}
	o.check("Shutdown", o.client.Shutdown(ctx))
}

func (o *observer) check(op string, err error) {
	if err != nil {
		Logger().LogStep(FlagkitProcessSync, "Observability client call failed", "op", op, "error", err.Error())
	}
}

func millisSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
