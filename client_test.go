package flagkit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietOptions = Options{
	IPCountryOptions: IPCountryOptions{Disabled: true},
	UAParserOptions:  UAParserOptions{Disabled: true},
}

func newTestClient(source ConfigSource, mutate func(o *Options)) *Client {
	options := quietOptions
	if mutate != nil {
		mutate(&options)
	}
	return NewClient(source, testParams, &options)
}

func TestClientInitializeAndDecide(t *testing.T) {
	source := &fakeSource{}
	source.queue("t2", `{"product_sort":{"enabled":true,"sort_method":"popular_first"},"dark":{"enabled":false}}`)
	client := newTestClient(source, nil)
	defer client.Shutdown()

	decision := client.Decide(User{UserID: "1"}, "product_sort")
	assert.Equal(t, ReasonUninitialized, decision.Reason)
	assert.False(t, decision.Enabled)

	require.NoError(t, client.Initialize(context.Background()))
	assert.True(t, client.IsInitialized())

	assert.True(t, client.CheckFlag("product_sort"))
	assert.False(t, client.CheckFlag("dark"))
	assert.False(t, client.CheckFlag("missing"))

	_, err := client.GetFlag("missing")
	assert.ErrorIs(t, err, ErrFlagNotFound)

	decision = client.Decide(User{UserID: "42", Attributes: map[string]interface{}{"account_label": "demo"}}, "product_sort")
	assert.Equal(t, ReasonEvaluated, decision.Reason)
	assert.True(t, decision.Enabled)
	assert.Equal(t, "42", decision.UserID)
	assert.Equal(t, "popular_first", decision.GetString("sort_method", ""))
	assert.Equal(t, "demo", decision.Attributes["account_label"])

	decision = client.Decide(User{UserID: "42"}, "missing")
	assert.Equal(t, ReasonFlagNotFound, decision.Reason)
	assert.False(t, decision.Enabled)
	assert.Empty(t, decision.Variables)
}

func TestClientInitializeFailure(t *testing.T) {
	source := &fakeSource{startErr: errors.New("no credentials")}
	client := newTestClient(source, nil)
	defer client.Shutdown()

	err := client.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrRemoteFetch)
	assert.False(t, client.IsInitialized())
}

// blockingSource never answers until the context is done.
type blockingSource struct{}

func (blockingSource) StartSession(ctx context.Context, params SessionParams) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingSource) GetLatest(ctx context.Context, token string) (LatestConfiguration, error) {
	<-ctx.Done()
	return LatestConfiguration{}, ctx.Err()
}

func TestClientInitializeTimeout(t *testing.T) {
	client := newTestClient(blockingSource{}, func(o *Options) {
		o.InitTimeout = 20 * time.Millisecond
	})
	defer client.Shutdown()

	start := time.Now()
	err := client.Initialize(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrRemoteFetch)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClientPollingNotifiesListeners(t *testing.T) {
	source := &fakeSource{}
	source.queue("t2", `{"product_sort":{"enabled":false}}`)
	source.queue("t3", "")
	source.queue("t4", `{"product_sort":{"enabled":true}}`)
	client := newTestClient(source, func(o *Options) {
		o.PollInterval = 5 * time.Millisecond
	})
	defer client.Shutdown()

	require.NoError(t, client.Initialize(context.Background()))

	var mu sync.Mutex
	var updates []Document
	client.AddConfigUpdateListener(func(doc Document) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, doc)
	})
	client.AddConfigUpdateListener(func(doc Document) {
		panic("listener failures do not stop other listeners")
	})
	client.StartPolling()
	client.StartPolling()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) == 1
	}, 2*time.Second, 5*time.Millisecond)

	client.Shutdown()
	assert.True(t, client.CheckFlag("product_sort"))
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, updates[0]["product_sort"].Enabled)
	assert.Equal(t, int32(1), source.startCalls.Load())
}

func TestClientExposureCallbackDedupes(t *testing.T) {
	source := &fakeSource{}
	source.queue("t2", `{"railway-demo-flag":{"enabled":true}}`)

	var exposures []Decision
	client := newTestClient(source, func(o *Options) {
		o.ExposureCallback = func(decision Decision) {
			exposures = append(exposures, decision)
		}
	})
	defer client.Shutdown()
	require.NoError(t, client.Initialize(context.Background()))

	client.Decide(User{UserID: "local_user"}, "railway-demo-flag")
	client.Decide(User{UserID: "local_user"}, "railway-demo-flag")
	client.Decide(User{UserID: "other_user"}, "railway-demo-flag")

	require.Len(t, exposures, 2)
	assert.Equal(t, "local_user", exposures[0].UserID)
	assert.Equal(t, "other_user", exposures[1].UserID)
}

func TestPollerSyncFailureLogging(t *testing.T) {
	prev := syncOutdatedMax
	syncOutdatedMax = 15 * time.Millisecond
	defer func() { syncOutdatedMax = prev }()

	var mu sync.Mutex
	var logged []error
	source := &fakeSource{getErr: errors.New("throttled")}
	client := newTestClient(source, func(o *Options) {
		o.PollInterval = 5 * time.Millisecond
		o.OutputLoggerOptions = OutputLoggerOptions{
			LogCallback: func(message string, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					logged = append(logged, err)
				}
			},
		}
	})
	defer client.Shutdown()
	defer InitializeGlobalOutputLogger(OutputLoggerOptions{})

	client.StartPolling()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(logged) > 0
	}, 2*time.Second, 5*time.Millisecond)

	client.Shutdown()
	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, logged[0], ErrRemoteFetch)
}

func TestPollerHonorsSuggestedInterval(t *testing.T) {
	source := &fakeSource{}
	source.mu.Lock()
	source.responses = append(source.responses, LatestConfiguration{NextToken: "t2", PollInterval: time.Hour})
	source.mu.Unlock()
	client := newTestClient(source, func(o *Options) {
		o.PollInterval = time.Millisecond
	})
	defer client.Shutdown()

	assert.Equal(t, time.Millisecond, client.poller.nextInterval())
	require.NoError(t, client.Initialize(context.Background()))
	assert.Equal(t, time.Hour, client.poller.nextInterval())
}

func TestDecisionVariablesAreCallerOwned(t *testing.T) {
	source := &fakeSource{}
	source.queue("t2", `{"a":{"enabled":true,"color":"red","sizes":["s","m"]}}`)
	source.queue("t3", `{"a":{"enabled":true,"color":"red","sizes":["s","m"]}}`)
	client := newTestClient(source, nil)
	defer client.Shutdown()
	require.NoError(t, client.Initialize(context.Background()))

	var updates int
	client.AddConfigUpdateListener(func(Document) { updates++ })

	decision := client.Decide(User{UserID: "u"}, "a")
	decision.Variables["color"] = "blue"
	decision.Variables["sizes"].([]interface{})[0] = "xl"

	flag, err := client.GetFlag("a")
	require.NoError(t, err)
	assert.Equal(t, "red", flag.GetString("color", ""))
	assert.Equal(t, []interface{}{"s", "m"}, flag.GetSlice("sizes", nil))

	flag.Variables["color"] = "green"
	assert.Equal(t, "red", client.Decide(User{UserID: "u"}, "a").GetString("color", ""))

	_, err = client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, updates)
}
