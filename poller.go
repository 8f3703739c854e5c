package flagkit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var syncOutdatedMax = 2 * time.Minute

type poller struct {
	client   *Client
	interval time.Duration

	mu               sync.Mutex
	cancel           context.CancelFunc
	done             chan struct{}
	syncFailureCount int
}

func newPoller(client *Client, interval time.Duration) *poller {
	return &poller{client: client, interval: interval}
}

func (p *poller) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.pollForConfigChanges(ctx, p.done)
}

func (p *poller) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// nextInterval never polls faster than the source asked for.
func (p *poller) nextInterval() time.Duration {
	if suggested := p.client.fetcher.LastPollInterval(); suggested > p.interval {
		return suggested
	}
	return p.interval
}

func (p *poller) pollForConfigChanges(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		timer := time.NewTimer(p.nextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		p.poll(ctx)
	}
}

func (p *poller) poll(ctx context.Context) {
	defer p.client.boundary.ebRecover("Poll", func() {})
	_, err := p.client.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.handleSyncError(err)
		return
	}
	p.syncFailureCount = 0
}

func (p *poller) handleSyncError(err error) {
	p.syncFailureCount += 1
	failDuration := time.Duration(p.syncFailureCount) * p.nextInterval()
	if failDuration > syncOutdatedMax {
		Logger().Log(fmt.Sprintf("Configuration sync has failed for %dms. "+
			"Flags will be served from the last successfully fetched configuration.", int64(failDuration/time.Millisecond)), err)
		p.syncFailureCount = 0
		return
	}
	Logger().LogStep(FlagkitProcessSync, "Configuration sync failed", "error", err.Error(), "failures", p.syncFailureCount)
}
