package flagkit

import (
	"encoding/json"
	"strings"
	"sync"
)

// DataAdapter stores the last good configuration document outside the
// process, so a client can start from it when the source is unreachable.
type DataAdapter interface {
	Get(key string) string
	Set(key string, value string)
	Initialize()
	Shutdown()
}

// InMemoryDataAdapter keeps documents for the lifetime of the process. It is
// mostly useful for sharing one cache between several clients and in tests.
type InMemoryDataAdapter struct {
	store map[string]string
	mu    sync.RWMutex
}

func NewInMemoryDataAdapter() *InMemoryDataAdapter {
	return &InMemoryDataAdapter{store: make(map[string]string)}
}

func (d *InMemoryDataAdapter) Get(key string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store[key]
}

func (d *InMemoryDataAdapter) Set(key string, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store[key] = value
}

func (d *InMemoryDataAdapter) Initialize() {}

func (d *InMemoryDataAdapter) Shutdown() {}

func dataAdapterKey(params SessionParams) string {
	return strings.Join([]string{"flagkit", "document", params.Application, params.Environment, params.Profile}, ".")
}

// marshalDocument encodes d in the same shape ParseDocument reads.
func marshalDocument(d Document) (string, error) {
	raw := make(map[string]map[string]interface{}, len(d))
	for name, flag := range d {
		entry := make(map[string]interface{}, len(flag.Variables)+1)
		for k, v := range flag.Variables {
			entry[k] = v
		}
		if flag.hasEnabled {
			entry[enabledKey] = flag.Enabled
		}
		raw[name] = entry
	}
	bytes, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
