package flagkit

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// exposureSet remembers which user/flag decisions were already reported so
// a decision is reported at most once per interval.
type exposureSet struct {
	cache    *ttlcache.Cache[string, struct{}]
	stopOnce sync.Once
}

func newExposureSet(interval time.Duration) *exposureSet {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](interval),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go cache.Start()
	return &exposureSet{cache: cache}
}

// markIfNew records key and reports whether it was absent.
func (s *exposureSet) markIfNew(key string) bool {
	_, found := s.cache.GetOrSet(key, struct{}{})
	return !found
}

func (s *exposureSet) Shutdown() {
	s.stopOnce.Do(s.cache.Stop)
}
