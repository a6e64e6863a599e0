package cleaner

import (
	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/catfuse/types/sample"
	"sync"
)

// NewDedupeLRUFunc returns a filter that passes a fix only the first time
// an identical fix is seen among the last size fixes.
// The returned func is safe for concurrent use.
func NewDedupeLRUFunc(size int) func(sample.Fix) bool {
	var mu sync.Mutex
	dedupeCache := lru.New(size)
	return func(f sample.Fix) bool {
		hash, err := hashstructure.Hash(f, hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		if _, ok := dedupeCache.Get(hash); ok {
			return false
		}
		dedupeCache.Add(hash, true)
		return true
	}
}
