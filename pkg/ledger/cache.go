package ledger

import (
	"context"

	"github.com/dgraph-io/ristretto"
)

// CachedLedger fronts another ledger with an in-memory cache of positive
// hits. Misses always fall through, so the cache can never wrongly report a
// file as processed.
type CachedLedger struct {
	inner Ledger
	cache *ristretto.Cache
}

func NewCachedLedger(inner Ledger, maxEntries int64) (*CachedLedger, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedLedger{inner: inner, cache: cache}, nil
}

func (cl *CachedLedger) HasProcessed(ctx context.Context, file, sha256 string) (bool, error) {
	k := key(file, sha256)
	if _, found := cl.cache.Get(k); found {
		return true, nil
	}
	processed, err := cl.inner.HasProcessed(ctx, file, sha256)
	if err != nil {
		return false, err
	}
	if processed {
		cl.cache.Set(k, struct{}{}, 1)
	}
	return processed, nil
}

func (cl *CachedLedger) Record(ctx context.Context, entry Entry) error {
	if err := cl.inner.Record(ctx, entry); err != nil {
		return err
	}
	cl.cache.Set(key(entry.File, entry.SHA256), struct{}{}, 1)
	return nil
}
