package analyzer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
	"gitlab.com/tozd/go/errors"
)

const DefaultCacheSize = 256

// Key digests everything that can influence an analyzer result: the exact code, the
// language and every option. encoding/json sorts map keys, so equal requests always
// produce equal keys.
func Key(req Request) ([32]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return [32]byte{}, errors.Errorf("encoding cache key: %w", err)
	}
	return blake3.Sum256(data), nil
}

type cached struct {
	mu      sync.Mutex
	next    Analyzer
	entries *lru.Cache
}

// Cached memoizes successful results of next. Failed calls are never cached. Results
// are shared between callers and must be treated as read-only.
func Cached(next Analyzer, size int) Analyzer {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &cached{next: next, entries: lru.New(size)}
}

func (c *cached) Analyze(ctx context.Context, req Request) (*Result, error) {
	key, err := Key(req)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("skipping analyzer cache")
		return c.next.Analyze(ctx, req)
	}

	c.mu.Lock()
	hit, ok := c.entries.Get(key)
	c.mu.Unlock()
	if ok {
		zerolog.Ctx(ctx).Trace().Str("lang", req.Lang).Msg("analyzer cache hit")
		return hit.(*Result), nil
	}

	res, err := c.next.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries.Add(key, res)
	c.mu.Unlock()

	return res, nil
}
