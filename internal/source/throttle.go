package source

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttled limits the request rate against an ObjectStore. List and Get
// each take one token.
type Throttled struct {
	store   ObjectStore
	limiter *rate.Limiter
}

var _ ObjectStore = (*Throttled)(nil)

// Throttle wraps store so that at most rps requests per second are made,
// with bursts of up to burst. A non-positive rps returns store unchanged.
func Throttle(store ObjectStore, rps float64, burst int) ObjectStore {
	if rps <= 0 {
		return store
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{store: store, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttled) List(ctx context.Context, prefix string) ([]string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.store.List(ctx, prefix)
}

func (t *Throttled) Get(ctx context.Context, key string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.store.Get(ctx, key)
}
