package pool

import (
	"context"
	"time"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

type cachedStats struct {
	stats   *store.Stats
	day     string
	expires time.Time
}

// Stats returns dashboard counts for user. Results are cached per user for
// the configured TTL; any mutation through this engine clears the cache.
// Each call returns its own copy.
func (e *Engine) Stats(ctx context.Context, user string) (*store.Stats, error) {
	if err := requireActor(user); err != nil {
		return nil, err
	}
	now := e.now()
	day := now.Format(store.DateLayout)

	if e.statsTTL > 0 {
		e.statsMu.Lock()
		c, ok := e.stats[user]
		e.statsMu.Unlock()
		if ok && c.day == day && now.Before(c.expires) {
			return c.stats.Clone(), nil
		}
	}

	st, err := e.store.Stats(ctx, e.tenant, user, now)
	if err != nil {
		return nil, err
	}

	if e.statsTTL > 0 {
		e.statsMu.Lock()
		e.stats[user] = cachedStats{stats: st.Clone(), day: day, expires: now.Add(e.statsTTL)}
		e.statsMu.Unlock()
	}
	return st, nil
}
