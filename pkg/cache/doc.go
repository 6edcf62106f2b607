// Package cache provides a generic, namespaced cache on top of the pooled
// command service in [github.com/dmitrymomot/redisgate/pkg/kv].
//
// Entries of a cache live under "<namespace>::<key>" so several caches can
// share one pool and one logical database, and a whole namespace can be
// evicted at once with [Evict] or [Redis.Clear].
//
// # Usage
//
//	svc := kv.New(p)
//	c, err := cache.NewRedis[User](svc, "users", nil)
//	if err != nil {
//		return err
//	}
//
//	c.Set(ctx, "123", user, 10*time.Minute)
//	u, err := c.Get(ctx, "123")
//	if errors.Is(err, cache.ErrNotFound) {
//		// miss
//	}
//
// A zero or negative TTL stores the entry without expiry.
//
// Pass a custom [Marshaler] as the third argument to [NewRedis] to use
// a different serialization format. If nil, JSON is used.
//
// # Cache Stampede Prevention
//
// Use [GetOrSet] so only one goroutine computes a missing value:
//
//	u, err := cache.GetOrSet(ctx, c, "123", func(ctx context.Context) (User, time.Duration, error) {
//	    u, err := repo.FindUser(ctx, "123")
//	    return u, 5 * time.Minute, err
//	})
//
// # Errors
//
// Unlike the kv catalog, cache methods return errors: pool and connection
// failures come back classified by [github.com/dmitrymomot/redisgate/pkg/kv.Execute],
// plus [ErrNotFound], [ErrInvalidNamespace], [ErrMarshal] and [ErrUnmarshal].
package cache
