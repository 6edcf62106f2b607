// Package redis provides the single-session building block of the pooled
// cache-access layer.
//
// This package wraps [github.com/redis/go-redis/v9]: a [Conn] is one live
// session to one [Endpoint] that exposes the full go-redis command surface
// plus logical database selection and health tracking. Pools in
// [github.com/dmitrymomot/redisgate/pkg/pool] own Conns; callers never share one.
//
// # Features
//
//   - One socket per Conn; go-redis internal pooling and retries are disabled
//   - Per-session logical database selection ([Conn.SelectDB], databases 0–15)
//   - Transport failures mark the session broken so the pool destroys it
//   - [Conn.Invalidate] fences a session after a primary failover
//   - Dial retry with linear backoff, cut short when the context ends
//   - Support for redis:// and rediss:// (TLS) URL schemes via [ParseURL]
//
// # Configuration
//
// Dialing is configured via functional options:
//
//   - WithTimeout(d time.Duration): Per-command read and write timeout (default: 3s)
//   - WithReadTimeout(d time.Duration): Read operation timeout (default: 3s)
//   - WithWriteTimeout(d time.Duration): Write operation timeout (default: 3s)
//   - WithDialTimeout(d time.Duration): Connection dial timeout (default: 5s)
//   - WithRetry(attempts int, interval time.Duration): Dial attempts and base interval (default: 1 attempt)
//
// # Usage
//
//	ep, err := redis.ParseURL(os.Getenv("REDIS_URL"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	conn, err := redis.Dial(ctx, ep, redis.WithTimeout(2*time.Second))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	if err := conn.SelectDB(ctx, 3); err != nil {
//		log.Fatal(err)
//	}
//	val, err := conn.Get(ctx, "greeting").Result()
//
// # Error Handling
//
// The package defines sentinel errors for common failure modes:
//
//   - [ErrEmptyConnectionURL] - Empty connection URL provided
//   - [ErrFailedToParseURL] - Invalid connection URL format or scheme
//   - [ErrInvalidEndpoint] - Host or port cannot be dialed
//   - [ErrConnectionFailed] - Session could not be opened (also matches [ErrConnectionBroken])
//   - [ErrConnectionBroken] - Transport failure, cancellation or invalidation
//   - [ErrArgumentOutOfRange] - Database outside 0–15 or malformed arguments
//   - [ErrCommandFailed] - The server replied with an error
//   - [ErrHealthcheckFailed] - PING failed
//
// [Classify] maps raw go-redis errors onto this taxonomy. Errors are wrapped
// using [errors.Join] to preserve the original error context.
package redis
