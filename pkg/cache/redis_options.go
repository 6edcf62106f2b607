package cache

// RedisOption configures the Redis cache.
type RedisOption func(*redisOptions)

type redisOptions struct {
	db int
}

// WithDB stores entries in the given logical database.
// Default: 0. Sharded pools only accept 0.
func WithDB(db int) RedisOption {
	return func(o *redisOptions) {
		o.db = db
	}
}
