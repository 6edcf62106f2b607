package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/redisgate/pkg/kv"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// Separator joins a namespace and a key.
const Separator = "::"

// Redis is a cache stored in the shared pool under "<namespace>::<key>".
// It serializes values using the configured Marshaler (default: JSON).
type Redis[V any] struct {
	svc       *kv.Service
	marshaler Marshaler[V]
	namespace string
	db        int
}

// NewRedis creates a cache for one namespace on top of svc.
//
// An optional Marshaler can be provided to customize serialization.
// If nil, JSON serialization is used.
//
// Example:
//
//	c, err := cache.NewRedis[User](svc, "users", nil, cache.WithDB(2))
//	if err != nil {
//		return err
//	}
//	err = c.Set(ctx, "123", user, 30*time.Minute)
func NewRedis[V any](svc *kv.Service, namespace string, m Marshaler[V], opts ...RedisOption) (*Redis[V], error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	o := &redisOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if m == nil {
		m = jsonMarshaler[V]{}
	}

	return &Redis[V]{
		svc:       svc,
		marshaler: m,
		namespace: namespace,
		db:        o.db,
	}, nil
}

// ValidateNamespace rejects namespaces that would turn the eviction pattern
// into a wider glob.
func ValidateNamespace(namespace string) error {
	if namespace == "" || strings.ContainsAny(namespace, `*?[]\`) {
		return ErrInvalidNamespace
	}
	return nil
}

// Namespace returns the namespace the cache writes under.
func (r *Redis[V]) Namespace() string {
	return r.namespace
}

// Get retrieves a value by key.
// Returns ErrNotFound if the key does not exist.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	k := r.key(key)
	data, err := kv.Execute(ctx, r.svc, r.db, []string{k}, func(ctx context.Context, c *redis.Conn) ([]byte, error) {
		return c.Get(ctx, k).Bytes()
	})
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}

	return r.marshaler.Unmarshal(data)
}

// Set stores a value. A ttl of zero or less stores it without expiry.
func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}

	k := r.key(key)
	_, err = kv.Execute(ctx, r.svc, r.db, []string{k}, func(ctx context.Context, c *redis.Conn) (string, error) {
		return c.Set(ctx, k, data, max(ttl, 0)).Result()
	})
	return err
}

// Delete evicts a key. Deleting a missing key is not an error.
func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	k := r.key(key)
	_, err := kv.Execute(ctx, r.svc, r.db, []string{k}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.Del(ctx, k).Result()
	})
	return err
}

// Has checks whether a key exists.
func (r *Redis[V]) Has(ctx context.Context, key string) (bool, error) {
	k := r.key(key)
	n, err := kv.Execute(ctx, r.svc, r.db, []string{k}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.Exists(ctx, k).Result()
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear evicts every entry of the namespace.
func (r *Redis[V]) Clear(ctx context.Context) error {
	_, err := Evict(ctx, r.svc, r.db, r.namespace)
	return err
}

func (r *Redis[V]) key(key string) string {
	return r.namespace + Separator + key
}

// Evict deletes every "<namespace>::*" key of db and returns how many were
// removed. On a sharded pool each shard lists and deletes its own keys.
func Evict(ctx context.Context, svc *kv.Service, db int, namespace string) (int64, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return 0, err
	}

	pattern := namespace + Separator + "*"
	per, err := kv.ExecuteAll(ctx, svc, db, func(ctx context.Context, c *redis.Conn) (int64, error) {
		keys, err := c.Keys(ctx, pattern).Result()
		if err != nil || len(keys) == 0 {
			return 0, err
		}
		return c.Del(ctx, keys...).Result()
	})
	if err != nil {
		return 0, err
	}

	var total int64
	for _, n := range per {
		total += n
	}
	return total, nil
}

var _ Cache[any] = (*Redis[any])(nil)
