package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// MultiKeyPolicy decides what a sharded pool does with multi-key commands
// whose keys live on different shards.
type MultiKeyPolicy string

const (
	// MultiKeyStrict rejects every cross-shard multi-key command with
	// ErrCrossShard.
	MultiKeyStrict MultiKeyPolicy = "strict"
	// MultiKeyMerge lets MGET and DEL run per shard and merge the results.
	// Commands needing atomicity across keys stay strict.
	MultiKeyMerge MultiKeyPolicy = "merge"
)

// ParseMultiKeyPolicy accepts "strict", "merge" or an empty string (strict).
func ParseMultiKeyPolicy(s string) (MultiKeyPolicy, error) {
	switch p := MultiKeyPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return MultiKeyStrict, nil
	case MultiKeyStrict, MultiKeyMerge:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown multi-key policy %q", ErrConfigInvalid, s)
}

// Sharded spreads the keyspace over independent servers with a
// consistent-hash ring, keeping one Single pool per shard.
type Sharded struct {
	shards []*Single
	byAddr map[string]*Single
	ring   *Ring
	policy MultiKeyPolicy
	logger *slog.Logger
}

// NewSharded builds one pool per endpoint. The order of endpoints defines
// the ring and must be stable across deployments.
func NewSharded(ctx context.Context, endpoints []redis.Endpoint, cfg Config, opts ...Option) (*Sharded, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w: no shards", ErrConfigInvalid)
	}

	o := newOptions(opts...)
	p := &Sharded{
		shards: make([]*Single, 0, len(endpoints)),
		byAddr: make(map[string]*Single, len(endpoints)),
		ring:   NewRing(len(endpoints)),
		policy: o.multiKey,
		logger: o.logger,
	}

	for _, ep := range endpoints {
		if _, dup := p.byAddr[ep.Addr()]; dup {
			_ = p.Close(ctx)
			return nil, fmt.Errorf("%w: duplicate shard %s", ErrConfigInvalid, ep)
		}
		s, err := NewSingle(ctx, ep, cfg, opts...)
		if err != nil {
			_ = p.Close(ctx)
			return nil, err
		}
		p.shards = append(p.shards, s)
		p.byAddr[ep.Addr()] = s
	}

	return p, nil
}

// Route returns the shard index shared by all keys. It fails with
// redis.ErrArgumentOutOfRange for no keys and ErrCrossShard when the keys
// resolve to different shards.
func (p *Sharded) Route(keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: sharded pool needs a key to route", redis.ErrArgumentOutOfRange)
	}
	shard := p.ring.Locate(keys[0])
	for _, k := range keys[1:] {
		if p.ring.Locate(k) != shard {
			return 0, ErrCrossShard
		}
	}
	return shard, nil
}

// Get borrows a connection to the shard owning keys.
func (p *Sharded) Get(ctx context.Context, keys ...string) (*redis.Conn, error) {
	shard, err := p.Route(keys...)
	if err != nil {
		return nil, err
	}
	return p.shards[shard].Get(ctx)
}

// Put returns conn to the shard it was borrowed from.
func (p *Sharded) Put(conn *redis.Conn) {
	if conn == nil {
		return
	}
	s, ok := p.byAddr[conn.Endpoint().Addr()]
	if !ok {
		p.logger.Warn("ignoring return of a connection to an unknown shard",
			slog.String("endpoint", conn.Endpoint().String()),
		)
		return
	}
	s.Put(conn)
}

// MultiDB is always false: shards cannot keep logical databases consistent.
func (p *Sharded) MultiDB() bool {
	return false
}

// Shards returns the per-shard pools in ring order.
func (p *Sharded) Shards() []Pool {
	out := make([]Pool, len(p.shards))
	for i, s := range p.shards {
		out[i] = s
	}
	return out
}

// Locate returns the index of the shard owning key.
func (p *Sharded) Locate(key string) int {
	return p.ring.Locate(key)
}

// Policy returns the configured multi-key policy.
func (p *Sharded) Policy() MultiKeyPolicy {
	return p.policy
}

// Stats sums the counters of every shard.
func (p *Sharded) Stats() Stats {
	var s Stats
	for _, shard := range p.shards {
		s = s.add(shard.Stats())
	}
	return s
}

// Close drains every shard.
func (p *Sharded) Close(ctx context.Context) error {
	errs := make([]error, 0, len(p.shards))
	for _, s := range p.shards {
		errs = append(errs, s.Close(ctx))
	}
	return errors.Join(errs...)
}
