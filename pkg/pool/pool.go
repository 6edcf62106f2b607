package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// Pool hands out exclusive connections to a cache deployment.
//
// Every connection obtained from Get must be handed back to Put exactly once,
// whether the work on it succeeded or not.
type Pool interface {
	// Get borrows a connection. Keys are used for routing by pools that
	// partition the keyspace and ignored otherwise.
	Get(ctx context.Context, keys ...string) (*redis.Conn, error)

	// Put returns a borrowed connection. Broken connections are destroyed.
	Put(conn *redis.Conn)

	// MultiDB reports whether logical database selection is meaningful.
	MultiDB() bool

	// Stats returns a snapshot of the pool counters.
	Stats() Stats

	// Close drains the pool. It waits for borrowed connections until ctx is
	// done or the shutdown timeout elapses, then force-closes stragglers.
	Close(ctx context.Context) error
}

// Partitioned is implemented by pools that spread the keyspace over
// independent shards.
type Partitioned interface {
	Pool

	// Shards returns one pool per shard, in endpoint order.
	Shards() []Pool

	// Locate returns the index of the shard owning key.
	Locate(key string) int

	// Policy returns how multi-key commands spanning shards are treated.
	Policy() MultiKeyPolicy
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Out       int   `json:"out"`
	Idle      int   `json:"idle"`
	Opened    int64 `json:"opened"`
	Destroyed int64 `json:"destroyed"`
	Waits     int64 `json:"waits"`
	Timeouts  int64 `json:"timeouts"`
}

func (s Stats) add(o Stats) Stats {
	return Stats{
		Out:       s.Out + o.Out,
		Idle:      s.Idle + o.Idle,
		Opened:    s.Opened + o.Opened,
		Destroyed: s.Destroyed + o.Destroyed,
		Waits:     s.Waits + o.Waits,
		Timeouts:  s.Timeouts + o.Timeouts,
	}
}

// Topology selects which pool variant is built.
type Topology string

const (
	TopologySingle  Topology = "single"
	TopologyArbiter Topology = "arbiter"
	TopologySharded Topology = "sharded"
)

// ParseTopology accepts exactly one topology name.
func ParseTopology(s string) (Topology, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.Contains(s, ",") {
		return "", fmt.Errorf("%w: more than one topology enabled: %q", ErrConfigInvalid, s)
	}
	switch t := Topology(s); t {
	case TopologySingle, TopologyArbiter, TopologySharded:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown topology %q", ErrConfigInvalid, s)
}

// Spec is the boot-time description of a deployment.
type Spec struct {
	Topology Topology
	// Endpoints are the server (single), the arbiters (arbiter) or the
	// shards in ring order (sharded).
	Endpoints []redis.Endpoint
	Config    Config
	// MasterName is the primary set watched by the arbiters.
	MasterName string
	// MasterPassword is the credential of the discovered primary.
	MasterPassword string
	MultiKey       MultiKeyPolicy
}

// Open builds the pool variant selected by spec.Topology.
//
// Example:
//
//	p, err := pool.Open(ctx, pool.Spec{
//	    Topology:  pool.TopologySingle,
//	    Endpoints: []redis.Endpoint{{Host: "localhost", Port: 6379}},
//	    Config:    pool.DefaultConfig(),
//	}, pool.WithLogger(log))
func Open(ctx context.Context, spec Spec, opts ...Option) (Pool, error) {
	if err := spec.Config.Validate(); err != nil {
		return nil, err
	}
	if len(spec.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: no endpoints", ErrConfigInvalid)
	}

	switch spec.Topology {
	case TopologySingle:
		if len(spec.Endpoints) != 1 {
			return nil, fmt.Errorf("%w: single topology takes one endpoint, got %d", ErrConfigInvalid, len(spec.Endpoints))
		}
		return NewSingle(ctx, spec.Endpoints[0], spec.Config, opts...)

	case TopologyArbiter:
		o := newOptions(opts...)
		arbiters := make([]Arbiter, 0, len(spec.Endpoints))
		for _, ep := range spec.Endpoints {
			arbiters = append(arbiters, NewSentinel(ep, spec.MasterName, spec.MasterPassword, o.dialOpts...))
		}
		p, err := NewArbitered(ctx, arbiters, spec.Config, opts...)
		if err != nil {
			for _, a := range arbiters {
				_ = a.Close()
			}
			return nil, err
		}
		return p, nil

	case TopologySharded:
		return NewSharded(ctx, spec.Endpoints, spec.Config, append(opts, WithMultiKeyPolicy(spec.MultiKey))...)
	}

	return nil, fmt.Errorf("%w: unknown topology %q", ErrConfigInvalid, spec.Topology)
}

// Healthcheck returns a closure that borrows a connection from every shard
// of p and pings it.
func Healthcheck(p Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if p == nil {
			return redis.ErrHealthcheckFailed
		}

		targets := []Pool{p}
		if part, ok := p.(Partitioned); ok {
			targets = part.Shards()
		}

		var errs []error
		for _, t := range targets {
			conn, err := t.Get(ctx)
			if err != nil {
				errs = append(errs, errors.Join(redis.ErrHealthcheckFailed, err))
				continue
			}
			if err := redis.Healthcheck(conn)(ctx); err != nil {
				errs = append(errs, err)
			}
			t.Put(conn)
		}
		return errors.Join(errs...)
	}
}

// Shutdown returns a function that gracefully closes the pool.
// Use it as a server shutdown hook.
func Shutdown(p Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return p.Close(ctx)
	}
}
