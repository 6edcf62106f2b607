// Package pool lends exclusive Redis connections for three deployment
// topologies behind one [Pool] interface.
//
// # Topologies
//
//   - [Single]: bounded pool against one server
//   - [Arbitered]: pool against the primary named by a set of [Arbiter]s
//     (Redis Sentinel via [NewSentinel]), swapped atomically on failover
//   - [Sharded]: one [Single] per shard, keys routed by a consistent-hash [Ring]
//
// [Open] builds the variant selected by [Spec.Topology].
//
// # Borrowing
//
// Every connection obtained from Get must be returned with Put exactly once:
//
//	conn, err := p.Get(ctx, "user:1")
//	if err != nil {
//		return err
//	}
//	defer p.Put(conn)
//
// A saturated pool makes borrowers wait up to [Config.MaxWait] when
// [Config.BlockWhenExhausted] is set and fails with [ErrPoolExhausted]
// otherwise. A borrower whose context is cancelled while waiting gives up
// its place. Connections that saw a transport failure are destroyed on
// return and the pool tops itself back up to [Config.MinIdle].
//
// # Failover
//
// When an arbiter announces a new primary, [Arbitered] builds a pool against
// it and swaps it in. Connections still borrowed from the old primary fail
// their next command with redis.ErrConnectionBroken and are destroyed when
// returned.
//
// # Sharding
//
// Each shard places [VirtualNodes] points on the ring. Keys sharing a
// "{tag}" land on the same shard. Multi-key commands whose keys span shards
// fail with [ErrCrossShard]; [MultiKeyMerge] lets MGET and DEL fan out per
// shard instead. Logical databases other than 0 are not available.
//
// # Metrics
//
// [NewCollector] exports [Stats] as prometheus gauges and counters.
//
// # Error Handling
//
//   - [ErrConfigInvalid] - Unusable settings at construction
//   - [ErrPoolExhausted] - No connection within the wait bound
//   - [ErrPoolClosed] - Borrowing from a closed pool
//   - [ErrNoPrimaryAvailable] - No arbiter named a primary in time
//   - [ErrCrossShard] - Multi-key command spanning shards
package pool
