// Package kv exposes the Redis command catalog over any connection pool,
// one method per command, each taking the logical database as its first
// argument after the context.
//
// # Usage
//
//	p, err := pool.Open(ctx, spec, pool.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer p.Close(ctx)
//
//	svc := kv.New(p,
//	    kv.WithLogger(log),
//	    kv.WithMetrics(kv.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//
//	svc.SetEx(ctx, 3, "greeting", "hello", 600)
//	v, ok := svc.Get(ctx, 3, "greeting")
//
// # Neutral results
//
// Catalog methods do not return errors. When a command cannot run (pool
// exhausted, connection broken, server error, bad arguments) the method
// returns the zero value of its result type and reports the failure to the
// logger, the [ErrorHandler] and the [Metrics]. Callers that need the error
// run their command through [Execute] instead:
//
//	n, err := kv.Execute(ctx, svc, 0, []string{"counter"},
//	    func(ctx context.Context, c *redis.Conn) (int64, error) {
//	        return c.Incr(ctx, "counter").Result()
//	    })
//
// A miss is not a failure: single-value reads return ok == false.
//
// # Sharded pools
//
// Logical databases other than 0 are rejected. Multi-key commands need all
// keys on one shard unless the pool uses pool.MultiKeyMerge, in which case
// MGet and Del are split per shard and merged. Keys and FlushDB always run
// on every shard.
package kv
