// Package health provides HTTP handlers for liveness and readiness checks.
//
// [LivenessHandler] always answers OK. [ReadinessHandler] runs named
// [Checks] in parallel under one timeout and answers 503 when any of them
// fails. Checks have the func(context.Context) error shape returned by
// pool.Healthcheck, so a pool plugs in directly:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(
//	    health.Checks{"redis": pool.Healthcheck(p)},
//	    health.WithTimeout(2*time.Second),
//	    health.WithDetail("pool", func() any { return p.Stats() }),
//	    health.WithLogger(log),
//	))
//
// Responses are plain text ("OK", "Service Unavailable") unless the client
// asks for JSON with ?format=json or an Accept: application/json header:
//
//	{
//	  "status": "unhealthy",
//	  "checks": {"redis": {"status": "unhealthy", "error": "..."}},
//	  "details": {"pool": {"out": 0, "idle": 8}}
//	}
//
// [Run] executes the same checks outside HTTP and returns [ErrCheckFailed];
// a check that outlives the timeout fails with [ErrCheckTimeout].
package health
