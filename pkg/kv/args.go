package kv

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

var errNoKeys = fmt.Errorf("%w: at least one key is required", redis.ErrArgumentOutOfRange)

// status turns a status reply into a success flag.
func status(err error) (bool, error) {
	return err == nil, err
}

func seconds2duration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// pairKeys validates a k1, v1, k2, v2... list and returns its keys.
func pairKeys(pairs []string) ([]string, error) {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%w: expected key/value pairs, got %d arguments", redis.ErrArgumentOutOfRange, len(pairs))
	}
	keys := make([]string, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		keys = append(keys, pairs[i])
	}
	return keys, nil
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// stringPtrs maps an MGET/HMGET reply onto nil for missing entries.
func stringPtrs(vals []any) []*string {
	out := make([]*string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = &s
		}
	}
	return out
}
