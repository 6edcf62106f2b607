package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// switchMasterChannel is where sentinels announce a completed failover.
const switchMasterChannel = "+switch-master"

// ErrWatchEnded is returned by Sentinel.Watch when the notification stream
// closes while the caller is still interested.
var ErrWatchEnded = errors.New("pool: arbiter notification stream ended")

// Sentinel is an Arbiter backed by one Redis Sentinel process.
type Sentinel struct {
	endpoint       redis.Endpoint
	masterName     string
	masterPassword string
	tls            bool
	client         *goredis.SentinelClient
}

// NewSentinel returns an arbiter talking to the sentinel at ep about the
// primary set masterName. The discovered primary is dialed with
// masterPassword.
func NewSentinel(ep redis.Endpoint, masterName, masterPassword string, opts ...redis.Option) *Sentinel {
	ro := redis.ClientOptions(ep, opts...)
	// one connection for queries, one for the subscription
	ro.PoolSize = 2
	ro.MaxIdleConns = 2

	return &Sentinel{
		endpoint:       ep,
		masterName:     masterName,
		masterPassword: masterPassword,
		tls:            ep.TLS,
		client:         goredis.NewSentinelClient(ro),
	}
}

// Primary asks the sentinel for the current primary address.
func (s *Sentinel) Primary(ctx context.Context) (redis.Endpoint, error) {
	addr, err := s.client.GetMasterAddrByName(ctx, s.masterName).Result()
	if err != nil {
		return redis.Endpoint{}, fmt.Errorf("sentinel %s: %w", s.endpoint, err)
	}
	if len(addr) != 2 {
		return redis.Endpoint{}, fmt.Errorf("sentinel %s: unexpected reply %q", s.endpoint, addr)
	}
	return s.primaryEndpoint(addr[0], addr[1])
}

// Watch subscribes to failover announcements and calls onSwitch for the
// ones concerning the watched primary set.
func (s *Sentinel) Watch(ctx context.Context, onSwitch func(redis.Endpoint)) error {
	sub := s.client.Subscribe(ctx, switchMasterChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("sentinel %s: subscribe: %w", s.endpoint, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrWatchEnded
			}
			name, host, port, err := parseSwitchMaster(msg.Payload)
			if err != nil || name != s.masterName {
				continue
			}
			ep, err := s.primaryEndpoint(host, port)
			if err != nil {
				continue
			}
			onSwitch(ep)
		}
	}
}

// Close releases the sentinel connections.
func (s *Sentinel) Close() error {
	return s.client.Close()
}

func (s *Sentinel) primaryEndpoint(host, port string) (redis.Endpoint, error) {
	ep, err := redis.ParseAddr(net.JoinHostPort(host, port), s.masterPassword)
	if err != nil {
		return redis.Endpoint{}, err
	}
	ep.TLS = s.tls
	return ep, nil
}

// parseSwitchMaster splits a "+switch-master" payload of the form
// "<name> <old-ip> <old-port> <new-ip> <new-port>".
func parseSwitchMaster(payload string) (name, host, port string, err error) {
	parts := strings.Fields(payload)
	if len(parts) != 5 {
		return "", "", "", fmt.Errorf("malformed switch-master payload %q", payload)
	}
	return parts[0], parts[3], parts[4], nil
}
