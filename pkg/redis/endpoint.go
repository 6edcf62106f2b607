package redis

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Endpoint addresses one cache server. It is immutable once a pool is built.
type Endpoint struct {
	Host     string
	Port     int
	Password string
	TLS      bool
}

// Addr returns the "host:port" form used for dialing and routing.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String returns the address without the credential.
func (e Endpoint) String() string {
	return e.Addr()
}

// Validate reports whether the endpoint can be dialed.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidEndpoint, e.Port)
	}
	return nil
}

// ParseAddr builds an Endpoint from a "host:port" string.
func ParseAddr(addr, password string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return Endpoint{}, errors.Join(ErrInvalidEndpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, errors.Join(ErrInvalidEndpoint, err)
	}
	ep := Endpoint{Host: host, Port: port, Password: password}
	return ep, ep.Validate()
}

// ParseURL builds an Endpoint from a redis:// or rediss:// (TLS) URL.
// A database path segment is accepted but ignored: the logical database is
// selected per borrow, not per endpoint.
//
// Example:
//
//	ep, err := redis.ParseURL("redis://:secret@localhost:6379/0")
func ParseURL(url string) (Endpoint, error) {
	if url == "" {
		return Endpoint{}, ErrEmptyConnectionURL
	}

	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return Endpoint{}, ErrFailedToParseURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return Endpoint{}, errors.Join(ErrFailedToParseURL, err)
	}

	ep, err := ParseAddr(opts.Addr, opts.Password)
	if err != nil {
		return Endpoint{}, errors.Join(ErrFailedToParseURL, err)
	}
	ep.TLS = opts.TLSConfig != nil

	return ep, nil
}
