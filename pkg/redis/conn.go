package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Logical database bounds accepted by SelectDB.
const (
	MinDB = 0
	MaxDB = 15
)

// unknownDB marks a session whose database can no longer be inferred,
// e.g. after a SELECT inside a pipeline.
const unknownDB = -1

// Conn is a single live session to one Endpoint.
//
// The embedded go-redis connection exposes the full command surface.
// A Conn is owned by a pool and must be used by one borrower at a time.
type Conn struct {
	*redis.Conn

	client    *redis.Client
	endpoint  Endpoint
	createdAt time.Time

	db          atomic.Int64
	broken      atomic.Bool
	invalidated atomic.Bool
}

func newConn(ep Endpoint, client *redis.Client) *Conn {
	c := &Conn{
		Conn:      client.Conn(),
		client:    client,
		endpoint:  ep,
		createdAt: time.Now(),
	}
	c.Conn.AddHook(connHook{conn: c})
	return c
}

// Endpoint returns the server this session is connected to.
func (c *Conn) Endpoint() Endpoint {
	return c.endpoint
}

// CreatedAt returns when the session was opened.
func (c *Conn) CreatedAt() time.Time {
	return c.createdAt
}

// DB returns the logical database the session is positioned on,
// or -1 if it is unknown.
func (c *Conn) DB() int {
	return int(c.db.Load())
}

// SelectDB positions the session on logical database i for all subsequent
// commands until the next SelectDB.
func (c *Conn) SelectDB(ctx context.Context, i int) error {
	if i < MinDB || i > MaxDB {
		return fmt.Errorf("%w: database %d not in [%d,%d]", ErrArgumentOutOfRange, i, MinDB, MaxDB)
	}
	if c.invalidated.Load() {
		return ErrConnectionBroken
	}
	if c.DB() == i {
		return nil
	}
	return c.Classify(c.Conn.Select(ctx, i).Err())
}

// Broken reports whether the session must be destroyed instead of reused.
func (c *Conn) Broken() bool {
	return c.broken.Load() || c.invalidated.Load()
}

// MarkBroken flags the session so the pool destroys it on return.
func (c *Conn) MarkBroken() {
	c.broken.Store(true)
}

// Invalidate makes every later command fail with ErrConnectionBroken
// without touching the socket. Pools use it when the server behind the
// session is no longer the one they should talk to.
func (c *Conn) Invalidate() {
	c.invalidated.Store(true)
}

// Close destroys the session and its socket.
func (c *Conn) Close() error {
	c.broken.Store(true)
	return errors.Join(c.Conn.Close(), c.client.Close())
}

// Classify maps a command error onto the package taxonomy without knowing
// which session produced it: anything that is not a server reply counts as a
// transport failure. A miss (redis.Nil) is returned unchanged.
func Classify(err error) error {
	return classify(err, true)
}

// Classify maps an error returned while using c. Only failures the session
// itself observed become ErrConnectionBroken; errors that never reached the
// wire, such as a caller's own decoding error, are returned unchanged.
func (c *Conn) Classify(err error) error {
	return classify(err, c.Broken())
}

func classify(err error, transport bool) error {
	switch {
	case err == nil, errors.Is(err, redis.Nil):
		return err
	case errors.Is(err, ErrConnectionBroken), errors.Is(err, ErrArgumentOutOfRange), errors.Is(err, ErrCommandFailed):
		return err
	case isServerError(err):
		return errors.Join(ErrCommandFailed, err)
	case transport:
		return errors.Join(ErrConnectionBroken, err)
	default:
		return err
	}
}

func isServerError(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr)
}

// connHook guards every command sent on a Conn.
type connHook struct {
	conn *Conn
}

func (h connHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h connHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if h.conn.invalidated.Load() {
			return ErrConnectionBroken
		}

		err := next(ctx, cmd)
		h.observe(err)

		if err == nil && cmd.Name() == "select" {
			h.conn.db.Store(selectedDB(cmd))
		}
		return err
	}
}

func (h connHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.conn.invalidated.Load() {
			return ErrConnectionBroken
		}

		err := next(ctx, cmds)
		h.observe(err)

		for _, cmd := range cmds {
			if cmd.Name() == "select" {
				h.conn.db.Store(unknownDB)
				break
			}
		}
		return err
	}
}

// observe flags the session on anything other than a server reply:
// a half-read reply cannot be recovered.
func (h connHook) observe(err error) {
	if err == nil || errors.Is(err, redis.Nil) || isServerError(err) {
		return
	}
	h.conn.broken.Store(true)
}

func selectedDB(cmd redis.Cmder) int64 {
	args := cmd.Args()
	if len(args) < 2 {
		return unknownDB
	}
	switch v := args[1].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return int64(n)
		}
	}
	return unknownDB
}
