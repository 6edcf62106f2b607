package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// Single is a bounded pool of connections to one endpoint.
//
// A semaphore of MaxTotal slots is held by every borrower and by the
// background filler while it dials, so borrowed plus idle connections never
// exceed MaxTotal.
type Single struct {
	endpoint redis.Endpoint
	cfg      Config
	opts     *options
	slots    *semaphore.Weighted

	mu        sync.Mutex
	idle      []*redis.Conn
	out       map[*redis.Conn]struct{}
	opening   int
	closed    bool
	done      chan struct{}
	shutdown  bool
	drained   chan struct{}
	isDrained bool

	refill chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup

	opened    atomic.Int64
	destroyed atomic.Int64
	waits     atomic.Int64
	timeouts  atomic.Int64
}

// NewSingle builds a pool against ep and pre-warms MinIdle connections.
// Pre-warm failures are logged, not returned: the pool opens connections on
// demand once the server is reachable.
func NewSingle(ctx context.Context, ep redis.Endpoint, cfg Config, opts ...Option) (*Single, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ep.Validate(); err != nil {
		return nil, errors.Join(ErrConfigInvalid, err)
	}

	o := newOptions(opts...)
	p := &Single{
		endpoint: ep,
		cfg:      cfg,
		opts:     o,
		slots:    semaphore.NewWeighted(int64(cfg.MaxTotal)),
		out:      make(map[*redis.Conn]struct{}, cfg.MaxTotal),
		drained:  make(chan struct{}),
		done:     make(chan struct{}),
		refill:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	p.opts.logger = o.logger.With(slog.String("endpoint", ep.String()))

	if err := p.fill(ctx); err != nil {
		p.opts.logger.WarnContext(ctx, "pool pre-warm incomplete", slog.Any("error", err))
	}

	p.wg.Add(1)
	go p.filler()

	return p, nil
}

// Endpoint returns the server this pool connects to.
func (p *Single) Endpoint() redis.Endpoint {
	return p.endpoint
}

// Get borrows a connection. Keys are ignored.
func (p *Single) Get(ctx context.Context, _ ...string) (*redis.Conn, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}

	conn, err := p.take(ctx)
	if err != nil {
		p.slots.Release(1)
		return nil, err
	}
	return conn, nil
}

// acquire reserves one slot, waiting up to MaxWait when blocking is enabled.
// A borrower whose ctx is cancelled while waiting gives up its place; one
// still waiting when the pool closes fails with ErrPoolClosed.
func (p *Single) acquire(ctx context.Context) error {
	if p.slots.TryAcquire(1) {
		return nil
	}
	if !p.cfg.BlockWhenExhausted {
		p.timeouts.Add(1)
		return ErrPoolExhausted
	}

	p.waits.Add(1)
	wctx, cancel := context.WithTimeout(ctx, p.cfg.MaxWait)
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-wctx.Done():
		}
	}()

	if err := p.slots.Acquire(wctx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p.isClosed() {
			return ErrPoolClosed
		}
		p.timeouts.Add(1)
		return fmt.Errorf("%w: no connection within %s", ErrPoolExhausted, p.cfg.MaxWait)
	}
	return nil
}

// take hands out an idle connection or opens a new one. The caller holds a slot.
func (p *Single) take(ctx context.Context) (*redis.Conn, error) {
	var stale []*redis.Conn
	defer func() {
		for _, conn := range stale {
			p.destroy(conn)
		}
	}()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	for n := len(p.idle); n > 0; n = len(p.idle) {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		if conn.Broken() {
			stale = append(stale, conn)
			continue
		}
		p.out[conn] = struct{}{}
		p.mu.Unlock()
		return conn, nil
	}
	p.opening++
	p.mu.Unlock()

	conn, err := p.opts.dial(ctx, p.endpoint)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.opening--
	if err != nil {
		return nil, err
	}
	p.opened.Add(1)
	if p.closed {
		stale = append(stale, conn)
		return nil, ErrPoolClosed
	}
	p.out[conn] = struct{}{}
	return conn, nil
}

// Put returns a borrowed connection. Returning a connection twice, or one the
// pool does not own, is logged and ignored.
func (p *Single) Put(conn *redis.Conn) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.out[conn]; !ok {
		closed := p.closed
		p.mu.Unlock()
		if !closed {
			p.opts.logger.Warn("ignoring return of a connection not on loan")
		}
		return
	}
	delete(p.out, conn)

	broken := conn.Broken()
	keep := !p.closed && !broken && len(p.idle) < p.cfg.MaxIdle
	if keep {
		p.idle = append(p.idle, conn)
	}
	topUp := broken && !p.closed
	p.signalDrainedLocked()
	p.mu.Unlock()

	p.slots.Release(1)

	if !keep {
		p.destroy(conn)
	}
	if topUp {
		p.requestRefill()
	}
}

// Owns reports whether conn is currently on loan from this pool.
func (p *Single) Owns(conn *redis.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.out[conn]
	return ok
}

// MultiDB is always true for a single endpoint.
func (p *Single) MultiDB() bool {
	return true
}

// Stats returns a snapshot of the pool counters.
func (p *Single) Stats() Stats {
	p.mu.Lock()
	out, idle := len(p.out), len(p.idle)
	p.mu.Unlock()

	return Stats{
		Out:       out,
		Idle:      idle,
		Opened:    p.opened.Load(),
		Destroyed: p.destroyed.Load(),
		Waits:     p.waits.Load(),
		Timeouts:  p.timeouts.Load(),
	}
}

// Close drains idle connections, waits for borrowed ones until ctx is done
// or the shutdown timeout elapses, then force-closes the stragglers.
func (p *Single) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	p.closeLocked()
	idle := p.idle
	p.idle = nil
	p.signalDrainedLocked()
	p.mu.Unlock()

	close(p.stop)
	p.wg.Wait()

	for _, conn := range idle {
		p.destroy(conn)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.shutdownTimeout)
		defer cancel()
	}

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
	}

	p.mu.Lock()
	stragglers := make([]*redis.Conn, 0, len(p.out))
	for conn := range p.out {
		stragglers = append(stragglers, conn)
	}
	clear(p.out)
	p.signalDrainedLocked()
	p.mu.Unlock()

	p.opts.logger.Warn("force-closing borrowed connections", slog.Int("count", len(stragglers)))
	for _, conn := range stragglers {
		p.destroy(conn)
	}
	return nil
}

// invalidate fences every connection of the pool, idle or on loan, and
// refuses further borrows. Borrowed connections fail their next command
// with redis.ErrConnectionBroken and are destroyed on return. Close must
// still be called to release the pool.
func (p *Single) invalidate() {
	p.mu.Lock()
	p.closeLocked()
	for conn := range p.out {
		conn.Invalidate()
	}
	for _, conn := range p.idle {
		conn.Invalidate()
	}
	p.mu.Unlock()
}

// closeLocked refuses new borrows and wakes borrowers waiting for a slot.
func (p *Single) closeLocked() {
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

func (p *Single) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Single) signalDrainedLocked() {
	if p.closed && len(p.out) == 0 && !p.isDrained {
		p.isDrained = true
		close(p.drained)
	}
}

func (p *Single) destroy(conn *redis.Conn) {
	p.destroyed.Add(1)
	if err := conn.Close(); err != nil {
		p.opts.logger.Debug("closing connection", slog.Any("error", err))
	}
}

func (p *Single) requestRefill() {
	select {
	case p.refill <- struct{}{}:
	default:
	}
}

// filler tops the pool back up to MinIdle after connections are destroyed.
func (p *Single) filler() {
	defer p.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stop
		cancel()
	}()

	for {
		select {
		case <-p.stop:
			return
		case <-p.refill:
			if err := p.fill(ctx); err != nil && ctx.Err() == nil {
				p.opts.logger.Warn("pool top-up failed", slog.Any("error", err))
			}
		}
	}
}

// fill opens connections until MinIdle are idle or MaxTotal would be exceeded.
func (p *Single) fill(ctx context.Context) error {
	for {
		p.mu.Lock()
		need := !p.closed &&
			len(p.idle)+p.opening < p.cfg.MinIdle &&
			len(p.out)+len(p.idle)+p.opening < p.cfg.MaxTotal
		if !need {
			p.mu.Unlock()
			return nil
		}
		if !p.slots.TryAcquire(1) {
			p.mu.Unlock()
			return nil
		}
		p.opening++
		p.mu.Unlock()

		conn, err := p.opts.dial(ctx, p.endpoint)

		p.mu.Lock()
		p.opening--
		parked := false
		if err == nil {
			p.opened.Add(1)
			if !p.closed {
				p.idle = append(p.idle, conn)
				parked = true
			}
		}
		p.mu.Unlock()
		p.slots.Release(1)

		if err != nil {
			return err
		}
		if !parked {
			p.destroy(conn)
			return nil
		}
	}
}
