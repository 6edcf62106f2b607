package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// Arbiter observes a replicated deployment and names its primary.
type Arbiter interface {
	// Primary returns the endpoint the arbiter currently considers primary.
	Primary(ctx context.Context) (redis.Endpoint, error)

	// Watch blocks until ctx is done or the notification stream ends,
	// calling onSwitch for every primary change it observes.
	Watch(ctx context.Context, onSwitch func(redis.Endpoint)) error

	// Close releases the arbiter's resources.
	Close() error
}

// Arbitered keeps a Single pool against the current primary of a
// replicated deployment and swaps it on failover.
//
// Borrowers observe either the old or the new pool, never a torn state.
// Connections borrowed from the old pool fail their next command with
// redis.ErrConnectionBroken and are destroyed on return.
type Arbitered struct {
	arbiters []Arbiter
	cfg      Config
	opts     *options
	poolOpts []Option

	mu       sync.RWMutex
	current  *Single
	primary  redis.Endpoint
	retiring []*Single
	closed   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// getRetries bounds how often Get follows a swap that happened while it
// was borrowing.
const getRetries = 3

// NewArbitered discovers the primary through arbiters, builds a pool
// against it and starts one watcher per arbiter.
func NewArbitered(ctx context.Context, arbiters []Arbiter, cfg Config, opts ...Option) (*Arbitered, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(arbiters) == 0 {
		return nil, fmt.Errorf("%w: no arbiters", ErrConfigInvalid)
	}

	o := newOptions(opts...)
	p := &Arbitered{
		arbiters: arbiters,
		cfg:      cfg,
		opts:     o,
		poolOpts: opts,
	}

	primary, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	current, err := NewSingle(ctx, primary, cfg, opts...)
	if err != nil {
		return nil, err
	}
	p.current = current
	p.primary = primary

	wctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for _, a := range arbiters {
		p.wg.Add(1)
		go p.watch(wctx, a)
	}

	o.logger.InfoContext(ctx, "primary discovered", slog.String("primary", primary.String()))
	return p, nil
}

// discover asks every arbiter in turn until one names a primary.
func (p *Arbitered) discover(ctx context.Context) (redis.Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.discoveryTimeout)
	defer cancel()

	var errs []error
	for _, a := range p.arbiters {
		ep, err := a.Primary(ctx)
		if err == nil {
			if err = ep.Validate(); err == nil {
				return ep, nil
			}
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return redis.Endpoint{}, errors.Join(ErrNoPrimaryAvailable, errors.Join(errs...))
}

// watch keeps a subscription to one arbiter alive until the pool closes.
func (p *Arbitered) watch(ctx context.Context, a Arbiter) {
	defer p.wg.Done()

	for {
		err := a.Watch(ctx, func(ep redis.Endpoint) {
			p.switchTo(ctx, ep)
		})
		if ctx.Err() != nil {
			return
		}
		p.opts.logger.Warn("arbiter watch ended, resubscribing", slog.Any("error", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.watchRetry):
		}
	}
}

// switchTo swaps the active pool for one against ep. Several arbiters
// report the same change: only the first one causes a swap.
func (p *Arbitered) switchTo(ctx context.Context, ep redis.Endpoint) {
	if err := ep.Validate(); err != nil {
		p.opts.logger.Warn("ignoring invalid primary", slog.Any("error", err))
		return
	}

	p.mu.RLock()
	same := p.closed || p.primary == ep
	p.mu.RUnlock()
	if same {
		return
	}

	next, err := NewSingle(ctx, ep, p.cfg, p.poolOpts...)
	if err != nil {
		p.opts.logger.Error("building pool for new primary", slog.Any("error", err))
		return
	}

	p.mu.Lock()
	if p.closed || p.primary == ep {
		p.mu.Unlock()
		_ = next.Close(ctx)
		return
	}
	old, oldPrimary := p.current, p.primary
	p.current, p.primary = next, ep
	old.invalidate()
	p.retiring = append(p.retiring, old)
	p.mu.Unlock()

	p.opts.logger.Warn("primary switched",
		slog.String("from", oldPrimary.String()),
		slog.String("to", ep.String()),
	)

	p.wg.Add(1)
	go p.retire(old)
}

// retire closes a swapped-out pool once its borrowers are done or the
// shutdown timeout elapses.
func (p *Arbitered) retire(old *Single) {
	defer p.wg.Done()

	_ = old.Close(context.Background())

	p.mu.Lock()
	for i, s := range p.retiring {
		if s == old {
			p.retiring = append(p.retiring[:i], p.retiring[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// Primary returns the endpoint currently served.
func (p *Arbitered) Primary() redis.Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.primary
}

// Get borrows a connection to the current primary. Keys are ignored.
func (p *Arbitered) Get(ctx context.Context, _ ...string) (*redis.Conn, error) {
	var err error
	for range getRetries {
		p.mu.RLock()
		current, closed := p.current, p.closed
		p.mu.RUnlock()
		if closed {
			return nil, ErrPoolClosed
		}

		var conn *redis.Conn
		conn, err = current.Get(ctx)
		if !errors.Is(err, ErrPoolClosed) {
			return conn, err
		}
	}
	return nil, err
}

// Put returns conn to the pool that lent it.
func (p *Arbitered) Put(conn *redis.Conn) {
	if conn == nil {
		return
	}

	p.mu.RLock()
	owners := append([]*Single{p.current}, p.retiring...)
	p.mu.RUnlock()

	for _, s := range owners {
		if s.Owns(conn) {
			s.Put(conn)
			return
		}
	}
	p.opts.logger.Warn("ignoring return of a connection not on loan",
		slog.String("endpoint", conn.Endpoint().String()),
	)
}

// MultiDB is always true: the primary is a single server.
func (p *Arbitered) MultiDB() bool {
	return true
}

// Stats sums the counters of the active and retiring pools.
func (p *Arbitered) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.current.Stats()
	for _, r := range p.retiring {
		s = s.add(r.Stats())
	}
	return s
}

// Close stops the watchers, closes the arbiters and drains every pool.
func (p *Arbitered) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pools := append([]*Single{p.current}, p.retiring...)
	p.mu.Unlock()

	p.cancel()

	errs := make([]error, 0, len(p.arbiters)+len(pools))
	for _, a := range p.arbiters {
		errs = append(errs, a.Close())
	}
	for _, s := range pools {
		errs = append(errs, s.Close(ctx))
	}
	p.wg.Wait()

	return errors.Join(errs...)
}
