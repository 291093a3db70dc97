// Package poller runs named periodic loops on an injectable clock.
//
// Each loop has at most one tick in flight. A tick that comes due while the
// previous one is still running is skipped, never queued. The in-flight
// guard belongs to the loop name, so a loop restarted under the same name
// still waits out a straggling tick from its previous run.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// TickFunc is one unit of loop work. ctx is canceled when the loop stops.
type TickFunc func(ctx context.Context)

type Option func(*Poller)

// WithSkipHook is called with the loop name whenever a tick is skipped.
func WithSkipHook(fn func(name string)) Option {
	return func(p *Poller) { p.onSkip = fn }
}

type loop struct {
	ticker *clock.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

type Poller struct {
	clk    clock.Clock
	onSkip func(string)

	mu     sync.Mutex
	loops  map[string]*loop
	busy   map[string]*atomic.Bool
	ticks  sync.WaitGroup
	closed bool
}

func New(clk clock.Clock, opts ...Option) *Poller {
	if clk == nil {
		clk = clock.New()
	}
	p := &Poller{
		clk:   clk,
		loops: map[string]*loop{},
		busy:  map[string]*atomic.Bool{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins the named loop with the given period, replacing any loop
// already running under that name. The first tick fires after one period.
func (p *Poller) Start(name string, period time.Duration, fn TickFunc) {
	p.Stop(name)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	busy := p.busy[name]
	if busy == nil {
		busy = &atomic.Bool{}
		p.busy[name] = busy
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{
		ticker: p.clk.Ticker(period),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.loops[name] = l
	go p.run(ctx, name, l, busy, fn)
}

func (p *Poller) run(ctx context.Context, name string, l *loop, busy *atomic.Bool, fn TickFunc) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !busy.CompareAndSwap(false, true) {
				if p.onSkip != nil {
					p.onSkip(name)
				}
				continue
			}
			p.ticks.Add(1)
			go func() {
				defer p.ticks.Done()
				defer busy.Store(false)
				fn(ctx)
			}()
		}
	}
}

// Stop cancels the named loop and waits for its goroutine to exit. After
// Stop returns the loop fires no new ticks. A tick already running sees its
// context canceled but is not waited for, so Stop is safe to call from
// inside a tick.
func (p *Poller) Stop(name string) {
	p.mu.Lock()
	l := p.loops[name]
	delete(p.loops, name)
	p.mu.Unlock()
	if l == nil {
		return
	}
	l.cancel()
	l.ticker.Stop()
	<-l.done
}

// Running reports whether a loop is registered under name.
func (p *Poller) Running(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.loops[name]
	return ok
}

// Busy reports whether a tick of the named loop is in flight.
func (p *Poller) Busy(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.busy[name]
	return b != nil && b.Load()
}

// Close stops every loop and waits for in-flight ticks to return. It must
// not be called from inside a tick.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	names := make([]string, 0, len(p.loops))
	for n := range p.loops {
		names = append(names, n)
	}
	p.mu.Unlock()
	for _, n := range names {
		p.Stop(n)
	}
	p.ticks.Wait()
}
