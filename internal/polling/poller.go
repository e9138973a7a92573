package polling

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc refetches one collection and reports whether it still has
// non-terminal work.
type FetchFunc func(ctx context.Context) (active bool, err error)

// Poller refetches one collection while its predicate holds, then parks
// until kicked.
type Poller struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	logger   *slog.Logger
	kick     chan struct{}

	mu   sync.RWMutex
	last Decision
}

// NewPoller creates a poller. A nil logger uses slog.Default().
func NewPoller(name string, interval time.Duration, fetch FetchFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   logger.With("poller", name),
		kick:     make(chan struct{}, 1),
	}
}

// Name returns the collection name.
func (p *Poller) Name() string {
	return p.name
}

// Kick requests an immediate refetch. It never blocks; kicks that arrive
// while one is already queued are merged.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Last returns the most recent scheduling decision.
func (p *Poller) Last() Decision {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run fetches immediately and then follows the predicate until ctx is done.
// A failed fetch keeps the previous decision, so a collection that was being
// polled keeps being polled.
func (p *Poller) Run(ctx context.Context) error {
	active := true
	for {
		got, err := p.fetch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			p.logger.Warn("refetch failed", "error", err)
		} else {
			active = got
		}

		d := Next(active, p.interval)
		p.mu.Lock()
		p.last = d
		p.mu.Unlock()

		if d.Poll {
			timer := time.NewTimer(d.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			case <-p.kick:
				timer.Stop()
			}
			continue
		}

		p.logger.Debug("polling stopped")
		select {
		case <-ctx.Done():
			return nil
		case <-p.kick:
		}
	}
}
