package console

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultBaseline    = 3 * time.Second
	DefaultBurst       = 300 * time.Millisecond
	DefaultBurstWindow = 3 * time.Second
)

type PollerOptions struct {
	Baseline    time.Duration
	Burst       time.Duration
	BurstWindow time.Duration
	Now         func() time.Time
}

// Poller runs fetch on a timer that is re-armed only after the previous
// fetch returns, so polls never overlap and slow responses push the next
// poll back.
type Poller struct {
	fetch       func(ctx context.Context) error
	baseline    time.Duration
	burst       time.Duration
	burstWindow time.Duration
	now         func() time.Time

	mu         sync.Mutex
	burstUntil time.Time
	kick       chan struct{}
}

func NewPoller(fetch func(ctx context.Context) error, options PollerOptions) *Poller {
	p := &Poller{
		fetch:       fetch,
		baseline:    options.Baseline,
		burst:       options.Burst,
		burstWindow: options.BurstWindow,
		now:         options.Now,
		kick:        make(chan struct{}, 1),
	}
	if p.baseline <= 0 {
		p.baseline = DefaultBaseline
	}
	if p.burst <= 0 {
		p.burst = DefaultBurst
	}
	if p.burstWindow <= 0 {
		p.burstWindow = DefaultBurstWindow
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// TriggerBurst switches to the burst interval for the burst window.
func (p *Poller) TriggerBurst() {
	p.mu.Lock()
	p.burstUntil = p.now().Add(p.burstWindow)
	p.mu.Unlock()
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Poller) NextInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.now().Before(p.burstUntil) {
		return p.burst
	}
	return p.baseline
}

// Run polls immediately and then on schedule until ctx is cancelled. Fetch
// errors are left to the fetch func to report.
func (p *Poller) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.kick:
			timer.Reset(p.NextInterval())
		case <-timer.C:
			_ = p.fetch(ctx)
			timer.Reset(p.NextInterval())
		}
	}
}
