package status

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fairpay/backend/services/session-service/internal/clock"
	"fairpay/backend/services/session-service/internal/models"
)

// Source produces the current snapshot.
type Source func() models.SessionStatus

// PollerConfig tunes refresh cadence.
type PollerConfig struct {
	Interval time.Duration
	// RefreshPerSecond caps on-demand refreshes; 0 means unlimited.
	RefreshPerSecond float64
	RefreshBurst     int
}

// Poller recomputes the snapshot on every tick and pushes it to subscribers.
type Poller struct {
	mu      sync.Mutex
	last    models.SessionStatus
	hasLast bool
	subs    map[int]func(models.SessionStatus)
	nextSub int
	timer   clock.Timer

	source   Source
	clock    clock.Clock
	interval time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewPoller builds a stopped poller.
func NewPoller(source Source, clk clock.Clock, cfg PollerConfig, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.RefreshBurst <= 0 {
		cfg.RefreshBurst = 1
	}
	limit := rate.Inf
	if cfg.RefreshPerSecond > 0 {
		limit = rate.Limit(cfg.RefreshPerSecond)
	}
	return &Poller{
		subs:     make(map[int]func(models.SessionStatus)),
		source:   source,
		clock:    clk,
		interval: cfg.Interval,
		limiter:  rate.NewLimiter(limit, cfg.RefreshBurst),
		logger:   logger,
	}
}

// Start begins periodic polling. Starting a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		return
	}
	p.timer = p.clock.Every(p.interval, p.poll)
	p.logger.Debug("status poller started", zap.Duration("interval", p.interval))
}

// Stop cancels polling.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Subscribe registers fn for every published snapshot. fn runs on the polling goroutine and must
// not block.
func (p *Poller) Subscribe(fn func(models.SessionStatus)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
		})
	}
}

// Refresh recomputes and publishes now unless throttled, in which case the cached snapshot is
// returned.
func (p *Poller) Refresh() models.SessionStatus {
	p.mu.Lock()
	if !p.limiter.Allow() && p.hasLast {
		last := p.last
		p.mu.Unlock()
		return last
	}
	p.mu.Unlock()
	return p.publish()
}

// Latest returns the cached snapshot, computing one if nothing was published yet.
func (p *Poller) Latest() models.SessionStatus {
	p.mu.Lock()
	if p.hasLast {
		last := p.last
		p.mu.Unlock()
		return last
	}
	p.mu.Unlock()
	return p.publish()
}

// Publish recomputes and pushes a snapshot immediately, bypassing the refresh limit. Used after
// mutations so subscribers see them before the next tick.
func (p *Poller) Publish() models.SessionStatus {
	return p.publish()
}

func (p *Poller) poll() {
	p.mu.Lock()
	running := p.timer != nil
	p.mu.Unlock()
	if running {
		p.publish()
	}
}

func (p *Poller) publish() models.SessionStatus {
	st := p.source()

	p.mu.Lock()
	p.last = st
	p.hasLast = true
	subs := make([]func(models.SessionStatus), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
	return st
}
