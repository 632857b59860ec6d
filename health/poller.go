// Package health tracks whether the backend is reachable.
package health

import (
	"context"
	"sync"
	"time"

	"djrag/logger"
)

type Status int

const (
	Unknown Status = iota
	Healthy
	Unreachable
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Checker is satisfied by *api.Client.
type Checker interface {
	Health(ctx context.Context) error
}

type Options struct {
	Interval time.Duration // between scheduled probes
	Timeout  time.Duration // per probe
	Settle   time.Duration // Checking() stays true this long after a probe
}

func DefaultOptions() Options {
	return Options{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
		Settle:   500 * time.Millisecond,
	}
}

type Poller struct {
	checker Checker
	opts    Options

	mu          sync.Mutex
	status      Status
	checking    int
	lastErr     error
	lastChecked time.Time

	updates chan Status
}

func NewPoller(checker Checker, opts Options) *Poller {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}

	return &Poller{
		checker: checker,
		opts:    opts,
		updates: make(chan Status, 1),
	}
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Checking reports whether a probe is in flight or finished within the
// settle delay.
func (p *Poller) Checking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checking > 0
}

func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Poller) LastChecked() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastChecked
}

// SettleDelay is how long Checking stays true after a probe completes.
func (p *Poller) SettleDelay() time.Duration {
	return p.opts.Settle
}

// Updates delivers the latest status after each probe. Only the newest
// undelivered value is kept.
func (p *Poller) Updates() <-chan Status {
	return p.updates
}

// Check probes the backend once. A probe that does not answer within the
// timeout counts as unreachable even if the checker ignores its context.
func (p *Poller) Check(ctx context.Context) Status {
	p.mu.Lock()
	p.checking++
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- p.checker.Health(ctx)
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}

	status := Healthy
	if err != nil {
		status = Unreachable
	}

	p.mu.Lock()
	prev := p.status
	p.status = status
	p.lastErr = err
	p.lastChecked = time.Now()
	p.mu.Unlock()

	log := logger.With("health")
	if prev != status {
		if err != nil {
			log.Warn().Err(err).Str("status", status.String()).Msg("backend status changed")
		} else {
			log.Info().Str("status", status.String()).Msg("backend status changed")
		}
	}

	p.publish(status)
	p.release()

	return status
}

// Run probes immediately and then on every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.Check(ctx)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

func (p *Poller) release() {
	done := func() {
		p.mu.Lock()
		p.checking--
		p.mu.Unlock()
	}
	if p.opts.Settle == 0 {
		done()
		return
	}
	time.AfterFunc(p.opts.Settle, done)
}

func (p *Poller) publish(s Status) {
	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- s:
	default:
	}
}
