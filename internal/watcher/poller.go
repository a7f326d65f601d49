// Package watcher turns project tree changes into a set dirty flag.
//
// The Poller is the source of truth: it records a baseline and then rescans
// the tree every interval, setting the flag when a scan reports a change.
// An optional Notifier backed by fsnotify only shortens the wait before the
// next scan; it never sets the flag itself.
package watcher

import (
	"context"
	"time"

	"github.com/conneroisu/wasmreload/internal/dirty"
	"github.com/conneroisu/wasmreload/internal/logging"
	"github.com/conneroisu/wasmreload/internal/metrics"
)

// DefaultInterval is the pause between two scans.
const DefaultInterval = 200 * time.Millisecond

// Scanner is the part of a tree scanner the poller drives.
type Scanner interface {
	Baseline(ctx context.Context) (int, error)
	Scan(ctx context.Context) (bool, error)
}

// Poller periodically scans a tree and sets a dirty flag on change.
type Poller struct {
	scanner  Scanner
	flag     *dirty.Flag
	interval time.Duration
	logger   logging.Logger
	metrics  *metrics.Metrics
	wake     <-chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the pause between scans.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records every scan into m.
func WithMetrics(m *metrics.Metrics) PollerOption {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithWake makes the poller scan as soon as a value arrives on ch instead of
// waiting for the next tick.
func WithWake(ch <-chan struct{}) PollerOption {
	return func(p *Poller) {
		p.wake = ch
	}
}

// NewPoller creates a poller that sets flag when scanner reports a change.
func NewPoller(scanner Scanner, flag *dirty.Flag, opts ...PollerOption) *Poller {
	p := &Poller{
		scanner:  scanner,
		flag:     flag,
		interval: DefaultInterval,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("poller")

	return p
}

// Baseline records the current state of the tree. Call it once before Loop
// so a failure surfaces before serving.
func (p *Poller) Baseline(ctx context.Context) error {
	perf := logging.StartOperation(p.logger, "baseline")
	count, err := p.scanner.Baseline(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return err
	}
	perf.End(ctx, "files", count)

	return nil
}

// Loop scans until ctx is done. A scan error is logged and retried on the
// next tick.
func (p *Poller) Loop(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug(ctx, "Polling started", "interval", p.interval.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.wake:
		}

		p.scanOnce(ctx)
	}
}

func (p *Poller) scanOnce(ctx context.Context) {
	changed, err := p.scanner.Scan(ctx)
	if ctx.Err() != nil {
		return
	}
	p.metrics.ScanCompleted(changed, err)

	if err != nil {
		p.logger.Warn(ctx, err, "Scan failed, retrying on next tick")
		return
	}

	if changed && p.flag.Set() {
		p.logger.Info(ctx, "Change detected, rebuild pending")
	}
}
