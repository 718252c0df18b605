// Package storage persists decoded reports under collision free names.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ubuntu/mail-reports-collector/internal/report"
)

// Sink persists decoded reports.
type Sink interface {
	// Store writes p and returns where it was written.
	Store(ctx context.Context, p report.Payload) (string, error)
}

// Counter is a process wide, strictly increasing sequence. The zero value starts at 0.
type Counter struct {
	n atomic.Uint64
}

// Next returns the current value and increments the counter.
func (c *Counter) Next() uint64 {
	return c.n.Add(1) - 1
}

// Namer generates report names of the form <epoch-millis>-<counter>-<kind suffix>.
//
// Names are unique for the lifetime of the Namer, even for reports received within the same millisecond.
type Namer struct {
	counter *Counter
	now     func() time.Time
}

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Options represents an optional function to override default values.
type Options func(*options)

// WithClock overrides the clock used to timestamp report names.
func WithClock(now func() time.Time) Options {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger overrides the logger of a sink.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(args ...Options) options {
	opts := options{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}
	return opts
}

// NewNamer creates a Namer with its own counter starting at 0.
func NewNamer(args ...Options) *Namer {
	opts := newOptions(args...)
	return &Namer{
		counter: &Counter{},
		now:     opts.now,
	}
}

// Name returns a new unique name for a report of kind k.
func (n *Namer) Name(k report.Kind) string {
	return fmt.Sprintf("%d-%d-%s", n.now().UnixMilli(), n.counter.Next(), k.FileSuffix())
}

// DrySink discards reports. It is used when no storage location is configured.
type DrySink struct {
	log *slog.Logger
}

// NewDrySink creates a DrySink.
func NewDrySink(args ...Options) DrySink {
	opts := newOptions(args...)
	return DrySink{log: opts.logger}
}

// Store discards p and returns an empty location.
func (s DrySink) Store(ctx context.Context, p report.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.log.Info("No storage configured, report discarded", "kind", p.Kind())
	return "", nil
}
