// Package eventlog holds the append-only, externally observable event
// record of a pool and fans committed events out to sinks.
package eventlog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"partybid/internal/domain"
	"partybid/internal/observability"
)

// Sink receives events after they are committed.
// Delivery is best effort; a failing sink never affects pool state.
type Sink interface {
	Publish(ctx context.Context, events []domain.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, events []domain.Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, events []domain.Event) error {
	return f(ctx, events)
}

type namedSink struct {
	name string
	sink Sink
}

// Log is the event log of one pool.
type Log struct {
	poolID  string
	logger  *zap.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	events []domain.Event

	sinksMu sync.RWMutex
	sinks   []namedSink
}

// New creates an empty log. logger and metrics may be nil.
func New(poolID string, logger *zap.Logger, metrics *observability.Metrics) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{poolID: poolID, logger: logger, metrics: metrics}
}

// AddSink registers a sink under name.
func (l *Log) AddSink(name string, s Sink) {
	l.sinksMu.Lock()
	defer l.sinksMu.Unlock()
	l.sinks = append(l.sinks, namedSink{name: name, sink: s})
}

// NextSeq returns the sequence number the next event must carry.
func (l *Log) NextSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events))
}

// Commit appends events and publishes them to every sink.
// Events must continue the log's sequence without gaps.
func (l *Log) Commit(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	l.mu.Lock()
	next := uint64(len(l.events))
	for i, e := range events {
		if e.PoolID != l.poolID {
			l.mu.Unlock()
			return fmt.Errorf("event %d belongs to pool %q, log is %q", i, e.PoolID, l.poolID)
		}
		if e.Seq != next+uint64(i) {
			l.mu.Unlock()
			return fmt.Errorf("event %d has seq %d, want %d", i, e.Seq, next+uint64(i))
		}
	}
	for _, e := range events {
		l.events = append(l.events, e.Clone())
	}
	l.mu.Unlock()

	if l.metrics != nil {
		for _, e := range events {
			l.metrics.EventsPublished.WithLabelValues(e.Kind.String()).Inc()
		}
	}

	l.publish(ctx, events)
	return nil
}

func (l *Log) publish(ctx context.Context, events []domain.Event) {
	l.sinksMu.RLock()
	sinks := make([]namedSink, len(l.sinks))
	copy(sinks, l.sinks)
	l.sinksMu.RUnlock()

	for _, s := range sinks {
		batch := make([]domain.Event, len(events))
		for i, e := range events {
			batch[i] = e.Clone()
		}
		if err := s.sink.Publish(ctx, batch); err != nil {
			l.logger.Error("event sink failed",
				zap.String("sink", s.name),
				zap.String("pool", l.poolID),
				zap.Uint64("first_seq", events[0].Seq),
				zap.Int("count", len(events)),
				zap.Error(err))
			if l.metrics != nil {
				l.metrics.SinkErrors.WithLabelValues(s.name).Inc()
			}
		}
	}
}

// Events returns a copy of the whole log.
func (l *Log) Events() []domain.Event {
	return l.Since(0)
}

// Since returns a copy of events with Seq >= seq.
func (l *Log) Since(seq uint64) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq >= uint64(len(l.events)) {
		return nil
	}
	out := make([]domain.Event, 0, uint64(len(l.events))-seq)
	for _, e := range l.events[seq:] {
		out = append(out, e.Clone())
	}
	return out
}

// Len returns the number of committed events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
