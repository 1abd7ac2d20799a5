package kafka

import (
	// Go Internal Packages
	"context"
	"sync/atomic"
	"time"

	// Local Packages
	models "station-stream/models"

	// External Packages
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// MessageHandler receives every decoded record in poll order. A returned
// error is logged by the loop; the record is not redelivered.
type MessageHandler interface {
	HandleRecord(ctx context.Context, record models.Record) error
}

type HandlerFunc func(ctx context.Context, record models.Record) error

func (f HandlerFunc) HandleRecord(ctx context.Context, record models.Record) error {
	return f(ctx, record)
}

// Poller is the single-poll primitive the loop drives.
type Poller interface {
	PollOnce(ctx context.Context, timeout time.Duration) PollResult
}

type LoopState int32

const (
	Idle LoopState = iota
	Bursting
	Sleeping
	Closed
)

func (s LoopState) String() string {
	switch s {
	case Bursting:
		return "bursting"
	case Sleeping:
		return "sleeping"
	case Closed:
		return "closed"
	}
	return "idle"
}

type LoopStats struct {
	Bursts        int64
	Records       int64
	HandlerErrors int64
	PollErrors    int64
	// Sleeps counts completed sleep intervals.
	Sleeps int64
}

// PollLoop drains everything immediately available, then sleeps for a fixed
// interval before draining again, until its context is cancelled.
//
// A burst does not yield between productive polls. A topic that never runs
// dry keeps the goroutine busy for as long as records keep coming; the loop
// still notices cancellation between two polls.
type PollLoop struct {
	Name          string
	Source        Poller
	Handler       MessageHandler
	PollTimeout   time.Duration
	SleepInterval time.Duration
	Logger        *zap.Logger

	clock clockwork.Clock
	state atomic.Int32

	bursts        atomic.Int64
	records       atomic.Int64
	handlerErrors atomic.Int64
	pollErrors    atomic.Int64
	sleeps        atomic.Int64
}

type LoopOption func(*PollLoop)

// WithClock swaps the clock used for the sleep phase.
func WithClock(c clockwork.Clock) LoopOption {
	return func(l *PollLoop) { l.clock = c }
}

func NewPollLoop(name string, source Poller, handler MessageHandler, conf *models.ConsumerConfig, logger *zap.Logger, opts ...LoopOption) *PollLoop {
	l := &PollLoop{
		Name:          name,
		Source:        source,
		Handler:       handler,
		PollTimeout:   conf.PollTimeout,
		SleepInterval: conf.SleepInterval,
		Logger:        logger.With(zap.String("pattern", name)),
		clock:         clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until ctx is cancelled and then returns nil. A loop runs once:
// calling Run while it is running or after it stopped returns ErrLoopClosed.
func (l *PollLoop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(Idle), int32(Bursting)) {
		return ErrLoopClosed
	}
	defer l.setState(Closed)

	l.Logger.Info("poll loop started",
		zap.Duration("poll_timeout", l.PollTimeout),
		zap.Duration("sleep", l.SleepInterval))

	for {
		// Check if the context is canceled before a burst
		if ctx.Err() != nil {
			l.stopped()
			return nil
		}

		l.setState(Bursting)
		n := l.burst(ctx)
		if n > 0 {
			l.Logger.Debug("burst drained", zap.Int("records", n))
		}

		l.setState(Sleeping)
		timer := l.clock.NewTimer(l.SleepInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.stopped()
			return nil
		case <-timer.Chan():
			l.sleeps.Add(1)
		}
	}
}

// burst polls until the first poll that does not yield a record and returns
// how many records were handed to the handler.
func (l *PollLoop) burst(ctx context.Context) int {
	l.bursts.Add(1)
	loopMetrics.Bursts.WithLabelValues(l.Name).Inc()

	handled := 0
	for ctx.Err() == nil {
		res := l.Source.PollOnce(ctx, l.PollTimeout)
		switch res.Kind {
		case Message:
		case PollError:
			l.pollErrors.Add(1)
			return handled
		default:
			return handled
		}

		handled++
		l.records.Add(1)
		loopMetrics.Records.WithLabelValues(l.Name).Inc()
		if err := l.Handler.HandleRecord(ctx, res.Record); err != nil {
			l.handlerErrors.Add(1)
			loopMetrics.HandlerErrors.WithLabelValues(l.Name).Inc()
			l.Logger.Error("message handler failed",
				zap.String("topic", res.Record.Topic),
				zap.Int32("partition", res.Record.Partition),
				zap.Int64("offset", res.Record.Offset),
				zap.Error(err))
		}
	}
	return handled
}

func (l *PollLoop) State() LoopState {
	return LoopState(l.state.Load())
}

func (l *PollLoop) Stats() LoopStats {
	return LoopStats{
		Bursts:        l.bursts.Load(),
		Records:       l.records.Load(),
		HandlerErrors: l.handlerErrors.Load(),
		PollErrors:    l.pollErrors.Load(),
		Sleeps:        l.sleeps.Load(),
	}
}

func (l *PollLoop) setState(s LoopState) {
	l.state.Store(int32(s))
}

func (l *PollLoop) stopped() {
	s := l.Stats()
	l.Logger.Info("poll loop stopped",
		zap.Int64("records", s.Records),
		zap.Int64("handler_errors", s.HandlerErrors),
		zap.Int64("poll_errors", s.PollErrors))
}
