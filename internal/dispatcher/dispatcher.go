// Package dispatcher runs the acquisition loop: capture a frame on a
// fixed cadence, ship it to the estimator, publish the result. At most
// one estimation request is ever outstanding; ticks that arrive while a
// request is in flight are dropped, not queued, so the overlay always
// reflects a recent frame instead of a stale backlog.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/rectpose/internal/estimator"
	"github.com/example/rectpose/internal/pose"
	"github.com/example/rectpose/internal/poselog"
)

// State is the streaming loop's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateAwaitingResult
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateAwaitingResult:
		return "waiting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// FrameSource owns the camera. Only the dispatcher drives its lifecycle.
type FrameSource interface {
	Start() error
	Stop()
	CaptureDataURL() (string, bool)
}

// Sink receives each published estimate. A nil estimate clears whatever
// the sink is displaying.
type Sink interface {
	PublishPose(estimate *pose.Estimate)
}

// Dispatcher is the estimation loop state machine.
type Dispatcher struct {
	frames   FrameSource
	client   estimator.Client
	sink     Sink
	logbook  *poselog.Ring
	logger   *zap.Logger
	interval time.Duration

	mu          sync.Mutex
	state       State
	inFlight    bool
	done        chan struct{}
	latest      *pose.Estimate
	lastUpdated time.Time
}

// New builds a dispatcher. The sink may be nil.
func New(frames FrameSource, client estimator.Client, sink Sink, logbook *poselog.Ring, interval time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		frames:   frames,
		client:   client,
		sink:     sink,
		logbook:  logbook,
		logger:   logger.Named("dispatcher"),
		interval: interval,
	}
}

// Start acquires the camera and begins the tick loop. A camera failure
// is surfaced to the caller and the loop never starts.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return nil
	}

	if err := d.frames.Start(); err != nil {
		d.mu.Unlock()
		d.logbook.Append("Camera error: " + err.Error())
		d.logger.Error("camera start failed", zap.Error(err))
		return err
	}

	d.state = StateStreaming
	done := make(chan struct{})
	d.done = done
	d.mu.Unlock()

	go d.run(ctx, done)
	d.logbook.Append("Camera started")
	return nil
}

// Stop returns to idle from any state, releases the camera, and clears
// the published pose. The recurring tick is cancelled so nothing keeps
// referencing the released device.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.state == StateIdle {
		d.mu.Unlock()
		return
	}
	d.state = StateIdle
	done := d.done
	d.done = nil
	d.latest = nil
	d.mu.Unlock()

	if done != nil {
		close(done)
	}
	d.frames.Stop()
	if d.sink != nil {
		d.sink.PublishPose(nil)
	}
	d.logbook.Append("Camera stopped")
}

// State returns the current lifecycle phase.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Latest returns the most recently published estimate and its arrival
// time. Nil until the first successful round-trip after Start.
func (d *Dispatcher) Latest() (*pose.Estimate, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest, d.lastUpdated
}

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick fires every interval. An outstanding request makes the tick a
// no-op; a frame that is not ready yet is skipped silently.
func (d *Dispatcher) tick(ctx context.Context) {
	d.mu.Lock()
	if d.state == StateIdle || d.inFlight {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	frame, ok := d.frames.CaptureDataURL()
	if !ok {
		return
	}

	d.mu.Lock()
	if d.state == StateIdle || d.inFlight {
		d.mu.Unlock()
		return
	}
	d.inFlight = true
	d.state = StateAwaitingResult
	d.mu.Unlock()

	go d.dispatch(ctx, frame)
}

func (d *Dispatcher) dispatch(ctx context.Context, frame string) {
	estimate, err := d.client.Estimate(ctx, frame)

	d.mu.Lock()
	d.inFlight = false
	if d.state == StateIdle {
		// Stopped while the request was in flight; discard the result.
		d.mu.Unlock()
		return
	}
	if err != nil {
		d.state = StateError
		d.mu.Unlock()
		d.logbook.Append("Processing error: " + err.Error())
		d.logger.Warn("estimation round-trip failed", zap.Error(err))
		return
	}

	d.state = StateStreaming
	d.latest = estimate
	d.lastUpdated = time.Now()
	sink := d.sink
	d.mu.Unlock()

	if sink != nil {
		sink.PublishPose(estimate)
	}
	if !estimate.Found {
		d.logbook.Append("No rectangle detected")
	}
}
