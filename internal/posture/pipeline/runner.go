package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/posture/l2baseline"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// ErrRunnerStopped is returned by Do once Run has returned.
var ErrRunnerStopped = errors.New("pipeline runner stopped")

// RunnerConfig holds the Runner's optional collaborators.
type RunnerConfig struct {
	Clock        timeutil.Clock // Default: timeutil.RealClock
	QueueSize    int            // Inbound frame buffer (default: 64)
	HistoryQueue int            // Pending history writes (default: 256)
	StaleAfter   time.Duration  // Feed considered dead after this gap (default: 5s)

	Alerts  AlertSink   // Optional
	History HistorySink // Optional
	Samples SampleSink  // Optional

	// OnFeedState, when non-nil, is called on the runner goroutine when
	// frames start arriving and when they stop for StaleAfter.
	OnFeedState func(live bool)
}

type command struct {
	fn   func(*Engine) error
	done chan error
}

// Runner owns an Engine on a single goroutine. Frames and commands are
// serialised through channels; readers use Snapshot.
type Runner struct {
	engine *Engine
	cfg    RunnerConfig

	frames  chan *l1landmarks.Frame
	cmds    chan command
	history chan func(HistorySink) error
	stopped chan struct{}

	snap    atomic.Pointer[Snapshot]
	dropped atomic.Uint64

	// Owned by the Run goroutine.
	last     FrameResult
	lastRecv time.Time
	live     bool
}

// NewRunner wraps e. The engine must not be used directly afterwards.
func NewRunner(e *Engine, cfg RunnerConfig) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HistoryQueue <= 0 {
		cfg.HistoryQueue = 256
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Second
	}
	r := &Runner{
		engine:  e,
		cfg:     cfg,
		frames:  make(chan *l1landmarks.Frame, cfg.QueueSize),
		cmds:    make(chan command),
		history: make(chan func(HistorySink) error, cfg.HistoryQueue),
		stopped: make(chan struct{}),
	}
	r.snap.Store(e.snapshot(cfg.Clock.Now(), FrameResult{}))
	return r
}

// Submit queues a frame without blocking. Frames without a timestamp are
// stamped with the receive time. It returns false when the queue is full
// and the frame was dropped.
func (r *Runner) Submit(f *l1landmarks.Frame) bool {
	if f == nil {
		return false
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = r.cfg.Clock.Now()
	}
	select {
	case r.frames <- f:
		return true
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			opsf("frame queue full, dropped %d frames so far", n)
		}
		return false
	}
}

// Do runs fn on the runner goroutine and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*Engine) error) error {
	c := command{fn: fn, done: make(chan error, 1)}
	select {
	case r.cmds <- c:
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Calibrate captures a baseline from the most recent frame and records it
// in the history sink.
func (r *Runner) Calibrate(ctx context.Context) (l2baseline.Report, error) {
	var report l2baseline.Report
	err := r.Do(ctx, func(e *Engine) error {
		var err error
		report, err = e.CalibrateLatest()
		if err != nil {
			return err
		}
		b, _ := e.Baseline()
		rep := report
		r.enqueueHistory(func(h HistorySink) error { return h.RecordCalibration(b, rep) })
		return nil
	})
	return report, err
}

// Snapshot returns the latest published view.
func (r *Runner) Snapshot() Snapshot {
	s := *r.snap.Load()
	s.Dropped = r.dropped.Load()
	return s
}

// Dropped returns how many frames Submit has discarded.
func (r *Runner) Dropped() uint64 { return r.dropped.Load() }

// Run processes frames and commands until ctx is cancelled, then resolves
// open episodes and drains the history queue.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	var wg sync.WaitGroup
	if r.cfg.History != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.drainHistory()
		}()
	}

	ticker := r.cfg.Clock.NewTicker(r.cfg.StaleAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			close(r.history)
			wg.Wait()
			return nil

		case f := <-r.frames:
			r.handleFrame(f)

		case c := <-r.cmds:
			err := c.fn(r.engine)
			r.publish()
			c.done <- err

		case now := <-ticker.C():
			r.checkFeed(now)
		}
	}
}

func (r *Runner) handleFrame(f *l1landmarks.Frame) {
	r.lastRecv = r.cfg.Clock.Now()
	if !r.live {
		r.setLive(true)
	}

	res := r.engine.ProcessFrame(f)
	r.last = res

	if res.Decision == DecisionProcessed && r.cfg.Samples != nil {
		r.cfg.Samples.AddSample(Sample{At: res.At, Smoothed: res.Last.Smoothed, Issues: res.Issues})
	}
	if ev := res.Outcome.Event; ev != nil {
		if r.cfg.Alerts != nil {
			r.cfg.Alerts.Notify(*ev)
		}
		e := *ev
		r.enqueueHistory(func(h HistorySink) error { return h.RecordEvent(e) })
	}
	r.recordEpisodes(res.Outcome.Resolved)
	r.publish()
}

func (r *Runner) publish() {
	s := r.engine.snapshot(r.cfg.Clock.Now(), r.last)
	s.FeedLive = r.live
	r.snap.Store(s)
}

func (r *Runner) checkFeed(now time.Time) {
	if r.live && now.Sub(r.lastRecv) >= r.cfg.StaleAfter {
		opsf("no frames for %s", now.Sub(r.lastRecv).Round(time.Millisecond))
		r.setLive(false)
		r.publish()
	}
}

func (r *Runner) setLive(live bool) {
	r.live = live
	if live {
		diagf("frames arriving")
	}
	if r.cfg.OnFeedState != nil {
		r.cfg.OnFeedState(live)
	}
}

func (r *Runner) shutdown() {
	now := r.last.At
	if now.IsZero() {
		now = r.cfg.Clock.Now()
	}
	eps := r.engine.Flush(now)
	r.recordEpisodes(eps)
	diagf("runner stopped: %d frames, %d dropped, %d open episodes closed",
		r.engine.Counters().Frames, r.dropped.Load(), len(eps))
}

func (r *Runner) recordEpisodes(eps []l7alerts.Episode) {
	if len(eps) == 0 {
		return
	}
	r.enqueueHistory(func(h HistorySink) error { return h.RecordEpisodes(eps) })
}

// enqueueHistory is only called from the Run goroutine.
func (r *Runner) enqueueHistory(fn func(HistorySink) error) {
	if r.cfg.History == nil {
		return
	}
	select {
	case r.history <- fn:
	default:
		opsf("history queue full, dropping record")
	}
}

func (r *Runner) drainHistory() {
	for fn := range r.history {
		if err := fn(r.cfg.History); err != nil {
			opsf("history sink: %v", err)
		}
	}
}
