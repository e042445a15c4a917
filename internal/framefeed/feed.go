package framefeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// ErrClosed is returned when a closed Feed or Source is used.
var ErrClosed = errors.New("frame feed closed")

// EmitFunc receives one raw line. at is the capture time when the source
// knows it, or zero to use the receive time.
type EmitFunc func(line []byte, at time.Time)

// Source produces raw wire lines until ctx is done or input ends. Run
// returns nil at end of input.
type Source interface {
	Name() string
	Run(ctx context.Context, emit EmitFunc) error
}

// Sink accepts decoded frames. It must not block; false means the frame was
// dropped.
type Sink interface {
	Submit(f *l1landmarks.Frame) bool
}

// Stats counts lines by outcome.
type Stats struct {
	Source       string `json:"source"`
	Lines        uint64 `json:"lines"`
	Frames       uint64 `json:"frames"`
	DecodeErrors uint64 `json:"decode_errors"`
	Rejected     uint64 `json:"rejected"`
}

// Feed connects a Source to a Sink.
type Feed struct {
	src   Source
	sink  Sink
	mux   *Mux
	clock timeutil.Clock

	lines      atomic.Uint64
	frames     atomic.Uint64
	decodeErrs atomic.Uint64
	rejected   atomic.Uint64
	closed     atomic.Bool
}

// NewFeed wires src to sink. A nil clock uses the real clock.
func NewFeed(src Source, sink Sink, clock timeutil.Clock) *Feed {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Feed{src: src, sink: sink, mux: NewMux(), clock: clock}
}

// Mux is the raw-line fan-out.
func (f *Feed) Mux() *Mux { return f.mux }

// Stats returns the line counters.
func (f *Feed) Stats() Stats {
	return Stats{
		Source:       f.src.Name(),
		Lines:        f.lines.Load(),
		Frames:       f.frames.Load(),
		DecodeErrors: f.decodeErrs.Load(),
		Rejected:     f.rejected.Load(),
	}
}

// Run reads the source until ctx is done or input ends. Cancellation is a
// clean stop and returns nil.
func (f *Feed) Run(ctx context.Context) error {
	if f.closed.Load() {
		return ErrClosed
	}
	diagf("feed %s started", f.src.Name())
	err := f.src.Run(ctx, f.handle)
	if errors.Is(err, context.Canceled) || (err != nil && ctx.Err() != nil) {
		err = nil
	}
	st := f.Stats()
	diagf("feed %s stopped: %d lines, %d frames, %d decode errors, %d rejected",
		st.Source, st.Lines, st.Frames, st.DecodeErrors, st.Rejected)
	if err != nil {
		return fmt.Errorf("feed %s: %w", f.src.Name(), err)
	}
	return nil
}

// Close ends every tail subscription. A closed feed cannot be run again.
func (f *Feed) Close() error {
	f.closed.Store(true)
	f.mux.Close()
	return nil
}

func (f *Feed) handle(line []byte, at time.Time) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	f.lines.Add(1)
	f.mux.Publish(string(line))
	tracef("line %d bytes", len(line))

	if at.IsZero() {
		at = f.clock.Now()
	}
	frame, err := Decode(line, at)
	if err != nil {
		if n := f.decodeErrs.Add(1); n == 1 || n%100 == 0 {
			opsf("feed %s: %v (%d decode errors)", f.src.Name(), err, n)
		}
		return
	}
	f.frames.Add(1)
	if !f.sink.Submit(frame) {
		f.rejected.Add(1)
	}
}
