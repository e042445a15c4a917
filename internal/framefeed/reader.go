package framefeed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banshee-data/posture.report/internal/timeutil"
)

// scanLines emits each line of r until EOF, a read error, or ctx is done.
// The blocking scan runs on its own goroutine so cancellation is observed
// even while a read is pending; closing r is the caller's job.
func scanLines(ctx context.Context, r io.Reader, emit EmitFunc, pace <-chan time.Time) error {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scan.Scan() {
			b := append([]byte(nil), scan.Bytes()...)
			select {
			case lines <- b:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if pace != nil {
				select {
				case <-pace:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			emit(line, time.Time{})
		}
	}
}

// FileSource replays a recorded JSON-lines file, optionally paced at a fixed
// interval and looped.
type FileSource struct {
	Path     string
	Interval time.Duration
	Loop     bool
	Clock    timeutil.Clock
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Run(ctx context.Context, emit EmitFunc) error {
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var pace <-chan time.Time
	if s.Interval > 0 {
		t := clock.NewTicker(s.Interval)
		defer t.Stop()
		pace = t.C()
	}
	for {
		if err := s.replay(ctx, emit, pace); err != nil {
			return err
		}
		if !s.Loop {
			return nil
		}
	}
}

func (s *FileSource) replay(ctx context.Context, emit EmitFunc, pace <-chan time.Time) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open frame file: %w", err)
	}
	defer f.Close()
	return scanLines(ctx, f, emit, pace)
}

// Disabled never produces a line. It stands in when no detector is attached
// so the rest of the service still runs.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Run(ctx context.Context, _ EmitFunc) error {
	<-ctx.Done()
	return nil
}
