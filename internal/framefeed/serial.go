package framefeed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// Port is the part of a serial port the feed needs. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
}

// PortOptions are the serial line settings for a detector board.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize applies defaults (115200 8N1) and validates the result.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch p := strings.ToUpper(strings.TrimSpace(opts.Parity)); p {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the options for serial.Open.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{BaudRate: opts.BaudRate, DataBits: opts.DataBits}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// SerialSource reads newline-delimited frames from a serial port.
type SerialSource struct {
	path string
	port Port

	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens the device at path.
func OpenSerial(path string, opts PortOptions) (*SerialSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return NewSerialSource(path, port), nil
}

// NewSerialSource wraps an already open port.
func NewSerialSource(path string, port Port) *SerialSource {
	return &SerialSource{path: path, port: port}
}

func (s *SerialSource) Name() string { return "serial:" + s.path }

// Run reads until the port closes or ctx is done. The port is closed on
// return.
func (s *SerialSource) Run(ctx context.Context, emit EmitFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	err := scanLines(ctx, s.port, emit, nil)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Send writes one command line to the detector board.
func (s *SerialSource) Send(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := io.WriteString(s.port, command)
	if err != nil {
		return err
	}
	if n != len(command) {
		return fmt.Errorf("short write to %s: %d of %d bytes", s.path, n, len(command))
	}
	return nil
}

// Close closes the port once.
func (s *SerialSource) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.port.Close() })
	return s.closeErr
}
