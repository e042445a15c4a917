package framefeed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 65507

// UDPSource receives one frame per datagram.
type UDPSource struct {
	address string
	rcvBuf  int

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPSource listens on address (host:port). rcvBuf sets the socket
// receive buffer when positive.
func NewUDPSource(address string, rcvBuf int) *UDPSource {
	return &UDPSource{address: address, rcvBuf: rcvBuf}
}

func (s *UDPSource) Name() string { return "udp:" + s.address }

// Listen binds the socket. Run calls it when needed; calling it first lets
// the caller learn the bound address.
func (s *UDPSource) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", s.address)
	if err != nil {
		return fmt.Errorf("resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on UDP address: %w", err)
	}
	if s.rcvBuf > 0 {
		if err := conn.SetReadBuffer(s.rcvBuf); err != nil {
			opsf("set UDP receive buffer to %d: %v", s.rcvBuf, err)
		}
	}
	s.conn = conn
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *UDPSource) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *UDPSource) Run(ctx context.Context, emit EmitFunc) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	defer s.Close()
	diagf("UDP feed listening on %s", conn.LocalAddr())

	buf := make([]byte, maxDatagram)
	var deadlineErrLogged bool
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil && !deadlineErrLogged {
			opsf("set UDP read deadline: %v", err)
			deadlineErrLogged = true
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrClosed
			}
			opsf("UDP read: %v", err)
			continue
		}
		tracef("datagram %d bytes from %s", n, from)
		emit(buf[:n], time.Time{})
	}
}

// Close releases the socket. It is safe to call more than once.
func (s *UDPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
