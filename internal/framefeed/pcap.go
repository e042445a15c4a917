package framefeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// packetReader is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// PcapSource replays captured UDP landmark datagrams. Frames without a "ts"
// field take the capture timestamp.
type PcapSource struct {
	Path string
	Port int // UDP destination port to keep; 0 keeps every UDP packet

	// Realtime sleeps between packets to reproduce the capture's pacing,
	// divided by Speed (default 1).
	Realtime bool
	Speed    float64
}

func (s *PcapSource) Name() string { return "pcap:" + s.Path }

func (s *PcapSource) open(f io.Reader) (packetReader, error) {
	if strings.EqualFold(filepath.Ext(s.Path), ".pcapng") {
		return pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(f)
}

func (s *PcapSource) Run(ctx context.Context, emit EmitFunc) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open pcap: %w", err)
	}
	defer f.Close()
	r, err := s.open(f)
	if err != nil {
		return fmt.Errorf("read pcap header %s: %w", s.Path, err)
	}

	speed := s.Speed
	if speed <= 0 {
		speed = 1
	}
	var packets, kept int
	var prev time.Time
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			diagf("pcap %s done: %d packets, %d replayed", s.Path, packets, kept)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read pcap packet %d: %w", packets+1, err)
		}
		packets++

		payload, ok := s.udpPayload(data, r.LinkType())
		if !ok {
			continue
		}
		if s.Realtime && !prev.IsZero() {
			if err := sleepCtx(ctx, time.Duration(float64(ci.Timestamp.Sub(prev))/speed)); err != nil {
				return err
			}
		}
		prev = ci.Timestamp
		kept++
		emit(payload, ci.Timestamp)
	}
}

func (s *PcapSource) udpPayload(data []byte, link layers.LinkType) ([]byte, bool) {
	pkt := gopacket.NewPacket(data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return nil, false
	}
	if s.Port != 0 && int(udp.DstPort) != s.Port {
		return nil, false
	}
	return udp.Payload, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
