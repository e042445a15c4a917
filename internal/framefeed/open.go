package framefeed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OpenOptions carries per-kind settings for Open.
type OpenOptions struct {
	Serial    PortOptions
	UDPRcvBuf int
	PcapPort  int
	Realtime  bool
	Interval  time.Duration
	Loop      bool
}

// Open builds a Source from a "kind:target" spec:
//
//	serial:/dev/ttyACM0
//	udp::9870
//	pcap:capture.pcap
//	file:frames.jsonl
//	disabled
func Open(spec string, opts OpenOptions) (Source, error) {
	kind, target, _ := strings.Cut(spec, ":")
	switch kind {
	case "", "disabled", "none":
		return Disabled{}, nil
	case "serial":
		if target == "" {
			return nil, fmt.Errorf("serial feed needs a device path")
		}
		return OpenSerial(target, opts.Serial)
	case "udp":
		if _, port, err := splitPort(target); err != nil {
			return nil, err
		} else if port < 0 || port > 65535 {
			return nil, fmt.Errorf("udp port %d out of range", port)
		}
		return NewUDPSource(target, opts.UDPRcvBuf), nil
	case "pcap":
		if target == "" {
			return nil, fmt.Errorf("pcap feed needs a file")
		}
		return &PcapSource{Path: target, Port: opts.PcapPort, Realtime: opts.Realtime}, nil
	case "file":
		if target == "" {
			return nil, fmt.Errorf("file feed needs a path")
		}
		return &FileSource{Path: target, Interval: opts.Interval, Loop: opts.Loop}, nil
	}
	return nil, fmt.Errorf("unknown feed kind %q", kind)
}

func splitPort(hostport string) (string, int, error) {
	i := strings.LastIndex(hostport, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("udp feed %q: want host:port", hostport)
	}
	port, err := strconv.Atoi(hostport[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("udp feed %q: bad port: %w", hostport, err)
	}
	return hostport[:i], port, nil
}
