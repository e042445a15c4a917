package framefeed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/l1landmarks"
)

// MaxLineSize bounds one encoded frame. A full face mesh plus pose is well
// under 100 KiB.
const MaxLineSize = 1 << 20

// ErrEmptyLine is returned for blank lines and keep-alive datagrams.
var ErrEmptyLine = errors.New("empty frame line")

// Decode parses one wire frame. A frame without "ts" is stamped with recv.
func Decode(line []byte, recv time.Time) (*l1landmarks.Frame, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, ErrEmptyLine
	}
	if len(line) > MaxLineSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds %d", len(line), MaxLineSize)
	}
	var f l1landmarks.Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = recv
	}
	return &f, nil
}

// Encode writes f as one newline-terminated wire line.
func Encode(f *l1landmarks.Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return append(b, '\n'), nil
}
