package notify

import (
	"context"
	"errors"

	"github.com/banshee-data/posture.report/internal/config"
)

// Sound is a request to play one notification sound.
type Sound struct {
	Kind   config.SoundKind
	File   string  // overrides Kind when set; relative to the sounds dir
	Volume float64 // 0..1
}

// Toast is a request to show one desktop notification.
type Toast struct {
	Title   string
	Message string
	Urgent  bool // alerts are urgent, back-to-normal is not
}

// Notifier is the delivery capability behind the Dispatcher. Both methods
// may block; the Dispatcher bounds them with a timeout.
type Notifier interface {
	PlaySound(ctx context.Context, s Sound) error
	ShowToast(ctx context.Context, t Toast) error
}

// Disabled drops every request.
type Disabled struct{}

func (Disabled) PlaySound(context.Context, Sound) error { return nil }
func (Disabled) ShowToast(context.Context, Toast) error { return nil }

// LogNotifier writes each request to the diag stream. It is the fallback
// when no other backend is configured.
type LogNotifier struct{}

func (LogNotifier) PlaySound(_ context.Context, s Sound) error {
	if s.File != "" {
		diagf("sound: %s (volume %.2f)", s.File, s.Volume)
	} else {
		diagf("sound: %s (volume %.2f)", s.Kind, s.Volume)
	}
	return nil
}

func (LogNotifier) ShowToast(_ context.Context, t Toast) error {
	diagf("toast: %s: %s", t.Title, t.Message)
	return nil
}

// Multi fans each request out to every backend and joins their errors.
type Multi []Notifier

func (m Multi) PlaySound(ctx context.Context, s Sound) error {
	var errs []error
	for _, n := range m {
		if err := n.PlaySound(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ShowToast(ctx context.Context, t Toast) error {
	var errs []error
	for _, n := range m {
		if err := n.ShowToast(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromSettings builds the backend set described by s: desktop commands when
// either command is set, ntfy when a topic is set, and the log otherwise.
func FromSettings(s config.NotificationSettings) Notifier {
	var m Multi
	if s.SoundCommand != "" || s.ToastCommand != "" {
		m = append(m, NewCommandNotifier(s))
	}
	if s.NtfyTopic != "" {
		m = append(m, NewNtfyNotifier(s.NtfyServer, s.NtfyTopic, nil))
	}
	switch len(m) {
	case 0:
		return LogNotifier{}
	case 1:
		return m[0]
	}
	return m
}
