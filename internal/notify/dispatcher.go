package notify

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
)

// DispatchStats counts requests by outcome.
type DispatchStats struct {
	Delivered  uint64 `json:"delivered"`
	Failed     uint64 `json:"failed"`
	Dropped    uint64 `json:"dropped"`
	Suppressed uint64 `json:"suppressed"`
}

// Dispatcher turns pipeline events into Notifier calls. Notify never blocks:
// events are queued and delivered by Run, and a full queue drops the event.
type Dispatcher struct {
	notifier Notifier
	settings atomic.Pointer[config.NotificationSettings]
	queue    chan l7alerts.Event

	delivered  atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
	suppressed atomic.Uint64
}

// NewDispatcher sizes the queue from s.QueueSize.
func NewDispatcher(n Notifier, s config.NotificationSettings) *Dispatcher {
	if n == nil {
		n = LogNotifier{}
	}
	size := s.QueueSize
	if size < 1 {
		size = 1
	}
	d := &Dispatcher{notifier: n, queue: make(chan l7alerts.Event, size)}
	d.settings.Store(&s)
	return d
}

// Settings returns the active settings.
func (d *Dispatcher) Settings() config.NotificationSettings { return *d.settings.Load() }

// SetSettings replaces the settings used for subsequent deliveries. The
// backend and queue size are fixed at construction.
func (d *Dispatcher) SetSettings(s config.NotificationSettings) { d.settings.Store(&s) }

// Stats returns the outcome counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Delivered:  d.delivered.Load(),
		Failed:     d.failed.Load(),
		Dropped:    d.dropped.Load(),
		Suppressed: d.suppressed.Load(),
	}
}

// Notify queues ev for delivery.
func (d *Dispatcher) Notify(ev l7alerts.Event) {
	select {
	case d.queue <- ev:
	default:
		n := d.dropped.Add(1)
		opsf("notification queue full, dropped %s event (%d dropped so far)", ev.Kind, n)
	}
}

// Run delivers queued events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				diagf("stopping with %d undelivered notifications", n)
			}
			return
		case ev := <-d.queue:
			if err := d.Deliver(ctx, ev); err != nil {
				opsf("deliver %s: %v", ev.Kind, err)
			}
		}
	}
}

// Deliver sends ev through the notifier synchronously, applying the enable
// flags, message templates and sound choice from the current settings. Each
// backend call is bounded by the delivery timeout.
func (d *Dispatcher) Deliver(ctx context.Context, ev l7alerts.Event) error {
	s := d.Settings()
	if !s.Enabled || (ev.Kind == l7alerts.EventBackToNormal && !s.BackToNormalEnabled) {
		d.suppressed.Add(1)
		diagf("suppressed %s event", ev.Kind)
		return nil
	}

	sound, toast := compose(s, ev)
	var errs []error
	if s.BeepEnabled {
		errs = append(errs, d.call(ctx, s, func(ctx context.Context) error {
			return d.notifier.PlaySound(ctx, sound)
		}))
	}
	if s.ToastEnabled {
		errs = append(errs, d.call(ctx, s, func(ctx context.Context) error {
			return d.notifier.ShowToast(ctx, toast)
		}))
	}
	if err := errors.Join(errs...); err != nil {
		d.failed.Add(1)
		return err
	}
	d.delivered.Add(1)
	diagf("delivered %s: %s", ev.Kind, toast.Message)
	return nil
}

func (d *Dispatcher) call(ctx context.Context, s config.NotificationSettings, fn func(context.Context) error) error {
	if s.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.DeliveryTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func compose(s config.NotificationSettings, ev l7alerts.Event) (Sound, Toast) {
	if ev.Kind == l7alerts.EventBackToNormal {
		return Sound{Kind: s.BackToNormalSound, File: s.CustomBackToNormalFile, Volume: s.Volume},
			Toast{Title: s.ToastTitle, Message: s.BackToNormalMessage}
	}
	return Sound{Kind: s.BadPostureSound, File: s.CustomBadPostureFile, Volume: s.Volume},
		Toast{Title: s.ToastTitle, Message: s.AlertMessage(ev.Issue.String()), Urgent: true}
}
