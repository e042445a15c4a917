package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/posture/l6classify"
	"github.com/banshee-data/posture.report/internal/posture/l7alerts"
)

// recorder is a Notifier that remembers every call.
type recorder struct {
	mu     sync.Mutex
	sounds []Sound
	toasts []Toast
	err    error
	block  bool
}

func (r *recorder) PlaySound(ctx context.Context, s Sound) error {
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sounds = append(r.sounds, s)
	return r.err
}

func (r *recorder) ShowToast(_ context.Context, t Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
	return r.err
}

func (r *recorder) toastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

func settings(mutate func(*config.NotificationConfig)) config.NotificationSettings {
	c := config.DefaultNotificationConfig()
	if mutate != nil {
		mutate(c)
	}
	return c.Settings()
}

func alert(issue l6classify.Issue) l7alerts.Event {
	return l7alerts.Event{Kind: l7alerts.EventAlert, Issue: issue, At: time.Date(2026, 4, 2, 14, 0, 7, 0, time.UTC)}
}

var backToNormal = l7alerts.Event{Kind: l7alerts.EventBackToNormal}

func TestDeliverAlert(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d := NewDispatcher(rec, settings(func(c *config.NotificationConfig) {
		c.CustomBadPostureFile = ptr("ding.wav")
		c.Volume = ptr(0.8)
	}))

	require.NoError(t, d.Deliver(context.Background(), alert(l6classify.NeckForward)))

	wantSounds := []Sound{{Kind: config.SoundNegative, File: "ding.wav", Volume: 0.8}}
	wantToasts := []Toast{{Title: "Posture Alert", Message: "Posture Alert: Neck Forward", Urgent: true}}
	if diff := cmp.Diff(wantSounds, rec.sounds); diff != "" {
		t.Errorf("sounds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantToasts, rec.toasts); diff != "" {
		t.Errorf("toasts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, DispatchStats{Delivered: 1}, d.Stats())
}

func TestDeliverBackToNormal(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d := NewDispatcher(rec, settings(nil))

	require.NoError(t, d.Deliver(context.Background(), backToNormal))
	require.Len(t, rec.sounds, 1)
	assert.Equal(t, config.SoundPositive, rec.sounds[0].Kind)
	require.Len(t, rec.toasts, 1)
	assert.Equal(t, "Posture is back to normal!", rec.toasts[0].Message)
	assert.False(t, rec.toasts[0].Urgent)
}

func TestDeliverHonoursFlags(t *testing.T) {
	t.Parallel()
	off := false
	tests := []struct {
		name       string
		mutate     func(*config.NotificationConfig)
		ev         l7alerts.Event
		sounds     int
		toasts     int
		suppressed uint64
	}{
		{"disabled", func(c *config.NotificationConfig) { c.Enabled = &off }, alert(l6classify.Slouching), 0, 0, 1},
		{"back to normal off", func(c *config.NotificationConfig) { c.BackToNormalEnabled = &off }, backToNormal, 0, 0, 1},
		{"back to normal off keeps alerts", func(c *config.NotificationConfig) { c.BackToNormalEnabled = &off }, alert(l6classify.Slouching), 1, 1, 0},
		{"no beep", func(c *config.NotificationConfig) { c.BeepEnabled = &off }, alert(l6classify.Slouching), 0, 1, 0},
		{"no toast", func(c *config.NotificationConfig) { c.ToastEnabled = &off }, alert(l6classify.Slouching), 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &recorder{}
			d := NewDispatcher(rec, settings(tt.mutate))
			require.NoError(t, d.Deliver(context.Background(), tt.ev))
			assert.Len(t, rec.sounds, tt.sounds)
			assert.Len(t, rec.toasts, tt.toasts)
			assert.Equal(t, tt.suppressed, d.Stats().Suppressed)
		})
	}
}

func TestDeliverJoinsErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	d := NewDispatcher(&recorder{err: boom}, settings(nil))

	err := d.Deliver(context.Background(), alert(l6classify.HeadTilted))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), d.Stats().Failed)
}

func TestDeliverTimesOut(t *testing.T) {
	t.Parallel()
	rec := &recorder{block: true}
	d := NewDispatcher(rec, settings(func(c *config.NotificationConfig) {
		c.DeliveryTimeout = ptr("20ms")
	}))

	err := d.Deliver(context.Background(), alert(l6classify.Slouching))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, rec.toasts, 1, "toast still attempted after sound timeout")
}

func TestSetSettings(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d := NewDispatcher(rec, settings(nil))
	s := d.Settings()
	s.MessageTemplate = "fix your {issue}"
	d.SetSettings(s)

	require.NoError(t, d.Deliver(context.Background(), alert(l6classify.Slouching)))
	assert.Equal(t, "fix your Slouching", rec.toasts[0].Message)
}

func TestNotifyDropsWhenFull(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(&recorder{}, settings(func(c *config.NotificationConfig) {
		c.QueueSize = ptr(2)
	}))

	for range 5 {
		d.Notify(alert(l6classify.Slouching))
	}
	assert.Equal(t, uint64(3), d.Stats().Dropped)
}

func TestRunDelivers(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	d := NewDispatcher(rec, settings(nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Notify(alert(l6classify.Slouching))
	d.Notify(backToNormal)
	require.Eventually(t, func() bool { return rec.toastCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, uint64(2), d.Stats().Delivered)
}

func TestMulti(t *testing.T) {
	t.Parallel()
	a, b := &recorder{}, &recorder{err: errors.New("b failed")}
	m := Multi{a, b}

	err := m.ShowToast(context.Background(), Toast{Message: "x"})
	assert.EqualError(t, err, "b failed")
	assert.Len(t, a.toasts, 1)
	assert.Len(t, b.toasts, 1)
	assert.NoError(t, Multi{a}.PlaySound(context.Background(), Sound{Kind: config.SoundBeep}))
}

func TestFromSettings(t *testing.T) {
	t.Parallel()
	empty := ""
	none := settings(func(c *config.NotificationConfig) {
		c.SoundCommand, c.ToastCommand = &empty, &empty
	})
	// empty strings fall back to the default commands
	assert.IsType(t, &CommandNotifier{}, FromSettings(none))

	s := settings(func(c *config.NotificationConfig) { c.NtfyTopic = ptr("posture") })
	m, ok := FromSettings(s).(Multi)
	require.True(t, ok)
	assert.Len(t, m, 2)

	s.SoundCommand, s.ToastCommand = "", ""
	assert.IsType(t, &NtfyNotifier{}, FromSettings(s))

	s.NtfyTopic = ""
	assert.Equal(t, LogNotifier{}, FromSettings(s))
}

type call struct {
	name string
	args []string
}

func newCommandNotifier(t *testing.T) (*CommandNotifier, *[]call, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "negative.wav"), []byte("RIFF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ding.wav"), []byte("RIFF"), 0o644))

	var calls []call
	var bell bytes.Buffer
	c := NewCommandNotifier(settings(func(c *config.NotificationConfig) { c.SoundsDir = &dir }))
	c.Bell = &bell
	c.run = func(_ context.Context, name string, args ...string) error {
		calls = append(calls, call{name, args})
		return nil
	}
	return c, &calls, &bell
}

func TestCommandNotifierPlaySound(t *testing.T) {
	t.Parallel()
	c, calls, bell := newCommandNotifier(t)

	require.NoError(t, c.PlaySound(context.Background(), Sound{Kind: config.SoundNegative, Volume: 0.5}))
	require.NoError(t, c.PlaySound(context.Background(), Sound{Kind: config.SoundCustom, File: "ding.wav", Volume: 1}))
	want := []call{
		{"paplay", []string{"--volume=32768", filepath.Join(c.SoundsDir, "negative.wav")}},
		{"paplay", []string{"--volume=65536", filepath.Join(c.SoundsDir, "ding.wav")}},
	}
	if diff := cmp.Diff(want, *calls, cmp.AllowUnexported(call{})); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	// Missing built-in file rings the bell instead.
	require.NoError(t, c.PlaySound(context.Background(), Sound{Kind: config.SoundChime}))
	assert.Equal(t, "\a", bell.String())
	assert.Len(t, *calls, 2)
}

func TestCommandNotifierRejectsBadSounds(t *testing.T) {
	t.Parallel()
	c, calls, _ := newCommandNotifier(t)

	assert.Error(t, c.PlaySound(context.Background(), Sound{Kind: config.SoundCustom}))
	assert.Error(t, c.PlaySound(context.Background(), Sound{Kind: "trumpet"}))
	assert.Error(t, c.PlaySound(context.Background(), Sound{File: "../../etc/passwd"}))
	assert.Empty(t, *calls)
}

func TestCommandNotifierShowToast(t *testing.T) {
	t.Parallel()
	c, calls, _ := newCommandNotifier(t)

	require.NoError(t, c.ShowToast(context.Background(), Toast{Title: "Posture Alert", Message: "Posture Alert: Slouching", Urgent: true}))
	require.Len(t, *calls, 1)
	assert.Equal(t, "notify-send", (*calls)[0].name)
	assert.Equal(t, []string{"--app-name=Posture Monitor", "--urgency=critical", "Posture Alert", "Posture Alert: Slouching"}, (*calls)[0].args)

	c.ToastCommand = ""
	require.NoError(t, c.ShowToast(context.Background(), Toast{Message: "x"}))
	assert.Len(t, *calls, 1)
}

func TestNtfyNotifier(t *testing.T) {
	t.Parallel()
	client := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, "")
	n := NewNtfyNotifier("https://ntfy.example/", "desk", client)

	require.NoError(t, n.ShowToast(context.Background(), Toast{Title: "Posture Alert", Message: "Posture Alert: Slouching", Urgent: true}))
	require.Equal(t, 1, client.RequestCount())

	req := client.GetRequest(0)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://ntfy.example/desk", req.URL.String())
	assert.Equal(t, "Posture Alert", req.Header.Get("Title"))
	assert.Equal(t, "high", req.Header.Get("Priority"))
	assert.Equal(t, "warning", req.Header.Get("Tags"))
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "Posture Alert: Slouching", string(body))

	assert.NoError(t, n.PlaySound(context.Background(), Sound{Kind: config.SoundBeep}))
	assert.Equal(t, 1, client.RequestCount())
}

func TestNtfyNotifierErrors(t *testing.T) {
	t.Parallel()
	client := httputil.NewMockHTTPClient().
		AddResponse(http.StatusForbidden, "topic reserved\n").
		AddErrorResponse(errors.New("connection refused"))
	n := NewNtfyNotifier("https://ntfy.example", "desk", client)

	err := n.ShowToast(context.Background(), Toast{Message: "x"})
	assert.EqualError(t, err, "ntfy returned 403: topic reserved")

	err = n.ShowToast(context.Background(), Toast{Message: "x"})
	assert.ErrorContains(t, err, "connection refused")
}

func ptr[T any](v T) *T { return &v }
