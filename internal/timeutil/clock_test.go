package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC)

func TestRealClock_NowAndSince(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, clock.Since(now.Add(-time.Second)), time.Second)
}

func TestRealClock_NewTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_SetAndSince(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(epoch)
	assert.Equal(t, epoch, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, clock.Since(epoch))

	clock.Set(epoch.Add(time.Hour))
	assert.Equal(t, time.Hour, clock.Since(epoch))
}

func pending(ch <-chan time.Time) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestMockClock_TickerFiresOnAdvance(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(epoch)
	ticker := clock.NewTicker(time.Minute)

	assert.False(t, pending(ticker.C()))
	clock.Advance(59 * time.Second)
	assert.False(t, pending(ticker.C()), "fired early")
	clock.Advance(time.Second)
	assert.True(t, pending(ticker.C()))

	clock.Advance(30 * time.Second)
	assert.False(t, pending(ticker.C()), "next tick is one interval after the last")
	clock.Advance(30 * time.Second)
	assert.True(t, pending(ticker.C()))
}

func TestMockClock_SetDoesNotFire(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(epoch)
	ticker := clock.NewTicker(time.Second)
	clock.Set(epoch.Add(time.Hour))
	assert.False(t, pending(ticker.C()))
}

func TestMockTicker_Stop(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(epoch)
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()
	clock.Advance(5 * time.Second)
	assert.False(t, pending(ticker.C()))
}

func TestMockTicker_Reset(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(epoch)
	ticker := clock.NewTicker(time.Minute)
	ticker.Stop()
	ticker.Reset(10 * time.Second)

	clock.Advance(10 * time.Second)
	assert.True(t, pending(ticker.C()), "reset ticker should resume with the new period")
}

func TestMockTicker_Trigger(t *testing.T) {
	t.Parallel()
	clock := NewMockClock(epoch)
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	ticker.Trigger(epoch)

	select {
	case got := <-ticker.C():
		assert.Equal(t, epoch, got)
	default:
		t.Error("Trigger did not send tick")
	}
}
