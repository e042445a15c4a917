package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationSettings_Defaults(t *testing.T) {
	t.Parallel()
	s := (&NotificationConfig{}).Settings()

	assert.True(t, s.Enabled)
	assert.True(t, s.BeepEnabled)
	assert.True(t, s.ToastEnabled)
	assert.Equal(t, 5*time.Second, s.MinDuration)
	assert.Equal(t, 30*time.Second, s.Cooldown)
	assert.Equal(t, SoundNegative, s.BadPostureSound)
	assert.Equal(t, SoundPositive, s.BackToNormalSound)
	assert.Equal(t, 0.5, s.Volume)
	assert.Equal(t, "Posture Alert: Slouching", s.AlertMessage("Slouching"))
	assert.Equal(t, "Posture is back to normal!", s.BackToNormalMessage)
	assert.Equal(t, 16, s.QueueSize)
	assert.Equal(t, "https://ntfy.sh", s.NtfyServer)
	assert.Empty(t, s.NtfyTopic)
}

func TestNotificationSettings_VolumeClamped(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float64
		want float64
	}{
		{-1, 0},
		{0.3, 0.3},
		{4, 1},
	}
	for _, tt := range tests {
		s := (&NotificationConfig{Volume: ptrFloat64(tt.in)}).Settings()
		assert.Equal(t, tt.want, s.Volume, "volume %v", tt.in)
	}
}

func TestNotificationSettings_BadDurationFallsBack(t *testing.T) {
	t.Parallel()
	s := (&NotificationConfig{MinDuration: ptrString("whenever"), Cooldown: ptrString("-3s")}).Settings()
	assert.Equal(t, 5*time.Second, s.MinDuration)
	assert.Equal(t, 30*time.Second, s.Cooldown)
}

func TestNotificationConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     NotificationConfig
		wantErr string
	}{
		{"empty", NotificationConfig{}, ""},
		{"defaults", *DefaultNotificationConfig(), ""},
		{"bad duration", NotificationConfig{MinDuration: ptrString("5 parsecs")}, "min_duration"},
		{"negative cooldown", NotificationConfig{Cooldown: ptrString("-1s")}, "cooldown"},
		{"unknown sound", NotificationConfig{BadPostureSound: ptrString("kazoo")}, "kazoo"},
		{"custom sound ok", NotificationConfig{BackToNormalSound: ptrString("custom")}, ""},
		{"zero queue", NotificationConfig{QueueSize: ptrInt(0)}, "queue_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSoundKind_Valid(t *testing.T) {
	t.Parallel()
	for _, k := range SoundKinds {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, SoundKind("").Valid())
	assert.False(t, SoundKind("NEGATIVE").Valid())
}
