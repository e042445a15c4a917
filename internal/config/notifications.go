package config

import (
	"fmt"
	"strings"
	"time"
)

// SoundKind names a built-in notification sound, or SoundCustom for a file.
type SoundKind string

const (
	SoundNegative SoundKind = "negative"
	SoundPositive SoundKind = "positive"
	SoundDefault  SoundKind = "default"
	SoundBeep     SoundKind = "beep"
	SoundChime    SoundKind = "chime"
	SoundAlert    SoundKind = "alert"
	SoundCustom   SoundKind = "custom"
)

// SoundKinds lists every accepted sound kind.
var SoundKinds = []SoundKind{SoundNegative, SoundPositive, SoundDefault, SoundBeep, SoundChime, SoundAlert, SoundCustom}

// Valid reports whether k is a known kind.
func (k SoundKind) Valid() bool {
	for _, s := range SoundKinds {
		if s == k {
			return true
		}
	}
	return false
}

// IssuePlaceholder is replaced by the issue label in MessageTemplate.
const IssuePlaceholder = "{issue}"

// NotificationConfig is the "notifications" block of the tuning file.
type NotificationConfig struct {
	Enabled      *bool `json:"enabled,omitempty"`
	BeepEnabled  *bool `json:"beep_enabled,omitempty"`
	ToastEnabled *bool `json:"toast_enabled,omitempty"`

	MinDuration *string `json:"min_duration,omitempty"` // duration string like "5s"
	Cooldown    *string `json:"cooldown,omitempty"`     // duration string like "30s"

	BadPostureSound        *string  `json:"bad_posture_sound,omitempty"`
	BackToNormalSound      *string  `json:"back_to_normal_sound,omitempty"`
	CustomBadPostureFile   *string  `json:"custom_bad_posture_file,omitempty"`
	CustomBackToNormalFile *string  `json:"custom_back_to_normal_file,omitempty"`
	SoundsDir              *string  `json:"sounds_dir,omitempty"`
	Volume                 *float64 `json:"volume,omitempty"`
	MessageTemplate        *string  `json:"message_template,omitempty"`
	BackToNormalEnabled    *bool    `json:"back_to_normal_enabled,omitempty"`
	BackToNormalMessage    *string  `json:"back_to_normal_message,omitempty"`
	ToastTitle             *string  `json:"toast_title,omitempty"`
	AppName                *string  `json:"app_name,omitempty"`
	SoundCommand           *string  `json:"sound_command,omitempty"`
	ToastCommand           *string  `json:"toast_command,omitempty"`
	NtfyServer             *string  `json:"ntfy_server,omitempty"`
	NtfyTopic              *string  `json:"ntfy_topic,omitempty"`
	QueueSize              *int     `json:"queue_size,omitempty"`
	DeliveryTimeout        *string  `json:"delivery_timeout,omitempty"`
}

// DefaultNotificationConfig returns a block with every field set.
func DefaultNotificationConfig() *NotificationConfig {
	s := (&NotificationConfig{}).Settings()
	return &NotificationConfig{
		Enabled:                ptrBool(s.Enabled),
		BeepEnabled:            ptrBool(s.BeepEnabled),
		ToastEnabled:           ptrBool(s.ToastEnabled),
		MinDuration:            ptrString(s.MinDuration.String()),
		Cooldown:               ptrString(s.Cooldown.String()),
		BadPostureSound:        ptrString(string(s.BadPostureSound)),
		BackToNormalSound:      ptrString(string(s.BackToNormalSound)),
		CustomBadPostureFile:   ptrString(""),
		CustomBackToNormalFile: ptrString(""),
		SoundsDir:              ptrString(s.SoundsDir),
		Volume:                 ptrFloat64(s.Volume),
		MessageTemplate:        ptrString(s.MessageTemplate),
		BackToNormalEnabled:    ptrBool(s.BackToNormalEnabled),
		BackToNormalMessage:    ptrString(s.BackToNormalMessage),
		ToastTitle:             ptrString(s.ToastTitle),
		AppName:                ptrString(s.AppName),
		SoundCommand:           ptrString(s.SoundCommand),
		ToastCommand:           ptrString(s.ToastCommand),
		NtfyServer:             ptrString(s.NtfyServer),
		NtfyTopic:              ptrString(""),
		QueueSize:              ptrInt(s.QueueSize),
		DeliveryTimeout:        ptrString(s.DeliveryTimeout.String()),
	}
}

// Validate checks durations, sound kinds and numeric ranges.
func (n *NotificationConfig) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"min_duration", n.MinDuration},
		{"cooldown", n.Cooldown},
		{"delivery_timeout", n.DeliveryTimeout},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}
	for _, k := range []*string{n.BadPostureSound, n.BackToNormalSound} {
		if k != nil && *k != "" && !SoundKind(*k).Valid() {
			return fmt.Errorf("unknown sound kind %q", *k)
		}
	}
	if n.QueueSize != nil && *n.QueueSize < 1 {
		return fmt.Errorf("queue_size must be >= 1, got %d", *n.QueueSize)
	}
	return nil
}

// NotificationSettings is the resolved, defaulted form of NotificationConfig.
type NotificationSettings struct {
	Enabled      bool `json:"enabled"`
	BeepEnabled  bool `json:"beep_enabled"`
	ToastEnabled bool `json:"toast_enabled"`

	MinDuration time.Duration `json:"min_duration"`
	Cooldown    time.Duration `json:"cooldown"`

	BadPostureSound        SoundKind `json:"bad_posture_sound"`
	BackToNormalSound      SoundKind `json:"back_to_normal_sound"`
	CustomBadPostureFile   string    `json:"custom_bad_posture_file,omitempty"`
	CustomBackToNormalFile string    `json:"custom_back_to_normal_file,omitempty"`
	SoundsDir              string    `json:"sounds_dir"`
	Volume                 float64   `json:"volume"`

	MessageTemplate     string `json:"message_template"`
	BackToNormalEnabled bool   `json:"back_to_normal_enabled"`
	BackToNormalMessage string `json:"back_to_normal_message"`
	ToastTitle          string `json:"toast_title"`
	AppName             string `json:"app_name"`

	SoundCommand string `json:"sound_command,omitempty"`
	ToastCommand string `json:"toast_command,omitempty"`
	NtfyServer   string `json:"ntfy_server,omitempty"`
	NtfyTopic    string `json:"ntfy_topic,omitempty"`

	QueueSize       int           `json:"queue_size"`
	DeliveryTimeout time.Duration `json:"delivery_timeout"`
}

// AlertMessage fills the message template with an issue label.
func (s NotificationSettings) AlertMessage(issue string) string {
	return strings.ReplaceAll(s.MessageTemplate, IssuePlaceholder, issue)
}

// Settings resolves every field, applying defaults and clamping volume to
// [0, 1].
func (n *NotificationConfig) Settings() NotificationSettings {
	s := NotificationSettings{
		Enabled:             boolOr(n.Enabled, true),
		BeepEnabled:         boolOr(n.BeepEnabled, true),
		ToastEnabled:        boolOr(n.ToastEnabled, true),
		MinDuration:         durationOr(n.MinDuration, 5*time.Second),
		Cooldown:            durationOr(n.Cooldown, 30*time.Second),
		BadPostureSound:     SoundKind(stringOr(n.BadPostureSound, string(SoundNegative))),
		BackToNormalSound:   SoundKind(stringOr(n.BackToNormalSound, string(SoundPositive))),
		SoundsDir:           stringOr(n.SoundsDir, "sounds"),
		Volume:              0.5,
		MessageTemplate:     stringOr(n.MessageTemplate, "Posture Alert: "+IssuePlaceholder),
		BackToNormalEnabled: boolOr(n.BackToNormalEnabled, true),
		BackToNormalMessage: stringOr(n.BackToNormalMessage, "Posture is back to normal!"),
		ToastTitle:          stringOr(n.ToastTitle, "Posture Alert"),
		AppName:             stringOr(n.AppName, "Posture Monitor"),
		SoundCommand:        stringOr(n.SoundCommand, "paplay"),
		ToastCommand:        stringOr(n.ToastCommand, "notify-send"),
		NtfyServer:          stringOr(n.NtfyServer, "https://ntfy.sh"),
		QueueSize:           16,
		DeliveryTimeout:     durationOr(n.DeliveryTimeout, 10*time.Second),
	}
	if n.CustomBadPostureFile != nil {
		s.CustomBadPostureFile = *n.CustomBadPostureFile
	}
	if n.CustomBackToNormalFile != nil {
		s.CustomBackToNormalFile = *n.CustomBackToNormalFile
	}
	if n.NtfyTopic != nil {
		s.NtfyTopic = *n.NtfyTopic
	}
	if n.Volume != nil {
		s.Volume = clamp01(*n.Volume)
	}
	if n.QueueSize != nil && *n.QueueSize > 0 {
		s.QueueSize = *n.QueueSize
	}
	return s
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func durationOr(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
