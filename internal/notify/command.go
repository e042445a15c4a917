package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/security"
)

// runFunc runs an external command to completion.
type runFunc func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// paplayFullVolume is the PulseAudio linear volume for 100%.
const paplayFullVolume = 65536

// CommandNotifier plays sounds and shows toasts through desktop commands,
// paplay and notify-send by default. A sound whose file is missing falls
// back to the terminal bell.
type CommandNotifier struct {
	SoundCommand string
	ToastCommand string
	AppName      string
	SoundsDir    string
	Bell         io.Writer

	run runFunc
}

// NewCommandNotifier reads the command names, app name and sounds dir from s.
func NewCommandNotifier(s config.NotificationSettings) *CommandNotifier {
	return &CommandNotifier{
		SoundCommand: s.SoundCommand,
		ToastCommand: s.ToastCommand,
		AppName:      s.AppName,
		SoundsDir:    s.SoundsDir,
		Bell:         os.Stdout,
		run:          runCommand,
	}
}

// SoundPath resolves the file for s inside the sounds dir. Built-in kinds map
// to "<kind>.wav"; SoundCustom requires File.
func (c *CommandNotifier) SoundPath(s Sound) (string, error) {
	name := s.File
	if name == "" {
		if s.Kind == config.SoundCustom || s.Kind == "" {
			return "", fmt.Errorf("sound kind %q needs a file", s.Kind)
		}
		if !s.Kind.Valid() {
			return "", fmt.Errorf("unknown sound kind %q", s.Kind)
		}
		name = string(s.Kind) + ".wav"
	}
	return security.ResolveIn(c.SoundsDir, name)
}

func (c *CommandNotifier) PlaySound(ctx context.Context, s Sound) error {
	if c.SoundCommand == "" {
		return nil
	}
	path, err := c.SoundPath(s)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			diagf("sound file %s missing, ringing bell", path)
			return c.bell()
		}
		return err
	}
	var args []string
	if filepath.Base(c.SoundCommand) == "paplay" {
		vol := int(s.Volume * paplayFullVolume)
		args = append(args, "--volume="+strconv.Itoa(vol))
	}
	args = append(args, path)
	return c.run(ctx, c.SoundCommand, args...)
}

func (c *CommandNotifier) bell() error {
	if c.Bell == nil {
		return nil
	}
	_, err := io.WriteString(c.Bell, "\a")
	return err
}

func (c *CommandNotifier) ShowToast(ctx context.Context, t Toast) error {
	if c.ToastCommand == "" {
		return nil
	}
	var args []string
	if filepath.Base(c.ToastCommand) == "notify-send" {
		if c.AppName != "" {
			args = append(args, "--app-name="+c.AppName)
		}
		if t.Urgent {
			args = append(args, "--urgency=critical")
		}
	}
	args = append(args, t.Title, t.Message)
	return c.run(ctx, c.ToastCommand, args...)
}
