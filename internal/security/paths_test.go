package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sounds := filepath.Join(root, "sounds")
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(sounds, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(sounds, "escape")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"direct child", filepath.Join(sounds, "negative.wav"), false},
		{"nested missing file", filepath.Join(sounds, "extra", "a.wav"), false},
		{"dot dot", filepath.Join(sounds, "..", "outside", "a.wav"), true},
		{"sibling", filepath.Join(outside, "a.wav"), true},
		{"symlinked dir", filepath.Join(sounds, "escape", "a.wav"), true},
		{"dir itself", sounds, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDir(tt.path, sounds)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideDir)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveIn(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	p, err := ResolveIn(dir, "positive.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "positive.wav"), p)

	_, err = ResolveIn(dir, "../positive.wav")
	assert.ErrorIs(t, err, ErrOutsideDir)

	_, err = ResolveIn(dir, "/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideDir)

	_, err = ResolveIn(dir, "")
	assert.Error(t, err)
}

func TestWithinAny(t *testing.T) {
	t.Parallel()
	a, b := t.TempDir(), t.TempDir()
	assert.NoError(t, WithinAny(filepath.Join(b, "x.png"), a, b))
	assert.ErrorIs(t, WithinAny("/definitely/not/here.png", a, b), ErrOutsideDir)
	assert.Error(t, WithinAny(filepath.Join(a, "x")))
}

func TestValidateOutputPath(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateOutputPath(filepath.Join(os.TempDir(), "session.png")))
	assert.NoError(t, ValidateOutputPath("report.png"))
	assert.Error(t, ValidateOutputPath("/proc/self/report.png"))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"":                    "unnamed",
		"...":                 "unnamed",
		"session 2026-04-02":  "session_2026-04-02",
		"a//b\\c":             "a_b_c",
		"../../etc/passwd":    "etc_passwd",
		"Default.png":         "Default.png",
		"  leading":           "leading",
		"neck forward / tilt": "neck_forward_tilt",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}
