// Package security holds the path checks applied to user-supplied file names:
// custom notification sounds and exported reports.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned when a path resolves outside every allowed
// directory.
var ErrOutsideDir = errors.New("path escapes allowed directory")

// canonical resolves p to an absolute path with symlinks evaluated. For a
// path that does not exist yet, the deepest existing ancestor is resolved and
// the remaining components are appended, so a dangling name under a
// symlinked directory still lands where the link points.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rest), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// WithinDir returns nil when path resolves inside dir.
func WithinDir(path, dir string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	d, err := canonical(dir)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not under %s", ErrOutsideDir, path, dir)
	}
	return nil
}

// WithinAny returns nil when path resolves inside one of dirs.
func WithinAny(path string, dirs ...string) error {
	if len(dirs) == 0 {
		return errors.New("no allowed directories")
	}
	for _, d := range dirs {
		if WithinDir(path, d) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be under one of %v", ErrOutsideDir, path, dirs)
}

// ResolveIn joins a relative name onto dir, or takes an absolute name as is,
// and checks the result stays inside dir.
func ResolveIn(dir, name string) (string, error) {
	if name == "" {
		return "", errors.New("empty file name")
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if err := WithinDir(p, dir); err != nil {
		return "", err
	}
	return p, nil
}

// ValidateOutputPath accepts paths under the temp directory, the working
// directory, or any of extra.
func ValidateOutputPath(path string, extra ...string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	dirs := append([]string{os.TempDir(), cwd}, extra...)
	return WithinAny(path, dirs...)
}

const maxFilenameLen = 128

// SanitizeFilename maps s onto [A-Za-z0-9._-], collapsing runs of other
// characters into one underscore. Leading and trailing dots and underscores
// are trimmed; an empty result becomes "unnamed".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := r == '.' || r == '_' || r == '-' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
		if !ok {
			pending = true
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
