package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/banshee-data/posture.report/internal/fsutil"
)

// PresetFileVersion is written into every preset file.
const PresetFileVersion = "1.0"

var (
	// ErrPresetNotFound is returned for an unknown preset name.
	ErrPresetNotFound = errors.New("preset not found")
	// ErrSystemPreset is returned when deleting or overwriting a built-in.
	ErrSystemPreset = errors.New("system presets cannot be modified")
	// ErrCorruptPresets is returned by Load when the file could not be
	// used. The store has fallen back to its defaults.
	ErrCorruptPresets = errors.New("preset file unusable")
	// ErrReservedPresetName is returned for names that cannot hold a
	// custom preset.
	ErrReservedPresetName = errors.New("preset name is reserved")
)

// ReservedPresetName stands for hand-edited settings that are not saved
// under any name.
const ReservedPresetName = "Custom"

// PresetFile is the on-disk shape shared by metric and performance presets.
type PresetFile[T any] struct {
	Version       string       `json:"version"`
	DefaultPreset string       `json:"default_preset"`
	Presets       map[string]T `json:"presets"`
}

func (p PresetFile[T]) clone() PresetFile[T] {
	out := PresetFile[T]{Version: p.Version, DefaultPreset: p.DefaultPreset, Presets: make(map[string]T, len(p.Presets))}
	for k, v := range p.Presets {
		out.Presets[k] = v
	}
	return out
}

// PresetStore keeps a named preset collection in a JSON file. System
// presets always exist and cannot be deleted or overwritten.
type PresetStore[T any] struct {
	mu       sync.RWMutex
	fsys     fsutil.FileSystem
	path     string
	kind     string
	system   []string
	defaults PresetFile[T]
	validate func(T) error
	data     PresetFile[T]
}

// NewPresetStore returns a store holding defaults until Load is called.
// Every preset in defaults is a system preset.
func NewPresetStore[T any](fsys fsutil.FileSystem, path, kind string, defaults PresetFile[T], validate func(T) error) *PresetStore[T] {
	system := make([]string, 0, len(defaults.Presets))
	for name := range defaults.Presets {
		system = append(system, name)
	}
	sort.Strings(system)
	if validate == nil {
		validate = func(T) error { return nil }
	}
	return &PresetStore[T]{
		fsys:     fsys,
		path:     path,
		kind:     kind,
		system:   system,
		defaults: defaults,
		validate: validate,
		data:     defaults.clone(),
	}
}

// Load reads the preset file. A missing file is created from the defaults.
// An unreadable or invalid file leaves the defaults in place and returns an
// error wrapping ErrCorruptPresets; callers log it and carry on.
func (s *PresetStore[T]) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.fsys.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.data = s.defaults.clone()
		diagf("%s presets: %s missing, writing defaults", s.kind, s.path)
		return s.persistLocked()
	}
	if err != nil {
		s.data = s.defaults.clone()
		opsf("%s presets: read %s: %v; using defaults", s.kind, s.path, err)
		return fmt.Errorf("%w: %w", ErrCorruptPresets, err)
	}

	var file PresetFile[T]
	if err := json.Unmarshal(raw, &file); err != nil {
		s.data = s.defaults.clone()
		opsf("%s presets: parse %s: %v; using defaults", s.kind, s.path, err)
		return fmt.Errorf("%w: %w", ErrCorruptPresets, err)
	}
	if len(file.Presets) == 0 {
		s.data = s.defaults.clone()
		opsf("%s presets: %s has no presets; using defaults", s.kind, s.path)
		return fmt.Errorf("%w: no presets", ErrCorruptPresets)
	}

	merged := s.defaults.clone()
	merged.DefaultPreset = file.DefaultPreset
	for name, p := range file.Presets {
		if s.isSystem(name) {
			opsf("%s presets: ignoring %q in %s, it shadows a system preset", s.kind, name, s.path)
			continue
		}
		if err := ValidatePresetName(name); err != nil {
			opsf("%s presets: dropping %q: %v", s.kind, name, err)
			continue
		}
		if err := s.validate(p); err != nil {
			opsf("%s presets: dropping %q: %v", s.kind, name, err)
			continue
		}
		merged.Presets[name] = p
	}
	if _, ok := merged.Presets[merged.DefaultPreset]; !ok {
		merged.DefaultPreset = s.defaults.DefaultPreset
	}
	s.data = merged
	diagf("%s presets: loaded %d from %s (default %q)", s.kind, len(merged.Presets), s.path, merged.DefaultPreset)
	return nil
}

// Names lists system presets first, then custom presets, each sorted.
func (s *PresetStore[T]) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := append([]string(nil), s.system...)
	var custom []string
	for name := range s.data.Presets {
		if !s.isSystem(name) {
			custom = append(custom, name)
		}
	}
	sort.Strings(custom)
	return append(names, custom...)
}

// Get returns the named preset.
func (s *PresetStore[T]) Get(name string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data.Presets[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s preset %q: %w", s.kind, name, ErrPresetNotFound)
	}
	return p, nil
}

// Default returns the file's default preset.
func (s *PresetStore[T]) Default() (string, T) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := s.data.DefaultPreset
	return name, s.data.Presets[name]
}

// Resolve returns the named preset, or the default when name is empty or
// unknown. The returned name is the one actually used.
func (s *PresetStore[T]) Resolve(name string) (string, T) {
	if name != "" {
		if p, err := s.Get(name); err == nil {
			return name, p
		}
		opsf("%s presets: %q not found, using default", s.kind, name)
	}
	return s.Default()
}

// IsSystem reports whether name is a built-in preset.
func (s *PresetStore[T]) IsSystem(name string) bool {
	return s.isSystem(name)
}

func (s *PresetStore[T]) isSystem(name string) bool {
	i := sort.SearchStrings(s.system, name)
	return i < len(s.system) && s.system[i] == name
}

// Save adds or replaces a custom preset and persists the file.
func (s *PresetStore[T]) Save(name string, p T) error {
	if err := ValidatePresetName(name); err != nil {
		return err
	}
	if s.isSystem(name) {
		return fmt.Errorf("%s preset %q: %w", s.kind, name, ErrSystemPreset)
	}
	if err := s.validate(p); err != nil {
		return fmt.Errorf("%s preset %q: %w", s.kind, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.data.Presets[name]
	s.data.Presets[name] = p
	if err := s.persistLocked(); err != nil {
		if existed {
			s.data.Presets[name] = prev
		} else {
			delete(s.data.Presets, name)
		}
		return err
	}
	return nil
}

// Delete removes a custom preset. If it was the default, the built-in
// default takes over.
func (s *PresetStore[T]) Delete(name string) error {
	if s.isSystem(name) {
		return fmt.Errorf("%s preset %q: %w", s.kind, name, ErrSystemPreset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Presets[name]; !ok {
		return fmt.Errorf("%s preset %q: %w", s.kind, name, ErrPresetNotFound)
	}
	delete(s.data.Presets, name)
	if s.data.DefaultPreset == name {
		s.data.DefaultPreset = s.defaults.DefaultPreset
	}
	return s.persistLocked()
}

// SetDefault records name as the file's default preset.
func (s *PresetStore[T]) SetDefault(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Presets[name]; !ok {
		return fmt.Errorf("%s preset %q: %w", s.kind, name, ErrPresetNotFound)
	}
	s.data.DefaultPreset = name
	return s.persistLocked()
}

func (s *PresetStore[T]) persistLocked() error {
	s.data.Version = PresetFileVersion
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s presets: %w", s.kind, err)
	}
	if err := fsutil.WriteFileAtomic(s.fsys, s.path, b, 0o644); err != nil {
		opsf("%s presets: save %s: %v", s.kind, s.path, err)
		return err
	}
	return nil
}

// ValidatePresetName rejects empty, overlong, control-character and
// reserved names.
func ValidatePresetName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("preset name must not be empty")
	}
	if strings.EqualFold(trimmed, ReservedPresetName) {
		return fmt.Errorf("%q: %w", name, ErrReservedPresetName)
	}
	if trimmed != name {
		return fmt.Errorf("preset name %q has surrounding whitespace", name)
	}
	if len(name) > 64 {
		return fmt.Errorf("preset name longer than 64 bytes: %q", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("preset name %q contains control characters", name)
		}
	}
	return nil
}
