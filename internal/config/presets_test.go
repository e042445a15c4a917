package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/fsutil"
)

const metricPath = "presets/metric_presets.json"

func TestPresetStore_LoadMissingWritesDefaults(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	store := NewMetricPresetStore(fsys, metricPath)

	require.NoError(t, store.Load())
	require.True(t, fsys.Exists(metricPath))
	assert.False(t, fsys.Exists(metricPath+".tmp"))

	raw, err := fsys.ReadFile(metricPath)
	require.NoError(t, err)
	var file PresetFile[MetricPreset]
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.Equal(t, PresetFileVersion, file.Version)
	assert.Equal(t, "Default", file.DefaultPreset)
	if diff := cmp.Diff(DefaultMetricPresets().Presets, file.Presets); diff != "" {
		t.Errorf("written presets mismatch (-want +got):\n%s", diff)
	}
}

func TestPresetStore_LoadCorruptFallsBack(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile(metricPath, []byte("{not json"), 0o644))
	store := NewMetricPresetStore(fsys, metricPath)

	err := store.Load()
	require.ErrorIs(t, err, ErrCorruptPresets)

	name, p := store.Default()
	assert.Equal(t, "Default", name)
	assert.Equal(t, 400.0, p.Slouching)
	assert.Equal(t, []string{"Default", "Relaxed", "Sensitive"}, store.Names())
}

func TestPresetStore_LoadEmptyPresetsFallsBack(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile(metricPath, []byte(`{"version":"1.0","presets":{}}`), 0o644))
	store := NewMetricPresetStore(fsys, metricPath)

	require.ErrorIs(t, store.Load(), ErrCorruptPresets)
	_, err := store.Get("Sensitive")
	assert.NoError(t, err)
}

func TestPresetStore_LoadMergesCustomAndKeepsSystem(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	body := `{
  "version": "1.0",
  "default_preset": "Desk",
  "presets": {
    "Default": {"slouching": 1, "uneven_shoulders": 1, "head_tilt": 1, "neck_forward": 1, "shoulders_forward": 1},
    "Desk": {"slouching": 350, "uneven_shoulders": 120, "head_tilt": 8, "neck_forward": 25, "shoulders_forward": 350, "enable_head_tilt": false},
    "Broken": {"slouching": -5}
  }
}`
	require.NoError(t, fsys.WriteFile(metricPath, []byte(body), 0o644))
	store := NewMetricPresetStore(fsys, metricPath)
	require.NoError(t, store.Load())

	def, err := store.Get("Default")
	require.NoError(t, err)
	assert.Equal(t, 400.0, def.Slouching, "system preset must not be overridden by the file")

	name, desk := store.Default()
	assert.Equal(t, "Desk", name)
	assert.Equal(t, [5]bool{true, true, false, true, true}, desk.Enabled())
	assert.Equal(t, [5]float64{350, 120, 8, 25, 350}, desk.Thresholds())

	_, err = store.Get("Broken")
	assert.ErrorIs(t, err, ErrPresetNotFound)
	assert.Equal(t, []string{"Default", "Relaxed", "Sensitive", "Desk"}, store.Names())
}

func TestPresetStore_LoadLogsSkippedEntries(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	fsys := fsutil.NewMemoryFileSystem()
	body := `{
  "version": "1.0",
  "default_preset": "custom",
  "presets": {
    "Default": {"slouching": 1, "uneven_shoulders": 1, "head_tilt": 1, "neck_forward": 1, "shoulders_forward": 1},
    "custom": {"slouching": 300, "uneven_shoulders": 100, "head_tilt": 10, "neck_forward": 20, "shoulders_forward": 300}
  }
}`
	require.NoError(t, fsys.WriteFile(metricPath, []byte(body), 0o644))
	store := NewMetricPresetStore(fsys, metricPath)
	require.NoError(t, store.Load())

	logged := ops.String()
	assert.Contains(t, logged, `[config] metric presets: ignoring "Default" in `+metricPath+", it shadows a system preset")
	assert.Contains(t, logged, `metric presets: dropping "custom"`)
	assert.Contains(t, logged, "reserved")

	_, err := store.Get("custom")
	assert.ErrorIs(t, err, ErrPresetNotFound)
	name, _ := store.Default()
	assert.Equal(t, "Default", name)
}

func TestPresetStore_ReservedName(t *testing.T) {
	t.Parallel()
	store := NewMetricPresetStore(fsutil.NewMemoryFileSystem(), metricPath)
	require.NoError(t, store.Load())

	p := MetricPreset{Slouching: 420, UnevenShoulders: 160, HeadTilt: 12, NeckForward: 32, ShouldersForward: 420}
	for _, name := range []string{"Custom", "CUSTOM", "custom"} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Save(name, p), ErrReservedPresetName)
		})
	}
	assert.NoError(t, store.Save("Customised", p))
	assert.False(t, store.IsSystem("Custom"))
}

func TestPresetStore_UnknownDefaultFallsBack(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile(metricPath, []byte(`{"version":"1.0","default_preset":"Gone","presets":{"Default":{}}}`), 0o644))
	store := NewMetricPresetStore(fsys, metricPath)
	require.NoError(t, store.Load())

	name, _ := store.Default()
	assert.Equal(t, "Default", name)
}

func TestPresetStore_SaveDeleteSetDefault(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	store := NewMetricPresetStore(fsys, metricPath)
	require.NoError(t, store.Load())

	custom := MetricPreset{Slouching: 420, UnevenShoulders: 160, HeadTilt: 12, NeckForward: 32, ShouldersForward: 420}
	require.NoError(t, store.Save("Evening", custom))
	require.NoError(t, store.SetDefault("Evening"))

	reloaded := NewMetricPresetStore(fsys, metricPath)
	require.NoError(t, reloaded.Load())
	name, got := reloaded.Default()
	assert.Equal(t, "Evening", name)
	assert.Equal(t, custom, got)

	require.NoError(t, reloaded.Delete("Evening"))
	name, _ = reloaded.Default()
	assert.Equal(t, "Default", name, "deleting the default restores the built-in default")
	assert.ErrorIs(t, reloaded.Delete("Evening"), ErrPresetNotFound)
	assert.ErrorIs(t, reloaded.SetDefault("Evening"), ErrPresetNotFound)
}

func TestPresetStore_SystemPresetsProtected(t *testing.T) {
	t.Parallel()
	store := NewPerformancePresetStore(fsutil.NewMemoryFileSystem(), "perf.json")
	require.NoError(t, store.Load())

	for _, name := range []string{"LOW", "MEDIUM", "HIGH"} {
		assert.True(t, store.IsSystem(name))
		assert.ErrorIs(t, store.Delete(name), ErrSystemPreset)
		assert.ErrorIs(t, store.Save(name, PerformancePreset{}), ErrSystemPreset)
	}
	assert.False(t, store.IsSystem("Custom"))
}

func TestPresetStore_SaveRejectsInvalid(t *testing.T) {
	t.Parallel()
	store := NewPerformancePresetStore(fsutil.NewMemoryFileSystem(), "perf.json")
	require.NoError(t, store.Load())

	err := store.Save("Turbo", PerformancePreset{FrameSkipInterval: 0, HistorySize: 20, OutlierStdDeviations: 3, FaceLandmarkCount: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame_skip_interval")

	assert.Error(t, store.Save("", PerformancePreset{}))
	assert.Error(t, store.Save(" padded", PerformancePreset{}))
	assert.Error(t, store.Save("tab\tname", PerformancePreset{}))
}

func TestPresetStore_SaveWriteFailure(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	store := NewPerformancePresetStore(fsys, "perf.json")
	require.NoError(t, store.Load())

	fsys.FailWrites = true
	p := PerformancePreset{FrameSkipInterval: 3, HistorySize: 15, OutlierStdDeviations: 2.8, FaceLandmarkCount: 20}
	assert.Error(t, store.Save("Laptop", p))
}

func TestPresetStore_Resolve(t *testing.T) {
	t.Parallel()
	store := NewPerformancePresetStore(fsutil.NewMemoryFileSystem(), "perf.json")
	require.NoError(t, store.Load())

	name, p := store.Resolve("HIGH")
	assert.Equal(t, "HIGH", name)
	assert.Equal(t, 1, p.FrameSkipInterval)

	name, p = store.Resolve("")
	assert.Equal(t, "MEDIUM", name)
	assert.Equal(t, 2, p.FrameSkipInterval)

	name, _ = store.Resolve("ULTRA")
	assert.Equal(t, "MEDIUM", name)
}

func TestDefaultPerformancePresets_Valid(t *testing.T) {
	t.Parallel()
	for name, p := range DefaultPerformancePresets().Presets {
		assert.NoError(t, p.Validate(), name)
	}
	low := DefaultPerformancePresets().Presets["LOW"]
	assert.Equal(t, 6, low.FrameSkipInterval)
	assert.Equal(t, 10, low.HistorySize)
	assert.Equal(t, 2.5, low.OutlierStdDeviations)
	assert.Equal(t, 5, low.FaceLandmarkCount)
}

func TestMetricPreset_Validate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, MetricPreset{}.Validate())
	err := MetricPreset{HeadTilt: -1, NeckForward: -2}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "head_tilt")
	assert.Contains(t, err.Error(), "neck_forward")
}

func TestPresetStore_SaveWriteFailureRollsBack(t *testing.T) {
	t.Parallel()
	fsys := fsutil.NewMemoryFileSystem()
	store := NewMetricPresetStore(fsys, metricPath)
	require.NoError(t, store.Load())

	fsys.FailWrites = true
	require.Error(t, store.Save("Temp", MetricPreset{Slouching: 1}))
	_, err := store.Get("Temp")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}
