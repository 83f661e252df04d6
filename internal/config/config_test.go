package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Summary = "Cours"
	cfg.SlotMinutes = 45
	cfg.Days = []DayConfig{{Token: "Montag", Weekday: "Monday"}}
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.Watch.Jobs = []JobConfig{{
		ID:     "fall",
		Image:  "/tmp/fall.png",
		Output: "/tmp/fall.ics",
		Start:  "2024-09-02",
		End:    "2024-12-20",
	}}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, 45*time.Minute, loaded.SlotDuration())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("summary: Class\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Class", cfg.Summary)
	assert.Equal(t, 30, cfg.SlotMinutes)
	assert.Len(t, cfg.Days, 7)
	assert.Equal(t, "eng+fra", cfg.OCR.Languages)
	assert.Equal(t, 2, cfg.Preprocess.Scale)
	assert.InDelta(t, 0.7, cfg.Preprocess.Threshold, 1e-9)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("days: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownWeekday(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("days:\n  - token: Lundi\n    weekday: Lundi\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateJobNeedsOneSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Jobs = []JobConfig{{ID: "x", Output: "x.ics", Start: "2024-01-01", End: "2024-02-01"}}
	assert.Error(t, cfg.Validate())

	cfg.Watch.Jobs[0].Image = "a.png"
	cfg.Watch.Jobs[0].URL = "https://example.com/timetable"
	assert.Error(t, cfg.Validate())

	cfg.Watch.Jobs[0].Image = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidateJobDates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Jobs = []JobConfig{{ID: "x", Image: "a.png", Output: "x.ics", Start: "01/02/2024", End: "2024-02-01"}}
	assert.Error(t, cfg.Validate())
}

func TestValidateTimezone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	assert.Error(t, cfg.Validate())

	cfg.Timezone = "UTC"
	assert.NoError(t, cfg.Validate())
}

func TestDictionaryFollowsDays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = []DayConfig{
		{Token: "Lun", Weekday: "monday"},
		{Token: "Mar", Weekday: "Tuesday"},
		{Token: "??", Weekday: "Someday"},
	}

	d := cfg.Dictionary()
	assert.Equal(t, 2, d.Len())

	name, ok := d.Match("Lun.")
	assert.True(t, ok)
	assert.Equal(t, "Monday", name)
}

func TestEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
