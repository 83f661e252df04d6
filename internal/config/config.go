package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"icalgen/internal/dayname"
	"icalgen/internal/model"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// DayConfig maps one token of the printed timetable to an English weekday.
type DayConfig struct {
	Token   string `yaml:"token" json:"token" validate:"required"`
	Weekday string `yaml:"weekday" json:"weekday" validate:"required,weekday"`
}

// OCRConfig describes how the tesseract CLI is invoked.
type OCRConfig struct {
	// Command is the tesseract executable name or path.
	Command string `yaml:"command" json:"command"`
	// Languages is passed to -l, e.g. "eng+fra".
	Languages string `yaml:"languages" json:"languages"`
	// TessdataDir, if set, is passed as --tessdata-dir.
	TessdataDir string `yaml:"tessdata_dir,omitempty" json:"tessdata_dir,omitempty"`
	// TimeoutSeconds bounds one OCR run.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`
}

// PreprocessConfig controls the image cleanup done before OCR.
type PreprocessConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Scale is the integer nearest-neighbour upscale factor.
	Scale int `yaml:"scale" json:"scale" validate:"gte=0,lte=8"`
	// Threshold is the luminance cut (0..1) between black and white.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gte=0,lte=1"`
	// KeepFile leaves the preprocessed PNG next to the input.
	KeepFile bool `yaml:"keep_file" json:"keep_file"`
}

// CaptureConfig controls headless screenshots of timetable pages.
type CaptureConfig struct {
	Width          int `yaml:"width" json:"width" validate:"gte=0"`
	Height         int `yaml:"height" json:"height" validate:"gte=0"`
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"gte=0"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// JobConfig is one periodically regenerated calendar.
type JobConfig struct {
	ID string `yaml:"id" json:"id" validate:"required"`
	// Exactly one of Image or URL is set. Image may be a local path or an
	// http(s) URL to download; URL is a page to screenshot.
	Image  string `yaml:"image,omitempty" json:"image,omitempty" validate:"required_without=URL,excluded_with=URL"`
	URL    string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	Output string `yaml:"output" json:"output" validate:"required"`
	// Start / End are YYYY-MM-DD.
	Start string `yaml:"start" json:"start" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" json:"end" validate:"required,datetime=2006-01-02"`
}

// WatchConfig drives `icalgen watch`.
type WatchConfig struct {
	// Refresh is a cron spec (e.g. "0 6 * * *").
	Refresh string      `yaml:"refresh" json:"refresh"`
	Jobs    []JobConfig `yaml:"jobs" json:"jobs" validate:"dive"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=console json"`
}

// Config is the top-level application configuration.
type Config struct {
	// Summary is the title of every generated event.
	Summary string `yaml:"summary" json:"summary"`

	// SlotMinutes is the length of one timetable slot.
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes" validate:"gte=0,lte=1440"`

	// Timezone is the IANA zone used to build event dates ("Local" for the
	// host zone). Output times are floating regardless.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Days is the ordered day-name vocabulary used to recognize day lines.
	Days []DayConfig `yaml:"days" json:"days" validate:"dive"`

	// CacheDir holds downloaded timetable images.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	OCR        OCRConfig        `yaml:"ocr" json:"ocr"`
	Preprocess PreprocessConfig `yaml:"preprocess" json:"preprocess"`
	Capture    CaptureConfig    `yaml:"capture" json:"capture"`

	// Listen is the HTTP listen address for `icalgen serve`.
	Listen string `yaml:"listen" json:"listen"`

	// RateLimitPerMinute caps API requests per client IP.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute" validate:"gte=0"`

	// CORSOrigins lists allowed browser origins for the API.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Watch WatchConfig `yaml:"watch" json:"watch"`
	Log   LogConfig   `yaml:"log" json:"log"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Summary:     model.DefaultSummary,
		SlotMinutes: int(model.SlotDuration / time.Minute),
		Timezone:    "Local",
		Days:        defaultDays(),
		CacheDir:    "./var/image-cache",
		OCR: OCRConfig{
			Command:        "tesseract",
			Languages:      "eng+fra",
			TimeoutSeconds: 60,
		},
		Preprocess: PreprocessConfig{
			Enabled:   true,
			Scale:     2,
			Threshold: 0.7,
		},
		Capture: CaptureConfig{
			Width:          1280,
			Height:         1600,
			TimeoutSeconds: 30,
		},
		Listen:             "127.0.0.1:8080",
		RateLimitPerMinute: 60,
		CORSOrigins:        []string{"*"},
		BasicAuth:          nil,
		Watch: WatchConfig{
			Refresh: "0 6 * * *",
			Jobs:    []JobConfig{},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDays() []DayConfig {
	days := make([]DayConfig, 0, len(dayname.French))
	for _, e := range dayname.French {
		days = append(days, DayConfig{Token: e.Token, Weekday: e.Weekday.String()})
	}
	return days
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Summary == "" {
		c.Summary = def.Summary
	}
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = def.SlotMinutes
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if len(c.Days) == 0 {
		c.Days = def.Days
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.OCR.Command == "" {
		c.OCR.Command = def.OCR.Command
	}
	if c.OCR.Languages == "" {
		c.OCR.Languages = def.OCR.Languages
	}
	if c.OCR.TimeoutSeconds <= 0 {
		c.OCR.TimeoutSeconds = def.OCR.TimeoutSeconds
	}
	if c.Preprocess.Scale <= 0 {
		c.Preprocess.Scale = def.Preprocess.Scale
	}
	if c.Preprocess.Threshold <= 0 || c.Preprocess.Threshold > 1 {
		c.Preprocess.Threshold = def.Preprocess.Threshold
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = def.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = def.Capture.Height
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = def.Capture.TimeoutSeconds
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = def.RateLimitPerMinute
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = def.CORSOrigins
	}
	if c.Watch.Refresh == "" {
		c.Watch.Refresh = def.Watch.Refresh
	}
	if c.Watch.Jobs == nil {
		c.Watch.Jobs = []JobConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks field constraints after Normalize.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Dictionary builds the day-name dictionary from Days, in order.
func (c *Config) Dictionary() *dayname.Dictionary {
	entries := make([]dayname.Entry, 0, len(c.Days))
	for _, d := range c.Days {
		wd, ok := dayname.ParseWeekday(d.Weekday)
		if !ok {
			continue
		}
		entries = append(entries, dayname.Entry{Token: d.Token, Weekday: wd})
	}
	return dayname.New(entries)
}

// SlotDuration returns SlotMinutes as a duration.
func (c *Config) SlotDuration() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

// Location resolves Timezone; "" and "Local" mean time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := dayname.ParseWeekday(fl.Field().String())
		return ok
	})
	return v
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".icalgen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
