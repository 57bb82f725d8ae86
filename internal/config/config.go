package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/scheduler"
)

type Config struct {
	CommentsDir string `koanf:"comments_dir"` // where relative comment files are looked up
	LogLevel    string `koanf:"log_level"`    // "debug", "info", "warn" or "error"

	// Display settings, also editable at runtime and persisted in the state db
	Settings SettingsConfig `koanf:"settings"`

	// Collision avoidance and catch-up policy
	Tuning TuningConfig `koanf:"tuning"`

	// Mapping from terminal cells to the pixel space the engine works in
	Screen ScreenConfig `koanf:"screen"`

	// External player to follow
	MPRIS MPRISConfig `koanf:"mpris"`
}

// SettingsConfig holds the default display settings.
type SettingsConfig struct {
	Opacity     float64  `koanf:"opacity"`      // 0-1 (default: 0.9)
	Speed       float64  `koanf:"speed"`        // scroll speed multiplier (default: 1)
	FontSize    float64  `koanf:"font_size"`    // px (default: 25)
	HeightRatio float64  `koanf:"height_ratio"` // fraction of the screen used (default: 0.75)
	Density     int      `koanf:"density"`      // 0 (off) to 3
	Offset      float64  `koanf:"offset"`       // seconds added to every comment
	FontFamily  string   `koanf:"font_family"`
	FontWeight  int      `koanf:"font_weight"`
	HideSources []string `koanf:"hide_sources"` // e.g. ["bilibili", "gamer"]
	HideMotions []string `koanf:"hide_motions"` // "top", "bottom", "scroll"
}

// TuningConfig holds the scheduling policy knobs. Zero values use defaults.
type TuningConfig struct {
	MinGapPx        float64       `koanf:"min_gap_px"`
	GapRatio        float64       `koanf:"gap_ratio"`
	Lookahead       time.Duration `koanf:"lookahead"`
	MinStep         time.Duration `koanf:"min_step"`
	MinSeparation   time.Duration `koanf:"min_separation"`
	BaseScroll      time.Duration `koanf:"base_scroll"`
	WidthBoost      float64       `koanf:"width_boost"`
	TrailBuffer     float64       `koanf:"trail_buffer"`
	FixedDwell      time.Duration `koanf:"fixed_dwell"`
	LineSpacing     float64       `koanf:"line_spacing"`
	SmallWindow     time.Duration `koanf:"small_window"`
	MaxNaturalJump  time.Duration `koanf:"max_natural_jump"`
	DriftTolerance  time.Duration `koanf:"drift_tolerance"`
	DensityGrace    time.Duration `koanf:"density_grace"`
	SeekGrace       time.Duration `koanf:"seek_grace"`
	CatchUpFraction float64       `koanf:"catch_up_fraction"`
}

// ScreenConfig maps terminal cells to engine pixels.
type ScreenConfig struct {
	CellWidth  float64 `koanf:"cell_width"`  // px per column (default: 10)
	CellHeight float64 `koanf:"cell_height"` // px per row (default: 30)
}

// MPRISConfig selects the player to follow over D-Bus.
type MPRISConfig struct {
	Player       string        `koanf:"player"`        // bus name suffix, e.g. "mpv"
	PollInterval time.Duration `koanf:"poll_interval"` // default: 250ms
}

func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom reads the given files in order; later files override earlier ones.
// Missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		LogLevel: "info",
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.CommentsDir != "" {
		cfg.CommentsDir = expandPath(cfg.CommentsDir)
	}
	cfg.MPRIS.Player = strings.TrimPrefix(cfg.MPRIS.Player, "org.mpris.MediaPlayer2.")

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/danmaku/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "danmaku", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasMPRISConfig returns true if a player to follow is configured.
func (c *Config) HasMPRISConfig() bool {
	return c.MPRIS.Player != ""
}

// GetSettings returns the display settings with defaults applied.
func (c *Config) GetSettings() scheduler.Settings {
	s := c.Settings
	st := scheduler.DefaultSettings()

	if s.Opacity > 0 && s.Opacity <= 1 {
		st.Opacity = s.Opacity
	}
	if s.Speed > 0 {
		st.Speed = s.Speed
	}
	if s.FontSize > 0 {
		st.FontSize = s.FontSize
	}
	if s.HeightRatio > 0 && s.HeightRatio <= 1 {
		st.HeightRatio = s.HeightRatio
	}
	st.Density = min(max(s.Density, 0), 3)
	st.Offset = time.Duration(s.Offset * float64(time.Second))
	if s.FontFamily != "" {
		st.FontFamily = s.FontFamily
	}
	if s.FontWeight > 0 {
		st.FontWeight = s.FontWeight
	}
	for _, name := range s.HideSources {
		st.SourceFilter |= comment.ParseSource(name)
	}
	for _, name := range s.HideMotions {
		st.MotionFilter |= parseMotionFilter(name)
	}

	return st
}

func parseMotionFilter(name string) comment.MotionFilter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "top":
		return comment.FilterTop
	case "bottom":
		return comment.FilterBottom
	case "scroll", "scrolling":
		return comment.FilterScroll
	default:
		return 0
	}
}

// GetTuning returns the scheduling policy with defaults applied.
func (c *Config) GetTuning() scheduler.Tuning {
	t := c.Tuning
	tu := scheduler.DefaultTuning()

	setFloat(&tu.Lanes.MinGapPx, t.MinGapPx)
	setFloat(&tu.Lanes.GapRatio, t.GapRatio)
	setDuration(&tu.Lanes.Lookahead, t.Lookahead)
	setDuration(&tu.Lanes.MinStep, t.MinStep)
	setDuration(&tu.Lanes.MinSeparation, t.MinSeparation)
	setDuration(&tu.BaseScroll, t.BaseScroll)
	setFloat(&tu.WidthBoost, t.WidthBoost)
	setFloat(&tu.TrailBuffer, t.TrailBuffer)
	setDuration(&tu.FixedDwell, t.FixedDwell)
	setFloat(&tu.LineSpacing, t.LineSpacing)
	setDuration(&tu.SmallWindow, t.SmallWindow)
	setDuration(&tu.MaxNaturalJump, t.MaxNaturalJump)
	setDuration(&tu.DriftTolerance, t.DriftTolerance)
	setDuration(&tu.DensityGrace, t.DensityGrace)
	setDuration(&tu.SeekGrace, t.SeekGrace)
	if t.CatchUpFraction > 0 && t.CatchUpFraction < 1 {
		tu.CatchUpFraction = t.CatchUpFraction
	}

	return tu
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// GetScreenConfig returns the cell mapping with defaults applied.
func (c *Config) GetScreenConfig() ScreenConfig {
	cfg := c.Screen
	if cfg.CellWidth <= 0 {
		cfg.CellWidth = 10
	}
	if cfg.CellHeight <= 0 {
		cfg.CellHeight = 30
	}
	return cfg
}

// GetMPRISConfig returns the MPRIS configuration with defaults applied.
func (c *Config) GetMPRISConfig() MPRISConfig {
	cfg := c.MPRIS
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return cfg
}
