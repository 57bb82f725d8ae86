package scheduler

import (
	"time"

	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/lanes"
	"github.com/llehouerou/danmaku/internal/motion"
)

// Settings is the user-facing display configuration. It can be swapped
// mid-session with UpdateSettings.
type Settings struct {
	Opacity      float64 // 0..1, applied by the renderer
	Speed        float64 // scroll speed multiplier
	FontSize     float64
	HeightRatio  float64 // fraction of the screen used for rows
	SourceFilter comment.Source
	MotionFilter comment.MotionFilter
	Density      int           // 0 disables density limiting, 1..3
	Offset       time.Duration // per-episode shift
	FontFamily   string
	FontWeight   int
}

// DefaultSettings returns the settings used for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Opacity:     0.9,
		Speed:       1,
		FontSize:    25,
		HeightRatio: 0.75,
		FontFamily:  "sans-serif",
		FontWeight:  400,
	}
}

// Tuning holds the scheduling policy knobs.
type Tuning struct {
	Lanes lanes.Config

	BaseScroll  time.Duration // crossing time of zero-width text at speed 1
	WidthBoost  float64
	TrailBuffer float64
	FixedDwell  time.Duration
	LineSpacing float64

	SmallWindow     time.Duration // windows shorter than this are real-time playback
	MaxNaturalJump  time.Duration // larger forward jumps are seeks
	DriftTolerance  time.Duration // resync the clock when it drifts further than this
	DensityGrace    time.Duration // comments before this are never density capped
	SeekGrace       time.Duration // how far behind a seek target comments are re-admitted
	CatchUpFraction float64       // largest start offset as a fraction of the motion
}

// DefaultTuning returns the policy used when nothing is configured.
func DefaultTuning() Tuning {
	return Tuning{
		Lanes:           lanes.DefaultConfig(),
		BaseScroll:      8 * time.Second,
		WidthBoost:      0.5,
		TrailBuffer:     0,
		FixedDwell:      4 * time.Second,
		LineSpacing:     1.2,
		SmallWindow:     300 * time.Millisecond,
		MaxNaturalJump:  2 * time.Second,
		DriftTolerance:  150 * time.Millisecond,
		DensityGrace:    8 * time.Second,
		SeekGrace:       3 * time.Second,
		CatchUpFraction: 0.5,
	}
}

// Screen is the drawing area in pixels.
type Screen struct {
	Width  float64
	Height float64
}

func geometry(st Settings, tu Tuning, sc Screen) motion.Geometry {
	return motion.Geometry{
		ScreenWidth:  sc.Width,
		ScreenHeight: sc.Height,
		FontSize:     st.FontSize,
		HeightRatio:  st.HeightRatio,
		LineSpacing:  tu.LineSpacing,
		Speed:        st.Speed,
		BaseScroll:   tu.BaseScroll,
		WidthBoost:   tu.WidthBoost,
		TrailBuffer:  tu.TrailBuffer,
		FixedDwell:   tu.FixedDwell,
	}
}
