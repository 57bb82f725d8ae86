// Package motion models where bullets are on screen over virtual time.
//
// Scrolling bullets move at a constant velocity in virtual (video) time, so the
// position of any bullet is a linear function of the virtual clock. Distances are
// measured along the direction of travel from the entry edge of the screen:
// a bullet's leading edge is at 0 when it starts to enter and its trailing edge
// reaches ScreenWidth when it has fully left.
package motion

import (
	"math"
	"time"

	"github.com/llehouerou/danmaku/internal/comment"
)

// Ms converts a duration to fractional milliseconds.
func Ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FromMs converts fractional milliseconds to a duration.
func FromMs(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// maxLengthFactor caps how much faster long text may move than short text.
const maxLengthFactor = 2.0

// Geometry describes the drawing area and motion settings.
type Geometry struct {
	ScreenWidth  float64
	ScreenHeight float64
	FontSize     float64
	HeightRatio  float64 // fraction of the screen height available to rows
	LineSpacing  float64 // row height as a multiple of FontSize
	Speed        float64 // user speed multiplier

	BaseScroll  time.Duration // time a zero-width comment takes to cross at speed 1
	WidthBoost  float64       // velocity gained per screen-width of text
	TrailBuffer float64       // extra px travelled after leaving the screen
	FixedDwell  time.Duration // virtual time Top/Bottom comments stay visible
}

// LineHeight returns the height of one row in pixels.
func (g Geometry) LineHeight() float64 {
	spacing := g.LineSpacing
	if spacing <= 0 {
		spacing = 1
	}
	return g.FontSize * spacing
}

// Rows returns how many rows fit in the usable part of the screen. At least one.
func (g Geometry) Rows() int {
	lh := g.LineHeight()
	if lh <= 0 {
		return 1
	}
	ratio := g.HeightRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return max(1, int(math.Floor(g.ScreenHeight*ratio/lh)))
}

// RowTop returns the y offset of a row. Bottom rows count up from the bottom
// edge of the screen; the others count down from the top.
func (g Geometry) RowTop(f comment.Family, row int) float64 {
	lh := g.LineHeight()
	if f == comment.FamilyBottom {
		return g.ScreenHeight - float64(row+1)*lh
	}
	return float64(row) * lh
}

// BaseVelocity is the velocity of zero-width text in px per virtual ms.
func (g Geometry) BaseVelocity() float64 {
	base := g.BaseScroll
	if base <= 0 {
		base = 8 * time.Second
	}
	speed := g.Speed
	if speed <= 0 {
		speed = 1
	}
	return g.ScreenWidth / Ms(base) * speed
}

// Velocity returns px per virtual ms for text of the given width. Longer text
// moves a little faster, up to twice the base velocity.
func (g Geometry) Velocity(width float64) float64 {
	factor := 1.0
	if g.ScreenWidth > 0 {
		factor += g.WidthBoost * width / g.ScreenWidth
	}
	return g.BaseVelocity() * min(factor, maxLengthFactor)
}

// Distance is how far a scrolling bullet of the given width travels.
func (g Geometry) Distance(width float64) float64 {
	return g.ScreenWidth + width + g.TrailBuffer
}

// CrossDuration is the virtual time zero-width text needs to cross the screen.
func (g Geometry) CrossDuration() time.Duration {
	v := g.BaseVelocity()
	if v <= 0 {
		return 0
	}
	return FromMs(g.ScreenWidth / v)
}

// Track builds the motion descriptor for a bullet placed at start with offset
// already consumed.
func (g Geometry) Track(id string, m comment.MotionClass, width float64, start, offset time.Duration) Track {
	t := Track{
		ID:          id,
		Motion:      m,
		Width:       width,
		Start:       start,
		Offset:      offset,
		ScreenWidth: g.ScreenWidth,
	}
	if m.IsScrolling() {
		t.Velocity = g.Velocity(width)
		t.Distance = g.Distance(width)
		t.Duration = FromMs(t.Distance / t.Velocity)
	} else {
		t.Duration = g.FixedDwell
	}
	return t
}

// Track is the motion of one bullet as a function of virtual time.
type Track struct {
	ID          string
	Motion      comment.MotionClass
	Width       float64
	Velocity    float64 // px per virtual ms, zero for fixed bullets
	Distance    float64
	Duration    time.Duration // full motion or dwell
	Start       time.Duration // virtual instant the bullet was placed
	Offset      time.Duration // motion consumed before Start
	Shift       time.Duration // entry moved by a change of screen width
	ScreenWidth float64
}

// Enter returns the virtual instant at which the motion began.
func (t Track) Enter() time.Duration {
	return t.Start - t.Offset + t.Shift
}

// End returns the virtual instant at which the motion completes.
func (t Track) End() time.Duration {
	return t.Enter() + t.Duration
}

// Lead returns the distance travelled by the leading edge at virtual time at.
// It extrapolates linearly before Enter and after End.
func (t Track) Lead(at time.Duration) float64 {
	return t.Velocity * Ms(at-t.Enter())
}

// Trail returns the distance travelled by the trailing edge.
func (t Track) Trail(at time.Duration) float64 {
	return t.Lead(at) - t.Width
}

// ClearAt returns when the trailing edge passes the far edge of the screen.
// For fixed bullets this is End.
func (t Track) ClearAt() time.Duration {
	if t.Velocity <= 0 {
		return t.End()
	}
	return min(t.Enter()+FromMs((t.ScreenWidth+t.Width)/t.Velocity), t.End())
}

// WallVelocity returns px per wall-clock ms at the given playback rate.
func (t Track) WallVelocity(rate float64) float64 {
	return t.Velocity * rate
}

// Reanchor returns the track measured against a screen of the given width.
// The bullet keeps its path: it covers the same pixels at the same instants
// and ends at the same instant. Left-moving bullets enter at the right edge,
// so their entry instant and travel distance follow that edge.
func (t Track) Reanchor(screenWidth float64) Track {
	if screenWidth == t.ScreenWidth {
		return t
	}
	delta := screenWidth - t.ScreenWidth
	t.ScreenWidth = screenWidth
	if t.Motion != comment.ScrollLeft || t.Velocity <= 0 {
		return t
	}
	end := t.End()
	t.Shift -= FromMs(delta / t.Velocity)
	t.Distance += delta
	t.Duration = end - t.Enter()
	return t
}

// X returns the left pixel coordinate at the given motion progress (0..1).
func (t Track) X(progress float64) float64 {
	switch t.Motion {
	case comment.ScrollLeft:
		return t.ScreenWidth - progress*t.Distance
	case comment.ScrollRight:
		return -t.Width + progress*t.Distance
	default:
		return (t.ScreenWidth - t.Width) / 2
	}
}

// Progress returns the fraction of motion done at virtual time at, clamped to [0, 1].
func (t Track) Progress(at time.Duration) float64 {
	return min(max(t.Phase(at), 0), 1)
}

// Phase is Progress without clamping: negative before Enter, above 1 after End.
func (t Track) Phase(at time.Duration) float64 {
	if t.Duration <= 0 {
		return 1
	}
	return float64(at-t.Enter()) / float64(t.Duration)
}
