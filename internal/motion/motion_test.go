package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/llehouerou/danmaku/internal/comment"
)

func testGeometry() Geometry {
	return Geometry{
		ScreenWidth:  1000,
		ScreenHeight: 600,
		FontSize:     20,
		HeightRatio:  0.5,
		LineSpacing:  1.5,
		Speed:        1,
		BaseScroll:   10 * time.Second,
		WidthBoost:   0.5,
		TrailBuffer:  0,
		FixedDwell:   4 * time.Second,
	}
}

func TestGeometry_Rows(t *testing.T) {
	g := testGeometry()
	assert.Equal(t, 10, g.Rows()) // 300px / 30px

	g.ScreenHeight = 10
	assert.Equal(t, 1, g.Rows(), "always at least one row")

	g = testGeometry()
	g.HeightRatio = 0
	assert.Equal(t, 20, g.Rows(), "invalid ratio uses the whole screen")
}

func TestGeometry_RowTop(t *testing.T) {
	g := testGeometry()
	assert.InDelta(t, 60.0, g.RowTop(comment.FamilyScroll, 2), 1e-9)
	assert.InDelta(t, 0.0, g.RowTop(comment.FamilyTop, 0), 1e-9)
	assert.InDelta(t, 570.0, g.RowTop(comment.FamilyBottom, 0), 1e-9)
	assert.InDelta(t, 540.0, g.RowTop(comment.FamilyBottom, 1), 1e-9)
}

func TestGeometry_Velocity(t *testing.T) {
	g := testGeometry()
	assert.InDelta(t, 0.1, g.BaseVelocity(), 1e-12)
	assert.InDelta(t, 0.1, g.Velocity(0), 1e-12)
	assert.InDelta(t, 0.125, g.Velocity(500), 1e-12)
	assert.InDelta(t, 0.2, g.Velocity(5000), 1e-12, "capped at twice the base")

	g.Speed = 2
	assert.InDelta(t, 0.2, g.BaseVelocity(), 1e-12)
	assert.InDelta(t, 5000.0, Ms(g.CrossDuration()), 1e-3)
}

func TestTrack_Scrolling(t *testing.T) {
	g := testGeometry()
	tr := g.Track("a", comment.ScrollLeft, 100, 2*time.Second, 0)

	// velocity 0.1 * (1 + 0.05) = 0.105, distance 1100
	assert.InDelta(t, 0.105, tr.Velocity, 1e-12)
	assert.InDelta(t, 1100.0, tr.Distance, 1e-9)
	assert.Equal(t, 2*time.Second, tr.Enter())
	assert.InDelta(t, 1100/0.105, Ms(tr.Duration), 1e-3)

	assert.InDelta(t, 0.0, tr.Lead(2*time.Second), 1e-9)
	assert.InDelta(t, 105.0, tr.Lead(3*time.Second), 1e-9)
	assert.InDelta(t, 5.0, tr.Trail(3*time.Second), 1e-9)
	assert.Equal(t, tr.End(), tr.ClearAt(), "no trail buffer")

	assert.InDelta(t, 1000.0, tr.X(0), 1e-9)
	assert.InDelta(t, -100.0, tr.X(1), 1e-9)
}

func TestTrack_Offset(t *testing.T) {
	g := testGeometry()
	tr := g.Track("a", comment.ScrollRight, 0, 5*time.Second, time.Second)

	assert.Equal(t, 4*time.Second, tr.Enter())
	assert.InDelta(t, 100.0, tr.Lead(5*time.Second), 1e-9)
	assert.InDelta(t, 0.1, tr.Progress(5*time.Second), 1e-9)
	assert.InDelta(t, 0.0, tr.X(0), 1e-9)
	assert.InDelta(t, 1000.0, tr.X(1), 1e-9)
}

func TestTrack_WallVelocity(t *testing.T) {
	tr := testGeometry().Track("a", comment.ScrollLeft, 500, 0, 0)
	assert.InDelta(t, 0.25, tr.WallVelocity(2), 1e-12)
}

func TestTrack_ReanchorKeepsPath(t *testing.T) {
	g := testGeometry()
	tr := g.Track("a", comment.ScrollLeft, 100, 0, 0)
	at := 2 * time.Second
	x := tr.X(tr.Phase(at)) // 1000 - 0.105*2000

	tests := []struct {
		name  string
		width float64
		lead  float64
	}{
		{"narrower", 600, -190},
		{"wider", 1500, 710},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := tr.Reanchor(tt.width)
			assert.InDelta(t, tt.width, re.ScreenWidth, 1e-12)
			assert.Equal(t, tr.End(), re.End())
			assert.InDelta(t, tr.Velocity, re.Velocity, 1e-12)
			assert.InDelta(t, tt.lead, re.Lead(at), 1e-3)
			assert.InDelta(t, x, re.X(re.Phase(at)), 1e-3)

			later := 8 * time.Second
			assert.InDelta(t, tr.X(tr.Phase(later)), re.X(re.Phase(later)), 1e-3)
			assert.LessOrEqual(t, re.ClearAt(), re.End())
		})
	}

	back := tr.Reanchor(600).Reanchor(1000)
	assert.InDelta(t, Ms(tr.Enter()), Ms(back.Enter()), 1e-3)
	assert.InDelta(t, tr.Distance, back.Distance, 1e-3)
}

func TestTrack_ReanchorRightAndFixed(t *testing.T) {
	g := testGeometry()

	right := g.Track("r", comment.ScrollRight, 100, 0, 0)
	re := right.Reanchor(600)
	assert.Equal(t, right.Enter(), re.Enter())
	assert.Equal(t, right.End(), re.End())
	assert.InDelta(t, right.X(0.5), re.X(0.5), 1e-9, "the left edge does not move")
	assert.InDelta(t, 700/0.105, Ms(re.ClearAt()), 1e-3, "clears the narrower screen sooner")

	top := g.Track("t", comment.Top, 200, 0, 0).Reanchor(600)
	assert.InDelta(t, 200.0, top.X(0.5), 1e-9, "stays centred")
}

func TestTrack_Phase(t *testing.T) {
	tr := testGeometry().Track("a", comment.Top, 200, time.Second, 0)
	assert.InDelta(t, -0.25, tr.Phase(0), 1e-9)
	assert.InDelta(t, 0.0, tr.Progress(0), 1e-9)
	assert.InDelta(t, 1.5, tr.Phase(7*time.Second), 1e-9)
}

func TestTrack_Fixed(t *testing.T) {
	g := testGeometry()
	tr := g.Track("a", comment.Top, 200, time.Second, 0)

	assert.Equal(t, 4*time.Second, tr.Duration)
	assert.Equal(t, 5*time.Second, tr.ClearAt())
	assert.InDelta(t, 400.0, tr.X(0.5), 1e-9)
	assert.InDelta(t, 0.5, tr.Progress(3*time.Second), 1e-9)
	assert.InDelta(t, 1.0, tr.Progress(time.Minute), 1e-9)
	assert.InDelta(t, 0.0, tr.Progress(0), 1e-9)
}
