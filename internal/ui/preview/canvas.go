// Package preview renders scheduler snapshots in the terminal.
package preview

import (
	"math"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"

	"github.com/llehouerou/danmaku/internal/scheduler"
	"github.com/llehouerou/danmaku/internal/textwidth"
)

// Cell is the pixel size of one terminal cell.
type Cell struct {
	Width  float64
	Height float64
}

// Estimator measures text in whole cells so bullets occupy exactly the
// columns they are drawn on.
func (c Cell) Estimator() textwidth.Estimator {
	return textwidth.EstimatorFunc(func(text string, _ float64) float64 {
		return float64(runewidth.StringWidth(sanitize(text))) * c.Width
	})
}

// Screen returns the pixel area covered by cols x lines cells.
func (c Cell) Screen(cols, lines int) scheduler.Screen {
	return scheduler.Screen{
		Width:  float64(cols) * c.Width,
		Height: float64(lines) * c.Height,
	}
}

var background = colorful.Color{R: 0, G: 0, B: 0}

// blend mixes a bullet color into the background by opacity.
func blend(hex string, opacity float64) lipgloss.Color {
	fg, err := colorful.Hex(hex)
	if err != nil {
		fg = colorful.Color{R: 1, G: 1, B: 1}
	}
	opacity = min(max(opacity, 0), 1)
	return lipgloss.Color(background.BlendRgb(fg, opacity).Clamped().Hex())
}

// sanitize flattens comment text to a single printable line.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == ' ':
			return ' '
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			return -1
		default:
			return r
		}
	}, s)
}

// Render draws the snapshot's bullets onto lines x cols cells. Bullets are
// drawn in snapshot order, so later bullets cover earlier ones.
func Render(snap *scheduler.Snapshot, cols, lines int, cell Cell) []string {
	out := make([]string, lines)
	blank := strings.Repeat(" ", max(cols, 0))
	for i := range out {
		out[i] = blank
	}
	if snap == nil || cols <= 0 || cell.Width <= 0 || cell.Height <= 0 {
		return out
	}

	for _, b := range snap.Bullets {
		line := int(math.Floor(b.Top/cell.Height + 0.5))
		if line < 0 || line >= lines {
			continue
		}
		text := sanitize(b.Text)
		w := ansi.StringWidth(text)
		col := int(math.Floor(b.X / cell.Width))
		if w == 0 || col >= cols || col+w <= 0 {
			continue
		}
		styled := lipgloss.NewStyle().
			Foreground(blend(b.Color, snap.Opacity)).
			Render(text)
		out[line] = place(out[line], styled, col, w, cols)
	}
	return out
}

// place writes styled (w columns wide) at col, clipping it to [0, width).
func place(line, styled string, col, w, width int) string {
	start := max(col, 0)
	end := min(col+w, width)
	content := ansi.Cut(styled, start-col, end-col)

	result := ansi.Cut(line, 0, start) + content
	if end < width {
		result += ansi.Cut(line, end, width)
	}
	return result
}
