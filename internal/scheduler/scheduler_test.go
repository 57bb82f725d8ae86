package scheduler

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/danmaku/internal/bullet"
	"github.com/llehouerou/danmaku/internal/clock"
	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/textwidth"
)

const frame = 16 * time.Millisecond

// tenPx measures every rune as 10px.
var tenPx = textwidth.EstimatorFunc(func(text string, _ float64) float64 {
	return float64(utf8.RuneCountInString(text)) * 10
})

// testConfig has rows rows of 20px on a 1000px wide screen, where width does
// not affect velocity and zero-width text crosses in 4s.
func testConfig(rows int) Config {
	tu := DefaultTuning()
	tu.BaseScroll = 4 * time.Second
	tu.WidthBoost = 0
	tu.LineSpacing = 1

	st := DefaultSettings()
	st.FontSize = 20
	st.HeightRatio = 1

	return Config{
		Settings:  st,
		Tuning:    tu,
		Screen:    Screen{Width: 1000, Height: float64(rows) * 20},
		Estimator: tenPx,
	}
}

func cm(id string, at time.Duration, m comment.MotionClass, text string) comment.Comment {
	return comment.Comment{ID: id, AppearAt: at, Text: text, Color: "#ffffff", Motion: m}
}

type harness struct {
	t  *testing.T
	tp *clock.MockTimeProvider
	s  *Scheduler
}

func newHarness(t *testing.T, comments []comment.Comment, cfg Config) *harness {
	t.Helper()
	tp := clock.NewMockTimeProvider(time.Unix(1_700_000_000, 0))
	cfg.TimeProvider = tp
	s := New(comments, cfg)
	t.Cleanup(func() { _ = s.Close() })
	return &harness{t: t, tp: tp, s: s}
}

// runUntil ticks frame by frame until the session position reaches at.
func (h *harness) runUntil(at time.Duration, each func(*Snapshot)) {
	h.t.Helper()
	require.True(h.t, h.s.Playing(), "runUntil needs a playing session")
	for h.s.Position() < at {
		h.tp.Advance(frame)
		snap := h.s.Tick()
		if each != nil {
			each(snap)
		}
	}
}

func views(snap *Snapshot) map[string]bullet.View {
	out := make(map[string]bullet.View, len(snap.Bullets))
	for _, v := range snap.Bullets {
		out[v.ID] = v
	}
	return out
}

func assertNoOverlap(t *testing.T, snap *Snapshot) {
	t.Helper()
	for i, a := range snap.Bullets {
		if !a.Motion.IsScrolling() {
			continue
		}
		for _, b := range snap.Bullets[i+1:] {
			if !b.Motion.IsScrolling() || a.Row != b.Row {
				continue
			}
			// only the on-screen parts matter; allow for float rounding
			lo := max(a.X, b.X, 0)
			hi := min(a.X+a.Width, b.X+b.Width, snap.Screen.Width)
			if hi-lo > 0.5 {
				t.Fatalf("%s and %s overlap in row %d at %v: [%.1f %.1f] [%.1f %.1f]",
					a.ID, b.ID, a.Row, snap.Position, a.X, a.X+a.Width, b.X, b.X+b.Width)
			}
		}
	}
}

func TestSimultaneousCommentsSpawnInDistinctRows(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", 5*time.Second, comment.ScrollLeft, text),
		cm("b", 5*time.Second, comment.ScrollLeft, text),
		cm("c", 5*time.Second, comment.ScrollLeft, text),
	}, testConfig(3))

	h.s.SetPlaying(true)
	h.runUntil(5100*time.Millisecond, nil)

	snap := h.s.Snapshot()
	require.Len(t, snap.Bullets, 3)
	rows := map[int]bool{}
	for _, v := range snap.Bullets {
		rows[v.Row] = true
		assert.InDelta(t, float64(5*time.Second), float64(v.ScheduledAt), float64(frame))
		assert.Equal(t, time.Duration(0), v.StartOffset)
	}
	assert.Len(t, rows, 3)
	assert.Equal(t, 3, snap.Stats.Spawned)
}

// slowThenFast spawns a 200px comment at 0.15 px/ms (8s to cross), then
// switches to the default speed before a 60px comment at 1s is due.
func slowThenFast(t *testing.T, rows int) *harness {
	cfg := testConfig(rows)
	cfg.Settings.Speed = 0.6
	h := newHarness(t, []comment.Comment{
		cm("slow", 0, comment.ScrollLeft, strings.Repeat("s", 20)),
		cm("fast", time.Second, comment.ScrollLeft, strings.Repeat("f", 6)),
	}, cfg)

	h.s.SetPlaying(true)
	h.runUntil(frame, nil)
	require.Equal(t, bullet.StateSpawned, h.s.State("slow"))
	slow := views(h.s.Snapshot())["slow"]
	require.Equal(t, 0, slow.Row)
	require.InDelta(t, float64(8*time.Second), float64(slow.Duration), float64(time.Millisecond))

	st := h.s.Settings()
	st.Speed = 1
	h.s.UpdateSettings(st)
	return h
}

func TestFastCommentTakesAnotherRow(t *testing.T) {
	h := slowThenFast(t, 2)

	h.runUntil(1100*time.Millisecond, func(snap *Snapshot) { assertNoOverlap(t, snap) })

	fast, ok := views(h.s.Snapshot())["fast"]
	require.True(t, ok)
	assert.Equal(t, 1, fast.Row)
	assert.InDelta(t, float64(time.Second), float64(fast.ScheduledAt), float64(frame))
}

func TestFastCommentDelayedUntilItCannotCatchUp(t *testing.T) {
	h := slowThenFast(t, 1)

	h.runUntil(1100*time.Millisecond, nil)
	require.Equal(t, bullet.StateScheduled, h.s.State("fast"))

	var fast *bullet.View
	h.runUntil(12*time.Second, func(snap *Snapshot) {
		assertNoOverlap(t, snap)
		if v, ok := views(snap)["fast"]; ok && fast == nil {
			fast = &v
		}
	})

	require.NotNil(t, fast, "fast comment never appeared")
	assert.Equal(t, 0, fast.Row)
	// slow clears at 8016ms; closing at 0.1 px/ms the fast one may not enter
	// before 4136ms
	assert.GreaterOrEqual(t, fast.ScheduledAt, 4136*time.Millisecond)
	assert.Equal(t, bullet.StateExpired, h.s.State("fast"))
	assert.Equal(t, 1, h.s.Stats().Deferred)
}

func TestPauseResumeKeepsRemaining(t *testing.T) {
	h := newHarness(t, []comment.Comment{
		cm("a", 0, comment.ScrollLeft, strings.Repeat("x", 10)),
		cm("b", 0, comment.Top, "top"),
	}, testConfig(2))

	h.s.SetPlaying(true)
	h.runUntil(time.Second, nil)
	before := views(h.s.Snapshot())

	h.s.SetPlaying(false)
	h.tp.Advance(30 * time.Second)
	paused := h.s.Tick()
	assert.False(t, paused.Playing)
	assert.Equal(t, h.s.Position(), paused.Position, "virtual time is frozen")

	h.s.SetPlaying(true)
	after := views(h.s.Snapshot())
	require.Len(t, after, 2)
	for id, v := range before {
		assert.InDelta(t, float64(v.Remaining), float64(after[id].Remaining), float64(time.Millisecond), id)
		assert.InDelta(t, v.X, after[id].X, 1e-6, id)
	}
}

func TestRateChangeScalesRemaining(t *testing.T) {
	h := newHarness(t, []comment.Comment{
		cm("a", 0, comment.ScrollLeft, strings.Repeat("x", 10)),
		cm("b", 0, comment.Bottom, "bottom"),
	}, testConfig(2))

	h.s.SetPlaying(true)
	h.runUntil(time.Second, nil)
	before := views(h.s.Snapshot())

	h.s.SetRate(2)
	after := views(h.s.Snapshot())
	for id, v := range before {
		assert.InDelta(t, float64(v.Remaining)/2, float64(after[id].Remaining), float64(time.Millisecond), id)
		assert.InDelta(t, v.X, after[id].X, 1e-6, "%s must not jump", id)
	}

	// one wall second at 2x covers two seconds of video
	start := h.s.Position()
	for range 1000 / 16 {
		h.tp.Advance(frame)
		h.s.Tick()
	}
	assert.InDelta(t, float64(2*time.Second), float64(h.s.Position()-start), float64(2*frame))
}

func TestSeekBackward(t *testing.T) {
	tests := []struct {
		name       string
		grace      time.Duration
		readmitted []string
	}{
		{"short grace skips everything behind", 500 * time.Millisecond, nil},
		{"longer grace re-admits 4000", 1500 * time.Millisecond, []string{"c4000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", 10)
			cfg := testConfig(3)
			cfg.Tuning.SeekGrace = tt.grace
			h := newHarness(t, []comment.Comment{
				cm("c3000", 3000*time.Millisecond, comment.ScrollLeft, text),
				cm("c4000", 4000*time.Millisecond, comment.ScrollLeft, text),
				cm("c6000", 6000*time.Millisecond, comment.ScrollLeft, text),
				cm("c8000", 8000*time.Millisecond, comment.ScrollLeft, text),
				cm("late", 49900*time.Millisecond, comment.Top, "on screen"),
			}, cfg)

			h.s.SetPlaying(true)
			require.NoError(t, h.s.Seek(49*time.Second))
			h.runUntil(50*time.Second, nil)
			require.Len(t, h.s.Snapshot().Bullets, 1)

			h.s.ObservePlayback(5*time.Second, true, 1)

			snap := h.s.Snapshot()
			assert.Equal(t, 2, snap.Stats.Seeks)
			assert.Equal(t, 5*time.Second, snap.Position)
			var ids []string
			for _, v := range snap.Bullets {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.readmitted, ids)

			if tt.readmitted == nil {
				for _, f := range comment.Families {
					for row := range h.s.alloc.Rows() {
						assert.Equal(t, 5*time.Second, h.s.alloc.NextAvailable(f, row))
					}
				}
			} else {
				v := views(snap)["c4000"]
				assert.Equal(t, time.Second, v.StartOffset, "caught up by its lateness")
				assert.Equal(t, 5*time.Second, v.ScheduledAt)
			}

			h.runUntil(9*time.Second, nil)
			assert.NotEqual(t, bullet.StateNone, h.s.State("c6000"))
			assert.NotEqual(t, bullet.StateNone, h.s.State("c8000"))
			assert.Equal(t, bullet.StateNone, h.s.State("c3000"))
			if tt.readmitted == nil {
				assert.Equal(t, bullet.StateNone, h.s.State("c4000"))
			} else {
				assert.NotEqual(t, bullet.StateNone, h.s.State("c4000"))
			}
		})
	}
}

func TestSeekCancelsDeferredSpawns(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", time.Second, comment.ScrollLeft, text),
		cm("b", time.Second+10*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(1))

	h.s.SetPlaying(true)
	h.runUntil(1100*time.Millisecond, nil)
	require.Equal(t, bullet.StateScheduled, h.s.State("b"))

	require.NoError(t, h.s.Seek(20*time.Second))
	assert.Equal(t, bullet.StateNone, h.s.State("b"))
	assert.Equal(t, 0, h.s.Stats().Pending)

	h.runUntil(25*time.Second, nil)
	assert.Equal(t, bullet.StateNone, h.s.State("b"), "no cancelled task fires")
}

func TestSmallWindowDefersSpawn(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", time.Second, comment.ScrollLeft, text),
		cm("b", time.Second+10*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(1))

	h.s.SetPlaying(true)
	h.runUntil(1100*time.Millisecond, nil)
	assert.Equal(t, bullet.StateSpawned, h.s.State("a"))
	assert.Equal(t, bullet.StateScheduled, h.s.State("b"))
	st := h.s.Stats()
	assert.Equal(t, 1, st.Deferred)
	assert.Equal(t, 1, st.Pending)

	h.runUntil(1600*time.Millisecond, nil)
	require.Equal(t, bullet.StateSpawned, h.s.State("b"))
	b := views(h.s.Snapshot())["b"]
	assert.Equal(t, 0, b.Row)
	assert.GreaterOrEqual(t, b.ScheduledAt, 1300*time.Millisecond)
	assert.Equal(t, 0, h.s.Stats().Pending)
}

func TestLargeWindowCatchesUp(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", 500*time.Millisecond, comment.ScrollLeft, text),
		cm("b", 1000*time.Millisecond, comment.ScrollLeft, text),
		cm("c", 1500*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(3))

	h.s.SetPlaying(true)
	h.tp.Advance(2 * time.Second)
	snap := h.s.Tick()

	got := views(snap)
	require.Len(t, got, 3)
	assert.Equal(t, 1500*time.Millisecond, got["a"].StartOffset)
	assert.Equal(t, 1000*time.Millisecond, got["b"].StartOffset)
	assert.Equal(t, 500*time.Millisecond, got["c"].StartOffset)
	for _, v := range got {
		assert.Equal(t, 2*time.Second, v.ScheduledAt)
		assert.Less(t, v.Remaining, v.Duration)
	}
}

func TestCatchUpOffsetIsBounded(t *testing.T) {
	cfg := testConfig(1)
	cfg.Tuning.CatchUpFraction = 0.25
	h := newHarness(t, []comment.Comment{
		cm("top", 0, comment.Top, "fixed"),
	}, cfg)

	h.s.SetPlaying(true)
	h.tp.Advance(3 * time.Second)
	v := views(h.s.Tick())["top"]
	assert.Equal(t, time.Second, v.StartOffset, "a quarter of the 4s dwell")
	assert.Equal(t, 3*time.Second, v.Remaining)
}

func TestObservePlayback(t *testing.T) {
	h := newHarness(t, nil, testConfig(2))

	h.s.ObservePlayback(0, true, 1)
	h.runUntil(time.Second, nil)
	pos := h.s.Position()

	h.s.ObservePlayback(pos+100*time.Millisecond, true, 1)
	assert.Equal(t, pos, h.s.Position(), "drift within tolerance is ignored")
	assert.Equal(t, 0, h.s.Stats().Seeks)

	h.s.ObservePlayback(pos+time.Second, true, 1)
	assert.Equal(t, pos+time.Second, h.s.Position(), "larger drift resyncs")
	assert.Equal(t, 0, h.s.Stats().Seeks)

	h.s.ObservePlayback(pos+10*time.Second, true, 1)
	assert.Equal(t, 1, h.s.Stats().Seeks, "jump forward")

	h.s.ObservePlayback(pos+9*time.Second, true, 1)
	assert.Equal(t, 2, h.s.Stats().Seeks, "any step back")

	h.s.ObservePlayback(-time.Second, true, 1)
	assert.Equal(t, 3, h.s.Stats().Seeks)
	assert.Equal(t, time.Duration(0), h.s.Position())

	h.s.ObservePlayback(0, false, 1.5)
	snap := h.s.Snapshot()
	assert.False(t, snap.Playing)
	assert.InDelta(t, 1.5, snap.Rate, 1e-12)
}

func TestDriftCorrectionMovesBullets(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", 0, comment.ScrollLeft, text),
		cm("b", 1750*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(1))

	h.s.SetPlaying(true)
	h.runUntil(200*time.Millisecond, nil)
	h.s.ObservePlayback(h.s.Position()+1500*time.Millisecond, true, 1)
	require.Equal(t, 0, h.s.Stats().Seeks)

	// "a" is drawn where the corrected clock puts it
	a := views(h.s.Snapshot())["a"]
	want := float64(h.s.Position()-a.ScheduledAt+a.StartOffset) / float64(a.Duration)
	assert.InDelta(t, want, a.Progress, 1e-6)

	h.runUntil(5*time.Second, func(snap *Snapshot) { assertNoOverlap(t, snap) })
	assert.Equal(t, 2, h.s.Stats().Spawned)
}

func TestDriftCorrectionBackwardKeepsRowsClear(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", 0, comment.ScrollLeft, text),
		cm("b", 1200*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(1))

	h.s.ObservePlayback(0, true, 1)
	h.runUntil(time.Second, nil)
	// the player lags behind the scheduler clock but not behind its last report
	h.s.ObservePlayback(h.s.Position()-500*time.Millisecond, true, 1)
	require.Equal(t, 0, h.s.Stats().Seeks)

	h.runUntil(5*time.Second, func(snap *Snapshot) { assertNoOverlap(t, snap) })
}

func TestUpdateSettingsFilters(t *testing.T) {
	h := newHarness(t, []comment.Comment{
		cm("t", 2*time.Second, comment.Top, "top"),
		cm("s", 2*time.Second, comment.ScrollLeft, "scroll"),
	}, testConfig(2))

	h.s.SetPlaying(true)
	h.runUntil(time.Second, nil)

	st := h.s.Settings()
	st.MotionFilter = comment.FilterTop
	h.s.UpdateSettings(st)
	assert.Equal(t, 1, h.s.Stats().Filtered)

	h.runUntil(2500*time.Millisecond, nil)
	assert.Equal(t, bullet.StateNone, h.s.State("t"))
	assert.Equal(t, bullet.StateSpawned, h.s.State("s"))
}

func TestUpdateSettingsOffsetKeepsProcessedComments(t *testing.T) {
	h := newHarness(t, []comment.Comment{
		cm("a", time.Second, comment.Top, "a"),
		cm("b", 3*time.Second, comment.Top, "b"),
	}, testConfig(2))

	h.s.SetPlaying(true)
	h.runUntil(1500*time.Millisecond, nil)
	require.Equal(t, bullet.StateSpawned, h.s.State("a"))

	// shifting by +1s moves "a" ahead of the clock again; it must not spawn twice
	st := h.s.Settings()
	st.Offset = time.Second
	h.s.UpdateSettings(st)

	spawned := h.s.Stats().Spawned
	h.runUntil(4500*time.Millisecond, nil)
	assert.Equal(t, spawned+1, h.s.Stats().Spawned)
	assert.NotEqual(t, bullet.StateNone, h.s.State("b"))
}

func TestUpdateSettingsFontSizePurgesWidths(t *testing.T) {
	h := newHarness(t, []comment.Comment{
		cm("a", 0, comment.Top, "a"),
	}, testConfig(2))
	h.s.SetPlaying(true)
	h.runUntil(100*time.Millisecond, nil)
	require.Equal(t, 1, h.s.widths.Len())

	st := h.s.Settings()
	st.Density = 2
	h.s.UpdateSettings(st)
	assert.Equal(t, 1, h.s.widths.Len(), "same font size keeps measurements")

	st.FontSize = 30
	h.s.UpdateSettings(st)
	assert.Equal(t, 0, h.s.widths.Len())
}

func TestResize(t *testing.T) {
	h := newHarness(t, nil, testConfig(2))
	assert.Equal(t, 2, h.s.Snapshot().Rows)

	h.s.Resize(1000, 200)
	assert.Equal(t, 10, h.s.Snapshot().Rows)
	assert.Equal(t, 10, h.s.alloc.Rows())

	h.s.Resize(0, 0)
	assert.Equal(t, 10, h.s.Snapshot().Rows, "invalid sizes are ignored")
}

func TestResizeDuringFlight(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", 0, comment.ScrollLeft, text),
		cm("b", 2100*time.Millisecond, comment.ScrollLeft, text),
		cm("c", 2200*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(1))

	h.s.SetPlaying(true)
	h.runUntil(2*time.Second, nil)
	before := views(h.s.Snapshot())["a"]

	h.s.Resize(500, 20)
	after := views(h.s.Snapshot())["a"]
	assert.InDelta(t, before.X, after.X, 1, "bullets in flight do not jump")
	assert.InDelta(t, float64(before.Remaining), float64(after.Remaining), float64(time.Millisecond))

	h.runUntil(10*time.Second, func(snap *Snapshot) { assertNoOverlap(t, snap) })
	assert.Equal(t, 3, h.s.Stats().Spawned)
}

func TestResizeWiderDuringFlight(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", 0, comment.ScrollLeft, text),
		cm("b", 1500*time.Millisecond, comment.ScrollRight, text),
		cm("c", 2100*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(1))

	h.s.SetPlaying(true)
	h.runUntil(time.Second, nil)
	h.s.Resize(1600, 20)
	h.runUntil(12*time.Second, func(snap *Snapshot) { assertNoOverlap(t, snap) })
}

func TestEveryCommentAppearsAtMostOnce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	motions := []comment.MotionClass{comment.ScrollLeft, comment.ScrollLeft, comment.ScrollRight, comment.Top, comment.Bottom}
	var comments []comment.Comment
	for i := range 300 {
		comments = append(comments, cm(
			fmt.Sprintf("c%03d", i),
			time.Duration(rng.IntN(60_000))*time.Millisecond,
			motions[rng.IntN(len(motions))],
			strings.Repeat("w", 1+rng.IntN(30)),
		))
	}
	h := newHarness(t, comments, testConfig(4))

	seen := map[string]bool{}
	gone := map[string]bool{}
	h.s.SetPlaying(true)
	h.runUntil(75*time.Second, func(snap *Snapshot) {
		assertNoOverlap(t, snap)
		current := views(snap)
		require.Len(t, current, len(snap.Bullets), "one bullet per id")
		for id := range current {
			require.False(t, gone[id], "%s reappeared", id)
			seen[id] = true
		}
		for id := range seen {
			if _, ok := current[id]; !ok {
				gone[id] = true
			}
		}
	})

	st := h.s.Stats()
	assert.Equal(t, 300, st.Queued)
	assert.Equal(t, st.Queued, st.Spawned+st.Dropped)
	assert.Equal(t, st.Spawned, len(seen))
	assert.Equal(t, 0, st.Active)
}

func TestClose(t *testing.T) {
	text := strings.Repeat("x", 10)
	h := newHarness(t, []comment.Comment{
		cm("a", time.Second, comment.ScrollLeft, text),
		cm("b", time.Second+10*time.Millisecond, comment.ScrollLeft, text),
	}, testConfig(1))
	sub := h.s.Subscribe()

	h.s.SetPlaying(true)
	h.runUntil(1100*time.Millisecond, nil)
	require.Equal(t, bullet.StateScheduled, h.s.State("b"))

	require.NoError(t, h.s.Close())
	<-sub.Done

	assert.ErrorIs(t, h.s.Close(), ErrClosed)
	assert.ErrorIs(t, h.s.Seek(0), ErrClosed)

	last := h.s.Snapshot()
	h.tp.Advance(2 * time.Second)
	assert.Same(t, last, h.s.Tick())
	assert.Equal(t, bullet.StateNone, h.s.State("b"))

	late := h.s.Subscribe()
	<-late.Done
}

func TestSubscribeRacingClose(t *testing.T) {
	for range 50 {
		s := New(nil, testConfig(1))
		subs := make(chan *Subscription, 8)
		var wg sync.WaitGroup
		for range cap(subs) {
			wg.Go(func() { subs <- s.Subscribe() })
		}
		require.NoError(t, s.Close())
		wg.Wait()
		close(subs)

		for sub := range subs {
			select {
			case <-sub.Done:
			default:
				t.Fatal("subscription outlived its session")
			}
		}
	}
}

func TestSubscription(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := newHarness(t, []comment.Comment{
			cm("a", 0, comment.Top, "a"),
		}, testConfig(2))
		sub := h.s.Subscribe()

		h.s.SetPlaying(true)
		<-sub.Snapshots

		h.tp.Advance(frame)
		snap := h.s.Tick()
		got := <-sub.Snapshots
		assert.Same(t, snap, got)
		assert.Len(t, got.Bullets, 1)

		require.NoError(t, h.s.Seek(30*time.Second))
		e := <-sub.Seeks
		assert.Equal(t, frame, e.From)
		assert.Equal(t, 30*time.Second, e.To)
	})
}

func TestSubscription_NonBlockingWhenFull(t *testing.T) {
	h := newHarness(t, nil, testConfig(1))
	sub := h.s.Subscribe()

	for range eventBufferSize * 3 {
		h.tp.Advance(frame)
		h.s.Tick()
	}
	assert.Len(t, sub.Snapshots, eventBufferSize)
}

func TestSessionID(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(2)
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	a := newHarness(t, nil, cfg)
	b := newHarness(t, nil, testConfig(2))

	_, err := uuid.Parse(a.s.ID())
	require.NoError(t, err)
	assert.NotEqual(t, a.s.ID(), b.s.ID())
	assert.Contains(t, buf.String(), "session_id="+a.s.ID())
}
