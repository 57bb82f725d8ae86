// Package lanes assigns comments to screen rows without visual collisions.
//
// There are three independent pools of rows: scrolling (shared by left- and
// right-moving comments), top and bottom. Fixed rows hold one comment at a
// time. Scrolling rows are travel corridors: a new comment may enter a row
// once the comment ahead of it has moved far enough that it will never be
// caught before it leaves the screen.
package lanes

import (
	"time"

	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/motion"
)

// Config holds the collision-avoidance policy knobs.
type Config struct {
	MinGapPx      float64       // smallest allowed gap between two bullets in a row
	GapRatio      float64       // gap as a fraction of the leading bullet's width
	Lookahead     time.Duration // how long a comment may wait for a row before it is dropped
	MinStep       time.Duration // lower bound for the candidate time step
	MinSeparation time.Duration // throttle between two placements in the same scrolling row
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MinGapPx:      24,
		GapRatio:      0.15,
		Lookahead:     6 * time.Second,
		MinStep:       50 * time.Millisecond,
		MinSeparation: 300 * time.Millisecond,
	}
}

// OccupantSource reports the live bullets in a row.
type OccupantSource interface {
	Occupants(f comment.Family, row int) []motion.Track
}

// Request asks for a row for one comment.
type Request struct {
	ID     string
	Motion comment.MotionClass
	Width  float64
	At     time.Duration // earliest acceptable instant
	Offset time.Duration // motion already consumed when placed
}

// Placement is a successful allocation.
type Placement struct {
	Row   int
	At    time.Duration // instant the bullet should appear, >= Request.At
	Track motion.Track
}

type lane struct {
	nextAvailable time.Duration
	placed        []motion.Track
}

// Allocator owns the lane pools. It is not safe for concurrent use.
type Allocator struct {
	cfg       Config
	geom      motion.Geometry
	pools     [len(comment.Families)][]lane
	occupants OccupantSource
}

// New creates an allocator sized for geom. occupants may be nil.
func New(cfg Config, geom motion.Geometry, occupants OccupantSource) *Allocator {
	a := &Allocator{cfg: cfg, occupants: occupants}
	a.SetGeometry(geom)
	return a
}

// SetGeometry changes screen and motion settings. Pools grow or shrink to the
// new row capacity; surviving rows keep their state. When the screen width
// changes, placed tracks are reanchored to it so that every distance is
// measured from the same entry edge.
func (a *Allocator) SetGeometry(geom motion.Geometry) {
	widthChanged := geom.ScreenWidth != a.geom.ScreenWidth
	a.geom = geom
	rows := geom.Rows()
	for i := range a.pools {
		pool := a.pools[i]
		if widthChanged {
			for j := range pool {
				for k, tr := range pool[j].placed {
					pool[j].placed[k] = tr.Reanchor(geom.ScreenWidth)
				}
			}
		}
		switch {
		case len(pool) > rows:
			pool = pool[:rows]
		case len(pool) < rows:
			pool = append(pool, make([]lane, rows-len(pool))...)
		}
		a.pools[i] = pool
	}
}

// SetConfig replaces the policy knobs.
func (a *Allocator) SetConfig(cfg Config) {
	a.cfg = cfg
}

// Rows returns the number of rows per pool.
func (a *Allocator) Rows() int {
	return len(a.pools[comment.FamilyScroll])
}

// NextAvailable returns the earliest instant the row accepts a new comment.
func (a *Allocator) NextAvailable(f comment.Family, row int) time.Duration {
	return a.pools[f][row].nextAvailable
}

// Reset forgets every placement and sets all rows available from baseline.
func (a *Allocator) Reset(baseline time.Duration) {
	for i := range a.pools {
		for j := range a.pools[i] {
			a.pools[i][j] = lane{nextAvailable: baseline}
		}
	}
}

// Release forgets a placement, for example a deferred spawn that was cancelled.
// Row throttling is left as is.
func (a *Allocator) Release(id string) {
	for i := range a.pools {
		for j := range a.pools[i] {
			l := &a.pools[i][j]
			for k, tr := range l.placed {
				if tr.ID == id {
					l.placed = append(l.placed[:k], l.placed[k+1:]...)
					return
				}
			}
		}
	}
}

// Place finds a row for req. It returns false when no row can take the comment
// within the lookahead window; the comment is then dropped.
func (a *Allocator) Place(req Request) (Placement, bool) {
	if req.Motion.IsScrolling() {
		return a.placeScroll(req)
	}
	return a.placeFixed(req)
}

func (a *Allocator) placeFixed(req Request) (Placement, bool) {
	f := req.Motion.Family()
	pool := a.pools[f]
	for row := range pool {
		l := &pool[row]
		if l.nextAvailable > req.At {
			continue
		}
		// nextAvailable can be stale after a seek, so look at the row itself too.
		if a.rowBusy(f, row, req.At) {
			continue
		}
		tr := a.geom.Track(req.ID, req.Motion, req.Width, req.At, req.Offset)
		l.nextAvailable = max(l.nextAvailable, tr.End())
		l.placed = append(prune(l.placed, req.At), tr)
		return Placement{Row: row, At: req.At, Track: tr}, true
	}
	return Placement{}, false
}

func (a *Allocator) rowBusy(f comment.Family, row int, at time.Duration) bool {
	for _, tr := range a.rowOccupants(f, row, at) {
		if tr.Enter() <= at && tr.End() > at {
			return true
		}
	}
	return false
}

func (a *Allocator) placeScroll(req Request) (Placement, bool) {
	pool := a.pools[comment.FamilyScroll]
	template := a.geom.Track(req.ID, req.Motion, req.Width, req.At, req.Offset)
	if template.Velocity <= 0 {
		return Placement{}, false
	}
	step := max(a.cfg.MinStep, motion.FromMs(req.Width*0.5/template.Velocity), time.Millisecond)
	horizon := req.At + a.cfg.Lookahead

	bestRow := -1
	var bestAt time.Duration
	for row := range pool {
		t := max(req.At, pool[row].nextAvailable)
		if bestRow >= 0 && t >= bestAt {
			continue
		}
		occupants := a.rowOccupants(comment.FamilyScroll, row, req.At)
		for t <= horizon && (bestRow < 0 || t < bestAt) {
			cand := template
			cand.Start = t
			ok, retry := a.fits(cand, occupants)
			if ok {
				bestRow, bestAt = row, t
				break
			}
			t = max(t+step, retry)
		}
	}
	if bestRow < 0 {
		return Placement{}, false
	}

	tr := template
	tr.Start = bestAt
	l := &pool[bestRow]
	l.nextAvailable = max(l.nextAvailable, bestAt+a.cfg.MinSeparation)
	l.placed = append(prune(l.placed, req.At), tr)
	return Placement{Row: bestRow, At: bestAt, Track: tr}, true
}

// fits reports whether cand can share a row with occupants. On failure it may
// return the earliest instant worth probing next.
func (a *Allocator) fits(cand motion.Track, occupants []motion.Track) (bool, time.Duration) {
	at := cand.Start
	for _, o := range occupants {
		if o.ID == cand.ID || o.ClearAt() <= at {
			continue
		}

		if o.Motion != cand.Motion {
			// Opposite directions always cross, so their screen time must not overlap.
			if cand.Enter() < o.ClearAt() && o.Enter() < cand.ClearAt() {
				return false, o.ClearAt() + cand.Offset
			}
			continue
		}

		ahead, behind := o, cand
		if cand.Lead(at) > o.Lead(at) {
			ahead, behind = cand, o
		}
		minGap := max(a.cfg.MinGapPx, ahead.Width*a.cfg.GapRatio)
		gap := ahead.Trail(at) - behind.Lead(at)

		// entry guard
		if gap < minGap {
			return false, 0
		}

		// catch-up guard: the faster bullet behind must not close the gap
		// before the one ahead has left the screen.
		if closing := behind.Velocity - ahead.Velocity; closing > 0 {
			caught := at + motion.FromMs((gap-minGap)/closing)
			if caught < ahead.ClearAt() {
				return false, 0
			}
		}
	}
	return true, 0
}

// rowOccupants merges this allocator's placements with the live bullets of the
// row, skipping anything that left the screen before from.
func (a *Allocator) rowOccupants(f comment.Family, row int, from time.Duration) []motion.Track {
	l := &a.pools[f][row]
	l.placed = prune(l.placed, from)
	out := append([]motion.Track(nil), l.placed...)
	if a.occupants == nil {
		return out
	}
	for _, tr := range a.occupants.Occupants(f, row) {
		if tr.ClearAt() <= from || containsID(out, tr.ID) {
			continue
		}
		out = append(out, tr)
	}
	return out
}

func prune(tracks []motion.Track, from time.Duration) []motion.Track {
	kept := tracks[:0]
	for _, tr := range tracks {
		if tr.ClearAt() > from {
			kept = append(kept, tr)
		}
	}
	return kept
}

func containsID(tracks []motion.Track, id string) bool {
	for _, tr := range tracks {
		if tr.ID == id {
			return true
		}
	}
	return false
}
