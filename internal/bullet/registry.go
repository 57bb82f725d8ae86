// Package bullet owns the comments currently on screen.
//
// Bullets move in virtual time (see package motion) but their lifetime is
// tracked against the host wall clock: a bullet remembers how far through its
// motion it was at the start of the current segment and how much wall time is
// left. Pausing freezes both, a rate change rescales what is left, and an
// expiry task in a wall-time queue removes the bullet when nothing is left.
package bullet

import (
	"cmp"
	"slices"
	"time"

	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/motion"
	"github.com/llehouerou/danmaku/internal/timer"
)

// State is the lifecycle stage of a comment.
type State int

const (
	StateNone State = iota
	StateScheduled
	StateSpawned
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateSpawned:
		return "spawned"
	case StateExpired:
		return "expired"
	default:
		return "none"
	}
}

// Params describes a bullet to spawn.
type Params struct {
	Comment comment.Comment
	Row     int
	Top     float64
	Track   motion.Track
}

// Bullet is one active comment.
type Bullet struct {
	ID    string
	Text  string
	Color string
	Row   int
	Top   float64
	Track motion.Track

	state     State
	progress  float64       // motion fraction at segStart
	remaining time.Duration // wall time left at segStart
	segStart  time.Duration
	expiry    *timer.Task
}

// State returns the bullet's lifecycle stage.
func (b *Bullet) State() State {
	return b.state
}

// ScheduledAt returns the virtual instant the bullet was placed.
func (b *Bullet) ScheduledAt() time.Duration {
	return b.Track.Start
}

// StartOffset returns the motion consumed before the bullet appeared.
func (b *Bullet) StartOffset() time.Duration {
	return b.Track.Offset
}

// View is a read-only copy of a bullet at one instant, ready to draw.
type View struct {
	ID          string
	Text        string
	Color       string
	Motion      comment.MotionClass
	Row         int
	Top         float64
	Width       float64
	X           float64
	Progress    float64
	Velocity    float64       // px per wall ms at the current rate, zero for fixed bullets
	Duration    time.Duration // full motion in wall time at the current rate
	Remaining   time.Duration // wall time left
	ScheduledAt time.Duration
	StartOffset time.Duration
}

// Registry holds the active bullets. It is not safe for concurrent use.
type Registry struct {
	bullets  map[string]*Bullet
	expired  map[string]struct{}
	expiries *timer.Queue
	rate     float64
	running  bool
}

// New creates an empty running registry at rate 1.
func New() *Registry {
	return &Registry{
		bullets:  make(map[string]*Bullet),
		expired:  make(map[string]struct{}),
		expiries: timer.New(),
		rate:     1,
		running:  true,
	}
}

// Spawn adds a bullet. virtualNow positions it along its track; wallNow starts
// its lifetime. It returns false when a bullet with the same ID is active or
// the track is already complete at virtualNow.
func (r *Registry) Spawn(params Params, virtualNow, wallNow time.Duration) bool {
	id := params.Track.ID
	if _, ok := r.bullets[id]; ok {
		return false
	}
	progress := params.Track.Phase(virtualNow)
	if progress >= 1 {
		return false
	}
	b := &Bullet{
		ID:       id,
		Text:     params.Comment.Text,
		Color:    params.Comment.Color,
		Row:      params.Row,
		Top:      params.Top,
		Track:    params.Track,
		state:    StateSpawned,
		progress: progress,
		segStart: wallNow,
	}
	b.remaining = r.wallDuration(b, 1-progress)
	r.bullets[id] = b
	delete(r.expired, id)
	if r.running {
		r.scheduleExpiry(b)
	}
	return true
}

// Pause freezes every bullet at its position at wall time now.
func (r *Registry) Pause(now time.Duration) {
	if !r.running {
		return
	}
	for _, b := range r.bullets {
		r.fold(b, now)
		b.expiry.Cancel()
		b.expiry = nil
	}
	r.running = false
}

// Resume restarts every bullet from its frozen position.
func (r *Registry) Resume(now time.Duration) {
	if r.running {
		return
	}
	r.running = true
	for _, b := range r.bullets {
		b.segStart = now
		r.scheduleExpiry(b)
	}
}

// SetRate rescales the remaining lifetime of every bullet by old/new rate.
// Positions do not jump. Non-positive rates are ignored.
func (r *Registry) SetRate(rate float64, now time.Duration) {
	if rate <= 0 || rate == r.rate {
		return
	}
	old := r.rate
	for _, b := range r.bullets {
		if r.running {
			r.fold(b, now)
		}
		b.remaining = time.Duration(float64(b.remaining) * old / rate)
	}
	r.rate = rate
	if !r.running {
		return
	}
	for _, b := range r.bullets {
		b.expiry.Cancel()
		r.scheduleExpiry(b)
	}
}

// nextExpiry returns the earliest wall time at which a bullet expires.
func (r *Registry) nextExpiry() (time.Duration, bool) {
	return r.expiries.Next()
}

// Advance expires every bullet whose lifetime ended by wall time now and
// returns how many were removed.
func (r *Registry) Advance(now time.Duration) int {
	return r.expiries.RunDue(now)
}

// Resync realigns every bullet with the virtual clock: its progress becomes
// what its track gives at virtualNow and its lifetime is counted from wallNow.
// Bullets whose motion is complete expire. It returns how many expired.
func (r *Registry) Resync(virtualNow, wallNow time.Duration) int {
	expired := 0
	for _, b := range r.bullets {
		b.expiry.Cancel()
		b.expiry = nil
		b.progress = b.Track.Phase(virtualNow)
		b.segStart = wallNow
		if b.progress >= 1 {
			r.expire(b)
			expired++
			continue
		}
		b.remaining = r.wallDuration(b, 1-b.progress)
		if r.running {
			r.scheduleExpiry(b)
		}
	}
	return expired
}

// Reanchor moves every bullet onto geometry g without changing its path on
// screen, then resyncs. It returns how many bullets expired.
func (r *Registry) Reanchor(g motion.Geometry, virtualNow, wallNow time.Duration) int {
	for _, b := range r.bullets {
		b.Track = b.Track.Reanchor(g.ScreenWidth)
		b.Top = g.RowTop(b.Track.Motion.Family(), b.Row)
	}
	return r.Resync(virtualNow, wallNow)
}

// Reset removes every bullet and cancels their expiry.
func (r *Registry) Reset() {
	r.expiries.Clear()
	clear(r.bullets)
	clear(r.expired)
}

// Len returns the number of active bullets.
func (r *Registry) Len() int {
	return len(r.bullets)
}

// Rate returns the rate lifetimes are currently measured at.
func (r *Registry) Rate() float64 {
	return r.rate
}

// Get returns the active bullet with the given ID.
func (r *Registry) Get(id string) (*Bullet, bool) {
	b, ok := r.bullets[id]
	return b, ok
}

// State reports whether id is active, expired since the last Reset, or unknown.
func (r *Registry) State(id string) State {
	if _, ok := r.bullets[id]; ok {
		return StateSpawned
	}
	if _, ok := r.expired[id]; ok {
		return StateExpired
	}
	return StateNone
}

// Remaining returns the wall time left for a bullet at wall time now.
func (r *Registry) Remaining(id string, now time.Duration) (time.Duration, bool) {
	b, ok := r.bullets[id]
	if !ok {
		return 0, false
	}
	return r.remainingAt(b, now), true
}

// Occupants returns the tracks of the bullets in a row.
func (r *Registry) Occupants(f comment.Family, row int) []motion.Track {
	var out []motion.Track
	for _, b := range r.bullets {
		if b.Row == row && b.Track.Motion.Family() == f {
			out = append(out, b.Track)
		}
	}
	return out
}

// Views returns drawable copies of every bullet at wall time now, ordered by
// family, row and placement time.
func (r *Registry) Views(now time.Duration) []View {
	views := make([]View, 0, len(r.bullets))
	for _, b := range r.bullets {
		p := r.progressAt(b, now)
		views = append(views, View{
			ID:          b.ID,
			Text:        b.Text,
			Color:       b.Color,
			Motion:      b.Track.Motion,
			Row:         b.Row,
			Top:         b.Top,
			Width:       b.Track.Width,
			X:           b.Track.X(p),
			Progress:    max(p, 0),
			Velocity:    b.Track.WallVelocity(r.rate),
			Duration:    r.wallDuration(b, 1),
			Remaining:   r.remainingAt(b, now),
			ScheduledAt: b.Track.Start,
			StartOffset: b.Track.Offset,
		})
	}
	slices.SortFunc(views, func(a, b View) int {
		return cmp.Or(
			cmp.Compare(a.Motion.Family(), b.Motion.Family()),
			cmp.Compare(a.Row, b.Row),
			cmp.Compare(a.ScheduledAt, b.ScheduledAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return views
}

// Close removes every bullet and stops accepting expiry tasks.
func (r *Registry) Close() {
	r.Reset()
	r.expiries.Close()
}

func (r *Registry) scheduleExpiry(b *Bullet) {
	task, err := r.expiries.Schedule(b.segStart+b.remaining, func() {
		r.expire(b)
	})
	if err != nil {
		return
	}
	b.expiry = task
}

func (r *Registry) expire(b *Bullet) {
	if r.bullets[b.ID] != b {
		return
	}
	delete(r.bullets, b.ID)
	r.expired[b.ID] = struct{}{}
	b.state = StateExpired
	b.expiry = nil
	b.progress = 1
	b.remaining = 0
}

// fold ends the current segment at now.
func (r *Registry) fold(b *Bullet, now time.Duration) {
	b.progress = r.progressAt(b, now)
	b.remaining = r.remainingAt(b, now)
	b.segStart = now
}

func (r *Registry) remainingAt(b *Bullet, now time.Duration) time.Duration {
	if !r.running {
		return b.remaining
	}
	return max(b.remaining-(now-b.segStart), 0)
}

func (r *Registry) progressAt(b *Bullet, now time.Duration) float64 {
	if !r.running || b.remaining <= 0 {
		return b.progress
	}
	elapsed := float64(min(max(now-b.segStart, 0), b.remaining))
	p := b.progress + (1-b.progress)*elapsed/float64(b.remaining)
	return min(p, 1)
}

// wallDuration converts a fraction of the bullet's motion to wall time.
func (r *Registry) wallDuration(b *Bullet, fraction float64) time.Duration {
	return time.Duration(float64(b.Track.Duration) * fraction / r.rate)
}
