// Package scheduler drives a danmaku session: it follows the playback clock,
// admits comments as their time is crossed, asks the lane allocator for a row
// and keeps the bullet registry in step with pause, rate changes and seeks.
//
// The scheduler is tick-driven. The host calls Tick once per frame while
// playing and reports the external player state with ObservePlayback (or the
// individual SetPlaying, SetRate and Seek calls). Renderers read the latest
// Snapshot, which is published atomically after every mutation.
package scheduler

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/danmaku/internal/bullet"
	"github.com/llehouerou/danmaku/internal/clock"
	"github.com/llehouerou/danmaku/internal/comment"
	"github.com/llehouerou/danmaku/internal/lanes"
	"github.com/llehouerou/danmaku/internal/motion"
	"github.com/llehouerou/danmaku/internal/pipeline"
	"github.com/llehouerou/danmaku/internal/textwidth"
	"github.com/llehouerou/danmaku/internal/timer"
)

// ErrClosed is returned by operations on a closed scheduler.
var ErrClosed = errors.New("scheduler closed")

// DefaultScreen is used when Config leaves the screen empty.
var DefaultScreen = Screen{Width: 1280, Height: 720}

// Config configures a session. Zero fields use their defaults.
type Config struct {
	Settings     Settings
	Tuning       Tuning
	Screen       Screen
	Logger       *slog.Logger
	TimeProvider clock.TimeProvider
	Estimator    textwidth.Estimator
}

// Stats counts what happened to comments during a session.
type Stats struct {
	Queued   int // comments left after the pipeline
	Invalid  int // malformed input
	Filtered int // excluded by the filters or the offset
	Capped   int

	Spawned    int
	Deferred   int
	Dropped    int // no row within the lookahead window
	Expired    int
	Readmitted int // caught up after a seek
	Seeks      int

	Active  int
	Pending int
}

// Snapshot is an immutable view of the session for renderers.
type Snapshot struct {
	Position time.Duration
	Playing  bool
	Rate     float64
	Opacity  float64
	FontSize float64
	Screen   Screen
	Rows     int
	Bullets  []bullet.View
	Stats    Stats
}

// Scheduler owns one session. Its methods are safe for concurrent use;
// Snapshot never blocks.
type Scheduler struct {
	mu     sync.Mutex
	id     string
	log    *slog.Logger
	tp     clock.TimeProvider
	epoch  time.Time
	clk    *clock.Adapter
	widths *textwidth.Cache

	settings Settings
	tuning   Tuning
	screen   Screen
	geom     motion.Geometry

	raw       []comment.Comment
	queue     []comment.Comment
	cursor    int           // first queued comment not yet crossed
	from      time.Duration // start of the next uncrossed window
	processed map[string]struct{}

	registry *bullet.Registry
	alloc    *lanes.Allocator
	spawns   *timer.Queue // deferred spawns keyed by virtual time
	pending  map[string]*timer.Task
	wall     time.Duration // wall time of the tick being processed

	lastObserved time.Duration
	observed     bool

	stats  Stats
	snap   atomic.Pointer[Snapshot]
	closed bool

	subs       []*Subscription
	subsClosed bool
	subsMu     sync.RWMutex
}

// New starts a paused session at position zero over comments.
func New(comments []comment.Comment, cfg Config) *Scheduler {
	if cfg.Settings == (Settings{}) {
		cfg.Settings = DefaultSettings()
	}
	if cfg.Tuning == (Tuning{}) {
		cfg.Tuning = DefaultTuning()
	}
	if cfg.Screen.Width <= 0 || cfg.Screen.Height <= 0 {
		cfg.Screen = DefaultScreen
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.TimeProvider == nil {
		cfg.TimeProvider = clock.WallClock{}
	}

	id := uuid.NewString()
	s := &Scheduler{
		id:        id,
		log:       cfg.Logger.With("session_id", id),
		tp:        cfg.TimeProvider,
		epoch:     cfg.TimeProvider.Now(),
		clk:       clock.NewAdapter(cfg.TimeProvider),
		widths:    textwidth.NewCache(cfg.Estimator, textwidth.DefaultCacheSize),
		settings:  cfg.Settings,
		tuning:    cfg.Tuning,
		screen:    cfg.Screen,
		raw:       slices.Clone(comments),
		processed: make(map[string]struct{}),
		registry:  bullet.New(),
		spawns:    timer.New(),
		pending:   make(map[string]*timer.Task),
	}
	s.registry.Pause(0)
	s.geom = geometry(s.settings, s.tuning, s.screen)
	s.alloc = lanes.New(s.tuning.Lanes, s.geom, s.registry)
	s.rebuild()
	s.publish(0)

	s.log.Info("scheduler: session started",
		"comments", len(comments),
		"queued", len(s.queue),
		"rows", s.geom.Rows())
	return s
}

// Tick advances the session to the current wall-clock instant and returns the
// new snapshot.
func (s *Scheduler) Tick() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snap.Load()
	}
	wall := s.wallNow()
	s.advance(s.clk.Tick(), wall)
	return s.publish(wall)
}

// ObservePlayback reports the external player's state. A position behind the
// previously observed one, or too far ahead of the scheduler's clock, is
// handled as a seek. Small drift is corrected silently.
func (s *Scheduler) ObservePlayback(pos time.Duration, playing bool, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	wall := s.wallNow()
	virtual := s.clk.Tick()

	if s.isSeek(pos, virtual) {
		s.seek(pos, wall)
	} else if drift := pos - virtual; drift > s.tuning.DriftTolerance || -drift > s.tuning.DriftTolerance {
		s.clk.Sync(pos)
		// bullets move with the clock, not with the wall time they were spawned at
		s.stats.Expired += s.registry.Resync(s.clk.Now(), wall)
	}
	s.lastObserved = max(pos, 0)
	s.observed = true

	s.setRate(rate, wall)
	s.setPlaying(playing, wall)
	s.publish(wall)
}

// SetPlaying pauses or resumes the session.
func (s *Scheduler) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	wall := s.wallNow()
	s.setPlaying(playing, wall)
	s.publish(wall)
}

// SetRate changes the playback rate. Non-positive rates are ignored.
func (s *Scheduler) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	wall := s.wallNow()
	s.setRate(rate, wall)
	s.publish(wall)
}

// Seek jumps to pos. Active bullets and pending spawns are discarded and
// comments within the seek grace window behind pos are re-admitted mid-flight.
func (s *Scheduler) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	wall := s.wallNow()
	s.seek(pos, wall)
	s.lastObserved = max(pos, 0)
	s.observed = true
	s.publish(wall)
	return nil
}

// UpdateSettings swaps the display settings. The comment queue is rebuilt
// from the current position and lanes follow the new row capacity; bullets on
// screen are kept.
func (s *Scheduler) UpdateSettings(st Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if st.FontSize != s.settings.FontSize {
		s.widths.Purge()
	}
	s.settings = st
	s.reconfigure()
	s.log.Debug("scheduler: settings updated",
		"speed", st.Speed,
		"font_size", st.FontSize,
		"density", st.Density,
		"offset", st.Offset,
		"rows", s.geom.Rows())
}

// SetTuning swaps the scheduling policy knobs.
func (s *Scheduler) SetTuning(tu Tuning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.tuning = tu
	s.alloc.SetConfig(tu.Lanes)
	s.reconfigure()
}

// Resize changes the drawing area.
func (s *Scheduler) Resize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || width <= 0 || height <= 0 {
		return
	}
	s.screen = Screen{Width: width, Height: height}
	s.reconfigure()
}

// ID identifies the session in log records.
func (s *Scheduler) ID() string {
	return s.id
}

// Settings returns the current display settings.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Position returns the current virtual time without advancing it.
func (s *Scheduler) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.Now()
}

// Playing reports whether the session clock is running. Hosts may stop
// ticking while it is not.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.Playing()
}

// State reports where a comment is in its lifecycle.
func (s *Scheduler) State(id string) bullet.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; ok {
		return bullet.StateScheduled
	}
	return s.registry.State(id)
}

// Stats returns the session counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStats()
}

// Snapshot returns the latest published snapshot.
func (s *Scheduler) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Subscribe registers for snapshot and seek events.
func (s *Scheduler) Subscribe() *Subscription {
	sub := newSubscription()
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.subsClosed {
		sub.close()
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

// Close ends the session. Pending spawns and expiry timers are cancelled and
// subscribers are released. No callback runs after Close returns.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.spawns.Close()
	clear(s.pending)
	s.registry.Close()
	stats := s.stats
	s.mu.Unlock()

	s.subsMu.Lock()
	s.subsClosed = true
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()

	s.log.Info("scheduler: session closed",
		"spawned", stats.Spawned,
		"dropped", stats.Dropped,
		"seeks", stats.Seeks)
	return nil
}

// advance processes the virtual window [s.from, now).
func (s *Scheduler) advance(now, wall time.Duration) {
	s.wall = wall
	s.stats.Expired += s.registry.Advance(wall)
	s.spawns.RunDue(now)

	if now <= s.from {
		return
	}
	end := s.cursor + lowerBound(s.queue[s.cursor:], now)
	batch := s.queue[s.cursor:end]
	s.cursor = end
	late := now-s.from >= s.tuning.SmallWindow
	if late && len(batch) > 0 {
		s.log.Debug("scheduler: catching up large window",
			"from", s.from,
			"to", now,
			"comments", len(batch))
	}
	for _, c := range batch {
		s.admit(c, now, wall, late)
	}
	s.from = now
}

// admit places one comment. With catchUp set the bullet starts partway
// through its motion, by how late it is up to CatchUpFraction of the motion.
func (s *Scheduler) admit(c comment.Comment, now, wall time.Duration, catchUp bool) bool {
	if _, done := s.processed[c.ID]; done {
		return false
	}
	s.processed[c.ID] = struct{}{}

	width := s.widths.Width(c.Text, s.settings.FontSize)
	req := lanes.Request{ID: c.ID, Motion: c.Motion, Width: width, At: now}
	if catchUp {
		full := s.geom.Track(c.ID, c.Motion, width, now, 0).Duration
		limit := time.Duration(float64(full) * s.tuning.CatchUpFraction)
		req.Offset = min(max(now-c.AppearAt, 0), limit)
	}

	p, ok := s.alloc.Place(req)
	if !ok {
		s.stats.Dropped++
		s.log.Debug("scheduler: comment dropped, no free row",
			"id", c.ID,
			"appear_at", c.AppearAt,
			"motion", c.Motion)
		return false
	}
	if p.At > now {
		return s.deferSpawn(c, p)
	}
	return s.spawn(c, p, now, wall)
}

func (s *Scheduler) deferSpawn(c comment.Comment, p lanes.Placement) bool {
	task, err := s.spawns.Schedule(p.At, func() {
		delete(s.pending, c.ID)
		s.spawn(c, p, s.clk.Now(), s.wall)
	})
	if err != nil {
		s.alloc.Release(c.ID)
		return false
	}
	s.pending[c.ID] = task
	s.stats.Deferred++
	s.log.Debug("scheduler: spawn deferred",
		"id", c.ID,
		"appear_at", c.AppearAt,
		"spawn_at", p.At,
		"row", p.Row)
	return true
}

func (s *Scheduler) spawn(c comment.Comment, p lanes.Placement, now, wall time.Duration) bool {
	params := bullet.Params{
		Comment: c,
		Row:     p.Row,
		Top:     s.geom.RowTop(c.Motion.Family(), p.Row),
		Track:   p.Track.Reanchor(s.geom.ScreenWidth), // the screen may have changed since placement
	}
	if !s.registry.Spawn(params, now, wall) {
		s.alloc.Release(c.ID)
		s.stats.Dropped++
		return false
	}
	s.stats.Spawned++
	return true
}

func (s *Scheduler) isSeek(pos, virtual time.Duration) bool {
	if pos < 0 {
		return true
	}
	if s.observed && pos < s.lastObserved {
		return true
	}
	return pos-virtual > s.tuning.MaxNaturalJump
}

func (s *Scheduler) seek(pos, wall time.Duration) {
	pos = max(pos, 0)
	prev := s.clk.Now()

	s.registry.Reset()
	s.spawns.Clear()
	clear(s.pending)
	s.alloc.Reset(pos)
	clear(s.processed)
	s.clk.Sync(pos)
	s.stats.Seeks++

	lo := lowerBound(s.queue, pos-s.tuning.SeekGrace)
	hi := lowerBound(s.queue, pos)
	s.cursor = hi
	s.from = pos
	s.wall = wall

	readmitted := 0
	for _, c := range s.queue[lo:hi] {
		if s.admit(c, pos, wall, true) {
			readmitted++
		}
	}
	s.stats.Readmitted += readmitted

	s.log.Debug("scheduler: seek",
		"from", prev,
		"to", pos,
		"readmitted", readmitted)
	s.broadcastSeek(SeekEvent{From: prev, To: pos})
}

func (s *Scheduler) setPlaying(playing bool, wall time.Duration) {
	if playing == s.clk.Playing() {
		return
	}
	s.clk.SetPlaying(playing)
	if playing {
		s.registry.Resume(wall)
	} else {
		s.registry.Pause(wall)
	}
	s.log.Debug("scheduler: playing changed", "playing", playing, "position", s.clk.Now())
}

func (s *Scheduler) setRate(rate float64, wall time.Duration) {
	if rate <= 0 || rate == s.clk.Rate() {
		return
	}
	s.clk.SetRate(rate)
	s.registry.SetRate(rate, wall)
	s.log.Debug("scheduler: rate changed", "rate", rate)
}

func (s *Scheduler) reconfigure() {
	wall := s.wallNow()
	s.geom = geometry(s.settings, s.tuning, s.screen)
	s.alloc.SetGeometry(s.geom)
	s.stats.Expired += s.registry.Reanchor(s.geom, s.clk.Tick(), wall)
	s.rebuild()
	s.publish(wall)
}

// rebuild reruns the pipeline and repositions the cursor at the current window.
func (s *Scheduler) rebuild() {
	res := pipeline.Build(s.raw, pipeline.Options{
		Offset:       s.settings.Offset,
		SourceFilter: s.settings.SourceFilter,
		MotionFilter: s.settings.MotionFilter,
		Density:      s.settings.Density,
		Grace:        s.tuning.DensityGrace,
		BucketWidth:  s.geom.CrossDuration(),
		VisibleRows:  s.geom.Rows(),
	})
	s.queue = res.Comments
	s.cursor = lowerBound(s.queue, s.from)
	s.stats.Queued = len(res.Comments)
	s.stats.Invalid = res.Invalid
	s.stats.Filtered = res.Filtered
	s.stats.Capped = res.Capped
}

func (s *Scheduler) publish(wall time.Duration) *Snapshot {
	snap := &Snapshot{
		Position: s.clk.Now(),
		Playing:  s.clk.Playing(),
		Rate:     s.clk.Rate(),
		Opacity:  s.settings.Opacity,
		FontSize: s.settings.FontSize,
		Screen:   s.screen,
		Rows:     s.geom.Rows(),
		Bullets:  s.registry.Views(wall),
		Stats:    s.currentStats(),
	}
	s.snap.Store(snap)

	s.subsMu.RLock()
	for _, sub := range s.subs {
		sub.sendSnapshot(snap)
	}
	s.subsMu.RUnlock()
	return snap
}

func (s *Scheduler) broadcastSeek(e SeekEvent) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendSeek(e)
	}
}

func (s *Scheduler) currentStats() Stats {
	st := s.stats
	st.Active = s.registry.Len()
	st.Pending = len(s.pending)
	return st
}

func (s *Scheduler) wallNow() time.Duration {
	return s.tp.Now().Sub(s.epoch)
}

// lowerBound returns the index of the first comment appearing at or after t.
func lowerBound(queue []comment.Comment, t time.Duration) int {
	i, _ := slices.BinarySearchFunc(queue, t, func(c comment.Comment, t time.Duration) int {
		return cmp.Compare(c.AppearAt, t)
	})
	return i
}
