package clock

import "time"

// Adapter turns a wall clock plus playback state into monotonic virtual time.
// Virtual time only advances while playing, scaled by the playback rate.
// It is not safe for concurrent use; the scheduler owns it.
type Adapter struct {
	tp       TimeProvider
	virtual  time.Duration
	lastWall time.Time
	playing  bool
	rate     float64
}

// NewAdapter creates a paused adapter at virtual time zero and rate 1.
func NewAdapter(tp TimeProvider) *Adapter {
	if tp == nil {
		tp = WallClock{}
	}
	return &Adapter{
		tp:       tp,
		lastWall: tp.Now(),
		rate:     1,
	}
}

// Tick advances virtual time by the wall-clock delta since the last reading
// and returns the new virtual time.
func (a *Adapter) Tick() time.Duration {
	now := a.tp.Now()
	if a.playing {
		delta := now.Sub(a.lastWall)
		if delta > 0 {
			a.virtual += time.Duration(float64(delta) * a.rate)
		}
	}
	a.lastWall = now
	return a.virtual
}

// Sync snaps virtual time to an authoritative video position.
// Negative positions clamp to zero.
func (a *Adapter) Sync(videoTime time.Duration) {
	a.virtual = max(videoTime, 0)
	a.lastWall = a.tp.Now()
}

// SetPlaying starts or freezes virtual time. Pausing folds in the time played
// since the last tick; resuming restarts measurement from now.
func (a *Adapter) SetPlaying(playing bool) {
	if playing == a.playing {
		return
	}
	a.Tick()
	a.playing = playing
}

// SetRate changes the playback rate. Time already played is accounted at the
// previous rate. Non-positive rates are ignored.
func (a *Adapter) SetRate(rate float64) {
	if rate <= 0 || rate == a.rate {
		return
	}
	a.Tick()
	a.rate = rate
}

// Now returns the current virtual time without advancing it.
func (a *Adapter) Now() time.Duration {
	return a.virtual
}

// Playing reports whether virtual time is advancing.
func (a *Adapter) Playing() bool {
	return a.playing
}

// Rate returns the current playback rate.
func (a *Adapter) Rate() float64 {
	return a.rate
}
