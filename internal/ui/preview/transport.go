package preview

import (
	"time"

	"github.com/llehouerou/danmaku/internal/mpris"
	"github.com/llehouerou/danmaku/internal/scheduler"
)

// Transport drives a scheduler as a standalone player.
type Transport struct {
	sched  *scheduler.Scheduler
	title  string
	length time.Duration
}

// Verify Transport implements mpris.Controller at compile time.
var _ mpris.Controller = (*Transport)(nil)

// NewTransport wraps sched. length is the time of the last comment.
func NewTransport(sched *scheduler.Scheduler, title string, length time.Duration) *Transport {
	return &Transport{sched: sched, title: title, length: length}
}

func (t *Transport) Play()  { t.sched.SetPlaying(true) }
func (t *Transport) Pause() { t.sched.SetPlaying(false) }

func (t *Transport) Toggle() {
	t.sched.SetPlaying(!t.sched.Playing())
}

// Seek moves by offset, clamped to [0, length].
func (t *Transport) Seek(offset time.Duration) error {
	return t.SeekTo(t.sched.Position() + offset)
}

// SeekTo jumps to pos, clamped to [0, length].
func (t *Transport) SeekTo(pos time.Duration) error {
	pos = max(pos, 0)
	if t.length > 0 {
		pos = min(pos, t.length)
	}
	return t.sched.Seek(pos)
}

func (t *Transport) Position() time.Duration { return t.sched.Position() }
func (t *Transport) Playing() bool           { return t.sched.Playing() }

func (t *Transport) Rate() float64 {
	if snap := t.sched.Snapshot(); snap != nil && snap.Rate > 0 {
		return snap.Rate
	}
	return 1
}

func (t *Transport) SetRate(rate float64)  { t.sched.SetRate(rate) }
func (t *Transport) Title() string         { return t.title }
func (t *Transport) Length() time.Duration { return t.length }

var rateSteps = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 2, 3, 4}

// StepRate moves the rate one step up (dir > 0) or down.
func (t *Transport) StepRate(dir int) float64 {
	cur := t.Rate()
	next := cur
	if dir > 0 {
		for _, r := range rateSteps {
			if r > cur+1e-9 {
				next = r
				break
			}
		}
	} else {
		for i := len(rateSteps) - 1; i >= 0; i-- {
			if rateSteps[i] < cur-1e-9 {
				next = rateSteps[i]
				break
			}
		}
	}
	t.SetRate(next)
	return next
}
