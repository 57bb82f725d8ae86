package scheduler

import "time"

const eventBufferSize = 16

// SeekEvent reports a detected or requested seek.
type SeekEvent struct {
	From time.Duration
	To   time.Duration
}

// Subscription delivers scheduler events. Sends never block: events are
// dropped when a buffer is full, so readers should treat Snapshots as
// "latest available" and fall back to Scheduler.Snapshot.
type Subscription struct {
	Snapshots <-chan *Snapshot
	Seeks     <-chan SeekEvent
	Done      <-chan struct{}

	snapshotCh chan *Snapshot
	seekCh     chan SeekEvent
	doneCh     chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		snapshotCh: make(chan *Snapshot, eventBufferSize),
		seekCh:     make(chan SeekEvent, eventBufferSize),
		doneCh:     make(chan struct{}),
	}
	s.Snapshots = s.snapshotCh
	s.Seeks = s.seekCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() {
	close(s.doneCh)
}

func (s *Subscription) sendSnapshot(snap *Snapshot) {
	select {
	case s.snapshotCh <- snap:
	default:
	}
}

func (s *Subscription) sendSeek(e SeekEvent) {
	select {
	case s.seekCh <- e:
	default:
	}
}
