package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
	"github.com/cyberbrick-rc/brickrx/internal/session"
)

const (
	maxBatch  = 32
	retention = time.Hour
)

// Recorder is a session observer that queues events for a writer goroutine.
// The control loop never waits on it: events are dropped when the queue is full.
type Recorder struct {
	run     string
	repo    *EventRepository
	queue   chan LinkEvent
	dropped atomic.Uint64
	log     *log.Logger
}

// NewRecorder creates a recorder with room for queue pending events.
// Every event it writes is tagged with a fresh run ID.
func NewRecorder(repo *EventRepository, queue int, logger *log.Logger) *Recorder {
	return &Recorder{
		run:   uuid.NewString(),
		repo:  repo,
		queue: make(chan LinkEvent, queue),
		log:   logger,
	}
}

var _ session.Observer = (*Recorder)(nil)

// OnTransition queues a transition event
func (r *Recorder) OnTransition(from, to protocol.LinkState, at time.Time) {
	r.enqueue(LinkEvent{At: at, Kind: KindTransition, From: from.String(), To: to.String()})
}

// OnCycle queues every outcome except a plain frame
func (r *Recorder) OnCycle(outcome session.Outcome, at time.Time) {
	if outcome == session.OutcomeFrame {
		return
	}
	r.enqueue(LinkEvent{At: at, Kind: KindOutcome, Outcome: outcome.String()})
}

// RunID identifies this process run in the journal
func (r *Recorder) RunID() string {
	return r.run
}

func (r *Recorder) enqueue(e LinkEvent) {
	e.Run = r.run
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many events did not fit in the queue
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run writes queued events until ctx is cancelled, then flushes what is left.
// Events older than an hour are pruned as it goes.
func (r *Recorder) Run(ctx context.Context) error {
	prune := time.NewTicker(retention / 4)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			r.write(r.drain(nil))
			return nil
		case e := <-r.queue:
			r.write(r.drain([]LinkEvent{e}))
		case now := <-prune.C:
			if n, err := r.repo.Prune(now.Add(-retention)); err != nil {
				r.log.Warn("Failed to prune journal", "err", err)
			} else if n > 0 {
				r.log.Debug("Pruned journal", "events", n)
			}
		}
	}
}

func (r *Recorder) drain(batch []LinkEvent) []LinkEvent {
	for len(batch) < maxBatch {
		select {
		case e := <-r.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (r *Recorder) write(batch []LinkEvent) {
	if len(batch) == 0 {
		return
	}
	if err := r.repo.InsertBatch(batch); err != nil {
		r.log.Warn("Failed to write journal", "events", len(batch), "err", err)
	}
}
