package tryondb

import (
	"sync"
	"time"

	"github.com/vastravista/tryon/internal/monitoring"
	"github.com/vastravista/tryon/internal/timeutil"
	"github.com/vastravista/tryon/internal/tryon"
)

const (
	// recorderQueueDepth bounds how far the writer may fall behind before
	// frames are dropped. Dropping diagnostics beats stalling the pipeline.
	recorderQueueDepth = 1024
	recorderBatchSize  = 64
)

// Recorder is an asynchronous FrameObserver that batches frame records
// into the diagnostics database. ObserveFrame never blocks the frame
// pipeline: when the queue is full the record is dropped and counted.
type Recorder struct {
	db    *TryonDB
	queue chan tryon.FrameRecord

	mu      sync.Mutex
	dropped int64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRecorder starts the background writer. flushInterval bounds how
// stale a buffered record may get; clock may be nil for wall time.
func NewRecorder(db *TryonDB, flushInterval time.Duration, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r := &Recorder{
		db:    db,
		queue: make(chan tryon.FrameRecord, recorderQueueDepth),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go r.run(flushInterval, clock)
	return r
}

// ObserveFrame queues a record for persistence. Safe for concurrent use.
func (r *Recorder) ObserveFrame(rec tryon.FrameRecord) {
	select {
	case r.queue <- rec:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Dropped reports how many records were discarded because the writer
// fell behind.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close flushes buffered records and stops the writer. The database
// handle stays open; the caller owns it.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
	})
}

func (r *Recorder) run(flushInterval time.Duration, clock timeutil.Clock) {
	defer close(r.done)

	ticker := clock.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]tryon.FrameRecord, 0, recorderBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.db.InsertFrames(batch); err != nil {
			monitoring.Logf("diagnostics flush failed (%d records): %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-r.queue:
			batch = append(batch, rec)
			if len(batch) >= recorderBatchSize {
				flush()
			}
		case <-ticker.C():
			flush()
		case <-r.stop:
			for {
				select {
				case rec := <-r.queue:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
