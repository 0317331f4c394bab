package activity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PendingRecord is an activity record that failed after its primary write
// (library entry + progress point) had already succeeded. The outbox retries
// it until the event lands, closing the documented inconsistency window from
// the trailing side.
type PendingRecord struct {
	ActorID  int64
	Type     string
	Subject  Subject
	Payload  map[string]interface{}
	IsPublic bool
	Attempts int
}

const outboxMaxAttempts = 5

// Outbox retries failed activity records on a fixed interval.
type Outbox struct {
	svc    *Service
	ch     chan *PendingRecord
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewOutbox creates an Outbox and starts its background worker.
func NewOutbox(svc *Service, retryInterval time.Duration, buf int, logger *zap.Logger) *Outbox {
	if retryInterval <= 0 {
		retryInterval = 10 * time.Second
	}
	if buf <= 0 {
		buf = 1024
	}
	o := &Outbox{
		svc:    svc,
		ch:     make(chan *PendingRecord, buf),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	o.wg.Add(1)
	go o.worker(retryInterval)
	return o
}

// Enqueue adds a failed record for retry. Non-blocking: if the outbox is
// full the record is dropped and the gap is left to the documented
// eventual-consistency contract (library change without event).
func (o *Outbox) Enqueue(rec *PendingRecord) {
	select {
	case o.ch <- rec:
	default:
		o.logger.Warn("activity outbox full, dropping record",
			zap.Int64("actor_id", rec.ActorID),
			zap.String("type", rec.Type))
	}
}

// Stop makes a final flush attempt and shuts the worker down.
func (o *Outbox) Stop() {
	select {
	case <-o.stopCh:
	default:
		close(o.stopCh)
	}
	o.wg.Wait()
}

func (o *Outbox) worker(interval time.Duration) {
	defer o.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []*PendingRecord

	flush := func() {
		remaining := pending[:0]
		for _, rec := range pending {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, err := o.svc.Record(ctx, rec.ActorID, rec.Type, rec.Subject, rec.Payload, rec.IsPublic)
			cancel()
			if err == nil {
				continue
			}
			rec.Attempts++
			if rec.Attempts >= outboxMaxAttempts {
				o.logger.Error("activity outbox giving up",
					zap.Int64("actor_id", rec.ActorID),
					zap.String("type", rec.Type),
					zap.Int("attempts", rec.Attempts),
					zap.Error(err))
				continue
			}
			remaining = append(remaining, rec)
		}
		pending = remaining
	}

	for {
		select {
		case rec := <-o.ch:
			pending = append(pending, rec)
		case <-ticker.C:
			flush()
		case <-o.stopCh:
			// Drain the queue, then one last flush.
			for {
				select {
				case rec := <-o.ch:
					pending = append(pending, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
