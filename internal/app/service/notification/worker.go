package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/platform/queue"
)

// Worker drains the notification queue.
type Worker struct {
	queue       JobQueue
	dispatcher  *Dispatcher
	log         *zap.SugaredLogger
	pollTimeout time.Duration
	backoff     time.Duration
}

func NewWorker(q JobQueue, d *Dispatcher, log *zap.SugaredLogger) *Worker {
	return &Worker{queue: q, dispatcher: d, log: log, pollTimeout: 5 * time.Second, backoff: queue.RetryBackoff}
}

// Process delivers one queued job.
func (w *Worker) Process(ctx context.Context, qj *queue.Job) error {
	if qj.Type != queue.JobTypeNotification {
		return fmt.Errorf("unknown job type: %s", qj.Type)
	}
	var job Job
	if err := json.Unmarshal(qj.Payload, &job); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return w.dispatcher.Deliver(ctx, job, qj.Attempt)
}

// Run loops until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.log.Infow("notification worker stopping")
			return
		}
		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warnw("dequeue error", "err", err)
			w.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if err := w.Process(ctx, job); err != nil {
			w.log.Errorw("job failed", "job_id", job.ID, "attempt", job.Attempt, "err", err)
			if reErr := w.queue.Retry(ctx, job); reErr != nil {
				w.log.Errorw("retry enqueue failed", "job_id", job.ID, "err", reErr)
			}
			w.sleep(ctx)
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	t := time.NewTimer(w.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type workerParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Queue      *queue.Queue `optional:"true"`
	Dispatcher *Dispatcher
	Log        *zap.SugaredLogger
}

func registerWorker(p workerParams) {
	if p.Queue == nil {
		return
	}
	w := NewWorker(p.Queue, p.Dispatcher, p.Log)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Run(ctx)
			}()
			p.Log.Infow("notification worker started")
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			done := make(chan struct{})
			go func() { wg.Wait(); close(done) }()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
