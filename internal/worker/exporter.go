package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/orderdesk/internal/export"
	"github.com/jmehdipour/orderdesk/internal/filter"
	"github.com/jmehdipour/orderdesk/internal/kafka"
	"github.com/jmehdipour/orderdesk/internal/metrics"
	"github.com/jmehdipour/orderdesk/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// settleTimeout bounds the history write and offset commit after an attempt.
const settleTimeout = 5 * time.Second

type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

type Republisher interface {
	Publish(ctx context.Context, env model.ExportEnvelope) error
}

type ExportJob interface {
	Handle(ctx context.Context, req model.ExportRequest) (export.Result, error)
	Failed(ctx context.Context, req model.ExportRequest, cause error)
}

type RunRecorder interface {
	Insert(ctx context.Context, run model.ExportRun) error
}

// Exporter:
//   - fetches export envelopes from Kafka,
//   - runs the orders job,
//   - republishes failed attempts until MaxAttempts, then fires the job's
//     terminal hook,
//   - records every finished export in history.
type Exporter struct {
	// Dependencies
	Consumer Fetcher
	Queue    Republisher
	Job      ExportJob
	Runs     RunRecorder // optional
	Log      *zap.Logger

	// Behavior
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration

	now func() time.Time
}

func NewExporter(consumer Fetcher, queue Republisher, job ExportJob, runs RunRecorder, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		Consumer:     consumer,
		Queue:        queue,
		Job:          job,
		Runs:         runs,
		Log:          log.With(zap.String("worker", "exporter")),
		Workers:      4,
		MaxAttempts:  3,
		RetryBackoff: 5 * time.Second,
		now:          time.Now,
	}
}

// Run blocks until ctx is cancelled and in-flight exports settle.
func (w *Exporter) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 4
	}
	if w.MaxAttempts <= 0 {
		w.MaxAttempts = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	msgCh := make(chan kafka.Message, w.Workers*2)

	g.Go(func() error {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				w.Log.Warn("kafka fetch", zap.Error(err))
				if !sleepCtx(gctx, 200*time.Millisecond) {
					return nil
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-gctx.Done():
				return nil
			}
		}
	})

	for i := 0; i < w.Workers; i++ {
		g.Go(func() error {
			for m := range msgCh {
				w.processOne(gctx, m)
			}
			return nil
		})
	}

	return g.Wait()
}

func (w *Exporter) processOne(ctx context.Context, m kafka.Message) {
	if ctx.Err() != nil {
		// drained after shutdown; leave uncommitted for the next consumer
		return
	}

	var env model.ExportEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.Request.ExportID == "" {
		// poison → commit, skip
		w.commit(ctx, m)
		if err != nil {
			w.Log.Error("bad envelope json", zap.Error(err), zap.Int64("offset", m.Offset))
		} else {
			w.Log.Error("envelope missing export id", zap.Int64("offset", m.Offset))
		}
		return
	}

	log := w.Log.With(
		zap.String("export_id", env.Request.ExportID),
		zap.Int64("requester_id", env.Request.RequesterID),
		zap.Int("attempt", env.Attempt+1),
	)

	start := w.now()
	res, err := w.handle(ctx, env.Request)
	elapsed := w.now().Sub(start)
	metrics.ExportDuration.Observe(elapsed.Seconds())

	if err != nil && ctx.Err() != nil {
		// shutting down; leave uncommitted so the attempt is redelivered
		log.Warn("export interrupted", zap.Error(err))
		return
	}

	retry := err != nil && w.retryable(err, env.Attempt)
	if retry && !sleepCtx(ctx, w.RetryBackoff) {
		return
	}

	// the attempt has finished; settle it even if shutdown began meanwhile
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	run := model.ExportRun{
		ExportID:    env.Request.ExportID,
		RequesterID: env.Request.RequesterID,
		Attempts:    uint32(env.Attempt + 1),
		DurationMs:  uint64(elapsed.Milliseconds()),
	}

	switch {
	case err == nil:
		metrics.ExportsTotal.WithLabelValues("success").Inc()
		metrics.ExportRowsTotal.Add(float64(res.Rows))
		run.Status = model.ExportSuccess
		run.URL = res.URL
		run.Rows = uint64(res.Rows)
		w.record(settleCtx, log, run)

	case retry:
		next := env
		next.Attempt++
		if perr := w.Queue.Publish(settleCtx, next); perr != nil {
			log.Error("republish export", zap.Error(perr))
			w.giveUp(settleCtx, log, env, run, fmt.Errorf("%w (republish: %v)", err, perr))
			break
		}
		metrics.ExportsTotal.WithLabelValues("retried").Inc()
		log.Warn("export attempt failed, retrying", zap.Error(err))

	default:
		w.giveUp(settleCtx, log, env, run, err)
	}

	w.commit(settleCtx, m)
}

// handle keeps a panicking job from taking the worker down. The job has
// already written its failed status by the time the panic reaches here.
func (w *Exporter) handle(ctx context.Context, req model.ExportRequest) (res export.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export panicked: %v", r)
		}
	}()
	return w.Job.Handle(ctx, req)
}

func (w *Exporter) retryable(err error, attempt int) bool {
	if errors.Is(err, filter.ErrInvalidFilter) {
		return false
	}
	return attempt+1 < w.MaxAttempts
}

func (w *Exporter) giveUp(ctx context.Context, log *zap.Logger, env model.ExportEnvelope, run model.ExportRun, cause error) {
	w.Job.Failed(ctx, env.Request, cause)
	metrics.ExportsTotal.WithLabelValues("failed").Inc()

	run.Status = model.ExportFailed
	run.Message = cause.Error()
	w.record(ctx, log, run)
}

func (w *Exporter) record(ctx context.Context, log *zap.Logger, run model.ExportRun) {
	if w.Runs == nil {
		return
	}
	run.FinishedAt = w.now().UTC()
	if err := w.Runs.Insert(ctx, run); err != nil {
		log.Warn("record export run", zap.Error(err))
	}
}

func (w *Exporter) commit(ctx context.Context, m kafka.Message) {
	if err := w.Consumer.Commit(ctx, m); err != nil {
		w.Log.Error("kafka commit", zap.Error(err), zap.Int64("offset", m.Offset))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
