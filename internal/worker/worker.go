// Package worker consumes thumbnail tasks from the queue and runs them through the imaging pipeline
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/UnendingLoop/ImageThumbnailer/internal/etag"
	"github.com/UnendingLoop/ImageThumbnailer/internal/imager"
	"github.com/UnendingLoop/ImageThumbnailer/internal/jobctx"
	"github.com/UnendingLoop/ImageThumbnailer/internal/kafka"
	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/UnendingLoop/ImageThumbnailer/internal/service"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/semaphore"
)

// etagMetaKey is the user metadata key the thumbnail ETag is stored under.
const etagMetaKey = "Thumbnail-Etag"

type JobWorkerService interface {
	Register(ctx context.Context, id uuid.UUID, req model.JobRequest) (*model.Job, error)
	Options(job *model.Job) (imager.Options, error)
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, job *model.Job) error
	Fail(ctx context.Context, id string, cause error) error
}

// Committer acknowledges a processed queue message.
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	storage      service.ObjectStorage
	service      JobWorkerService
	queue        <-chan kafkago.Message
	committer    Committer
	resultPrefix string
	sem          *semaphore.Weighted
	wg           sync.WaitGroup
}

func NewWorkerInstance(strg service.ObjectStorage, svc JobWorkerService, q <-chan kafkago.Message, cons Committer, resPr string, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		storage:      strg,
		service:      svc,
		queue:        q,
		committer:    cons,
		resultPrefix: resPr,
		sem:          semaphore.NewWeighted(int64(concurrency)),
	}
}

// StartWorker runs until ctx is cancelled or the queue is closed, then waits for in-flight tasks.
func (w *Worker) StartWorker(ctx context.Context) {
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			if err := w.sem.Acquire(ctx, 1); err != nil {
				return
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer w.sem.Release(1)
				w.handleMessage(ctx, msg)
			}()
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg kafkago.Message) {
	ctx = jobctx.WithJob(ctx, string(msg.Key))
	logger := jobctx.LoggerFromContext(ctx)

	if err := w.initProcessor(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("Task failed, message left uncommitted")
		return
	}
	if err := w.committer.Commit(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("Failed to commit queue-message")
	}
}

// initProcessor returns an error only when the task should be retried; tasks that can never
// succeed are recorded as failed and reported as handled.
func (w *Worker) initProcessor(ctx context.Context, msg kafkago.Message) error {
	logger := jobctx.LoggerFromContext(ctx)

	id, req, err := kafka.DecodeTask(msg)
	if err != nil {
		logger.Warn().Err(err).Msg("Dropping malformed task")
		return nil
	}

	job, err := w.service.Register(ctx, id, req)
	if err != nil {
		return fmt.Errorf("worker failed to register task %q: %w", id, err)
	}
	ctx = jobctx.WithSource(ctx, job.SourceKey)
	logger = jobctx.LoggerFromContext(ctx)

	if job.Status.Terminal() {
		logger.Info().Str("status", string(job.Status)).Msg("Task already finished, skipping")
		return nil
	}

	opts, err := w.service.Options(job)
	if err != nil {
		return w.fail(ctx, job, err)
	}

	if err := w.service.UpdateStatus(ctx, id.String(), model.StatusInProgress); err != nil {
		return fmt.Errorf("failed to update status of task %q to `in_progress` in DB: %w", id, err)
	}

	if pErr := w.processTask(ctx, job, opts); pErr != nil {
		if isTerminal(pErr) {
			return w.fail(ctx, job, pErr)
		}
		return fmt.Errorf("failed to process task %q: %w", id, pErr)
	}

	logger.Info().Str("result_key", job.ResultKey).Str("etag", job.ETag).Msg("Thumbnail stored")
	return nil
}

func (w *Worker) processTask(ctx context.Context, job *model.Job, opts imager.Options) error {
	src, _, err := w.storage.Get(ctx, job.SourceKey)
	if err != nil {
		return fmt.Errorf("worker failed to fetch source image from storage: %w", err)
	}
	defer closeFileFlow(ctx, src)

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("worker failed to read source image: %w", err)
	}

	out, err := imager.Process(data, opts)
	if err != nil {
		return fmt.Errorf("worker failed to build thumbnail: %w", err)
	}

	tag := etag.Generate(out.Data, false)
	resKey := w.resultPrefix + job.UID.String() + out.Format.Ext()
	meta := map[string]string{etagMetaKey: tag}
	if err := w.storage.Put(ctx, resKey, int64(len(out.Data)), out.Format.ContentType(), bytes.NewReader(out.Data), meta); err != nil {
		return fmt.Errorf("worker failed to put thumbnail to storage: %w", err)
	}

	job.ResultKey = resKey
	job.ETag = tag

	if err := w.service.SaveResult(ctx, job); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, job *model.Job, cause error) error {
	logger := jobctx.LoggerFromContext(ctx)
	logger.Warn().Err(cause).Msg("Task failed permanently")

	if uErr := w.service.Fail(ctx, job.UID.String(), cause); uErr != nil {
		return fmt.Errorf("failed to set status of task %q to `failed` in DB: %w \nAFTER\n error while processing task: %w", job.UID, uErr, cause)
	}
	return nil
}

// isTerminal reports errors that no retry can fix: broken or unsupported images and missing sources.
func isTerminal(err error) bool {
	return imager.IsPipelineError(err) || errors.Is(err, model.ErrObjectNotFound)
}

func closeFileFlow(ctx context.Context, res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		logger := jobctx.LoggerFromContext(ctx)
		logger.Error().Err(err).Msg("Worker failed to close fileflow")
	}
}
