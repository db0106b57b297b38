// Package service provides business-logic for the app
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/ImageThumbnailer/internal/imager"
	"github.com/UnendingLoop/ImageThumbnailer/internal/jobctx"
	"github.com/UnendingLoop/ImageThumbnailer/internal/kafka"
	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/UnendingLoop/ImageThumbnailer/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/retry"
)

type JobService struct {
	repo         repository.JobRepo
	publisher    TaskPublisher
	storage      ObjectStorage
	srcKeyPrefix string
	maxPixels    int
	jpegQuality  int
}

func NewJobService(cfg *config.Config, repo repository.JobRepo, pub TaskPublisher, strg ObjectStorage) *JobService {
	maxPixels, jpegQuality := limitsFromConfig(cfg)
	return &JobService{
		repo:         repo,
		publisher:    pub,
		storage:      strg,
		srcKeyPrefix: cfg.GetString("SOURCE_KEY"),
		maxPixels:    maxPixels,
		jpegQuality:  jpegQuality,
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ObjectStorage - контракт для работы с хранилищем
type ObjectStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader, meta map[string]string) error
}

var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// Submit uploads the source image, records the job and queues it for the worker.
func (c JobService) Submit(ctx context.Context, req model.JobRequest, src io.Reader, size int64, contentType string) (*model.Job, error) {
	logger := jobctx.LoggerFromContext(ctx)

	format, err := imager.ParseFormat(contentType)
	if err != nil || format == imager.Unknown {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, contentType)
	}
	if src == nil || size <= 0 {
		return nil, model.ErrEmptySource
	}

	id := uuid.New()
	req.SourceKey = c.srcKeyPrefix + id.String() + format.Ext()
	job := newJob(id, req)
	if _, err := c.Options(job); err != nil {
		return nil, err
	}

	if err := c.storage.Put(ctx, job.SourceKey, size, format.ContentType(), src, nil); err != nil {
		logger.Error().Err(err).Msg("Failed to save source image in Storage")
		return nil, model.ErrCommon500
	}

	job.Status = model.StatusCreated
	now := time.Now().UTC()
	job.CreatedAt = &now

	if err := c.repo.Create(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to create job in DB")
		if dErr := c.storage.Delete(ctx, job.SourceKey); dErr != nil {
			logger.Error().Err(dErr).Msg("Failed to delete orphaned source image from Storage")
		}
		return nil, model.ErrCommon500
	}

	if err := c.publish(ctx, job); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish job %q to task-queue", job.UID))
		return nil, model.ErrCommon500
	}
	return job, nil
}

// Register makes sure a row exists for the delivered task and returns the stored job.
// A request that fails validation is recorded as failed straight away.
func (c JobService) Register(ctx context.Context, id uuid.UUID, req model.JobRequest) (*model.Job, error) {
	logger := jobctx.LoggerFromContext(ctx)

	job := newJob(id, req)
	job.Status = model.StatusCreated
	if _, err := c.Options(job); err != nil {
		logger.Warn().Err(err).Msg("Job request rejected")
		job.Status = model.StatusFailed
		job.ErrMsg = model.StringSlice{err.Error()}
	}
	now := time.Now().UTC()
	job.CreatedAt = &now

	if err := c.repo.Create(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to register job in DB")
		return nil, model.ErrCommon500
	}

	stored, err := c.repo.Get(ctx, id.String())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load registered job from DB")
		return nil, model.ErrCommon500
	}
	return stored, nil
}

func (c JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	logger := jobctx.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return nil, model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch job %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	return res, nil
}

// Delete removes a finished job: its source and thumbnail objects first, then the row.
// Jobs that may still be picked up by a worker are refused.
func (c JobService) Delete(ctx context.Context, id string) error {
	logger := jobctx.LoggerFromContext(ctx)

	job, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return model.ErrJobInProgress // 409
	}

	for _, key := range []string{job.SourceKey, job.ResultKey} {
		if key == "" {
			continue
		}
		if err := c.storage.Delete(ctx, key); err != nil && !errors.Is(err, model.ErrObjectNotFound) {
			logger.Error().Err(err).Str("key", key).Msg("Failed to delete object from Storage")
			return model.ErrCommon500
		}
	}

	if err := c.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to delete job from DB")
			return model.ErrCommon500
		}
	}

	return nil
}

func (c JobService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}
	if !model.StatusMap[newStat] {
		return model.ErrIncorrectStatus
	}

	logger := jobctx.LoggerFromContext(ctx)

	if err := c.repo.UpdateStatus(ctx, id, newStat); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to update job status in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

func (c JobService) SaveResult(ctx context.Context, input *model.Job) error {
	logger := jobctx.LoggerFromContext(ctx)
	t := time.Now().UTC()
	input.UpdatedAt = &t
	input.Status = model.StatusDone
	if err := c.repo.SaveResult(ctx, input); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to save thumbnail result in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// Fail marks the job failed for good and records why.
func (c JobService) Fail(ctx context.Context, id string, cause error) error {
	logger := jobctx.LoggerFromContext(ctx)

	if err := c.repo.Fail(ctx, id, model.StringSlice{cause.Error()}); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			return model.ErrJobNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to mark job as failed in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// ReviveOrphans republishes jobs stuck in created or in_progress, then resets them to created
// so they are not picked up again on the next tick.
func (c JobService) ReviveOrphans(ctx context.Context, limit int) {
	logger := jobctx.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	revived := 0
	for i := range orphans {
		job := &orphans[i]
		if err := c.publish(ctx, job); err != nil {
			logger.Error().Err(err).Str("job_id", job.UID.String()).Msg("Failed to publish orphan to queue")
			continue
		}
		if err := c.repo.UpdateStatus(ctx, job.UID.String(), model.StatusCreated); err != nil {
			logger.Error().Err(err).Str("job_id", job.UID.String()).Msg("Failed to reset orphan status")
			continue
		}
		revived++
	}

	if len(orphans) > 0 {
		logger.Info().Int("found", len(orphans)).Int("revived", revived).Msg("Orphan jobs republished")
	}
}

func (c JobService) publish(ctx context.Context, job *model.Job) error {
	key, value, err := kafka.EncodeTask(job.UID, job.Request())
	if err != nil {
		return err
	}
	return c.publisher.SendWithRetry(ctx, retryStrategy, key, value)
}
