package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnendingLoop/ImageThumbnailer/internal/etag"
	"github.com/UnendingLoop/ImageThumbnailer/internal/imager"
	"github.com/UnendingLoop/ImageThumbnailer/internal/kafka"
	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

// recorder tracks what the worker asked the service to do.
type recorder struct {
	updated []model.Status
	failed  []error
	saved   *model.Job
}

func newService(job *model.Job, rec *recorder) *mockWorkerService {
	return &mockWorkerService{
		registerFn: func(ctx context.Context, id uuid.UUID, req model.JobRequest) (*model.Job, error) {
			return job, nil
		},
		optionsFn: func(job *model.Job) (imager.Options, error) {
			return imager.Options{Width: 8, Height: 8}, nil
		},
		updateFn: func(ctx context.Context, _ string, st model.Status) error {
			rec.updated = append(rec.updated, st)
			return nil
		},
		saveResultFn: func(ctx context.Context, job *model.Job) error {
			rec.saved = job
			return nil
		},
		failFn: func(ctx context.Context, _ string, cause error) error {
			rec.failed = append(rec.failed, cause)
			return nil
		},
	}
}

func taskMessage(t *testing.T, id uuid.UUID) kafkago.Message {
	t.Helper()
	key, value, err := kafka.EncodeTask(id, model.JobRequest{SourceKey: "src/" + id.String() + ".jpg", Width: 8, Height: 8})
	require.NoError(t, err)
	return kafkago.Message{Key: key, Value: value}
}

func sourceStorage(data []byte, err error) *mockStorage {
	return &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			if err != nil {
				return nil, "", err
			}
			return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader, meta map[string]string) error {
			return nil
		},
	}
}

func TestWorker_initProcessor(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name        string
		msg         kafkago.Message
		status      model.Status
		registerErr error
		updateErr   error
		source      []byte
		sourceErr   error
		wantErr     bool
		wantFailed  bool
		wantUpdated []model.Status
	}{
		{
			name:    "malformed message is dropped",
			msg:     kafkago.Message{Key: []byte("nope"), Value: []byte("{")},
			wantErr: false,
		},
		{
			name:        "register error is retried",
			msg:         taskMessage(t, id),
			registerErr: model.ErrCommon500,
			wantErr:     true,
		},
		{
			name:   "already done",
			msg:    taskMessage(t, id),
			status: model.StatusDone,
		},
		{
			name:   "already failed",
			msg:    taskMessage(t, id),
			status: model.StatusFailed,
		},
		{
			name:        "update status error",
			msg:         taskMessage(t, id),
			status:      model.StatusCreated,
			updateErr:   errors.New("db down"),
			wantErr:     true,
			wantUpdated: []model.Status{model.StatusInProgress},
		},
		{
			name:        "source missing fails the job",
			msg:         taskMessage(t, id),
			status:      model.StatusCreated,
			sourceErr:   model.ErrObjectNotFound,
			wantFailed:  true,
			wantUpdated: []model.Status{model.StatusInProgress},
		},
		{
			name:        "storage outage is retried",
			msg:         taskMessage(t, id),
			status:      model.StatusInProgress,
			sourceErr:   errors.New("connection reset"),
			wantErr:     true,
			wantUpdated: []model.Status{model.StatusInProgress},
		},
		{
			name:        "broken source fails the job",
			msg:         taskMessage(t, id),
			status:      model.StatusCreated,
			source:      validJPEG()[:40],
			wantFailed:  true,
			wantUpdated: []model.Status{model.StatusInProgress},
		},
		{
			name:        "success",
			msg:         taskMessage(t, id),
			status:      model.StatusCreated,
			source:      validJPEG(),
			wantUpdated: []model.Status{model.StatusInProgress},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			job := &model.Job{UID: id, SourceKey: "src/x.jpg", Status: tt.status}
			svc := newService(job, rec)
			registered := false
			svc.registerFn = func(ctx context.Context, gotID uuid.UUID, req model.JobRequest) (*model.Job, error) {
				registered = true
				require.Equal(t, id, gotID)
				return job, tt.registerErr
			}
			svc.updateFn = func(ctx context.Context, _ string, st model.Status) error {
				rec.updated = append(rec.updated, st)
				return tt.updateErr
			}

			w := &Worker{
				service:      svc,
				storage:      sourceStorage(tt.source, tt.sourceErr),
				resultPrefix: "res/",
			}

			err := w.initProcessor(context.Background(), tt.msg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantFailed, len(rec.failed) == 1)
			require.Equal(t, tt.wantUpdated, rec.updated)
			if tt.name == "malformed message is dropped" {
				require.False(t, registered)
			}
		})
	}
}

func TestWorker_initProcessor_InvalidOptions(t *testing.T) {
	rec := &recorder{}
	id := uuid.New()
	svc := newService(&model.Job{UID: id, Status: model.StatusCreated}, rec)
	svc.optionsFn = func(job *model.Job) (imager.Options, error) {
		return imager.Options{}, model.ErrIncorrectMode
	}

	w := &Worker{service: svc, storage: sourceStorage(nil, nil)}

	require.NoError(t, w.initProcessor(context.Background(), taskMessage(t, id)))
	require.Len(t, rec.failed, 1)
	require.ErrorIs(t, rec.failed[0], model.ErrIncorrectMode)
	require.Empty(t, rec.updated)
}

func TestWorker_initProcessor_FailCannotBeRecorded(t *testing.T) {
	rec := &recorder{}
	id := uuid.New()
	svc := newService(&model.Job{UID: id, Status: model.StatusCreated}, rec)
	svc.failFn = func(ctx context.Context, _ string, _ error) error {
		return model.ErrCommon500
	}

	w := &Worker{service: svc, storage: sourceStorage(nil, model.ErrObjectNotFound)}

	err := w.initProcessor(context.Background(), taskMessage(t, id))
	require.ErrorIs(t, err, model.ErrCommon500)
	require.ErrorIs(t, err, model.ErrObjectNotFound)
}

func TestWorker_processTask_OK(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}

	job := &model.Job{
		UID:       uuid.New(),
		Status:    model.StatusInProgress,
		SourceKey: "src.png",
	}

	var stored []byte
	var storedMeta map[string]string
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			require.Equal(t, "src.png", key)
			return io.NopCloser(bytes.NewReader(validPNG())), "image/png", nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader, meta map[string]string) error {
			require.Equal(t, "res/"+job.UID.String()+".png", key)
			require.Equal(t, "image/png", ct)
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			require.EqualValues(t, len(data), size)
			stored, storedMeta = data, meta
			return nil
		},
	}

	w := &Worker{
		storage:      storage,
		service:      newService(job, rec),
		resultPrefix: "res/",
	}

	require.NoError(t, w.processTask(ctx, job, imager.Options{Width: 10, Height: 5}))

	require.Same(t, job, rec.saved)
	require.Equal(t, "res/"+job.UID.String()+".png", job.ResultKey)
	require.Equal(t, etag.Generate(stored, false), job.ETag)
	require.Equal(t, job.ETag, storedMeta[etagMetaKey])

	thumb, err := imager.Decode(stored, imager.PNG)
	require.NoError(t, err)
	require.Equal(t, 10, thumb.Width)
	require.Equal(t, 5, thumb.Height)
}

func TestWorker_processTask_PutError(t *testing.T) {
	storage := sourceStorage(validJPEG(), nil)
	storage.putFn = func(ctx context.Context, key string, size int64, ct string, r io.Reader, meta map[string]string) error {
		return errors.New("bucket is read-only")
	}

	w := &Worker{storage: storage, service: newService(nil, &recorder{})}

	err := w.processTask(context.Background(), &model.Job{UID: uuid.New()}, imager.Options{Width: 4, Height: 4})
	require.Error(t, err)
	require.False(t, isTerminal(err))
}

func TestWorker_StartWorker(t *testing.T) {
	var processed atomic.Int32
	id := uuid.New()
	job := &model.Job{UID: id, Status: model.StatusDone}
	svc := newService(job, &recorder{})
	svc.registerFn = func(ctx context.Context, _ uuid.UUID, _ model.JobRequest) (*model.Job, error) {
		processed.Add(1)
		time.Sleep(10 * time.Millisecond)
		return job, nil
	}

	queue := make(chan kafkago.Message, 4)
	queue <- taskMessage(t, id)
	queue <- taskMessage(t, id)
	queue <- taskMessage(t, id)
	queue <- kafkago.Message{Key: []byte("broken")}
	close(queue)

	committer := &mockCommitter{}
	w := NewWorkerInstance(sourceStorage(nil, nil), svc, queue, committer, "res/", 2)

	done := make(chan struct{})
	go func() {
		w.StartWorker(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after the queue was closed")
	}

	require.EqualValues(t, 3, processed.Load())
	require.Equal(t, 4, committer.count())
}

func TestWorker_StartWorker_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorkerInstance(sourceStorage(nil, nil), newService(nil, &recorder{}), make(chan kafkago.Message), &mockCommitter{}, "res/", 0)

	done := make(chan struct{})
	go func() {
		w.StartWorker(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestIsTerminal(t *testing.T) {
	require.True(t, isTerminal(&imager.DecodeError{Format: imager.PNG, Err: imager.ErrEmptyBuffer}))
	require.True(t, isTerminal(errors.Join(errors.New("get"), model.ErrObjectNotFound)))
	require.False(t, isTerminal(errors.New("timeout")))
	require.False(t, isTerminal(model.ErrCommon500))
}

func validPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func validJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: uint8(y * 8), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}
