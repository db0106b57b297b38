package worker

import (
	"context"
	"io"
	"sync"

	"github.com/UnendingLoop/ImageThumbnailer/internal/imager"
	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type mockWorkerService struct {
	registerFn   func(ctx context.Context, id uuid.UUID, req model.JobRequest) (*model.Job, error)
	optionsFn    func(job *model.Job) (imager.Options, error)
	updateFn     func(ctx context.Context, id string, st model.Status) error
	saveResultFn func(ctx context.Context, job *model.Job) error
	failFn       func(ctx context.Context, id string, cause error) error
}

func (m *mockWorkerService) Register(ctx context.Context, id uuid.UUID, req model.JobRequest) (*model.Job, error) {
	return m.registerFn(ctx, id, req)
}

func (m *mockWorkerService) Options(job *model.Job) (imager.Options, error) {
	return m.optionsFn(job)
}

func (m *mockWorkerService) UpdateStatus(ctx context.Context, id string, st model.Status) error {
	return m.updateFn(ctx, id, st)
}

func (m *mockWorkerService) SaveResult(ctx context.Context, job *model.Job) error {
	return m.saveResultFn(ctx, job)
}

func (m *mockWorkerService) Fail(ctx context.Context, id string, cause error) error {
	return m.failFn(ctx, id, cause)
}

//----------------------------------

type mockStorage struct {
	getFn func(ctx context.Context, key string) (io.ReadCloser, string, error)
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader, meta map[string]string) error
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader, meta map[string]string) error {
	return m.putFn(ctx, key, size, ct, r, meta)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return nil
}

//----------------------------------

type mockCommitter struct {
	mu        sync.Mutex
	committed []kafkago.Message
}

func (m *mockCommitter) Commit(ctx context.Context, msg kafkago.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msg)
	return nil
}

func (m *mockCommitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}
