package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/executor"
)

// --- fake executor handle ---

type fakeHandle struct {
	id       string
	job      *domain.Job
	outcomes chan executor.Outcome
	done     chan struct{}
	once     sync.Once

	// поведение
	ready     func(attempt int) (bool, error)
	ack       func(ctx context.Context) (bool, error)
	pings     atomic.Int32
	starts    atomic.Int32
	destroyed atomic.Int32
}

func (h *fakeHandle) ID() string                        { return h.id }
func (h *fakeHandle) Outcomes() <-chan executor.Outcome { return h.outcomes }
func (h *fakeHandle) Done() <-chan struct{}             { return h.done }

func (h *fakeHandle) Ping(context.Context) (bool, error) {
	n := int(h.pings.Add(1))
	if h.isClosed() {
		return false, executor.ErrClosed
	}
	if h.ready != nil {
		return h.ready(n)
	}
	return true, nil
}

func (h *fakeHandle) Start(ctx context.Context, _ *domain.Job) (bool, error) {
	h.starts.Add(1)
	if h.isClosed() {
		return false, executor.ErrClosed
	}
	if h.ack != nil {
		return h.ack(ctx)
	}
	return true, nil
}

func (h *fakeHandle) Destroy() error {
	h.destroyed.Add(1)
	h.close()
	return nil
}

// crash закрывает executor без результата.
func (h *fakeHandle) crash() { h.close() }

func (h *fakeHandle) succeed() {
	h.outcomes <- executor.Outcome{JobID: h.job.ID, Success: true}
}

func (h *fakeHandle) fail(reason string) {
	h.outcomes <- executor.Outcome{JobID: h.job.ID, Error: reason}
}

func (h *fakeHandle) close() {
	h.once.Do(func() { close(h.done) })
}

func (h *fakeHandle) isClosed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// blockAck не отвечает на START до отмены ctx.
func blockAck(ctx context.Context) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

// --- fake launcher ---

type fakeLauncher struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	launched chan *fakeHandle
	err      error
	// configure настраивает очередной handle (n — номер запуска с 1).
	configure func(n int, h *fakeHandle)
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan *fakeHandle, 16)}
}

func (l *fakeLauncher) Launch(_ context.Context, id string, job *domain.Job) (executor.Handle, error) {
	if l.err != nil {
		return nil, l.err
	}
	h := &fakeHandle{
		id:       id,
		job:      job,
		outcomes: make(chan executor.Outcome, 1),
		done:     make(chan struct{}),
	}

	l.mu.Lock()
	l.handles = append(l.handles, h)
	n := len(l.handles)
	l.mu.Unlock()

	if l.configure != nil {
		l.configure(n, h)
	}
	l.launched <- h
	return h, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handles)
}

// next ждёт очередной запущенный executor.
func (l *fakeLauncher) next(t *testing.T) *fakeHandle {
	t.Helper()
	select {
	case h := <-l.launched:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for executor launch")
		return nil
	}
}

// --- fake queue ---

type failureReport struct {
	jobID    string
	message  string
	settings domain.RetrySettings
}

type fakeQueue struct {
	mu         sync.Mutex
	successes  []string
	failures   []failureReport
	willRetry  bool
	successErr error
	failureErr error
}

func (q *fakeQueue) ReportSuccess(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.successes = append(q.successes, jobID)
	return q.successErr
}

func (q *fakeQueue) ReportFailure(_ context.Context, jobID, message string, rs domain.RetrySettings) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures = append(q.failures, failureReport{jobID: jobID, message: message, settings: rs})
	return q.willRetry, q.failureErr
}

func (q *fakeQueue) snapshot() ([]string, []failureReport) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.successes...), append([]failureReport(nil), q.failures...)
}

// --- fake publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (p *fakePublisher) PublishJobEvent(_ context.Context, e domain.JobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return errors.New("broker unavailable")
}

func (p *fakePublisher) types() []domain.JobEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.JobEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
