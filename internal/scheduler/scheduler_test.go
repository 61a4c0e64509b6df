package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/jobpilot/internal/domain"
	"github.com/shaiso/jobpilot/internal/orchestrator"
	"github.com/shaiso/jobpilot/internal/queue"
	"github.com/shaiso/jobpilot/internal/state"
	"github.com/shaiso/jobpilot/internal/telemetry"
)

type fakeQueue struct {
	mu       sync.Mutex
	jobs     []*domain.Job
	err      error
	calls    atomic.Int32
	block    chan struct{}
	clients  []string
	failures []failure
}

type failure struct {
	jobID    string
	message  string
	settings domain.RetrySettings
}

func (q *fakeQueue) ReportFailure(_ context.Context, jobID, message string, rs domain.RetrySettings) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures = append(q.failures, failure{jobID: jobID, message: message, settings: rs})
	return false, nil
}

func (q *fakeQueue) reported() []failure {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]failure(nil), q.failures...)
}

func (q *fakeQueue) FetchNext(_ context.Context, clientID string) (*domain.Job, error) {
	q.calls.Add(1)
	if q.block != nil {
		<-q.block
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clients = append(q.clients, clientID)
	if q.err != nil {
		return nil, q.err
	}
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched []string
	active     int
	err        error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, job *domain.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, job.ID)
	return nil
}

func (d *fakeDispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *fakeDispatcher) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dispatched...)
}

func newTestScheduler(t *testing.T, q *fakeQueue, d *fakeDispatcher, enabled bool) *Scheduler {
	t.Helper()
	s, err := New(Config{
		Queue:            q,
		Orchestrator:     d,
		Store:            state.NewMemoryStore(),
		ClientID:         "client-1",
		Interval:         time.Second,
		EnabledByDefault: enabled,
		Logger:           telemetry.DiscardLogger(),
	})
	require.NoError(t, err)
	s.enabled.Store(enabled)
	return s
}

func job(id string) *domain.Job {
	return &domain.Job{ID: id, TargetURL: "https://example.com/" + id, Title: "job " + id}
}

func TestTick_Disabled(t *testing.T) {
	q := &fakeQueue{jobs: []*domain.Job{job("a")}}
	d := &fakeDispatcher{}
	s := newTestScheduler(t, q, d, false)

	result, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickDisabled, result)
	assert.Zero(t, q.calls.Load(), "disabled tick must not fetch")
}

func TestTick_Busy(t *testing.T) {
	q := &fakeQueue{jobs: []*domain.Job{job("a")}}
	d := &fakeDispatcher{active: 1}
	s := newTestScheduler(t, q, d, true)

	result, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickBusy, result)
	assert.Zero(t, q.calls.Load())
}

func TestTick_Empty(t *testing.T) {
	q := &fakeQueue{}
	d := &fakeDispatcher{}
	s := newTestScheduler(t, q, d, true)

	result, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickEmpty, result)
	assert.Equal(t, int32(1), q.calls.Load())
	assert.Empty(t, d.ids())
}

func TestTick_Dispatches(t *testing.T) {
	q := &fakeQueue{jobs: []*domain.Job{job("a"), job("b")}}
	d := &fakeDispatcher{}
	s := newTestScheduler(t, q, d, true)

	result, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickDispatched, result)

	// Один тик — одна задача.
	assert.Equal(t, []string{"a"}, d.ids())
	assert.Equal(t, []string{"client-1"}, q.clients)
}

func TestTick_FetchError(t *testing.T) {
	q := &fakeQueue{err: errors.New("connection refused")}
	d := &fakeDispatcher{}
	s := newTestScheduler(t, q, d, true)

	result, err := s.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, TickError, result)
	assert.Contains(t, err.Error(), "fetch next job")
}

func TestTick_AlreadyActiveIsBusy(t *testing.T) {
	q := &fakeQueue{jobs: []*domain.Job{job("a")}}
	d := &fakeDispatcher{err: orchestrator.ErrJobAlreadyActive}
	s := newTestScheduler(t, q, d, true)

	result, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TickBusy, result)
}

func TestTick_DispatchError(t *testing.T) {
	q := &fakeQueue{jobs: []*domain.Job{job("a")}}
	d := &fakeDispatcher{err: orchestrator.ErrInvalidJob}
	s := newTestScheduler(t, q, d, true)

	result, err := s.Tick(context.Background())
	require.ErrorIs(t, err, orchestrator.ErrInvalidJob)
	assert.Equal(t, TickError, result)
}

func TestPollNow_CoalescesConcurrentCalls(t *testing.T) {
	q := &fakeQueue{jobs: []*domain.Job{job("a"), job("b")}, block: make(chan struct{})}
	d := &fakeDispatcher{}
	s := newTestScheduler(t, q, d, true)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]TickResult, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.PollNow(context.Background())
	}()
	require.Eventually(t, func() bool { return q.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.PollNow(context.Background())
		}(i)
	}
	// Даём остальным вызовам присоединиться к текущему тику.
	time.Sleep(50 * time.Millisecond)
	close(q.block)
	wg.Wait()

	assert.Equal(t, int32(1), q.calls.Load(), "overlapping ticks must be coalesced")
	assert.Equal(t, []string{"a"}, d.ids())
	for _, r := range results {
		assert.Equal(t, TickDispatched, r)
	}
}

func TestEnableDisable_Persisted(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	q := &fakeQueue{}
	d := &fakeDispatcher{}

	s, err := New(Config{Queue: q, Orchestrator: d, Store: store, Logger: telemetry.DiscardLogger()})
	require.NoError(t, err)

	require.NoError(t, s.Enable(ctx))
	assert.True(t, s.Enabled())

	enabled, err := state.LoadEnabled(ctx, store, false)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, s.Disable(ctx))
	assert.False(t, s.Enabled())

	enabled, err = state.LoadEnabled(ctx, store, true)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestStart_LoadsPersistedFlag(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	require.NoError(t, state.SaveEnabled(ctx, store, false))

	s, err := New(Config{
		Queue:            &fakeQueue{},
		Orchestrator:     &fakeDispatcher{},
		Store:            store,
		EnabledByDefault: true,
		Logger:           telemetry.DiscardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.False(t, s.Enabled(), "persisted flag wins over the default")
	assert.False(t, s.NextTick().IsZero())
}

func TestStart_PeriodicTicks(t *testing.T) {
	q := &fakeQueue{}
	d := &fakeDispatcher{}
	s, err := New(Config{
		Queue:            q,
		Orchestrator:     d,
		Store:            state.NewMemoryStore(),
		Interval:         time.Second,
		EnabledByDefault: true,
		Logger:           telemetry.DiscardLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return q.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	s.Stop()
	after := q.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, q.calls.Load(), "no ticks after Stop")
}

func TestSetInterval(t *testing.T) {
	s, err := New(Config{
		Queue:        &fakeQueue{},
		Orchestrator: &fakeDispatcher{},
		Store:        state.NewMemoryStore(),
		Interval:     5 * time.Second,
		Logger:       telemetry.DiscardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, s.SetInterval(30*time.Second))
	assert.Equal(t, 30*time.Second, s.Interval())

	next := s.NextTick()
	assert.WithinDuration(t, time.Now().Add(30*time.Second), next, 2*time.Second)

	require.NoError(t, s.SetInterval(100*time.Millisecond))
	assert.Equal(t, MinInterval, s.Interval())
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config{Queue: &fakeQueue{}, Orchestrator: &fakeDispatcher{}, Store: state.NewMemoryStore()})
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, s.Interval())
	assert.Equal(t, defaultMaxActiveJobs, s.maxActiveJobs)
}

func TestNew_InvalidCron(t *testing.T) {
	_, err := New(Config{
		Queue:        &fakeQueue{},
		Orchestrator: &fakeDispatcher{},
		Store:        state.NewMemoryStore(),
		CronExpr:     "not a cron",
	})
	require.Error(t, err)
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, time.Second},
		{-time.Second, time.Second},
		{500 * time.Millisecond, time.Second},
		{time.Second, time.Second},
		{2500 * time.Millisecond, 2 * time.Second},
		{time.Minute, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampInterval(tt.in), "ClampInterval(%v)", tt.in)
	}
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("*/5 * * * *"))
	assert.NoError(t, ValidateCronExpr("*/30 * * * * *"))
	assert.NoError(t, ValidateCronExpr("@every 15s"))
	assert.Error(t, ValidateCronExpr("60 * * * *"))
	assert.Error(t, ValidateCronExpr(""))
}

func TestTick_InvalidJobReportedAsFailure(t *testing.T) {
	invalid := &domain.Job{ID: "j9", Price: 100}
	q := &fakeQueue{err: &queue.InvalidJobError{Job: invalid, Err: invalid.Validate()}}
	d := &fakeDispatcher{}
	s := newTestScheduler(t, q, d, true)

	rs := domain.RetrySettings{MaxAttempts: 2}
	require.NoError(t, state.SaveRetrySettings(context.Background(), s.store, rs))

	result, err := s.Tick(context.Background())
	require.ErrorIs(t, err, queue.ErrMalformedResponse)
	assert.Equal(t, TickError, result)
	assert.Empty(t, d.ids(), "invalid job must not be dispatched")

	failures := q.reported()
	require.Len(t, failures, 1)
	assert.Equal(t, "j9", failures[0].jobID)
	assert.Equal(t, "invalid job: job j9: target url is required", failures[0].message)
	assert.Equal(t, rs, failures[0].settings)
}

func TestTick_FetchErrorNotReported(t *testing.T) {
	q := &fakeQueue{err: queue.ErrUnreachable}
	s := newTestScheduler(t, q, &fakeDispatcher{}, true)

	_, err := s.Tick(context.Background())
	require.ErrorIs(t, err, queue.ErrUnreachable)
	assert.Empty(t, q.reported())
}
