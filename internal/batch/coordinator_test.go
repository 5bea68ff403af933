package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veriflowhq/veriflow/internal/batch"
	"github.com/veriflowhq/veriflow/internal/events"
	"github.com/veriflowhq/veriflow/internal/metrics"
	"github.com/veriflowhq/veriflow/internal/tasks"
	"github.com/veriflowhq/veriflow/pkg/pagination"
)

// fakeStore is an in-memory tasks.System covering the operations a batch
// run exercises: claim, complete, and release.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*tasks.Task
}

func newFakeStore(seed ...*tasks.Task) *fakeStore {
	s := &fakeStore{tasks: make(map[uuid.UUID]*tasks.Task)}
	for _, t := range seed {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeStore) Handler() *tasks.Handler { return nil }

func (s *fakeStore) Create(context.Context, tasks.SubmitCommand) (*tasks.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Find(_ context.Context, id uuid.UUID) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *fakeStore) List(context.Context, pagination.PageRequest, tasks.Filters) (*pagination.PageResult[tasks.Task], error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Pending(context.Context) ([]tasks.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Overdue(context.Context) ([]tasks.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Claim(_ context.Context, id uuid.UUID, reviewer string) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	if err := t.Assign(reviewer, time.Now()); err != nil {
		return nil, err
	}
	copied := *t
	return &copied, nil
}

func (s *fakeStore) Complete(_ context.Context, id uuid.UUID, reviewer string, cmd tasks.CompleteCommand) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	if err := t.Complete(reviewer, cmd, time.Now()); err != nil {
		return nil, err
	}
	copied := *t
	return &copied, nil
}

func (s *fakeStore) Reject(context.Context, uuid.UUID, string, string) (*tasks.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Release(_ context.Context, id uuid.UUID, reviewer string) (*tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	if err := t.Release(reviewer); err != nil {
		return nil, err
	}
	copied := *t
	return &copied, nil
}

func (s *fakeStore) Escalate(context.Context, uuid.UUID, string, string) (*tasks.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) RecordCorrection(context.Context, uuid.UUID, string, tasks.CorrectionCommand) (*tasks.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) RemoveCorrection(context.Context, uuid.UUID, string, string) (*tasks.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Stats(context.Context, string) (*tasks.Stats, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Workload(context.Context, time.Duration) ([]tasks.ReviewerActivity, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) status(id uuid.UUID) tasks.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Status
}

// stubProcessor delegates to a function so tests can observe or shape each
// task's outcome.
type stubProcessor struct {
	fn func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error)
}

func (p *stubProcessor) Process(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
	return p.fn(ctx, reviewer, task)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCoordinator(store tasks.System, p batch.Processor) *batch.Coordinator {
	return batch.New(store, p, events.NewLog(discard()), metrics.New(), discard(), batch.DefaultConcurrency, time.Minute)
}

func seedTasks(n int) ([]*tasks.Task, []uuid.UUID) {
	seeded := make([]*tasks.Task, n)
	ids := make([]uuid.UUID, n)
	for i := range n {
		seeded[i] = &tasks.Task{
			ID:            uuid.New(),
			Status:        tasks.StatusPending,
			ExtractedData: tasks.FieldMap{"total": "450.00"},
			VerifiedData:  tasks.FieldMap{"total": "450.00"},
			AIConfidence:  0.97,
			DueDate:       time.Now().Add(24 * time.Hour),
		}
		ids[i] = seeded[i].ID
	}
	return seeded, ids
}

func TestRunCompletesAll(t *testing.T) {
	seeded, ids := seedTasks(5)
	store := newFakeStore(seeded...)

	processor := &stubProcessor{
		fn: func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			if _, err := store.Complete(ctx, task.ID, reviewer, tasks.CompleteCommand{}); err != nil {
				return batch.Outcome{}, err
			}
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	result, err := newCoordinator(store, processor).Run(context.Background(), ids, batch.Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Completed != 5 || result.Errors != 0 || result.NotStarted != 0 {
		t.Errorf("result = %+v, want 5 completed", result)
	}
	if len(result.Outcomes) != 5 {
		t.Errorf("len(Outcomes) = %d, want 5", len(result.Outcomes))
	}
	for _, id := range ids {
		if store.status(id) != tasks.StatusCompleted {
			t.Errorf("task %s status = %s, want completed", id, store.status(id))
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	seeded, ids := seedTasks(12)
	store := newFakeStore(seeded...)

	const limit = 3
	var inFlight, peak atomic.Int32

	processor := &stubProcessor{
		fn: func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	result, err := newCoordinator(store, processor).Run(context.Background(), ids, batch.Options{MaxConcurrent: limit})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Completed != 12 {
		t.Errorf("Completed = %d, want 12", result.Completed)
	}
	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
}

func TestRunConfiguredConcurrencyDefault(t *testing.T) {
	seeded, ids := seedTasks(8)
	store := newFakeStore(seeded...)

	const configured = 2
	var inFlight, peak atomic.Int32

	processor := &stubProcessor{
		fn: func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	coord := batch.New(store, processor, events.NewLog(discard()), metrics.New(), discard(), configured, time.Minute)

	result, err := coord.Run(context.Background(), ids, batch.Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Completed != 8 {
		t.Errorf("Completed = %d, want 8", result.Completed)
	}
	if got := peak.Load(); got > configured {
		t.Errorf("peak concurrency = %d, want <= %d", got, configured)
	}
}

func TestRunPauseOnError(t *testing.T) {
	seeded, ids := seedTasks(6)
	store := newFakeStore(seeded...)

	poison := ids[1]
	processor := &stubProcessor{
		fn: func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			if task.ID == poison {
				return batch.Outcome{}, errors.New("unreadable document")
			}
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	result, err := newCoordinator(store, processor).Run(context.Background(), ids, batch.Options{
		MaxConcurrent: 1,
		PauseOnError:  true,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Errors != 1 {
		t.Errorf("Errors = %d, want 1", result.Errors)
	}
	if result.Completed != 1 {
		t.Errorf("Completed = %d, want 1 before the failure", result.Completed)
	}
	if result.NotStarted != 4 {
		t.Errorf("NotStarted = %d, want 4 after pause", result.NotStarted)
	}

	// The failure is recorded against the poisoned task, not dropped.
	outcome, ok := result.Outcomes[poison]
	if !ok || outcome.Status != batch.OutcomeFailed || outcome.Error == "" {
		t.Errorf("Outcomes[poison] = %+v, want recorded failure", outcome)
	}
}

func TestRunCancellation(t *testing.T) {
	seeded, ids := seedTasks(4)
	store := newFakeStore(seeded...)

	ctx, cancel := context.WithCancel(context.Background())
	processor := &stubProcessor{
		fn: func(_ context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			// Cancel mid-run; the in-flight task must still finish its
			// transition.
			cancel()
			if _, err := store.Complete(context.Background(), task.ID, reviewer, tasks.CompleteCommand{}); err != nil {
				return batch.Outcome{}, err
			}
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	result, err := newCoordinator(store, processor).Run(ctx, ids, batch.Options{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Completed != 1 {
		t.Errorf("Completed = %d, want 1", result.Completed)
	}
	if result.NotStarted != 3 {
		t.Errorf("NotStarted = %d, want 3 after cancellation", result.NotStarted)
	}
	if store.status(ids[0]) != tasks.StatusCompleted {
		t.Errorf("in-flight task status = %s, want completed", store.status(ids[0]))
	}
}

func TestRunClaimConflictRecordsFailure(t *testing.T) {
	seeded, ids := seedTasks(2)
	seeded[1].Status = tasks.StatusInProgress
	assignee := "someone-else"
	seeded[1].AssignedTo = &assignee
	store := newFakeStore(seeded...)

	processor := &stubProcessor{
		fn: func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	result, err := newCoordinator(store, processor).Run(context.Background(), ids, batch.Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Completed != 1 || result.Errors != 1 {
		t.Errorf("result = %+v, want 1 completed and 1 failed", result)
	}
	if outcome := result.Outcomes[ids[1]]; outcome.Status != batch.OutcomeFailed {
		t.Errorf("Outcomes[claimed] = %+v, want failed", outcome)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	coord := newCoordinator(newFakeStore(), &stubProcessor{})

	if _, err := coord.Run(context.Background(), nil, batch.Options{}); !errors.Is(err, tasks.ErrValidation) {
		t.Errorf("Run() error = %v, want %v", err, tasks.ErrValidation)
	}
}

func TestRunOversizedWarning(t *testing.T) {
	seeded, ids := seedTasks(batch.SizeGuideline + 1)
	store := newFakeStore(seeded...)

	processor := &stubProcessor{
		fn: func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	result, err := newCoordinator(store, processor).Run(context.Background(), ids, batch.Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Warning == "" {
		t.Error("Warning empty, want oversized-batch warning")
	}
}

func TestProgress(t *testing.T) {
	seeded, ids := seedTasks(4)
	store := newFakeStore(seeded...)

	release := make(chan struct{})
	started := make(chan struct{}, len(ids))
	processor := &stubProcessor{
		fn: func(ctx context.Context, reviewer string, task *tasks.Task) (batch.Outcome, error) {
			started <- struct{}{}
			<-release
			return batch.Outcome{Status: batch.OutcomeCompleted}, nil
		},
	}

	coord := newCoordinator(store, processor)

	done := make(chan *batch.Result, 1)
	go func() {
		result, err := coord.Run(context.Background(), ids, batch.Options{MaxConcurrent: 2})
		if err != nil {
			t.Errorf("run failed: %v", err)
		}
		done <- result
	}()

	<-started
	<-started

	active := coord.Active()
	if len(active) != 1 {
		t.Fatalf("len(Active()) = %d, want 1", len(active))
	}

	progress := active[0]
	if progress.Total != 4 {
		t.Errorf("Total = %d, want 4", progress.Total)
	}
	if len(progress.Current) != 2 {
		t.Errorf("len(Current) = %d, want 2 in flight", len(progress.Current))
	}
	if progress.Done {
		t.Error("Done = true for a running batch")
	}
	if progress.TimeRemaining <= 0 {
		t.Errorf("TimeRemaining = %v, want positive estimate", progress.TimeRemaining)
	}

	if _, err := coord.Progress(progress.BatchID); err != nil {
		t.Errorf("Progress() failed for active run: %v", err)
	}

	close(release)
	result := <-done

	if result.Completed != 4 {
		t.Errorf("Completed = %d, want 4", result.Completed)
	}
	if _, err := coord.Progress(result.BatchID); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("Progress() after finish error = %v, want %v", err, tasks.ErrNotFound)
	}
}

func TestAutoAccept(t *testing.T) {
	trusted, trustedIDs := seedTasks(1)
	flagged, flaggedIDs := seedTasks(1)
	flagged[0].Anomalies = tasks.AnomalyList{{Field: "total", Severity: "high"}}

	store := newFakeStore(trusted[0], flagged[0])
	processor := batch.NewAutoAccept(store, 0.95)

	result, err := newCoordinator(store, processor).Run(
		context.Background(),
		append(trustedIDs, flaggedIDs...),
		batch.Options{},
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Completed != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v, want 1 completed and 1 skipped", result)
	}
	if store.status(trustedIDs[0]) != tasks.StatusCompleted {
		t.Errorf("trusted task status = %s, want completed", store.status(trustedIDs[0]))
	}
	if store.status(flaggedIDs[0]) != tasks.StatusPending {
		t.Errorf("flagged task status = %s, want released to pending", store.status(flaggedIDs[0]))
	}
}
