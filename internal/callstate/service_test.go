package callstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hauntq/internal/models"
	"hauntq/internal/store"
	"hauntq/internal/store/memory"
)

type countingRepo struct {
	store.CallStateRepository
	swaps atomic.Int64
}

func (r *countingRepo) SwapCallState(ctx context.Context, expectedVersion int64, next models.CallState) (models.CallState, error) {
	state, err := r.CallStateRepository.SwapCallState(ctx, expectedVersion, next)
	if err == nil {
		r.swaps.Add(1)
	}
	return state, err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T) (*Service, *countingRepo, *fakeClock) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	clock := &fakeClock{now: time.Date(2025, 10, 31, 18, 0, 0, 0, loc)}
	repo := &countingRepo{CallStateRepository: memory.NewStore()}
	svc := NewService(repo, Options{Location: loc, Now: clock.Now})
	return svc, repo, clock
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestStatusInitializes(t *testing.T) {
	svc, _, _ := newTestService(t)
	state, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if state.CurrentNumber != 1 || state.SystemPaused || state.LastResetDate != "2025-10-31" {
		t.Fatalf("unexpected initial state: %+v", state)
	}
}

func TestRolloverHappensOnce(t *testing.T) {
	svc, repo, clock := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Update(ctx, Update{CurrentNumber: intPtr(42), SystemPaused: boolPtr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	before := repo.swaps.Load()

	clock.Set(clock.Now().Add(24 * time.Hour))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := svc.Status(ctx)
			if err != nil {
				errs <- err
				return
			}
			if state.CurrentNumber != 1 || state.SystemPaused || state.LastResetDate != "2025-11-01" {
				errs <- errors.New("state was not rolled over")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent status: %v", err)
	}

	if got := repo.swaps.Load() - before; got != 1 {
		t.Fatalf("expected exactly one rollover write, got %d", got)
	}
}

func TestUpdateRejectsNumberBelowOne(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), Update{CurrentNumber: intPtr(0)})
	if !store.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdatePartialFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Update(ctx, Update{CurrentNumber: intPtr(5)}); err != nil {
		t.Fatalf("update number: %v", err)
	}
	state, err := svc.Update(ctx, Update{SystemPaused: boolPtr(true)})
	if err != nil {
		t.Fatalf("update paused: %v", err)
	}
	if state.CurrentNumber != 5 || !state.SystemPaused {
		t.Fatalf("unexpected state after partial update: %+v", state)
	}
}

func TestUpdateExpectedVersion(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	updated, err := svc.Update(ctx, Update{CurrentNumber: intPtr(2), ExpectedVersion: int64Ptr(state.Version)})
	if err != nil {
		t.Fatalf("versioned update: %v", err)
	}
	if updated.Version != state.Version+1 {
		t.Fatalf("expected version bump, got %d", updated.Version)
	}

	_, err = svc.Update(ctx, Update{CurrentNumber: intPtr(3), ExpectedVersion: int64Ptr(state.Version)})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}
}

func TestResetAndAdvance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.Advance(ctx, 3)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if state.CurrentNumber != 4 {
		t.Fatalf("expected 4, got %d", state.CurrentNumber)
	}
	state, err = svc.Advance(ctx, -10)
	if err != nil {
		t.Fatalf("retreat: %v", err)
	}
	if state.CurrentNumber != 1 {
		t.Fatalf("expected clamp at 1, got %d", state.CurrentNumber)
	}

	if _, err := svc.Update(ctx, Update{CurrentNumber: intPtr(9), SystemPaused: boolPtr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	state, err = svc.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if state.CurrentNumber != 1 || state.SystemPaused {
		t.Fatalf("unexpected state after reset: %+v", state)
	}
}

func TestOnChangeNotified(t *testing.T) {
	var seen []models.CallState
	svc := NewService(memory.NewStore(), Options{OnChange: func(state models.CallState) {
		seen = append(seen, state)
	}})
	if _, err := svc.Advance(context.Background(), 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected initialization and advance notifications, got %d", len(seen))
	}
	if seen[1].CurrentNumber != 2 {
		t.Fatalf("expected last notification at 2, got %d", seen[1].CurrentNumber)
	}
}
