package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"hauntq/internal/models"
	"hauntq/internal/store"
)

const day = "2026-10-31"

func create(t *testing.T, st *Store, email string) models.Reservation {
	t.Helper()
	r, err := st.CreateReservation(context.Background(), store.CreateReservationInput{
		Email:       email,
		Count:       2,
		Age:         models.AgeGeneral,
		BusinessDay: day,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return r
}

func TestConcurrentCreateAssignsUniqueTicketNumbers(t *testing.T) {
	st := NewStore()
	const n = 50

	var wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := st.CreateReservation(context.Background(), store.CreateReservationInput{
				Email:       "guest@example.com",
				Count:       1,
				Age:         models.AgeUniversity,
				BusinessDay: day,
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			results <- r.TicketNo
		}()
	}
	wg.Wait()
	close(results)

	var numbers []int
	for n := range results {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for i, got := range numbers {
		if got != i+1 {
			t.Fatalf("expected ticket %d at position %d, got %d", i+1, i, got)
		}
	}
}

func TestTicketNumbersAreScopedPerDay(t *testing.T) {
	st := NewStore()
	create(t, st, "a@b.com")
	next, err := st.CreateReservation(context.Background(), store.CreateReservationInput{
		Email: "c@d.com", Count: 1, Age: models.AgeHighSchool, BusinessDay: "2026-11-01",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if next.TicketNo != 1 {
		t.Fatalf("expected ticket 1 on a new day, got %d", next.TicketNo)
	}
}

func TestUpdateStatusIsIdempotent(t *testing.T) {
	st := NewStore()
	r := create(t, st, "a@b.com")
	ctx := context.Background()

	first, err := st.UpdateStatus(ctx, store.UpdateStatusInput{Key: r.ID, Lookup: store.LookupByID, Status: models.StatusArrived, BusinessDay: day})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	second, err := st.UpdateStatus(ctx, store.UpdateStatusInput{Key: r.ID, Lookup: store.LookupByID, Status: models.StatusArrived, BusinessDay: day, OccurredAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if first.CalledAt == nil || second.CalledAt == nil || !first.CalledAt.Equal(*second.CalledAt) {
		t.Fatalf("expected identical calledAt, got %v and %v", first.CalledAt, second.CalledAt)
	}
	if second.Status != models.StatusArrived {
		t.Fatalf("unexpected status %s", second.Status)
	}
}

func TestUpdateStatusByTicketNumber(t *testing.T) {
	st := NewStore()
	create(t, st, "a@b.com")
	second := create(t, st, "c@d.com")

	updated, err := st.UpdateStatus(context.Background(), store.UpdateStatusInput{Key: 2, Lookup: store.LookupByTicket, Status: models.StatusCancelled, BusinessDay: day})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != second.ID {
		t.Fatalf("expected reservation %d, got %d", second.ID, updated.ID)
	}

	reset, err := st.UpdateStatus(context.Background(), store.UpdateStatusInput{Key: second.ID, Lookup: store.LookupByID, Status: models.StatusNotCalled, BusinessDay: day})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.CalledAt != nil {
		t.Fatalf("expected calledAt cleared, got %v", reset.CalledAt)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	st := NewStore()
	_, err := st.UpdateStatus(context.Background(), store.UpdateStatusInput{Key: 99, Lookup: store.LookupByID, Status: models.StatusArrived, BusinessDay: day})
	if !errors.Is(err, store.ErrReservationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteKeepsTicketNumbers(t *testing.T) {
	st := NewStore()
	first := create(t, st, "a@b.com")
	create(t, st, "c@d.com")

	if _, err := st.DeleteReservation(context.Background(), store.DeleteInput{Key: first.ID, Lookup: store.LookupByID, BusinessDay: day}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := st.ListReservations(context.Background(), day)
	if len(list) != 1 || list[0].TicketNo != 2 {
		t.Fatalf("expected only ticket 2, got %+v", list)
	}
	if _, err := st.DeleteReservation(context.Background(), store.DeleteInput{Key: first.ID, Lookup: store.LookupByID, BusinessDay: day}); !errors.Is(err, store.ErrReservationNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestClearAllRestartsNumbering(t *testing.T) {
	st := NewStore()
	create(t, st, "a@b.com")
	create(t, st, "c@d.com")

	deleted, err := st.ClearAll(context.Background())
	if err != nil || deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d (%v)", deleted, err)
	}
	r := create(t, st, "e@f.com")
	if r.TicketNo != 1 || r.ID != 1 {
		t.Fatalf("expected ticket 1 id 1 after clear, got %+v", r)
	}
}

func TestListUpcomingSkipsCalled(t *testing.T) {
	st := NewStore()
	for _, email := range []string{"a@b.com", "b@b.com", "c@b.com", "d@b.com"} {
		create(t, st, email)
	}
	_, _ = st.UpdateStatus(context.Background(), store.UpdateStatusInput{Key: 3, Lookup: store.LookupByTicket, Status: models.StatusArrived, BusinessDay: day})

	upcoming, err := st.ListUpcoming(context.Background(), day, 2, 2)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(upcoming) != 2 || upcoming[0].TicketNo != 2 || upcoming[1].TicketNo != 4 {
		t.Fatalf("unexpected upcoming: %+v", upcoming)
	}
}

func TestSwapCallStateRejectsStaleVersion(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	first, err := st.SwapCallState(ctx, 0, models.InitialCallState(day, time.Now()))
	if err != nil {
		t.Fatalf("initial swap: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("expected version 1, got %d", first.Version)
	}
	if _, err := st.SwapCallState(ctx, 0, first); !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}
