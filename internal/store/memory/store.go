// Package memory keeps reservations and call state in process memory. It is
// used for local development (STORE_DRIVER=memory) and API tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hauntq/internal/models"
	"hauntq/internal/store"
)

type Store struct {
	mu           sync.Mutex
	nextID       int64
	reservations []models.Reservation
	callState    *models.CallState
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) CreateReservation(ctx context.Context, input store.CreateReservationInput) (models.Reservation, error) {
	input = store.NormalizeCreate(input)
	if err := store.ValidateCreate(input); err != nil {
		return models.Reservation{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Reservation{}, err
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	reservation := models.Reservation{
		ID:          s.nextID,
		TicketNo:    s.maxTicketLocked(input.BusinessDay) + 1,
		Email:       input.Email,
		Count:       input.Count,
		Age:         input.Age,
		Status:      models.StatusNotCalled,
		Channel:     input.Channel,
		UserAgent:   input.UserAgent,
		BusinessDay: input.BusinessDay,
		CreatedAt:   createdAt,
	}
	s.reservations = append(s.reservations, reservation)
	return reservation, nil
}

func (s *Store) ListReservations(ctx context.Context, businessDay string) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reservation
	for _, r := range s.reservations {
		if r.BusinessDay == businessDay {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, input store.UpdateStatusInput) (models.Reservation, error) {
	if err := store.ValidateStatus(input.Status); err != nil {
		return models.Reservation{}, err
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(input.Key, input.Lookup, input.BusinessDay, true)
	if idx < 0 {
		return models.Reservation{}, store.ErrReservationNotFound
	}
	r := &s.reservations[idx]
	if r.Status == input.Status {
		return *r, nil
	}
	r.Status = input.Status
	if input.Status == models.StatusNotCalled {
		r.CalledAt = nil
	} else {
		calledAt := occurredAt
		r.CalledAt = &calledAt
	}
	return *r, nil
}

func (s *Store) DeleteReservation(ctx context.Context, input store.DeleteInput) (models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(input.Key, input.Lookup, input.BusinessDay, false)
	if idx < 0 {
		return models.Reservation{}, store.ErrReservationNotFound
	}
	removed := s.reservations[idx]
	s.reservations = append(s.reservations[:idx], s.reservations[idx+1:]...)
	return removed, nil
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := int64(len(s.reservations))
	s.reservations = nil
	s.nextID = 0
	return deleted, nil
}

func (s *Store) MaxTicketNo(ctx context.Context, businessDay string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxTicketLocked(businessDay), nil
}

func (s *Store) ListUpcoming(ctx context.Context, businessDay string, fromTicket, limit int) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reservation
	for _, r := range s.reservations {
		if r.BusinessDay != businessDay || r.Status != models.StatusNotCalled || r.TicketNo < fromTicket {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNo < out[j].TicketNo })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LoadCallState(ctx context.Context) (models.CallState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callState == nil {
		return models.CallState{}, false, nil
	}
	return *s.callState, true, nil
}

func (s *Store) SwapCallState(ctx context.Context, expectedVersion int64, next models.CallState) (models.CallState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if s.callState != nil {
		current = s.callState.Version
	}
	if current != expectedVersion {
		return models.CallState{}, store.ErrVersionConflict
	}
	next.Version = expectedVersion + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	s.callState = &next
	return next, nil
}

func (s *Store) maxTicketLocked(businessDay string) int {
	max := 0
	for _, r := range s.reservations {
		if r.BusinessDay == businessDay && r.TicketNo > max {
			max = r.TicketNo
		}
	}
	return max
}

func (s *Store) findLocked(key int64, lookup store.LookupMode, businessDay string, todayOnly bool) int {
	for i, r := range s.reservations {
		switch lookup {
		case store.LookupByTicket:
			if r.BusinessDay == businessDay && int64(r.TicketNo) == key {
				return i
			}
		default:
			if r.ID == key && (!todayOnly || r.BusinessDay == businessDay) {
				return i
			}
		}
	}
	return -1
}
