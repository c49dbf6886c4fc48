// Package callstate owns the "now calling" counter: day rollover, partial
// updates and resets on top of a versioned CallStateRepository.
package callstate

import (
	"context"
	"errors"
	"time"

	"hauntq/internal/models"
	"hauntq/internal/store"
)

const defaultMaxAttempts = 8

type Options struct {
	Location    *time.Location
	Now         func() time.Time
	MaxAttempts int
	// OnChange is invoked after every successful write, including rollovers.
	OnChange func(models.CallState)
}

type Service struct {
	repo        store.CallStateRepository
	loc         *time.Location
	now         func() time.Time
	maxAttempts int
	onChange    func(models.CallState)
}

// Update is a partial call-state change. Nil fields are left untouched.
// When ExpectedVersion is set, the write only applies to that version.
type Update struct {
	CurrentNumber   *int   `json:"currentNumber,omitempty"`
	SystemPaused    *bool  `json:"systemPaused,omitempty"`
	ExpectedVersion *int64 `json:"version,omitempty"`
}

func NewService(repo store.CallStateRepository, options Options) *Service {
	loc := options.Location
	if loc == nil {
		loc = time.Local
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	attempts := options.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Service{
		repo:        repo,
		loc:         loc,
		now:         now,
		maxAttempts: attempts,
		onChange:    options.OnChange,
	}
}

// Today is the current business day in the event time zone.
func (s *Service) Today() string {
	return store.BusinessDay(s.now(), s.loc)
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Status(ctx context.Context) (models.CallState, error) {
	return s.current(ctx)
}

func (s *Service) Update(ctx context.Context, update Update) (models.CallState, error) {
	if update.CurrentNumber != nil && *update.CurrentNumber < 1 {
		return models.CallState{}, store.Invalid("currentNumber", "must be at least 1")
	}
	return s.mutate(ctx, update.ExpectedVersion, func(state *models.CallState) {
		if update.CurrentNumber != nil {
			state.CurrentNumber = *update.CurrentNumber
		}
		if update.SystemPaused != nil {
			state.SystemPaused = *update.SystemPaused
		}
	})
}

func (s *Service) Reset(ctx context.Context) (models.CallState, error) {
	return s.mutate(ctx, nil, func(state *models.CallState) {
		state.CurrentNumber = 1
		state.SystemPaused = false
	})
}

// Advance moves the current number by delta, never below 1.
func (s *Service) Advance(ctx context.Context, delta int) (models.CallState, error) {
	return s.mutate(ctx, nil, func(state *models.CallState) {
		state.CurrentNumber += delta
		if state.CurrentNumber < 1 {
			state.CurrentNumber = 1
		}
	})
}

// current returns the stored state after applying the day rollover. Only
// one concurrent caller wins the rollover swap; the others reload.
func (s *Service) current(ctx context.Context) (models.CallState, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		state, found, err := s.repo.LoadCallState(ctx)
		if err != nil {
			return models.CallState{}, err
		}
		today := s.Today()
		if found && state.LastResetDate == today {
			return state, nil
		}

		var expected int64
		if found {
			expected = state.Version
		}
		swapped, err := s.repo.SwapCallState(ctx, expected, models.InitialCallState(today, s.now().UTC()))
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return models.CallState{}, err
		}
		s.notify(swapped)
		return swapped, nil
	}
	return models.CallState{}, store.ErrConflict
}

func (s *Service) mutate(ctx context.Context, expectedVersion *int64, apply func(*models.CallState)) (models.CallState, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		state, err := s.current(ctx)
		if err != nil {
			return models.CallState{}, err
		}
		if expectedVersion != nil && *expectedVersion != state.Version {
			return models.CallState{}, store.ErrConflict
		}

		next := state
		apply(&next)
		next.UpdatedAt = s.now().UTC()

		swapped, err := s.repo.SwapCallState(ctx, state.Version, next)
		if errors.Is(err, store.ErrVersionConflict) {
			if expectedVersion != nil {
				return models.CallState{}, store.ErrConflict
			}
			continue
		}
		if err != nil {
			return models.CallState{}, err
		}
		s.notify(swapped)
		return swapped, nil
	}
	return models.CallState{}, store.ErrConflict
}

func (s *Service) notify(state models.CallState) {
	if s.onChange != nil {
		s.onChange(state)
	}
}
