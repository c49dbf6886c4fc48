package store

import (
	"context"
	"time"

	"hauntq/internal/models"
)

type LookupMode string

const (
	LookupByID     LookupMode = "id"
	LookupByTicket LookupMode = "ticket"
)

type CreateReservationInput struct {
	Email       string `validate:"required,email,max=254"`
	Count       int    `validate:"min=1,max=10"`
	Age         string `validate:"required,oneof=一般 大学生 高校生以下"`
	Channel     string `validate:"required,oneof=web mobile tablet admin"`
	UserAgent   string `validate:"max=512"`
	BusinessDay string `validate:"required,datetime=2006-01-02"`
	CreatedAt   time.Time
}

type UpdateStatusInput struct {
	Key         int64
	Lookup      LookupMode
	Status      string
	BusinessDay string
	OccurredAt  time.Time
}

type DeleteInput struct {
	Key         int64
	Lookup      LookupMode
	BusinessDay string
}

type ReservationStore interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (models.Reservation, error)
	ListReservations(ctx context.Context, businessDay string) ([]models.Reservation, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (models.Reservation, error)
	DeleteReservation(ctx context.Context, input DeleteInput) (models.Reservation, error)
	ClearAll(ctx context.Context) (int64, error)
	MaxTicketNo(ctx context.Context, businessDay string) (int, error)
	ListUpcoming(ctx context.Context, businessDay string, fromTicket, limit int) ([]models.Reservation, error)
}

// CallStateRepository persists the call-state singleton. Writes are
// compare-and-swap on Version: expectedVersion 0 means "no row yet".
type CallStateRepository interface {
	LoadCallState(ctx context.Context) (models.CallState, bool, error)
	SwapCallState(ctx context.Context, expectedVersion int64, next models.CallState) (models.CallState, error)
}

// BusinessDay returns the event-local calendar date for t.
func BusinessDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(models.BusinessDayLayout)
}
