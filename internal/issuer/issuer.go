// Package issuer is the visitor-side issue flow: submit a reservation once,
// then follow the call counter until the ticket is called.
package issuer

import (
	"context"
	"errors"
	"time"

	"hauntq/internal/client"
	"hauntq/internal/models"

	"github.com/sirupsen/logrus"
)

const DefaultPollInterval = 3 * time.Second

var ErrNoTicket = errors.New("no ticket issued")

// API is the subset of the service client the issuer needs.
type API interface {
	CreateReservation(ctx context.Context, req client.CreateReservation) (models.Reservation, error)
	Counter(ctx context.Context) (client.Counter, error)
	Status(ctx context.Context) (client.Status, error)
}

type Options struct {
	PollInterval time.Duration
	Logger       *logrus.Logger
}

// Progress is what a ticket holder sees while waiting.
type Progress struct {
	TicketNo      int
	CurrentNumber int
	Issued        int
	Paused        bool
	PartiesAhead  int
	Called        bool
}

type Issuer struct {
	api      API
	interval time.Duration
	logger   *logrus.Logger
	ticket   *models.Reservation
}

func New(api API, options Options) *Issuer {
	interval := options.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := options.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Issuer{api: api, interval: interval, logger: logger}
}

// Submit sends the reservation exactly once. A failure is returned to the
// caller, who decides whether to resubmit.
func (i *Issuer) Submit(ctx context.Context, req client.CreateReservation) (models.Reservation, error) {
	if req.Channel == "" {
		req.Channel = models.ChannelWeb
	}
	reservation, err := i.api.CreateReservation(ctx, req)
	if err != nil {
		return models.Reservation{}, err
	}
	i.ticket = &reservation
	i.logger.WithFields(logrus.Fields{
		"ticket_no": reservation.TicketNo,
		"channel":   reservation.Channel,
	}).Info("reservation issued")
	return reservation, nil
}

func (i *Issuer) Ticket() (models.Reservation, bool) {
	if i.ticket == nil {
		return models.Reservation{}, false
	}
	return *i.ticket, true
}

// Check fetches counter and status once and derives progress for the issued ticket.
func (i *Issuer) Check(ctx context.Context) (Progress, error) {
	if i.ticket == nil {
		return Progress{}, ErrNoTicket
	}
	counter, err := i.api.Counter(ctx)
	if err != nil {
		return Progress{}, err
	}
	status, err := i.api.Status(ctx)
	if err != nil {
		return Progress{}, err
	}
	return progressFor(i.ticket.TicketNo, counter, status), nil
}

// Watch reports progress every poll interval until the ticket is called or
// ctx is done. Poll failures are logged and the next poll proceeds.
func (i *Issuer) Watch(ctx context.Context, report func(Progress)) error {
	if i.ticket == nil {
		return ErrNoTicket
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		progress, err := i.Check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.logger.WithField("error", err.Error()).Warn("progress poll failed")
		} else {
			report(progress)
			if progress.Called {
				return nil
			}
		}
		timer.Reset(i.interval)
	}
}

// PartiesAhead is the number of tickets still to be called before ticketNo.
func PartiesAhead(ticketNo, currentNumber int) int {
	if ahead := ticketNo - currentNumber; ahead > 0 {
		return ahead
	}
	return 0
}

func progressFor(ticketNo int, counter client.Counter, status client.Status) Progress {
	current := status.CurrentNumber
	if current < 1 {
		current = counter.CurrentNumber
	}
	return Progress{
		TicketNo:      ticketNo,
		CurrentNumber: current,
		Issued:        counter.Counter,
		Paused:        status.SystemPaused,
		PartiesAhead:  PartiesAhead(ticketNo, current),
		Called:        current >= ticketNo,
	}
}
