package console

import (
	"context"

	"hauntq/internal/client"

	"github.com/sirupsen/logrus"
)

// API is the subset of the service client the console drives.
type API interface {
	Status(ctx context.Context) (client.Status, error)
	Step(ctx context.Context, delta int) (client.Status, error)
	SetPaused(ctx context.Context, paused bool) (client.Status, error)
	ResetCounter(ctx context.Context) (client.Status, error)
	Upcoming(ctx context.Context, count int) (client.Upcoming, error)
}

type Options struct {
	Tolerance int
	Poller    PollerOptions
	Logger    *logrus.Logger
	// OnChange is called after every state change, from any goroutine.
	OnChange func(View)
}

type Controller struct {
	api      API
	machine  *Machine
	poller   *Poller
	logger   *logrus.Logger
	onChange func(View)
}

func NewController(api API, options Options) *Controller {
	logger := options.Logger
	if logger == nil {
		logger = logrus.New()
	}
	c := &Controller{
		api:      api,
		machine:  NewMachine(State{CurrentNumber: 1}, options.Tolerance),
		logger:   logger,
		onChange: options.OnChange,
	}
	c.poller = NewPoller(c.Poll, options.Poller)
	return c
}

func (c *Controller) View() View {
	return c.machine.View()
}

func (c *Controller) Poller() *Poller {
	return c.poller
}

// Run polls the server until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	return c.poller.Run(ctx)
}

// Poll fetches the server state once. Failures keep the last known state.
func (c *Controller) Poll(ctx context.Context) error {
	status, err := c.api.Status(ctx)
	if err != nil {
		c.logger.WithField("error", err.Error()).Warn("status poll failed")
		return err
	}
	c.machine.Reconcile(fromStatus(status), status.Version, false)
	c.changed()
	return nil
}

// Mutation is an optimistic change already applied to the display and
// waiting for Commit to send it.
type Mutation struct {
	action Action
	call   func(ctx context.Context) (client.Status, error)
}

// BeginAdvance applies delta to the display without touching the network.
func (c *Controller) BeginAdvance(delta int) Mutation {
	return c.begin(c.machine.Advance(delta), func(ctx context.Context) (client.Status, error) {
		return c.api.Step(ctx, delta)
	})
}

func (c *Controller) BeginTogglePause() Mutation {
	action := c.machine.TogglePause()
	return c.begin(action, func(ctx context.Context) (client.Status, error) {
		return c.api.SetPaused(ctx, action.Target.Paused)
	})
}

func (c *Controller) BeginReset() Mutation {
	return c.begin(c.machine.Reset(), c.api.ResetCounter)
}

func (c *Controller) Advance(ctx context.Context, delta int) error {
	return c.Commit(ctx, c.BeginAdvance(delta))
}

func (c *Controller) TogglePause(ctx context.Context) error {
	return c.Commit(ctx, c.BeginTogglePause())
}

func (c *Controller) Reset(ctx context.Context) error {
	return c.Commit(ctx, c.BeginReset())
}

// Upcoming fetches mail links for the current and next count ticket holders.
func (c *Controller) Upcoming(ctx context.Context, count int) (client.Upcoming, error) {
	return c.api.Upcoming(ctx, count)
}

func (c *Controller) begin(action Action, call func(ctx context.Context) (client.Status, error)) Mutation {
	c.changed()
	c.poller.TriggerBurst()
	return Mutation{action: action, call: call}
}

// Commit sends a begun mutation, then reconciles the display with the
// server's answer or rolls it back on failure.
func (c *Controller) Commit(ctx context.Context, mutation Mutation) error {
	status, err := mutation.call(ctx)
	if err != nil {
		c.machine.Rollback(mutation.action, err)
		c.logger.WithFields(logrus.Fields{
			"error":  err.Error(),
			"target": mutation.action.Target.CurrentNumber,
		}).Error("call state update failed")
		c.changed()
		return err
	}
	c.machine.Reconcile(fromStatus(status), status.Version, true)
	c.changed()
	return nil
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange(c.machine.View())
	}
}

func fromStatus(status client.Status) State {
	return State{CurrentNumber: status.CurrentNumber, Paused: status.SystemPaused}
}
