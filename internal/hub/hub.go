// Package hub fans call-state and reservation events out to connected
// display clients.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	EventCallState    = "call_state.updated"
	EventReservations = "reservations.changed"
)

// Subscription limits delivery to the listed event types. An empty
// subscription receives everything.
type Subscription struct {
	Types []string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type SubscribeMessage struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

// Relay forwards encoded envelopes to other instances. The relay is
// responsible for delivering them back through Broadcast, including to the
// publishing instance.
type Relay interface {
	Publish(ctx context.Context, payload []byte) error
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	relay   Relay
	logger  *logrus.Logger
}

func New(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) SetRelay(relay Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = relay
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes data under eventType and delivers it through the relay
// when one is set, falling back to local delivery if the relay fails.
func (h *Hub) Publish(ctx context.Context, eventType string, data interface{}) error {
	payload, err := Encode(eventType, data, time.Now().UTC())
	if err != nil {
		return err
	}

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()

	if relay != nil {
		err := relay.Publish(ctx, payload)
		if err == nil {
			return nil
		}
		h.logger.WithFields(logrus.Fields{"type": eventType, "error": err.Error()}).Warn("relay publish failed")
	}
	h.Broadcast(payload, eventType)
	return nil
}

// Broadcast never blocks: clients with a full buffer miss the message.
func (h *Hub) Broadcast(payload []byte, eventType string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, eventType) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.logger.WithField("client_id", client.ID).Debug("drop message for slow client")
		}
	}
}

func Encode(eventType string, data interface{}, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw, CreatedAt: at})
}

func match(sub Subscription, eventType string) bool {
	if len(sub.Types) == 0 {
		return true
	}
	for _, t := range sub.Types {
		if t == eventType {
			return true
		}
	}
	return false
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
