package hub

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

const sendBuffer = 16

// Snapshot returns the encoded envelope sent to a client right after it
// connects.
type Snapshot func(r *http.Request) ([]byte, error)

// Handler serves the hub over SockJS under prefix. Clients are read-only
// apart from subscribe/unsubscribe messages.
func (h *Hub) Handler(prefix string, snapshot Snapshot) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &Client{ID: uuid.NewString(), Send: make(chan []byte, sendBuffer)}
		h.Register(client)
		defer h.Unregister(client)

		if snapshot != nil {
			if payload, err := snapshot(session.Request()); err == nil {
				_ = session.Send(string(payload))
			} else {
				h.logger.WithField("error", err.Error()).Warn("realtime snapshot failed")
			}
		}

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, Subscription{})
				continue
			}
			h.UpdateSubscription(client, Subscription{Types: parsed.Types})
		}
	})
}
