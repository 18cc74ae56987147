package pubsub

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"chatd/pkg/logger"
)

// wsFrame is the wire form understood by the host hub: one publish action
// per channel.
type wsFrame struct {
	Action  string      `json:"action"`
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// WSHub publishes to an external pubsub endpoint over a websocket. A
// connection is dialed per publish and closed after the frames are
// written, mirroring how the host's own plugins talk to the hub.
type WSHub struct {
	Endpoint string
	APIKey   string
	dialer   *websocket.Dialer
}

// NewWSHub returns a hub client for the given websocket endpoint.
func NewWSHub(endpoint, apiKey string) *WSHub {
	return &WSHub{Endpoint: endpoint, APIKey: apiKey, dialer: websocket.DefaultDialer}
}

// Publish writes one pub frame per channel. Errors are returned but
// callers treat them as non-fatal; the mutation already committed.
func (h *WSHub) Publish(ctx context.Context, channels []string, payload Payload) error {
	if len(channels) == 0 {
		return nil
	}
	hdr := http.Header{}
	if h.APIKey != "" {
		hdr.Set("X-API-Key", h.APIKey)
	}
	conn, _, err := h.dialer.DialContext(ctx, h.Endpoint, hdr)
	if err != nil {
		logger.Error("pubsub_dial_failed", "endpoint", h.Endpoint, "error", err)
		return err
	}
	defer conn.Close()
	for _, ch := range channels {
		frame := wsFrame{Action: "pub", Channel: ch, Data: payload}
		if err := conn.WriteJSON(frame); err != nil {
			logger.Error("pubsub_publish_failed", "channel", ch, "event", payload.Event, "error", err)
			return err
		}
		publishTotal.WithLabelValues(payload.Event).Inc()
	}
	logger.Debug("pubsub_published", "event", payload.Event, "channels", len(channels))
	return nil
}
