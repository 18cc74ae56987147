package pubsub

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Payload is the envelope published on a channel.
type Payload struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// RecordEventData is the payload data for record lifecycle events fanned
// out to participants.
type RecordEventData struct {
	EventType  string      `json:"event_type"`
	Type       string      `json:"type"`
	RecordType string      `json:"record_type"`
	Record     interface{} `json:"record"`
	// OriginalRecord carries the pre-mutation state on updates, when known.
	OriginalRecord interface{} `json:"original_record,omitempty"`
}

// Hub publishes payloads to named channels. Delivery is fire-and-forget:
// the mutation has already been committed by the time a publish runs, and
// no guarantee beyond the transport's is offered.
type Hub interface {
	Publish(ctx context.Context, channels []string, payload Payload) error
}

var publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatd_pubsub_publish_total",
	Help: "Published pubsub frames by event.",
}, []string{"event"})
