package chat

import (
	"context"
	"testing"
	"time"

	"chatd/pkg/chaterr"
	"chatd/pkg/models"
	"chatd/pkg/pubsub"
)

func TestPublishTyping(t *testing.T) {
	s, hub := newTestService(t)
	ctx := context.Background()
	conv := mustCreate(t, s, "alice", "alice", "bob")
	hub.Reset()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.PublishTyping(ctx, Caller{UserID: "alice"}, conv.ID, "begin", at); err != nil {
		t.Fatalf("publish typing: %v", err)
	}

	evs := hub.EventsOn("user:bob")
	if len(evs) != 1 {
		t.Fatalf("expected one frame for bob, got %d", len(evs))
	}
	if evs[0].Payload.Event != "typing" {
		t.Fatalf("expected typing event, got %s", evs[0].Payload.Event)
	}
	data, ok := evs[0].Payload.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected payload data type %T", evs[0].Payload.Data)
	}
	inner, ok := data["conversation/"+conv.ID].(map[string]interface{})
	if !ok {
		t.Fatalf("payload missing conversation key: %+v", data)
	}
	state, ok := inner["user/alice"].(map[string]string)
	if !ok {
		t.Fatalf("payload missing user key: %+v", inner)
	}
	if state["event"] != "begin" || state["at"] != at.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected typing state: %+v", state)
	}
	// the typist's own devices get the frame too
	if evs := hub.EventsOn("user:alice"); len(evs) != 1 {
		t.Fatalf("expected one frame for alice, got %d", len(evs))
	}
}

func TestPublishTypingValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	conv := mustCreate(t, s, "alice", "alice", "bob")

	err := s.PublishTyping(ctx, Caller{UserID: "alice"}, conv.ID, "sneezing", time.Now())
	if chaterr.KindOf(err) != chaterr.KindInvalidArgument {
		t.Fatalf("invalid event: expected invalid_argument, got %v", err)
	}
	err = s.PublishTyping(ctx, Caller{UserID: "mallory"}, conv.ID, "begin", time.Now())
	if chaterr.KindOf(err) != chaterr.KindPermissionDenied {
		t.Fatalf("non-participant: expected permission_denied, got %v", err)
	}
	err = s.PublishTyping(ctx, Caller{UserID: "alice"}, "no-such", "begin", time.Now())
	if chaterr.KindOf(err) != chaterr.KindNotFound {
		t.Fatalf("unknown conversation: expected not_found, got %v", err)
	}
}

func TestChannelForPrefersUserChannelRecord(t *testing.T) {
	s, hub := newTestService(t)
	ctx := context.Background()

	// a provisioned channel record overrides the fallback name
	if err := s.store.Save(ctx, &models.UserChannel{ID: "ch1", Owner: "bob", Name: "priv-bob-1"}); err != nil {
		t.Fatalf("save channel: %v", err)
	}
	conv := mustCreate(t, s, "alice", "alice", "bob")
	hub.Reset()
	mustSend(t, s, "alice", conv.ID, "hello")

	if evs := hub.EventsOn("priv-bob-1"); len(evs) != 1 {
		t.Fatalf("expected frame on bob's provisioned channel, got %d", len(evs))
	}
	if evs := hub.EventsOn("user:bob"); len(evs) != 0 {
		t.Fatalf("fallback channel should be unused, got %d frames", len(evs))
	}
	// alice has no channel record and uses the fallback
	if evs := hub.EventsOn("user:alice"); len(evs) != 1 {
		t.Fatalf("expected frame on alice's fallback channel, got %d", len(evs))
	}
}

func TestRecordEventPayloadShape(t *testing.T) {
	s, hub := newTestService(t)
	conv := mustCreate(t, s, "alice", "alice", "bob")
	hub.Reset()
	msg := mustSend(t, s, "alice", conv.ID, "hello")

	evs := hub.EventsOn("user:bob")
	if len(evs) != 1 {
		t.Fatalf("expected one frame, got %d", len(evs))
	}
	data, ok := evs[0].Payload.Data.(pubsub.RecordEventData)
	if !ok {
		t.Fatalf("unexpected data type %T", evs[0].Payload.Data)
	}
	if data.EventType != "create" || data.Type != "record" || data.RecordType != models.TypeMessage {
		t.Fatalf("unexpected envelope: %+v", data)
	}
	rec, ok := data.Record.(*models.Message)
	if !ok || rec.ID != msg.ID {
		t.Fatalf("expected the message record in the payload, got %T", data.Record)
	}
}
