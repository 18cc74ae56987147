package chat

import (
	"context"
	"encoding/json"
	"time"

	"chatd/pkg/chaterr"
	"chatd/pkg/logger"
	"chatd/pkg/models"
	"chatd/pkg/pubsub"
	"chatd/pkg/store"
)

// channelFor resolves a user's private channel name. Hosts that
// provision user_channel records get their configured name; otherwise
// the fallback "user:<id>" convention applies.
func (s *Service) channelFor(ctx context.Context, userID string) string {
	pred := store.Eq("owner", userID)
	raws, err := s.store.Query(ctx, store.Query{Type: models.TypeUserChannel, Predicate: &pred, Limit: 1})
	if err == nil && len(raws) == 1 {
		var ch models.UserChannel
		if json.Unmarshal(raws[0], &ch) == nil && ch.Name != "" {
			return ch.Name
		}
	}
	return "user:" + userID
}

// publishRecordEvent fans one record lifecycle event out to each target
// user's private channel. Fire-and-forget: the mutation has already
// committed, so a publish failure is logged and swallowed.
func (s *Service) publishRecordEvent(ctx context.Context, userIDs []string, recordType, event string, record, original interface{}) {
	if len(userIDs) == 0 {
		return
	}
	channels := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		channels = append(channels, s.channelFor(ctx, uid))
	}
	payload := pubsub.Payload{
		Event: event,
		Data: pubsub.RecordEventData{
			EventType:      event,
			Type:           "record",
			RecordType:     recordType,
			Record:         record,
			OriginalRecord: original,
		},
	}
	if err := s.hub.Publish(ctx, channels, payload); err != nil {
		logger.Warn("fanout_publish_failed", "record_type", recordType, "event", event, "targets", len(userIDs), "error", err)
	}
}

// TypingEvent values a client may report.
var typingEvents = map[string]struct{}{
	"begin":    {},
	"pause":    {},
	"finished": {},
}

// PublishTyping fans a typing indicator out to every participant. Typing
// state is transient: nothing is persisted.
func (s *Service) PublishTyping(ctx context.Context, caller Caller, conversationID, event string, at time.Time) error {
	if _, ok := typingEvents[event]; !ok {
		return chaterr.InvalidArgument("typing event is invalid")
	}
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, caller, conversationID); err != nil {
		return err
	}
	channels := make([]string, 0, len(conv.ParticipantIDs))
	for _, uid := range conv.ParticipantIDs {
		channels = append(channels, s.channelFor(ctx, uid))
	}
	payload := pubsub.Payload{
		Event: "typing",
		Data: map[string]interface{}{
			"conversation/" + conv.ID: map[string]interface{}{
				"user/" + caller.UserID: map[string]string{
					"event": event,
					"at":    at.UTC().Format(time.RFC3339Nano),
				},
			},
		},
	}
	if err := s.hub.Publish(ctx, channels, payload); err != nil {
		logger.Warn("typing_publish_failed", "conversation", conv.ID, "error", err)
	}
	return nil
}
