package chat

import (
	"context"
	"encoding/json"
	"errors"

	"chatd/pkg/chaterr"
	"chatd/pkg/ids"
	"chatd/pkg/logger"
	"chatd/pkg/models"
	"chatd/pkg/store"
)

// MarkDelivered stamps delivery receipts for the caller on the given
// messages. Already-delivered messages are skipped, so retries are
// no-ops.
func (s *Service) MarkDelivered(ctx context.Context, caller Caller, messageIDs []string) error {
	return s.markMessages(ctx, caller, messageIDs, true, false)
}

// MarkRead stamps read receipts (and implied delivery) for the caller on
// the given messages, updating unread counters, last-read pointers and
// aggregate message status.
func (s *Service) MarkRead(ctx context.Context, caller Caller, messageIDs []string) error {
	return s.markMessages(ctx, caller, messageIDs, true, true)
}

// MarkReadByRange marks every non-deleted message between the two
// endpoints (inclusive, by seq) as read. fromID may be empty to start at
// the beginning of the conversation. Both endpoints must resolve to the
// same conversation.
func (s *Service) MarkReadByRange(ctx context.Context, caller Caller, fromID, toID string) error {
	if toID == "" {
		return chaterr.InvalidArgument("to_message_id is required")
	}
	to, err := s.getMessage(ctx, toID)
	if err != nil {
		return err
	}
	var fromSeq int64
	if fromID != "" {
		from, err := s.getMessage(ctx, fromID)
		if err != nil {
			return err
		}
		if from.Conversation != to.Conversation {
			return chaterr.InvalidArgument("messages do not belong to the same conversation")
		}
		fromSeq = from.Seq
	}

	pred := store.And(
		store.Eq("conversation", to.Conversation),
		store.Eq("deleted", false),
		store.Gte("seq", fromSeq),
		store.Lte("seq", to.Seq),
	)
	raws, err := s.store.Query(ctx, store.Query{
		Type:      models.TypeMessage,
		Predicate: &pred,
		Sort:      []store.Sort{{Field: "seq"}},
	})
	if err != nil {
		return err
	}
	messageIDs := make([]string, 0, len(raws))
	for _, raw := range raws {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		messageIDs = append(messageIDs, m.ID)
	}
	if len(messageIDs) == 0 {
		return nil
	}
	return s.markMessages(ctx, caller, messageIDs, true, true)
}

// convDelta accumulates one conversation's share of a mark batch: how
// many messages this batch newly read, and the highest-seq message among
// them (the candidate last-read pointer).
type convDelta struct {
	newlyRead int
	candidate *models.Message
}

// markMessages is the batch receipt algorithm. It validates membership
// for the whole batch up front (no partial processing), then processes
// the batch one conversation at a time: receipt transitions and the
// resulting unread/last-read delta run under that conversation's pair
// lock, and the aggregate status of every touched message is recomputed
// afterwards.
func (s *Service) markMessages(ctx context.Context, caller Caller, messageIDs []string, markDelivered, markRead bool) error {
	if len(messageIDs) == 0 {
		return chaterr.InvalidArgument("message id list must not be empty")
	}
	seen := map[string]struct{}{}
	messages := make([]*models.Message, 0, len(messageIDs))
	for _, id := range messageIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		msg, err := s.getMessage(ctx, id)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}

	byConv := map[string][]*models.Message{}
	var order []string
	for _, msg := range messages {
		if _, ok := byConv[msg.Conversation]; !ok {
			order = append(order, msg.Conversation)
			if err := s.requireParticipant(ctx, caller, msg.Conversation); err != nil {
				return err
			}
		}
		byConv[msg.Conversation] = append(byConv[msg.Conversation], msg)
	}

	now := s.nowTS()
	changedTotal := 0
	var dirty []*models.Message
	for _, conversationID := range order {
		changed, convDirty, err := s.markConversationBatch(ctx, caller.UserID, conversationID, byConv[conversationID], now, markDelivered, markRead)
		if err != nil {
			return err
		}
		changedTotal += changed
		dirty = append(dirty, convDirty...)
	}
	if changedTotal == 0 {
		// every receipt already carried the requested timestamps; a
		// retried batch changes nothing
		return nil
	}
	for _, msg := range dirty {
		if err := s.refreshMessageStatus(ctx, msg); err != nil {
			return err
		}
	}
	logger.Debug("messages_marked", "user", caller.UserID, "requested", len(messageIDs), "changed", changedTotal, "read", markRead)
	return nil
}

// markConversationBatch transitions the caller's receipts for one
// conversation's share of a batch, persists them and applies the
// unread/last-read delta, all under the (conversation, user) pair lock.
// Holding the lock across the transition is what makes the decrement
// delta exact: a concurrent batch for the same pair cannot observe the
// pre-transition receipts and count the same message a second time.
func (s *Service) markConversationBatch(ctx context.Context, userID, conversationID string, msgs []*models.Message, now int64, markDelivered, markRead bool) (int, []*models.Message, error) {
	unlock := s.locks.lock(conversationID + "|" + userID)
	defer unlock()

	d := &convDelta{}
	var touched []store.Record
	var dirty []*models.Message
	for _, msg := range msgs {
		rcpt, err := s.receiptFor(ctx, userID, msg.ID)
		if err != nil {
			return 0, nil, err
		}
		changed := false
		if markDelivered && rcpt.MarkDelivered(now) {
			changed = true
		}
		if markRead && rcpt.MarkRead(now) {
			changed = true
			d.newlyRead++
			if d.candidate == nil || msg.Seq > d.candidate.Seq {
				d.candidate = msg
			}
		}
		if changed {
			touched = append(touched, rcpt)
			dirty = append(dirty, msg)
		}
	}
	if len(touched) == 0 {
		return 0, nil, nil
	}
	if err := s.store.Save(ctx, touched...); err != nil {
		return 0, nil, err
	}
	if d.newlyRead > 0 || d.candidate != nil {
		if err := s.applyReadDelta(ctx, userID, conversationID, d); err != nil {
			return 0, nil, err
		}
	}
	return len(touched), dirty, nil
}

// receiptFor fetches the caller's receipt for a message, or constructs a
// blank one addressed by its deterministic id.
func (s *Service) receiptFor(ctx context.Context, userID, messageID string) (*models.Receipt, error) {
	id := ids.Receipt(userID, messageID)
	var rcpt models.Receipt
	err := s.store.Get(ctx, models.TypeReceipt, id, &rcpt)
	if errors.Is(err, store.ErrNotFound) {
		return &models.Receipt{ID: id, User: userID, Message: messageID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rcpt, nil
}

// applyReadDelta applies one conversation's unread decrement and
// last-read advance for the caller. The caller holds the pair lock; the
// decrement comes only from receipts this batch itself transitioned,
// floored at zero, and the pointer only moves to a higher seq, so
// out-of-order batch completion cannot drag it backward.
func (s *Service) applyReadDelta(ctx context.Context, userID, conversationID string, d *convDelta) error {
	var currentSeq int64 = -1
	return s.updateMembershipLocked(ctx, conversationID, userID, func(uc *models.UserConversation) bool {
		changed := false
		if d.newlyRead > 0 {
			uc.UnreadCount -= d.newlyRead
			if uc.UnreadCount < 0 {
				uc.UnreadCount = 0
			}
			changed = true
		}
		if d.candidate != nil {
			if uc.LastReadMessage != "" && currentSeq < 0 {
				var cur models.Message
				if err := s.store.Get(ctx, models.TypeMessage, uc.LastReadMessage, &cur); err == nil {
					currentSeq = cur.Seq
				}
			}
			if uc.LastReadMessage == "" || d.candidate.Seq > currentSeq {
				uc.LastReadMessage = d.candidate.ID
				changed = true
			}
		}
		return changed
	})
}

// refreshMessageStatus recomputes the cached aggregate status from the
// full receipt set: read receipts are counted against the participants
// other than the sender, who never files one for their own message.
func (s *Service) refreshMessageStatus(ctx context.Context, msg *models.Message) error {
	conv, err := s.getConversation(ctx, msg.Conversation)
	if err != nil {
		if chaterr.KindOf(err) == chaterr.KindNotFound {
			return nil
		}
		return err
	}
	readers, err := s.readersOf(ctx, msg.ID)
	if err != nil {
		return err
	}
	target := conv.ParticipantCount
	if conv.HasParticipant(msg.Owner) {
		target--
	}
	status := models.StatusDelivered
	switch {
	case len(readers) == 0:
		status = models.StatusDelivered
	case target > 0 && len(readers) >= target:
		status = models.StatusAllRead
	default:
		status = models.StatusSomeRead
	}
	if status != msg.Status {
		msg.Status = status
		if err := s.store.Save(ctx, msg); err != nil {
			return err
		}
	}
	s.publishRecordEvent(ctx, conv.ParticipantIDs, models.TypeMessage, "update", msg, nil)
	return nil
}

// ReceiptView is one user's acknowledgment state for a message.
type ReceiptView struct {
	UserID      string `json:"user_id"`
	DeliveredTS int64  `json:"delivered_ts,omitempty"`
	ReadTS      int64  `json:"read_ts,omitempty"`
}

// GetReceipts returns every user's receipt for a message. The caller must
// be a participant of the message's conversation.
func (s *Service) GetReceipts(ctx context.Context, caller Caller, messageID string) ([]ReceiptView, error) {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, caller, msg.Conversation); err != nil {
		return nil, err
	}
	pred := store.Eq("message", msg.ID)
	raws, err := s.store.Query(ctx, store.Query{Type: models.TypeReceipt, Predicate: &pred})
	if err != nil {
		return nil, err
	}
	out := make([]ReceiptView, 0, len(raws))
	for _, raw := range raws {
		var r models.Receipt
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		out = append(out, ReceiptView{UserID: r.User, DeliveredTS: r.DeliveredTS, ReadTS: r.ReadTS})
	}
	return out, nil
}

// TotalUnread summarizes the caller's unread backlog across all their
// conversations.
type TotalUnread struct {
	Conversation int `json:"conversation"`
	Message      int `json:"message"`
}

// GetTotalUnread counts conversations with unread messages and the total
// unread message count for the caller.
func (s *Service) GetTotalUnread(ctx context.Context, caller Caller) (*TotalUnread, error) {
	pred := store.And(store.Eq("user", caller.UserID), store.Gte("unread_count", 1))
	raws, err := s.store.Query(ctx, store.Query{Type: models.TypeUserConversation, Predicate: &pred})
	if err != nil {
		return nil, err
	}
	total := &TotalUnread{}
	for _, raw := range raws {
		var uc models.UserConversation
		if err := json.Unmarshal(raw, &uc); err != nil {
			return nil, err
		}
		total.Conversation++
		total.Message += uc.UnreadCount
	}
	return total, nil
}
