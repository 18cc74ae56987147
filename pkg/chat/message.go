package chat

import (
	"context"
	"encoding/json"

	"chatd/pkg/chaterr"
	"chatd/pkg/ids"
	"chatd/pkg/logger"
	"chatd/pkg/models"
	"chatd/pkg/store"
)

type SendMessageRequest struct {
	ConversationID string                 `json:"conversation_id"`
	Body           string                 `json:"body,omitempty"`
	Attachment     string                 `json:"attachment,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type EditMessageRequest struct {
	Body       string                 `json:"body,omitempty"`
	Attachment string                 `json:"attachment,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SendMessage appends a message to a conversation: assigns the next seq,
// bumps every other participant's unread count, repoints last_message and
// fans out a create event to all participants (sender included, for
// multi-device sync).
func (s *Service) SendMessage(ctx context.Context, caller Caller, req SendMessageRequest) (*models.Message, error) {
	if req.ConversationID == "" {
		return nil, chaterr.InvalidArgument("conversation_id is required")
	}
	conv, err := s.getConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, caller, conv.ID); err != nil {
		return nil, err
	}

	seq, err := s.store.NextSeq(ctx, "conversation:"+conv.ID)
	if err != nil {
		return nil, err
	}
	now := s.nowTS()
	msg := &models.Message{
		ID:           ids.New(),
		Conversation: conv.ID,
		Owner:        caller.UserID,
		Body:         req.Body,
		Attachment:   req.Attachment,
		Metadata:     req.Metadata,
		Seq:          seq,
		Revision:     1,
		Status:       models.StatusDelivered,
		CreatedTS:    now,
	}
	if err := s.store.Save(ctx, msg); err != nil {
		return nil, err
	}

	for _, uid := range conv.ParticipantIDs {
		if uid == caller.UserID {
			continue
		}
		if err := s.updateMembership(ctx, conv.ID, uid, func(uc *models.UserConversation) bool {
			uc.UnreadCount++
			return true
		}); err != nil {
			return nil, err
		}
	}

	conv.LastMessage = msg.ID
	conv.UpdatedTS = now
	if err := s.store.Save(ctx, conv); err != nil {
		return nil, err
	}
	logger.Info("message_sent", "conversation", conv.ID, "message", msg.ID, "seq", msg.Seq)

	s.publishRecordEvent(ctx, conv.ParticipantIDs, models.TypeMessage, "create", msg, nil)
	return msg, nil
}

// EditMessage archives the current state into a MessageHistory record,
// then applies the new body/attachment/metadata and bumps the revision.
// Deleted messages cannot be edited.
func (s *Service) EditMessage(ctx context.Context, caller Caller, messageID string, req EditMessageRequest) (*models.Message, error) {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, errAlreadyDeleted()
	}
	if err := s.requireParticipant(ctx, caller, msg.Conversation); err != nil {
		return nil, err
	}

	now := s.nowTS()
	prior := *msg
	hist := models.Snapshot(msg, ids.New(), now)
	msg.Body = req.Body
	msg.Attachment = req.Attachment
	msg.Metadata = req.Metadata
	msg.Revision++
	msg.EditedBy = caller.UserID
	msg.EditedTS = now
	if err := s.store.Save(ctx, hist, msg); err != nil {
		return nil, err
	}
	logger.Info("message_edited", "message", msg.ID, "revision", msg.Revision, "editor", caller.UserID)

	conv, err := s.getConversation(ctx, msg.Conversation)
	if err != nil {
		return nil, err
	}
	s.publishRecordEvent(ctx, conv.ParticipantIDs, models.TypeMessage, "update", msg, &prior)
	return msg, nil
}

// DeleteMessage soft-deletes a message and repairs dependent pointers:
// the conversation's last_message and any member's last_read_message that
// referenced it move to the highest-seq surviving predecessor, and unread
// counters drop for participants who had not read it.
func (s *Service) DeleteMessage(ctx context.Context, caller Caller, messageID string) (*models.Message, error) {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, errAlreadyDeleted()
	}
	if err := s.requireParticipant(ctx, caller, msg.Conversation); err != nil {
		return nil, err
	}

	msg.Deleted = true
	if err := s.store.Save(ctx, msg); err != nil {
		return nil, err
	}

	conv, err := s.getConversation(ctx, msg.Conversation)
	if err != nil {
		return nil, err
	}
	predecessor, err := s.predecessorID(ctx, conv.ID, msg.Seq)
	if err != nil {
		return nil, err
	}
	if conv.LastMessage == msg.ID {
		conv.LastMessage = predecessor
		conv.UpdatedTS = s.nowTS()
		if err := s.store.Save(ctx, conv); err != nil {
			return nil, err
		}
	}

	readers, err := s.readersOf(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	memberPred := store.Eq("conversation", conv.ID)
	raws, err := s.store.Query(ctx, store.Query{Type: models.TypeUserConversation, Predicate: &memberPred})
	if err != nil {
		return nil, err
	}
	for _, raw := range raws {
		var member models.UserConversation
		if err := json.Unmarshal(raw, &member); err != nil {
			return nil, err
		}
		if err := s.updateMembership(ctx, conv.ID, member.User, func(uc *models.UserConversation) bool {
			changed := false
			if uc.LastReadMessage == msg.ID {
				uc.LastReadMessage = predecessor
				changed = true
			}
			// a read receipt exempts the user: their counter already
			// dropped at read time
			if uc.User != msg.Owner && !readers[uc.User] && uc.UnreadCount > 0 {
				uc.UnreadCount--
				changed = true
			}
			return changed
		}); err != nil {
			return nil, err
		}
	}
	logger.Info("message_deleted", "conversation", conv.ID, "message", msg.ID, "new_last_message", predecessor)

	s.publishRecordEvent(ctx, conv.ParticipantIDs, models.TypeMessage, "delete", msg, nil)
	return msg, nil
}

// predecessorID returns the id of the highest-seq non-deleted message in
// the conversation strictly before seq, or "" when none survives.
func (s *Service) predecessorID(ctx context.Context, conversationID string, seq int64) (string, error) {
	pred := store.And(
		store.Eq("conversation", conversationID),
		store.Eq("deleted", false),
		store.Lte("seq", seq-1),
	)
	raws, err := s.store.Query(ctx, store.Query{
		Type:      models.TypeMessage,
		Predicate: &pred,
		Sort:      []store.Sort{{Field: "seq", Desc: true}},
		Limit:     1,
	})
	if err != nil || len(raws) == 0 {
		return "", err
	}
	var m models.Message
	if err := json.Unmarshal(raws[0], &m); err != nil {
		return "", err
	}
	return m.ID, nil
}

// readersOf returns the set of users holding a read receipt for the
// message.
func (s *Service) readersOf(ctx context.Context, messageID string) (map[string]bool, error) {
	pred := store.And(store.Eq("message", messageID), store.Gte("read_ts", 1))
	raws, err := s.store.Query(ctx, store.Query{Type: models.TypeReceipt, Predicate: &pred})
	if err != nil {
		return nil, err
	}
	readers := map[string]bool{}
	for _, raw := range raws {
		var r models.Receipt
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		readers[r.User] = true
	}
	return readers, nil
}

// GetMessagesOptions filters a conversation's messages by time range or
// by message-id range. The two filter families are mutually exclusive.
type GetMessagesOptions struct {
	Limit           int
	BeforeTime      int64
	AfterTime       int64
	BeforeMessageID string
	AfterMessageID  string
	Order           string
}

// MessageList is a page of messages plus the soft-deleted messages within
// the same logical range, so clients can reconcile locally cached copies.
type MessageList struct {
	Results []*models.Message `json:"results"`
	Deleted []*models.Message `json:"deleted"`
}

// GetMessages fetches a page of a conversation's messages, newest first
// unless order is "asc".
func (s *Service) GetMessages(ctx context.Context, caller Caller, conversationID string, opts GetMessagesOptions) (*MessageList, error) {
	if _, err := s.getConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	byID := opts.BeforeMessageID != "" || opts.AfterMessageID != ""
	byTime := opts.BeforeTime != 0 || opts.AfterTime != 0
	if byID && byTime {
		return nil, chaterr.InvalidArgument("cannot use both message_id and time to filter")
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	field := "created_ts"
	lo, hi := opts.AfterTime, opts.BeforeTime
	if byID {
		field = "seq"
		lo, hi = 0, 0
		if opts.AfterMessageID != "" {
			m, err := s.getMessage(ctx, opts.AfterMessageID)
			if err != nil {
				return nil, err
			}
			lo = m.Seq
		}
		if opts.BeforeMessageID != "" {
			m, err := s.getMessage(ctx, opts.BeforeMessageID)
			if err != nil {
				return nil, err
			}
			hi = m.Seq
		}
	}

	results, err := s.rangeMessages(ctx, conversationID, field, lo, hi, false, opts.Order, opts.Limit)
	if err != nil {
		return nil, err
	}

	// Widen the open end of the range to the page boundary so the deleted
	// side-channel covers the span the client is actually looking at.
	if len(results) > 0 {
		first := fieldValue(results[0], field)
		last := fieldValue(results[len(results)-1], field)
		if lo == 0 {
			lo = last
		} else if hi == 0 {
			hi = first
		}
	}
	deleted, err := s.rangeMessages(ctx, conversationID, field, lo, hi, true, opts.Order, 0)
	if err != nil {
		return nil, err
	}
	return &MessageList{Results: results, Deleted: deleted}, nil
}

func fieldValue(m *models.Message, field string) int64 {
	if field == "seq" {
		return m.Seq
	}
	return m.CreatedTS
}

// rangeMessages queries one conversation's messages with exclusive lo/hi
// bounds on the given field (0 means unbounded).
func (s *Service) rangeMessages(ctx context.Context, conversationID, field string, lo, hi int64, deleted bool, order string, limit int) ([]*models.Message, error) {
	subs := []store.Predicate{
		store.Eq("conversation", conversationID),
		store.Eq("deleted", deleted),
	}
	if lo > 0 {
		subs = append(subs, store.Gte(field, lo+1))
	}
	if hi > 0 {
		subs = append(subs, store.Lte(field, hi-1))
	}
	pred := store.And(subs...)
	raws, err := s.store.Query(ctx, store.Query{
		Type:      models.TypeMessage,
		Predicate: &pred,
		Sort:      []store.Sort{{Field: field, Desc: order != "asc"}},
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Message, 0, len(raws))
	for _, raw := range raws {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, nil
}
