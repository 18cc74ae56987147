package chat

import (
	"context"
	"encoding/json"
	"sort"

	"chatd/pkg/chaterr"
	"chatd/pkg/ids"
	"chatd/pkg/logger"
	"chatd/pkg/models"
	"chatd/pkg/store"
)

type CreateConversationRequest struct {
	Participants           []string               `json:"participants"`
	Admins                 []string               `json:"admins,omitempty"`
	Title                  string                 `json:"title,omitempty"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
	DistinctByParticipants bool                   `json:"distinct_by_participants,omitempty"`
}

// ConversationView is a conversation joined with the caller's own
// membership state. UnreadCount and LastReadMessage are transient fields,
// never written back to the conversation record.
type ConversationView struct {
	models.Conversation
	UnreadCount           int             `json:"unread_count"`
	LastReadMessage       string          `json:"last_read_message,omitempty"`
	LastMessageRecord     *models.Message `json:"last_message_record,omitempty"`
	LastReadMessageRecord *models.Message `json:"last_read_message_record,omitempty"`
}

// CreateConversation validates and creates a conversation plus one
// membership record per participant. Admins default to the creator when
// not supplied; explicit admins must be participants.
func (s *Service) CreateConversation(ctx context.Context, caller Caller, req CreateConversationRequest) (*ConversationView, error) {
	participants := normalizeUserIDs(req.Participants)
	if len(participants) == 0 {
		return nil, chaterr.InvalidArgument("participant list must not be empty")
	}
	if !contains(participants, caller.UserID) {
		return nil, chaterr.InvalidArgument("requester must be in the participant list")
	}
	admins := union([]string{caller.UserID}, normalizeUserIDs(req.Admins))
	for _, id := range admins {
		if !contains(participants, id) {
			return nil, chaterr.InvalidArgument("admins must be a subset of participants")
		}
	}

	// Check-then-act: two concurrent creates with the same participant
	// set can both pass this scan. The store exposes no cross-record
	// transaction to close the gap; the race is accepted and documented.
	if req.DistinctByParticipants {
		dup, err := s.findDistinctDuplicate(ctx, participants, "")
		if err != nil {
			return nil, err
		}
		if dup != "" {
			return nil, errConversationExists(dup)
		}
	}

	now := s.nowTS()
	conv := &models.Conversation{
		ID:                     ids.New(),
		Owner:                  caller.UserID,
		Title:                  req.Title,
		Metadata:               req.Metadata,
		DistinctByParticipants: req.DistinctByParticipants,
		ParticipantIDs:         participants,
		AdminIDs:               admins,
		ParticipantCount:       len(participants),
		CreatedTS:              now,
		UpdatedTS:              now,
	}
	recs := []store.Record{conv}
	for _, uid := range participants {
		recs = append(recs, membershipRecord(conv.ID, uid, contains(admins, uid), now))
	}
	if err := s.store.Save(ctx, recs...); err != nil {
		return nil, err
	}
	logger.Info("conversation_created", "conversation", conv.ID, "participants", len(participants), "distinct", conv.DistinctByParticipants)

	s.publishRecordEvent(ctx, participants, models.TypeConversation, "create", conv, nil)
	return s.conversationView(ctx, caller, conv, false)
}

// findDistinctDuplicate scans distinct conversations for an exact
// participant-set match, excluding excludeID. Returns the duplicate's id
// or "".
func (s *Service) findDistinctDuplicate(ctx context.Context, participants []string, excludeID string) (string, error) {
	pred := store.Eq("distinct_by_participants", true)
	raws, err := s.store.Query(ctx, store.Query{Type: models.TypeConversation, Predicate: &pred})
	if err != nil {
		return "", err
	}
	want := append([]string(nil), participants...)
	sort.Strings(want)
	for _, raw := range raws {
		var c models.Conversation
		if err := json.Unmarshal(raw, &c); err != nil {
			return "", err
		}
		if c.ID == excludeID || len(c.ParticipantIDs) != len(want) {
			continue
		}
		got := append([]string(nil), c.ParticipantIDs...)
		sort.Strings(got)
		match := true
		for i := range want {
			if want[i] != got[i] {
				match = false
				break
			}
		}
		if match {
			return c.ID, nil
		}
	}
	return "", nil
}

// AddParticipants adds users to a conversation. Users already present are
// skipped. Adding anyone voids the distinct-set guarantee.
func (s *Service) AddParticipants(ctx context.Context, caller Caller, conversationID string, userIDs []string) (*ConversationView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	var added []string
	for _, uid := range normalizeUserIDs(userIDs) {
		if !conv.HasParticipant(uid) {
			added = append(added, uid)
		}
	}
	if len(added) == 0 {
		return s.conversationView(ctx, caller, conv, false)
	}

	now := s.nowTS()
	existing := conv.ParticipantIDs
	conv.ParticipantIDs = union(conv.ParticipantIDs, added)
	conv.ParticipantCount = len(conv.ParticipantIDs)
	conv.DistinctByParticipants = false
	conv.UpdatedTS = now
	recs := []store.Record{conv}
	for _, uid := range added {
		recs = append(recs, membershipRecord(conv.ID, uid, false, now))
	}
	if err := s.store.Save(ctx, recs...); err != nil {
		return nil, err
	}
	logger.Info("participants_added", "conversation", conv.ID, "added", len(added))

	s.publishRecordEvent(ctx, added, models.TypeConversation, "create", conv, nil)
	s.publishRecordEvent(ctx, existing, models.TypeConversation, "update", conv, nil)
	return s.conversationView(ctx, caller, conv, false)
}

// RemoveParticipants removes users from a conversation, deleting their
// membership records and dropping them from the admin set. Removing the
// final participant is the sanctioned retirement path.
func (s *Service) RemoveParticipants(ctx context.Context, caller Caller, conversationID string, userIDs []string) (*ConversationView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	var removed []string
	for _, uid := range normalizeUserIDs(userIDs) {
		if conv.HasParticipant(uid) {
			removed = append(removed, uid)
		}
	}
	if len(removed) == 0 {
		return s.conversationView(ctx, caller, conv, false)
	}

	ucIDs := make([]string, 0, len(removed))
	for _, uid := range removed {
		ucIDs = append(ucIDs, ids.Membership(conv.ID, uid))
	}
	if err := s.store.Delete(ctx, models.TypeUserConversation, ucIDs...); err != nil {
		return nil, err
	}

	conv.ParticipantIDs = subtract(conv.ParticipantIDs, removed)
	conv.AdminIDs = subtract(conv.AdminIDs, removed)
	conv.ParticipantCount = len(conv.ParticipantIDs)
	conv.DistinctByParticipants = false
	conv.UpdatedTS = s.nowTS()
	if err := s.store.Save(ctx, conv); err != nil {
		return nil, err
	}
	logger.Info("participants_removed", "conversation", conv.ID, "removed", len(removed), "remaining", conv.ParticipantCount)

	s.publishRecordEvent(ctx, removed, models.TypeConversation, "delete", conv, nil)
	s.publishRecordEvent(ctx, conv.ParticipantIDs, models.TypeConversation, "update", conv, nil)
	return s.conversationView(ctx, caller, conv, false)
}

// SetAdmins grants or revokes the admin flag for the given users. Grant
// targets must already be participants; a missing membership record for a
// current participant is recreated on the fly.
func (s *Service) SetAdmins(ctx context.Context, caller Caller, conversationID string, userIDs []string, grant bool) (*ConversationView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	targets := normalizeUserIDs(userIDs)
	if grant {
		for _, uid := range targets {
			if !conv.HasParticipant(uid) {
				return nil, chaterr.InvalidArgument("admins must be a subset of participants")
			}
		}
	}

	now := s.nowTS()
	recs := []store.Record{}
	for _, uid := range targets {
		uc, err := s.userConversation(ctx, conv.ID, uid)
		if err != nil {
			return nil, err
		}
		if uc == nil {
			uc = membershipRecord(conv.ID, uid, false, now)
		}
		uc.IsAdmin = grant
		uc.UpdatedTS = now
		recs = append(recs, uc)
	}
	if grant {
		conv.AdminIDs = union(conv.AdminIDs, targets)
	} else {
		conv.AdminIDs = subtract(conv.AdminIDs, targets)
	}
	conv.UpdatedTS = now
	recs = append(recs, conv)
	if err := s.store.Save(ctx, recs...); err != nil {
		return nil, err
	}
	logger.Info("admins_updated", "conversation", conv.ID, "users", len(targets), "grant", grant)

	s.publishRecordEvent(ctx, conv.ParticipantIDs, models.TypeConversation, "update", conv, nil)
	return s.conversationView(ctx, caller, conv, false)
}

// LeaveConversation removes the caller from the conversation. The removal
// runs under master privilege so a leaving admin is not blocked by the
// admin check their own departure invalidates.
func (s *Service) LeaveConversation(ctx context.Context, caller Caller, conversationID string) error {
	uc, err := s.userConversation(ctx, conversationID, caller.UserID)
	if err != nil {
		return err
	}
	if uc == nil {
		return errNotInConversation()
	}
	_, err = s.RemoveParticipants(ctx, Caller{UserID: caller.UserID, Master: true}, conversationID, []string{caller.UserID})
	return err
}

// RetireConversation is the only sanctioned deletion path: an admin
// revokes every admin and removes every participant. The conversation
// record itself survives with empty membership.
func (s *Service) RetireConversation(ctx context.Context, caller Caller, conversationID string) error {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, caller, conversationID); err != nil {
		return err
	}
	former := append([]string(nil), conv.ParticipantIDs...)
	master := Caller{UserID: caller.UserID, Master: true}
	if len(conv.AdminIDs) > 0 {
		if _, err := s.SetAdmins(ctx, master, conversationID, conv.AdminIDs, false); err != nil {
			return err
		}
	}
	if len(former) > 0 {
		if _, err := s.RemoveParticipants(ctx, master, conversationID, former); err != nil {
			return err
		}
	}
	// the inner removal already fanned a delete event out to every
	// former participant
	logger.Info("conversation_retired", "conversation", conversationID, "former_participants", len(former))
	return nil
}

// GetConversation returns the conversation joined with the caller's
// membership state, optionally resolving message pointers into records.
func (s *Service) GetConversation(ctx context.Context, caller Caller, conversationID string, includeLastMessage bool) (*ConversationView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	return s.conversationView(ctx, caller, conv, includeLastMessage)
}

// ListConversations pages through the caller's conversations, newest
// activity first unless order is "asc".
func (s *Service) ListConversations(ctx context.Context, caller Caller, page, pageSize int, order string, includeLastMessage bool) ([]*ConversationView, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	pred := store.Eq("user", caller.UserID)
	raws, err := s.store.Query(ctx, store.Query{Type: models.TypeUserConversation, Predicate: &pred})
	if err != nil {
		return nil, err
	}
	var convs []*models.Conversation
	for _, raw := range raws {
		var uc models.UserConversation
		if err := json.Unmarshal(raw, &uc); err != nil {
			return nil, err
		}
		var conv models.Conversation
		if err := s.store.Get(ctx, models.TypeConversation, uc.Conversation, &conv); err != nil {
			// membership row outlived the conversation record; skip
			continue
		}
		convs = append(convs, &conv)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		if order == "asc" {
			return convs[i].UpdatedTS < convs[j].UpdatedTS
		}
		return convs[i].UpdatedTS > convs[j].UpdatedTS
	})
	start := (page - 1) * pageSize
	if start >= len(convs) {
		return []*ConversationView{}, nil
	}
	end := start + pageSize
	if end > len(convs) {
		end = len(convs)
	}
	out := make([]*ConversationView, 0, end-start)
	for _, conv := range convs[start:end] {
		v, err := s.conversationView(ctx, caller, conv, includeLastMessage)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// conversationView joins conv with the caller's membership record and
// optionally resolves last_message / last_read_message into full records.
func (s *Service) conversationView(ctx context.Context, caller Caller, conv *models.Conversation, includeLastMessage bool) (*ConversationView, error) {
	view := &ConversationView{Conversation: *conv}
	uc, err := s.userConversation(ctx, conv.ID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if uc != nil {
		view.UnreadCount = uc.UnreadCount
		view.LastReadMessage = uc.LastReadMessage
	}
	if includeLastMessage {
		if conv.LastMessage != "" {
			if msg, err := s.getMessage(ctx, conv.LastMessage); err == nil {
				view.LastMessageRecord = msg
			}
		}
		if view.LastReadMessage != "" {
			if msg, err := s.getMessage(ctx, view.LastReadMessage); err == nil {
				view.LastReadMessageRecord = msg
			}
		}
	}
	return view, nil
}
