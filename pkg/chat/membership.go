package chat

import (
	"context"
	"errors"
	"strings"

	"chatd/pkg/ids"
	"chatd/pkg/models"
	"chatd/pkg/store"
)

// userConversation fetches the membership record for a (conversation,
// user) pair via its deterministic id. Returns (nil, nil) when the user
// is not a member.
func (s *Service) userConversation(ctx context.Context, conversationID, userID string) (*models.UserConversation, error) {
	var uc models.UserConversation
	err := s.store.Get(ctx, models.TypeUserConversation, ids.Membership(conversationID, userID), &uc)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// IsParticipant reports whether the user holds a membership record for
// the conversation.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	uc, err := s.userConversation(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}
	return uc != nil, nil
}

// IsAdmin reports whether the user is an admin of the conversation.
func (s *Service) IsAdmin(ctx context.Context, conversationID, userID string) (bool, error) {
	uc, err := s.userConversation(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}
	return uc != nil && uc.IsAdmin, nil
}

// requireParticipant rejects callers without a membership record. Master
// callers pass.
func (s *Service) requireParticipant(ctx context.Context, caller Caller, conversationID string) error {
	if caller.Master {
		return nil
	}
	ok, err := s.IsParticipant(ctx, conversationID, caller.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return errNotInConversation()
	}
	return nil
}

// requireAdmin rejects callers without the admin flag. Master callers
// pass.
func (s *Service) requireAdmin(ctx context.Context, caller Caller, conversationID string) error {
	if caller.Master {
		return nil
	}
	uc, err := s.userConversation(ctx, conversationID, caller.UserID)
	if err != nil {
		return err
	}
	if uc == nil {
		return errNotInConversation()
	}
	if !uc.IsAdmin {
		return errNotAdmin()
	}
	return nil
}

// normalizeUserIDs strips the host's "user/" ref prefix, trims, and
// deduplicates while preserving order.
func normalizeUserIDs(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(strings.TrimPrefix(id, "user/"))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// union appends ids from b that are not already in a, preserving order.
func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, id := range b {
		if !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// subtract removes every id in b from a.
func subtract(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, id := range a {
		if !contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}
