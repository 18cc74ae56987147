package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"chatd/pkg/ids"
	"chatd/pkg/models"
	"chatd/pkg/pubsub"
	"chatd/pkg/store"
)

// Caller identifies the authenticated requester of an operation. Master
// callers (backend services holding the master key) bypass membership
// checks the way the host's master-key context does.
type Caller struct {
	UserID string
	Master bool
}

// Service implements the chat subsystem on top of an injected record
// store and pubsub hub. It owns no storage engine and no background work;
// every operation runs synchronously within one request.
type Service struct {
	store store.RecordStore
	hub   pubsub.Hub
	locks keyedMutex
	now   func() time.Time
}

// New constructs a Service over the given collaborators.
func New(st store.RecordStore, hub pubsub.Hub) *Service {
	return &Service{
		store: st,
		hub:   hub,
		locks: keyedMutex{locks: map[string]*sync.Mutex{}},
		now:   time.Now,
	}
}

func (s *Service) nowTS() int64 {
	return s.now().UTC().UnixNano()
}

// getConversation fetches a conversation or a NotFound error.
func (s *Service) getConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.store.Get(ctx, models.TypeConversation, id, &conv)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errConversationNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// getMessage fetches a message or a NotFound error.
func (s *Service) getMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.store.Get(ctx, models.TypeMessage, id, &msg)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errMessageNotFound()
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// updateMembership applies mutate to the (conversation, user) membership
// record under its pair lock and saves it if mutate reports a change.
// The lock is the single-writer point for unread_count and
// last_read_message, so concurrent batches cannot interleave their
// read-modify-write cycles. A missing record is skipped: the user left
// the conversation while the operation was in flight.
func (s *Service) updateMembership(ctx context.Context, conversationID, userID string, mutate func(*models.UserConversation) bool) error {
	unlock := s.locks.lock(conversationID + "|" + userID)
	defer unlock()
	return s.updateMembershipLocked(ctx, conversationID, userID, mutate)
}

// updateMembershipLocked is updateMembership for callers that already
// hold the (conversation, user) pair lock.
func (s *Service) updateMembershipLocked(ctx context.Context, conversationID, userID string, mutate func(*models.UserConversation) bool) error {
	uc, err := s.userConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if uc == nil {
		return nil
	}
	if !mutate(uc) {
		return nil
	}
	uc.UpdatedTS = s.nowTS()
	return s.store.Save(ctx, uc)
}

// keyedMutex hands out one mutex per key. Entries are retained for the
// process lifetime; the key space is bounded by active
// (conversation, user) pairs.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// membershipRecord builds a fresh UserConversation for a participant.
func membershipRecord(conversationID, userID string, isAdmin bool, ts int64) *models.UserConversation {
	return &models.UserConversation{
		ID:           ids.Membership(conversationID, userID),
		User:         userID,
		Conversation: conversationID,
		IsAdmin:      isAdmin,
		CreatedTS:    ts,
		UpdatedTS:    ts,
	}
}
