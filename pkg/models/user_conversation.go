package models

// UserConversation is the per-(user, conversation) membership record: the
// user's materialized view of membership plus personal unread state. Its
// id is derived deterministically from (conversation, user) so there is at
// most one record per pair even under concurrent creation.
type UserConversation struct {
	ID           string `json:"id"`
	User         string `json:"user"`
	Conversation string `json:"conversation"`
	UnreadCount  int    `json:"unread_count"`
	// LastReadMessage references the highest-seq message the user has
	// read; advances monotonically, repointed only on message deletion.
	LastReadMessage string `json:"last_read_message,omitempty"`
	IsAdmin         bool   `json:"is_admin"`
	CreatedTS       int64  `json:"created_ts,omitempty"`
	UpdatedTS       int64  `json:"updated_ts,omitempty"`
}

func (uc *UserConversation) RecordType() string { return TypeUserConversation }
func (uc *UserConversation) RecordID() string   { return uc.ID }
func (uc *UserConversation) OwnerID() string    { return uc.User }
