package models

// Record type names as stored in the record store.
const (
	TypeConversation     = "conversation"
	TypeUserConversation = "user_conversation"
	TypeMessage          = "message"
	TypeMessageHistory   = "message_history"
	TypeReceipt          = "receipt"
	TypeUserChannel      = "user_channel"
)

type Conversation struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Title string `json:"title,omitempty"`
	// Metadata is opaque client JSON; the server never interprets it.
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
	DistinctByParticipants bool                   `json:"distinct_by_participants"`
	ParticipantIDs         []string               `json:"participant_ids"`
	AdminIDs               []string               `json:"admin_ids"`
	ParticipantCount       int                    `json:"participant_count"`
	// LastMessage references the newest non-deleted message, empty when the
	// conversation has none.
	LastMessage string `json:"last_message,omitempty"`
	CreatedTS   int64  `json:"created_ts,omitempty"`
	UpdatedTS   int64  `json:"updated_ts,omitempty"`
}

func (c *Conversation) RecordType() string { return TypeConversation }
func (c *Conversation) RecordID() string   { return c.ID }
func (c *Conversation) OwnerID() string    { return c.Owner }

// HasParticipant reports membership against the canonical participant list.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasAdmin reports admin membership against the canonical admin list.
func (c *Conversation) HasAdmin(userID string) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// UserChannel maps a user to the private pubsub channel their clients
// subscribe on. Provisioned by the host platform, read-only here.
type UserChannel struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (u *UserChannel) RecordType() string { return TypeUserChannel }
func (u *UserChannel) RecordID() string   { return u.ID }
func (u *UserChannel) OwnerID() string    { return u.Owner }
