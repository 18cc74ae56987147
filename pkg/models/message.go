package models

// MessageStatus is the cached aggregate of a message's read receipts.
type MessageStatus string

const (
	StatusDelivered MessageStatus = "delivered"
	StatusSomeRead  MessageStatus = "some_read"
	StatusAllRead   MessageStatus = "all_read"
)

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	// Owner is the sender; it never changes, even across edits.
	Owner string `json:"owner"`
	Body  string `json:"body,omitempty"`
	// Attachment is an opaque asset reference signed by the host on read.
	Attachment string                 `json:"attachment,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	// Seq is strictly increasing within a conversation, assigned once at
	// send time.
	Seq      int64         `json:"seq"`
	Revision int           `json:"revision"`
	Deleted  bool          `json:"deleted"`
	Status   MessageStatus `json:"message_status"`
	EditedBy string        `json:"edited_by,omitempty"`
	EditedTS int64         `json:"edited_ts,omitempty"`
	CreatedTS int64        `json:"created_ts,omitempty"`
}

func (m *Message) RecordType() string { return TypeMessage }
func (m *Message) RecordID() string   { return m.ID }
func (m *Message) OwnerID() string    { return m.Owner }

// MessageHistory is an immutable snapshot of a message's state prior to an
// edit. Parent points back at the live message.
type MessageHistory struct {
	ID           string                 `json:"id"`
	Parent       string                 `json:"parent"`
	Conversation string                 `json:"conversation"`
	Owner        string                 `json:"owner"`
	Body         string                 `json:"body,omitempty"`
	Attachment   string                 `json:"attachment,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Status       MessageStatus          `json:"message_status,omitempty"`
	Revision     int                    `json:"revision"`
	SavedTS      int64                  `json:"saved_ts,omitempty"`
}

func (h *MessageHistory) RecordType() string { return TypeMessageHistory }
func (h *MessageHistory) RecordID() string   { return h.ID }
func (h *MessageHistory) OwnerID() string    { return h.Owner }

// Snapshot captures the editable state of m into a new history record.
func Snapshot(m *Message, historyID string, ts int64) *MessageHistory {
	return &MessageHistory{
		ID:           historyID,
		Parent:       m.ID,
		Conversation: m.Conversation,
		Owner:        m.Owner,
		Body:         m.Body,
		Attachment:   m.Attachment,
		Metadata:     m.Metadata,
		Status:       m.Status,
		Revision:     m.Revision,
		SavedTS:      ts,
	}
}
