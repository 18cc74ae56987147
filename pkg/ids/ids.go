package ids

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// New returns a fresh random record id.
func New() string {
	return uuid.NewString()
}

// consistent derives a stable UUID from a seed string: the first 16 bytes
// of SHA-256(seed) interpreted as a raw UUID. Clients depend on this exact
// derivation for idempotent upserts, so the seed layout must not change.
func consistent(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	u, _ := uuid.FromBytes(sum[:16])
	return u.String()
}

// Membership returns the deterministic user_conversation record id for a
// (conversation, user) pair. Seed order is conversation then user.
func Membership(conversationID, userID string) string {
	return consistent(conversationID + userID)
}

// Receipt returns the deterministic receipt record id for a
// (user, message) pair. Seed order is message then user.
func Receipt(userID, messageID string) string {
	return consistent(messageID + userID)
}

// ParticipantRole is the host-side role name granting participant access
// to a conversation.
func ParticipantRole(conversationID string) string {
	return fmt.Sprintf("conversation-participant-%s", conversationID)
}

// AdminRole is the host-side role name granting admin access to a
// conversation.
func AdminRole(conversationID string) string {
	return fmt.Sprintf("conversation-admin-%s", conversationID)
}
