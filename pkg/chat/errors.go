package chat

import "chatd/pkg/chaterr"

func errNotInConversation() *chaterr.Error {
	return chaterr.PermissionDenied("user is not in the conversation, permission denied")
}

func errNotAdmin() *chaterr.Error {
	return chaterr.PermissionDenied("user is not an admin, permission denied")
}

func errConversationNotFound() *chaterr.Error {
	return chaterr.NotFound("conversation not found")
}

func errMessageNotFound() *chaterr.Error {
	return chaterr.NotFound("message not found")
}

func errAlreadyDeleted() *chaterr.Error {
	return chaterr.Conflict("message is already deleted")
}

func errConversationExists(conversationID string) *chaterr.Error {
	return chaterr.Conflict("conversation with the participants already exists").
		WithInfo("conversation_id", conversationID)
}
