package handlers

import (
	"encoding/json"
	"net/http"

	"chatd/pkg/auth"
	"chatd/pkg/chat"
	"chatd/pkg/utils"
)

var svc *chat.Service

// SetService wires the chat service used by all handlers. Call once at
// startup before registering routes.
func SetService(s *chat.Service) { svc = s }

// callerFrom resolves the chat.Caller for a request from the identity the
// auth middleware stored in the context. Backend-key requests act as master.
func callerFrom(r *http.Request) chat.Caller {
	id := auth.IdentityFromContext(r.Context())
	return chat.Caller{UserID: id.UserID, Master: id.Role == auth.RoleBackend}
}

// decodeBody decodes the JSON request body into v and writes a 400 on
// failure. Returns false when the response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
