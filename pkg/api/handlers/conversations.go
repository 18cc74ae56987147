package handlers

import (
	"net/http"
	"strconv"
	"time"

	"chatd/pkg/chat"
	"chatd/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterConversations registers all conversation-related HTTP routes to
// the provided router.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)

	r.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", retireConversation).Methods(http.MethodDelete)

	r.HandleFunc("/conversations/{id}/participants", addParticipants).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/participants", removeParticipants).Methods(http.MethodDelete)
	r.HandleFunc("/conversations/{id}/admins", grantAdmins).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/admins", revokeAdmins).Methods(http.MethodDelete)
	r.HandleFunc("/conversations/{id}/leave", leaveConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/typing", publishTyping).Methods(http.MethodPost)

	r.HandleFunc("/conversations/{id}/messages", listMessages).Methods(http.MethodGet)
}

// createConversation handles POST /conversations. The body carries the
// participant list, optional admins, title, metadata and the
// distinct_by_participants flag.
func createConversation(w http.ResponseWriter, r *http.Request) {
	var req chat.CreateConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := svc.CreateConversation(r.Context(), callerFrom(r), req)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, view)
}

// listConversations handles GET /conversations for the calling user.
// Query parameters: page, page_size, order, include_last_message.
func listConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	views, err := svc.ListConversations(r.Context(), callerFrom(r), page, pageSize, q.Get("order"), boolParam(q.Get("include_last_message")))
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Results []*chat.ConversationView `json:"results"`
	}{Results: views})
}

func getConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, err := svc.GetConversation(r.Context(), callerFrom(r), id, boolParam(r.URL.Query().Get("include_last_message")))
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, view)
}

// retireConversation handles DELETE /conversations/{id}: every member is
// removed and the conversation record is left behind empty. Admin only.
func retireConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := svc.RetireConversation(r.Context(), callerFrom(r), id); err != nil {
		utils.WriteErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type memberRequest struct {
	UserIDs []string `json:"user_ids"`
}

func addParticipants(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := svc.AddParticipants(r.Context(), callerFrom(r), mux.Vars(r)["id"], req.UserIDs)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, view)
}

func removeParticipants(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := svc.RemoveParticipants(r.Context(), callerFrom(r), mux.Vars(r)["id"], req.UserIDs)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, view)
}

func grantAdmins(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := svc.SetAdmins(r.Context(), callerFrom(r), mux.Vars(r)["id"], req.UserIDs, true)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, view)
}

func revokeAdmins(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := svc.SetAdmins(r.Context(), callerFrom(r), mux.Vars(r)["id"], req.UserIDs, false)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, view)
}

func leaveConversation(w http.ResponseWriter, r *http.Request) {
	if err := svc.LeaveConversation(r.Context(), callerFrom(r), mux.Vars(r)["id"]); err != nil {
		utils.WriteErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type typingRequest struct {
	Event string `json:"event"`
	At    string `json:"at,omitempty"` // RFC3339; defaults to now
}

// publishTyping handles POST /conversations/{id}/typing. Typing events are
// fan-out only and never stored.
func publishTyping(w http.ResponseWriter, r *http.Request) {
	var req typingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	at := time.Now().UTC()
	if req.At != "" {
		t, err := time.Parse(time.RFC3339Nano, req.At)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid at timestamp")
			return
		}
		at = t.UTC()
	}
	if err := svc.PublishTyping(r.Context(), callerFrom(r), mux.Vars(r)["id"], req.Event, at); err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func boolParam(v string) bool {
	return v == "1" || v == "true" || v == "yes"
}
