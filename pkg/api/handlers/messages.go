package handlers

import (
	"net/http"
	"strconv"

	"chatd/pkg/chat"
	"chatd/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterMessages registers all message-related HTTP routes to the
// provided router.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", editMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/receipts", getReceipts).Methods(http.MethodGet)
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	var req chat.SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := svc.SendMessage(r.Context(), callerFrom(r), req)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, msg)
}

func editMessage(w http.ResponseWriter, r *http.Request) {
	var req chat.EditMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := svc.EditMessage(r.Context(), callerFrom(r), mux.Vars(r)["id"], req)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, msg)
}

// deleteMessage handles DELETE /messages/{id}. Deletion is soft: the
// record survives as a tombstone and counts for the conversation are
// repaired.
func deleteMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := svc.DeleteMessage(r.Context(), callerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, msg)
}

func getReceipts(w http.ResponseWriter, r *http.Request) {
	views, err := svc.GetReceipts(r.Context(), callerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Receipts []chat.ReceiptView `json:"receipts"`
	}{Receipts: views})
}

// listMessages handles GET /conversations/{id}/messages. Filters are
// either time based (before_time/after_time) or id based
// (before_message_id/after_message_id), never both.
func listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := chat.GetMessagesOptions{
		BeforeMessageID: q.Get("before_message_id"),
		AfterMessageID:  q.Get("after_message_id"),
		Order:           q.Get("order"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	var err error
	if opts.BeforeTime, err = int64Param(q.Get("before_time")); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid before_time")
		return
	}
	if opts.AfterTime, err = int64Param(q.Get("after_time")); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid after_time")
		return
	}
	list, err := svc.GetMessages(r.Context(), callerFrom(r), mux.Vars(r)["id"], opts)
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, list)
}

func int64Param(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
