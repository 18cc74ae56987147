package handlers

import (
	"net/http"

	"chatd/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterReceipts registers receipt and unread-count routes to the
// provided router.
func RegisterReceipts(r *mux.Router) {
	r.HandleFunc("/receipts/delivered", markDelivered).Methods(http.MethodPost)
	r.HandleFunc("/receipts/read", markRead).Methods(http.MethodPost)
	r.HandleFunc("/receipts/read_range", markReadRange).Methods(http.MethodPost)
	r.HandleFunc("/unread", getTotalUnread).Methods(http.MethodGet)
}

type receiptRequest struct {
	MessageIDs []string `json:"message_ids"`
}

func markDelivered(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := svc.MarkDelivered(r.Context(), callerFrom(r), req.MessageIDs); err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func markRead(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := svc.MarkRead(r.Context(), callerFrom(r), req.MessageIDs); err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readRangeRequest struct {
	FromMessageID string `json:"from_message_id,omitempty"`
	ToMessageID   string `json:"to_message_id"`
}

// markReadRange handles POST /receipts/read_range: marks every non-deleted
// message up to to_message_id as read, optionally starting from
// from_message_id. Both endpoints must live in the same conversation.
func markReadRange(w http.ResponseWriter, r *http.Request) {
	var req readRangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := svc.MarkReadByRange(r.Context(), callerFrom(r), req.FromMessageID, req.ToMessageID); err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func getTotalUnread(w http.ResponseWriter, r *http.Request) {
	total, err := svc.GetTotalUnread(r.Context(), callerFrom(r))
	if err != nil {
		utils.WriteErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, total)
}
