package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatd/pkg/auth"
	"chatd/pkg/chat"
	"chatd/pkg/pubsub"
	"chatd/pkg/store"
)

const signingKey = "test-signing-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	svc := chat.New(st, pubsub.NewMemoryHub())
	sec := auth.SecConfig{
		BackendKeys:  map[string]struct{}{"backend-key": {}},
		FrontendKeys: map[string]struct{}{"frontend-key": {}},
		SigningKeys:  map[string]struct{}{signingKey: {}},
		RPS:          1000,
		Burst:        1000,
	}
	srv := httptest.NewServer(Handler(svc, sec))
	t.Cleanup(srv.Close)
	return srv
}

// do issues a signed frontend request acting as the given user.
func do(t *testing.T, srv *httptest.Server, method, path, user string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-API-Key", "frontend-key")
	req.Header.Set("X-User-ID", user)
	req.Header.Set("X-User-Signature", auth.SignUserID(signingKey, user))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	out, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsUnauthenticated(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestConversationAndMessageFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/v1/conversations", "alice", map[string]interface{}{
		"participants": []string{"alice", "bob"},
		"title":        "pair",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation: %d %s", resp.StatusCode, body)
	}
	var conv struct {
		ID       string   `json:"id"`
		AdminIDs []string `json:"admin_ids"`
	}
	if err := json.Unmarshal(body, &conv); err != nil || conv.ID == "" {
		t.Fatalf("decode conversation: %v %s", err, body)
	}
	if len(conv.AdminIDs) != 1 || conv.AdminIDs[0] != "alice" {
		t.Fatalf("unexpected admins: %v", conv.AdminIDs)
	}

	resp, body = do(t, srv, http.MethodPost, "/v1/messages", "alice", map[string]interface{}{
		"conversation_id": conv.ID,
		"body":            "hello bob",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send message: %d %s", resp.StatusCode, body)
	}
	var msg struct {
		ID  string `json:"id"`
		Seq int64  `json:"seq"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.ID == "" {
		t.Fatalf("decode message: %v %s", err, body)
	}
	if msg.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", msg.Seq)
	}

	// bob sees one unread conversation
	resp, body = do(t, srv, http.MethodGet, "/v1/unread", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unread: %d %s", resp.StatusCode, body)
	}
	var unread struct {
		Conversation int `json:"conversation"`
		Message      int `json:"message"`
	}
	if err := json.Unmarshal(body, &unread); err != nil {
		t.Fatalf("decode unread: %v", err)
	}
	if unread.Conversation != 1 || unread.Message != 1 {
		t.Fatalf("unexpected unread: %+v", unread)
	}

	// bob reads it
	resp, body = do(t, srv, http.MethodPost, "/v1/receipts/read", "bob", map[string]interface{}{
		"message_ids": []string{msg.ID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, srv, http.MethodGet, "/v1/unread", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unread after read: %d", resp.StatusCode)
	}
	_ = json.Unmarshal(body, &unread)
	if unread.Message != 0 {
		t.Fatalf("expected zero unread after reading, got %+v", unread)
	}

	// message listing with the receipt applied
	resp, body = do(t, srv, http.MethodGet, fmt.Sprintf("/v1/conversations/%s/messages", conv.ID), "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages: %d %s", resp.StatusCode, body)
	}
	var list struct {
		Results []struct {
			ID     string `json:"id"`
			Status string `json:"message_status"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Results) != 1 || list.Results[0].Status != "all_read" {
		t.Fatalf("expected one all_read message, got %+v", list.Results)
	}

	// receipts endpoint
	resp, body = do(t, srv, http.MethodGet, fmt.Sprintf("/v1/messages/%s/receipts", msg.ID), "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get receipts: %d %s", resp.StatusCode, body)
	}
	var receipts struct {
		Receipts []struct {
			UserID string `json:"user_id"`
			ReadTS int64  `json:"read_ts"`
		} `json:"receipts"`
	}
	if err := json.Unmarshal(body, &receipts); err != nil {
		t.Fatalf("decode receipts: %v", err)
	}
	if len(receipts.Receipts) != 1 || receipts.Receipts[0].UserID != "bob" || receipts.Receipts[0].ReadTS == 0 {
		t.Fatalf("unexpected receipts: %+v", receipts.Receipts)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/v1/conversations", "alice", map[string]interface{}{
		"participants": []string{"bob"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", resp.StatusCode, body)
	}
	var payload struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Kind != "invalid_argument" {
		t.Fatalf("expected invalid_argument kind, got %s", body)
	}

	resp, _ = do(t, srv, http.MethodGet, "/v1/conversations/no-such-id", "alice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	// membership is enforced at the service layer
	resp, bodyOK := do(t, srv, http.MethodPost, "/v1/conversations", "alice", map[string]interface{}{
		"participants": []string{"alice", "bob"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	var conv struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(bodyOK, &conv)
	resp, body = do(t, srv, http.MethodGet, "/v1/conversations/"+conv.ID, "mallory", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", resp.StatusCode, body)
	}

	// malformed body
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/messages", bytes.NewReader([]byte("{nope")))
	req.Header.Set("X-API-Key", "frontend-key")
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", auth.SignUserID(signingKey, "alice"))
	raw, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", raw.StatusCode)
	}
}

func TestTypingEndpoint(t *testing.T) {
	srv := newTestServer(t)
	_, body := do(t, srv, http.MethodPost, "/v1/conversations", "alice", map[string]interface{}{
		"participants": []string{"alice", "bob"},
	})
	var conv struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &conv)

	resp, body := do(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/typing", "alice", map[string]interface{}{
		"event": "begin",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("typing: %d %s", resp.StatusCode, body)
	}
	resp, _ = do(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/typing", "alice", map[string]interface{}{
		"event": "yelling",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown typing event, got %d", resp.StatusCode)
	}
}
