package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testSec() SecConfig {
	return SecConfig{
		BackendKeys:  map[string]struct{}{"backend-key": {}},
		FrontendKeys: map[string]struct{}{"frontend-key": {}},
		SigningKeys:  map[string]struct{}{"signing-key": {}},
		RPS:          1000,
		Burst:        1000,
	}
}

func runRequest(t *testing.T, cfg SecConfig, mutate func(*http.Request)) (*httptest.ResponseRecorder, Identity) {
	t.Helper()
	var got Identity
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/unread", nil)
	mutate(req)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, got
}

func TestHealthzSkipsAuth(t *testing.T) {
	h := Middleware(testSec())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz should pass without a key, got %d", rr.Code)
	}
}

func TestMissingAPIKeyRejected(t *testing.T) {
	rr, _ := runRequest(t, testSec(), func(r *http.Request) {})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestUnknownAPIKeyRejected(t *testing.T) {
	rr, _ := runRequest(t, testSec(), func(r *http.Request) {
		r.Header.Set("X-API-Key", "who-dis")
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestFrontendRequiresSignedUser(t *testing.T) {
	// no user headers at all
	rr, _ := runRequest(t, testSec(), func(r *http.Request) {
		r.Header.Set("X-API-Key", "frontend-key")
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user headers, got %d", rr.Code)
	}
	// bad signature
	rr, _ = runRequest(t, testSec(), func(r *http.Request) {
		r.Header.Set("X-API-Key", "frontend-key")
		r.Header.Set("X-User-ID", "alice")
		r.Header.Set("X-User-Signature", "deadbeef")
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad signature, got %d", rr.Code)
	}
	// valid signature
	rr, id := runRequest(t, testSec(), func(r *http.Request) {
		r.Header.Set("X-API-Key", "frontend-key")
		r.Header.Set("X-User-ID", "alice")
		r.Header.Set("X-User-Signature", SignUserID("signing-key", "alice"))
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if id.UserID != "alice" || id.Role != RoleFrontend {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestBackendMayImpersonateUnsigned(t *testing.T) {
	rr, id := runRequest(t, testSec(), func(r *http.Request) {
		r.Header.Set("X-API-Key", "backend-key")
		r.Header.Set("X-User-ID", "alice")
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if id.UserID != "alice" || id.Role != RoleBackend {
		t.Fatalf("unexpected identity: %+v", id)
	}
	// a backend caller without a user id is still valid (master-only ops)
	rr, id = runRequest(t, testSec(), func(r *http.Request) {
		r.Header.Set("X-API-Key", "backend-key")
	})
	if rr.Code != http.StatusOK || id.Role != RoleBackend {
		t.Fatalf("expected backend identity, got %d %+v", rr.Code, id)
	}
}

func TestBearerTokenResolvesKey(t *testing.T) {
	rr, id := runRequest(t, testSec(), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer backend-key")
		r.Header.Set("X-User-ID", "alice")
	})
	if rr.Code != http.StatusOK || id.Role != RoleBackend {
		t.Fatalf("bearer key should authenticate, got %d %+v", rr.Code, id)
	}
}

func TestRateLimitKicksIn(t *testing.T) {
	cfg := testSec()
	cfg.RPS = 1
	cfg.Burst = 2
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	limited := false
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/unread", nil)
		req.Header.Set("X-API-Key", "backend-key")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatalf("expected the burst to exhaust within 5 requests")
	}
}

func TestSignUserIDMatchesVerifier(t *testing.T) {
	sig := SignUserID("signing-key", "bob")
	if !verifySignature("bob", sig, map[string]struct{}{"signing-key": {}}) {
		t.Fatalf("signature should verify")
	}
	if verifySignature("bob", sig, map[string]struct{}{"other": {}}) {
		t.Fatalf("signature must not verify under a different key")
	}
}
