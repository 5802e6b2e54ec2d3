package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner("test-secret", "deepguard", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestIssueVerify(t *testing.T) {
	s := newTestSigner(t)

	raw, issued, err := s.Issue("dashboard")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := s.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "dashboard" || claims.TokenID != issued.TokenID {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("expiry = %v, want %v", claims.ExpiresAt, issued.ExpiresAt)
	}
}

func TestVerify_Rejects(t *testing.T) {
	s := newTestSigner(t)
	valid, _, err := s.Issue("ci")
	if err != nil {
		t.Fatal(err)
	}

	other, _ := NewSigner("other-secret", "deepguard", time.Hour)
	forged, _, _ := other.Issue("ci")

	wrongIssuer, _ := NewSigner("test-secret", "someone-else", time.Hour)
	foreign, _, _ := wrongIssuer.Issue("ci")

	expiring, _ := NewSigner("test-secret", "deepguard", time.Minute)
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := expiring.Issue("ci")

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-token"},
		{"truncated", valid[:len(valid)-4]},
		{"wrong secret", forged},
		{"wrong issuer", foreign},
		{"expired", expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(tt.raw); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	if _, err := NewSigner("", "deepguard", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestSigner(t)
	token, _, _ := s.Issue("dashboard")

	var seen string
	h := Middleware(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if ok {
			seen = claims.Subject
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"detail"`) {
				t.Errorf("expected detail body, got %s", rec.Body.String())
			}
		})
	}

	if seen != "dashboard" {
		t.Errorf("claims not propagated, got subject %q", seen)
	}
}
