package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestSigner(secret string) *Signer {
	s := NewSigner(Credential{Key: "ak", Secret: secret})
	s.now = fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return s
}

func signedRequest(t *testing.T, s *Signer, target string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if err := s.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return req
}

func TestSignerDeterministic(t *testing.T) {
	s := newTestSigner("sk")
	a := signedRequest(t, s, "https://api.lingyun.example/v1/chat/model-a?b=2&a=1")
	b := signedRequest(t, s, "https://api.lingyun.example/v1/chat/model-a?b=2&a=1")

	if got, want := a.Header.Get("Authorization"), b.Header.Get("Authorization"); got != want {
		t.Errorf("identical inputs produced different signatures:\n%s\n%s", got, want)
	}
	if got, want := a.Header.Get(DateHeader), "2024-03-01T12:00:00Z"; got != want {
		t.Errorf("date header = %q, want %q", got, want)
	}
}

func TestSignerAuthorizationShape(t *testing.T) {
	s := newTestSigner("sk")
	req := signedRequest(t, s, "https://api.lingyun.example/v1/chat/model-a")

	authz := req.Header.Get("Authorization")
	parts := strings.Split(authz, "/")
	if len(parts) != 6 {
		t.Fatalf("Authorization has %d segments, want 6: %q", len(parts), authz)
	}
	if parts[0] != "ly-auth-v1" {
		t.Errorf("scheme = %q, want ly-auth-v1", parts[0])
	}
	if parts[1] != "ak" {
		t.Errorf("access key segment = %q, want ak", parts[1])
	}
	if parts[2] != "2024-03-01T12:00:00Z" {
		t.Errorf("timestamp segment = %q", parts[2])
	}
	if parts[3] != "1800" {
		t.Errorf("expire segment = %q, want 1800", parts[3])
	}
	if !strings.Contains(parts[4], "host") || !strings.Contains(parts[4], DateHeader) {
		t.Errorf("signed headers %q missing host or date", parts[4])
	}
	if len(parts[5]) != 64 {
		t.Errorf("signature length = %d, want 64 hex chars", len(parts[5]))
	}
}

func TestSignerSecretChangesSignature(t *testing.T) {
	a := signedRequest(t, newTestSigner("sk-one"), "https://api.lingyun.example/v1/chat/m")
	b := signedRequest(t, newTestSigner("sk-two"), "https://api.lingyun.example/v1/chat/m")
	if a.Header.Get("Authorization") == b.Header.Get("Authorization") {
		t.Error("different secrets produced identical signatures")
	}
}

func TestSignerIgnoresUnsignedHeaders(t *testing.T) {
	s := newTestSigner("sk")
	plain := signedRequest(t, s, "https://api.lingyun.example/v1/chat/m")

	req, _ := http.NewRequest(http.MethodPost, "https://api.lingyun.example/v1/chat/m", nil)
	req.Header.Set("User-Agent", "something-else")
	req.Header.Set("Content-Type", "application/json")
	if err := s.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if plain.Header.Get("Authorization") != req.Header.Get("Authorization") {
		t.Error("non x-ly- headers changed the signature")
	}
}

func TestSignerIncludesCustomHeaders(t *testing.T) {
	s := newTestSigner("sk")
	plain := signedRequest(t, s, "https://api.lingyun.example/v1/chat/m")

	req, _ := http.NewRequest(http.MethodPost, "https://api.lingyun.example/v1/chat/m", nil)
	req.Header.Set("x-ly-session", "abc")
	if err := s.Apply(context.Background(), req); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if plain.Header.Get("Authorization") == req.Header.Get("Authorization") {
		t.Error("x-ly- header did not change the signature")
	}
	if !strings.Contains(req.Header.Get("Authorization"), "x-ly-session") {
		t.Error("x-ly-session missing from signed headers list")
	}
}

func TestCanonicalizeQuerySortsAndEncodes(t *testing.T) {
	got := canonicalizeQuery(map[string][]string{
		"b":   {"2"},
		"a":   {"1"},
		"key": {"a b/c"},
	})
	want := "a=1&b=2&key=a%20b%2Fc"
	if got != want {
		t.Errorf("canonicalizeQuery = %q, want %q", got, want)
	}
}

func TestURIEncode(t *testing.T) {
	tests := []struct {
		in        string
		keepSlash bool
		want      string
	}{
		{"abc-_.~123", false, "abc-_.~123"},
		{"a b", false, "a%20b"},
		{"/v1/chat/model", true, "/v1/chat/model"},
		{"/v1/chat/model", false, "%2Fv1%2Fchat%2Fmodel"},
		{"中", false, "%E4%B8%AD"},
	}
	for _, tt := range tests {
		if got := uriEncode(tt.in, tt.keepSlash); got != tt.want {
			t.Errorf("uriEncode(%q, %v) = %q, want %q", tt.in, tt.keepSlash, got, tt.want)
		}
	}
}
