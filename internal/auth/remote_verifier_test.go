package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRemoteVerifierAcceptsActiveToken(t *testing.T) {
	var gotToken, gotHint, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotToken = r.PostFormValue("token")
		gotHint = r.PostFormValue("token_type_hint")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"active": true,
			"sub":    "user-7",
			"email":  "ops@example.com",
			"exp":    time.Now().Add(time.Hour).Unix(),
		})
	}))
	t.Cleanup(srv.Close)

	verifier, err := NewRemoteVerifier(RemoteVerifierConfig{
		IntrospectURL: srv.URL,
		ClientID:      "veritas",
		ClientSecret:  "client-secret",
	})
	if err != nil {
		t.Fatalf("NewRemoteVerifier returned error: %v", err)
	}
	identity, err := verifier.Verify(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.Subject != "user-7" {
		t.Fatalf("subject = %q, want user-7", identity.Subject)
	}
	if identity.Email != "ops@example.com" {
		t.Fatalf("email = %q, want ops@example.com", identity.Email)
	}
	if identity.ExpiresAt.IsZero() {
		t.Fatal("expected expiry to be populated")
	}
	if gotToken != "opaque-token" {
		t.Fatalf("posted token = %q, want opaque-token", gotToken)
	}
	if gotHint != "access_token" {
		t.Fatalf("token_type_hint = %q, want access_token", gotHint)
	}
	if gotAuth == "" {
		t.Fatal("expected basic auth header")
	}
}

func TestRemoteVerifierFallsBackToUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"active":   true,
			"username": "svc-backup",
		})
	}))
	t.Cleanup(srv.Close)

	verifier, err := NewRemoteVerifier(RemoteVerifierConfig{IntrospectURL: srv.URL})
	if err != nil {
		t.Fatalf("NewRemoteVerifier returned error: %v", err)
	}
	identity, err := verifier.Verify(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.Subject != "svc-backup" {
		t.Fatalf("subject = %q, want svc-backup", identity.Subject)
	}
	if !identity.ExpiresAt.IsZero() {
		t.Fatalf("expected zero expiry, got %v", identity.ExpiresAt)
	}
}

func TestRemoteVerifierRejections(t *testing.T) {
	cases := []struct {
		name         string
		handler      http.HandlerFunc
		wantRejected bool
	}{
		{
			name: "Inactive",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"active": false})
			},
			wantRejected: true,
		},
		{
			name: "MissingSubject",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"active": true})
			},
			wantRejected: true,
		},
		{
			name: "AlreadyExpired",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"active": true,
					"sub":    "user-1",
					"exp":    time.Now().Add(-time.Hour).Unix(),
				})
			},
			wantRejected: true,
		},
		{
			name: "ServerError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "introspection unavailable", http.StatusInternalServerError)
			},
		},
		{
			name: "MalformedBody",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			t.Cleanup(srv.Close)
			verifier, err := NewRemoteVerifier(RemoteVerifierConfig{IntrospectURL: srv.URL})
			if err != nil {
				t.Fatalf("NewRemoteVerifier returned error: %v", err)
			}
			_, err = verifier.Verify(context.Background(), "opaque-token")
			if err == nil {
				t.Fatal("expected verification error")
			}
			if tc.wantRejected && !errors.Is(err, ErrTokenRejected) {
				t.Fatalf("error = %v, want ErrTokenRejected", err)
			}
		})
	}
}

func TestRemoteVerifierSurfacesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	verifier, err := NewRemoteVerifier(RemoteVerifierConfig{IntrospectURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRemoteVerifier returned error: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), "opaque-token"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestNewRemoteVerifierRequiresURL(t *testing.T) {
	if _, err := NewRemoteVerifier(RemoteVerifierConfig{}); err == nil {
		t.Fatal("expected error for missing url")
	}
}
