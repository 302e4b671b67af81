package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteVerifierConfig configures delegation to an external identity
// provider.
type RemoteVerifierConfig struct {
	// IntrospectURL receives RFC 7662 style form posts carrying the
	// candidate token.
	IntrospectURL string
	// ClientID and ClientSecret are sent as basic auth when set.
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Client       *http.Client
	Clock        func() time.Time
}

// RemoteVerifier asks an external identity provider whether a bearer token is
// active. Transport failures, non-success statuses, and inactive results all
// surface as errors so callers can treat them uniformly as rejections.
type RemoteVerifier struct {
	url          string
	clientID     string
	clientSecret string
	client       *http.Client
	now          func() time.Time
}

type introspectionReply struct {
	Active    bool   `json:"active"`
	Subject   string `json:"sub"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"exp"`
}

// NewRemoteVerifier constructs a verifier for the provided configuration.
func NewRemoteVerifier(cfg RemoteVerifierConfig) (*RemoteVerifier, error) {
	endpoint := strings.TrimSpace(cfg.IntrospectURL)
	if endpoint == "" {
		return nil, errors.New("introspection url is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse introspection url: %w", err)
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	verifier := &RemoteVerifier{
		url:          endpoint,
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: cfg.ClientSecret,
		client:       client,
		now:          cfg.Clock,
	}
	if verifier.now == nil {
		verifier.now = func() time.Time { return time.Now().UTC() }
	}
	return verifier, nil
}

// Verify posts the token to the introspection endpoint and maps the reply to
// an Identity.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	payload := url.Values{}
	payload.Set("token", token)
	payload.Set("token_type_hint", "access_token")

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(payload.Encode()))
	if err != nil {
		return Identity{}, fmt.Errorf("create introspection request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")
	if v.clientID != "" {
		request.SetBasicAuth(v.clientID, v.clientSecret)
	}

	response, err := v.client.Do(request)
	if err != nil {
		return Identity{}, fmt.Errorf("introspect token: %w", err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return Identity{}, fmt.Errorf("read introspection response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		snippet := string(bytes.TrimSpace(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return Identity{}, fmt.Errorf("introspection failed: status %d: %s", response.StatusCode, snippet)
	}
	var reply introspectionReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Identity{}, fmt.Errorf("decode introspection response: %w", err)
	}
	if !reply.Active {
		return Identity{}, ErrTokenRejected
	}
	subject := strings.TrimSpace(reply.Subject)
	if subject == "" {
		subject = strings.TrimSpace(reply.Username)
	}
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: introspection reply missing subject", ErrTokenRejected)
	}
	identity := Identity{Subject: subject, Email: strings.TrimSpace(reply.Email)}
	if reply.ExpiresAt > 0 {
		identity.ExpiresAt = time.Unix(reply.ExpiresAt, 0).UTC()
	}
	if !identity.ExpiresAt.IsZero() && v.now().After(identity.ExpiresAt) {
		return Identity{}, fmt.Errorf("%w: token expired", ErrTokenRejected)
	}
	return identity, nil
}
