package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaticJWTConfig configures verification of locally issued HS256 tokens.
type StaticJWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
	Clock    func() time.Time
}

// StaticJWTVerifier validates HS256 bearer tokens against a shared secret. It
// suits deployments that mint their own tokens instead of running a separate
// identity provider.
type StaticJWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

type bearerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewStaticJWTVerifier constructs a verifier for the provided configuration.
func NewStaticJWTVerifier(cfg StaticJWTConfig) (*StaticJWTVerifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Clock != nil {
		options = append(options, jwt.WithTimeFunc(cfg.Clock))
	}
	return &StaticJWTVerifier{secret: []byte(secret), parser: jwt.NewParser(options...)}, nil
}

// Verify parses and validates the token and maps its claims to an Identity.
func (v *StaticJWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	claims := &bearerClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenRejected, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrTokenRejected
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: subject claim missing", ErrTokenRejected)
	}
	identity := Identity{Subject: subject, Email: strings.TrimSpace(claims.Email)}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return identity, nil
}
