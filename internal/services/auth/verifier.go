package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrNotConfigured is returned when neither a shared secret nor a JWKS URL is set
var ErrNotConfigured = errors.New("token verification is not configured")

// Config selects how access tokens are verified. A JWKS URL takes precedence
// over the shared secret.
type Config struct {
	Secret  string
	JWKSURL string
	Issuer  string
}

// Verifier verifies bearer tokens and extracts identity claims
type Verifier struct {
	cfg  Config
	jwks *JWKSManager
}

// NewVerifier creates a verifier
func NewVerifier(cfg Config, jwks *JWKSManager) *Verifier {
	if jwks == nil {
		jwks = NewJWKSManager()
	}
	return &Verifier{cfg: cfg, jwks: jwks}
}

// Verify checks the token signature, expiry and issuer and returns its claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	opts := []jwt.ParseOption{jwt.WithValidate(true), jwt.WithAcceptableSkew(30 * time.Second)}
	switch {
	case v.cfg.JWKSURL != "":
		keys, err := v.jwks.GetJWKS(ctx, v.cfg.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWKS: %w", err)
		}
		opts = append(opts, jwt.WithKeySet(keys))
	case v.cfg.Secret != "":
		opts = append(opts, jwt.WithKey(jwa.HS256, []byte(v.cfg.Secret)))
	default:
		return nil, ErrNotConfigured
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}

	claims := &models.TokenClaims{
		Subject: token.Subject(),
		Issuer:  token.Issuer(),
		Expiry:  token.Expiration().Unix(),
	}
	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if name, ok := token.Get("name"); ok {
		if s, ok := name.(string); ok {
			claims.Name = s
		}
	}

	return claims, nil
}

// Issue signs an HS256 token for the given identity. It is used for local
// development and tests.
func Issue(secret, issuer string, claims models.TokenClaims, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNotConfigured
	}
	now := time.Now()
	builder := jwt.NewBuilder().
		Subject(claims.Subject).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if issuer != "" {
		builder = builder.Issuer(issuer)
	}
	if claims.Email != "" {
		builder = builder.Claim("email", claims.Email)
	}
	if claims.Name != "" {
		builder = builder.Claim("name", claims.Name)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}
