package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/kanban-assistant/internal/database"
	logpkg "github.com/benvon/kanban-assistant/internal/logger"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/request"
	"go.uber.org/zap"
)

// TokenVerifier verifies a bearer token and returns its identity claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.TokenClaims, error)
}

// UserFromContext extracts the authenticated board owner from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth validates the bearer token and resolves the board owner. Unknown
// subjects are provisioned on first use.
func Auth(verifier TokenVerifier, users database.UserRepositoryInterface, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				respondError(w, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header")
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, tokenString)
			if err != nil {
				logger.Warn("token_verification_failed",
					logpkg.Path(r.URL.Path),
					logpkg.Error(err),
				)
				respondError(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
				return
			}

			user, err := resolveUser(ctx, users, claims)
			if err != nil {
				logger.Error("user_resolution_failed",
					logpkg.Subject(claims.Subject),
					logpkg.Error(err),
				)
				respondError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load user")
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// resolveUser loads the user for the token subject, writing only when the
// row is missing or its profile claims changed.
func resolveUser(ctx context.Context, users database.UserRepositoryInterface, claims *models.TokenClaims) (*models.User, error) {
	user, err := users.GetBySubject(ctx, claims.Subject)
	switch {
	case errors.Is(err, database.ErrNotFound):
		user = &models.User{Subject: claims.Subject}
	case err != nil:
		return nil, err
	case !profileChanged(user, claims):
		return user, nil
	}

	user.Email = claims.Email
	if claims.Name != "" {
		name := claims.Name
		user.Name = &name
	}
	if err := users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func profileChanged(user *models.User, claims *models.TokenClaims) bool {
	if user.Email != claims.Email {
		return true
	}
	if claims.Name == "" {
		return false
	}
	return user.Name == nil || *user.Name != claims.Name
}

func respondError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
