package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/therapyflow/calsync/internal/services"
)

type contextKey string

const therapistIDKey contextKey = "therapist_id"

// RequireAuth validates the Bearer token and stores the caller's therapist
// id (the sync scope) on the request context.
func RequireAuth(tokens *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := tokens.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), therapistIDKey, claims.TherapistID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TherapistID extracts the authenticated scope from the request context.
func TherapistID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(therapistIDKey).(uuid.UUID)
	return id, ok
}
