package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/google/uuid"
)

type contextKey string

const (
	claimsKey  contextKey = "auth_claims"
	subjectKey contextKey = "auth_subject"
)

// ClaimsFromContext extracts JWT claims from request context.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// SubjectFromContext extracts the subject ID string from request context.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}

// PlayerIDFromContext returns the authenticated player's ID.
func PlayerIDFromContext(ctx context.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(SubjectFromContext(ctx))
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid subject")
	}
	return id, nil
}

// WithSubject returns ctx carrying claims for subject. Used by tests and
// in-process callers that bypass the HTTP middleware.
func WithSubject(ctx context.Context, realm Realm, subject string) context.Context {
	claims := &Claims{Realm: realm}
	claims.Subject = subject
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, subjectKey, subject)
}

// AuthenticatePlayer returns middleware that validates player JWT tokens.
func AuthenticatePlayer(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return authenticateRealm(jwtMgr, RealmPlayer, false)
}

// AuthenticateStream is AuthenticatePlayer for the websocket upgrade, which
// also accepts the token as ?access_token= because browsers cannot set
// headers on a websocket handshake.
func AuthenticateStream(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return authenticateRealm(jwtMgr, RealmPlayer, true)
}

// AuthenticateAdmin returns middleware that validates admin JWT tokens.
func AuthenticateAdmin(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return authenticateRealm(jwtMgr, RealmAdmin, false)
}

// RequireRole returns middleware that checks the admin role.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				deny(w, domain.ErrUnauthorized("no auth context"))
				return
			}
			if !roleSet[claims.Role] {
				deny(w, domain.ErrForbidden(fmt.Sprintf("role %q may not %s %s", claims.Role, r.Method, r.URL.Path)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticateRealm(jwtMgr *JWTManager, realm Realm, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r, allowQuery)
			if err != nil {
				deny(w, domain.ErrUnauthorized(err.Error()))
				return
			}
			claims, err := jwtMgr.ValidateTokenForRealm(token, realm)
			if err != nil {
				deny(w, domain.ErrUnauthorized(err.Error()))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request, allowQuery bool) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if tok := r.URL.Query().Get("access_token"); allowQuery && tok != "" {
			return tok, nil
		}
		return "", fmt.Errorf("missing Authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", fmt.Errorf("invalid Authorization format")
	}
	return token, nil
}

// deny writes err in the same {"code","message"} shape the handlers use.
func deny(w http.ResponseWriter, err *domain.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(map[string]string{"code": err.Code, "message": err.Message})
}
