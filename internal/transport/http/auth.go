package http

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

type principalKey struct{}

// Principal is the authenticated caller. Who issued the credential and how
// is upstream's concern; behind this middleware a request always has one.
type Principal struct {
	Name string
}

// TokenVerifier validates a bearer credential.
type TokenVerifier interface {
	Verify(token string) (Principal, bool)
}

// StaticTokens verifies against a fixed token set from configuration.
type StaticTokens struct {
	digests [][32]byte
}

// NewStaticTokens hashes the configured tokens for constant-time comparison.
func NewStaticTokens(tokens []string) *StaticTokens {
	st := &StaticTokens{}
	for _, token := range tokens {
		st.digests = append(st.digests, sha256.Sum256([]byte(token)))
	}
	return st
}

// Verify matches a presented token against the configured set.
func (s *StaticTokens) Verify(token string) (Principal, bool) {
	digest := sha256.Sum256([]byte(token))
	for _, known := range s.digests {
		if subtle.ConstantTimeCompare(digest[:], known[:]) == 1 {
			return Principal{Name: "api-client"}, true
		}
	}
	return Principal{}, false
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			principal, ok := verifier.Verify(token)
			if !ok {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the authenticated principal stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(Principal)
	return principal, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}
