package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the caller resolved from a bearer token
type Identity struct {
	UserID  int64
	IsAdmin bool
}

// IdentityFromContext returns the authenticated caller, if any
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticator validates HS256 bearer tokens. The subject claim is the user id
// and a boolean "admin" claim grants administrative routes.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Middleware rejects requests without a valid bearer token
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			sendError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header required", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			sendError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid authorization header format", nil)
			return
		}

		id, err := a.Validate(parts[1])
		if err != nil {
			sendError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Validate parses a token and resolves the caller identity
func (a *Authenticator) Validate(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("unexpected claims type")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return Identity{}, err
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("invalid subject %q", sub)
	}

	admin, _ := claims["admin"].(bool)
	return Identity{UserID: userID, IsAdmin: admin}, nil
}

// IssueToken signs a token for userID. The token subcommand prints one.
func (a *Authenticator) IssueToken(userID int64, admin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatInt(userID, 10),
		"admin": admin,
	})
	return token.SignedString(a.secret)
}

// RequireAdmin allows only identities carrying the admin claim
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || !id.IsAdmin {
			sendError(w, http.StatusForbidden, CodeForbidden, "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
