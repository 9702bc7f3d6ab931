package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token's "role" claim.
const (
	RoleStaff = "staff"
	RoleHR    = "hr"
	RoleAdmin = "admin"
)

// roleLevel orders roles; unknown roles rank below staff.
var roleLevel = map[string]int{
	RoleStaff: 1,
	RoleHR:    2,
	RoleAdmin: 3,
}

// Identity is the authenticated caller.
type Identity struct {
	UserID  string
	Role    string
	StaffID int64 // zero when the user is not linked to a staff record
}

// AtLeast reports whether the identity's role ranks at or above role.
func (id Identity) AtLeast(role string) bool {
	return roleLevel[id.Role] >= roleLevel[role]
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity set by Auth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// AuthConfig configures Auth.
type AuthConfig struct {
	// Required rejects requests without a valid token. When false, every
	// request runs as an anonymous admin.
	Required bool
	Secret   string
	Issuer   string
}

// Auth verifies an HMAC-signed bearer token and stores the caller's
// Identity in the request context. Claims: userId, role and optional staffId.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	secret := []byte(cfg.Secret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Required {
				anon := Identity{UserID: "anonymous", Role: RoleAdmin}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), anon)))
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized: bearer token required", "AUTH001")
				return
			}

			id, err := parseIdentity(parser, raw, secret)
			if err != nil {
				slog.Warn("auth: rejected token",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeError(w, http.StatusUnauthorized, "unauthorized: invalid or expired token", "AUTH001")
				return
			}

			noteUser(r, id.UserID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers ranked below role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || !id.AtLeast(role) {
				writeError(w, http.StatusForbidden, "forbidden: insufficient permissions", "AUTH001")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func parseIdentity(parser *jwt.Parser, raw string, secret []byte) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}

	id := Identity{}
	id.UserID, _ = claims["userId"].(string)
	id.Role, _ = claims["role"].(string)
	if id.UserID == "" {
		return Identity{}, errors.New("missing userId claim")
	}
	if _, known := roleLevel[id.Role]; !known {
		return Identity{}, fmt.Errorf("unknown role %q", id.Role)
	}

	staffID, err := staffIDClaim(claims["staffId"])
	if err != nil {
		return Identity{}, err
	}
	id.StaffID = staffID
	return id, nil
}

// staffIDClaim accepts a JSON number or a numeric string.
func staffIDClaim(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if v <= 0 || v != float64(int64(v)) {
			return 0, fmt.Errorf("invalid staffId claim %v", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid staffId claim %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("invalid staffId claim type %T", v)
}

// writeError writes the same JSON shape the handlers use.
func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
		"code":    code,
	})
}
