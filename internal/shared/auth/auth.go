// Package auth autentica requisições por API key.
//
// A chave (arb_ + hex) só é mostrada na criação; o banco guarda o SHA-256.
// O token estático ADMIN_API_TOKEN serve para criar os primeiros usuários.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"

	KeyPrefix = "arb_"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`

	// Bootstrap indica acesso pelo ADMIN_API_TOKEN, sem usuário no banco
	Bootstrap bool `json:"-"`
}

// UserStore resolve o usuário dono de um hash de API key
type UserStore interface {
	UserByAPIKeyHash(ctx context.Context, hash string) (User, bool, error)
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

// GenerateAPIKey cria uma chave nova e devolve também o hash a persistir
func GenerateAPIKey() (key string, hash string, err error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	key = KeyPrefix + hex.EncodeToString(b)
	return key, HashAPIKey(key), nil
}

func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// credential lê Authorization: Bearer <key> ou X-API-Key
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

type Authenticator struct {
	store      UserStore
	adminToken string
	log        *zap.Logger
}

func NewAuthenticator(store UserStore, adminToken string, log *zap.Logger) *Authenticator {
	return &Authenticator{store: store, adminToken: adminToken, log: log}
}

// Middleware identifica o usuário quando há credencial. Sem credencial a
// requisição segue anônima; credencial inválida recebe 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := credential(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		if a.adminToken != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.adminToken)) == 1 {
			u := User{ID: "bootstrap-admin", Email: "admin@localhost", Role: RoleAdmin, Bootstrap: true}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
			return
		}

		if !strings.HasPrefix(key, KeyPrefix) {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		u, ok, err := a.store.UserByAPIKeyHash(r.Context(), HashAPIKey(key))
		if err != nil {
			a.log.Error("auth lookup", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireUser exige um usuário real do banco (o token de bootstrap não opera carteira)
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if u.Bootstrap {
			writeError(w, http.StatusForbidden, "bootstrap token is admin-only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if u.Role != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
