package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
)

var ErrEmailTaken = errors.New("email already registered")

// CreateUser grava o usuário com o hash da API key
func (r *ReadRepo) CreateUser(ctx context.Context, email string, role auth.Role, keyHash string) (auth.User, error) {
	u := auth.User{ID: uuid.NewString(), Email: strings.ToLower(strings.TrimSpace(email)), Role: role}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users(id, email, role, api_key_hash) VALUES($1,$2,$3,$4)`,
		u.ID, u.Email, string(u.Role), keyHash)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return auth.User{}, ErrEmailTaken
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

// UserByAPIKeyHash implementa auth.UserStore
func (r *ReadRepo) UserByAPIKeyHash(ctx context.Context, hash string) (auth.User, bool, error) {
	var (
		u    auth.User
		role string
	)
	err := r.DB.QueryRowContext(ctx, `SELECT id, email, role FROM users WHERE api_key_hash = $1`, hash).
		Scan(&u.ID, &u.Email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, err
	}
	u.Role = auth.Role(role)
	return u, true, nil
}

func (r *ReadRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
