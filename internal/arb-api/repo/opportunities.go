package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

var ErrNotFound = errors.New("not found")

// ReadRepo concentra as leituras do arb-api no Postgres
type ReadRepo struct {
	DB *sql.DB
}

func NewReadRepo(db *sql.DB) *ReadRepo { return &ReadRepo{DB: db} }

// GetOpportunity busca a oportunidade vista pela última vez depois de since
func (r *ReadRepo) GetOpportunity(ctx context.Context, id string, since time.Time) (events.Opportunity, error) {
	const q = `SELECT payload FROM opportunities WHERE id = $1 AND last_seen_at >= $2`
	var raw []byte
	err := r.DB.QueryRowContext(ctx, q, id, since).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Opportunity{}, ErrNotFound
	}
	if err != nil {
		return events.Opportunity{}, err
	}
	var o events.Opportunity
	return o, json.Unmarshal(raw, &o)
}

// ListOpportunities lista as vistas depois de since, maior lucro primeiro
func (r *ReadRepo) ListOpportunities(ctx context.Context, sport string, since time.Time, limit int) ([]events.Opportunity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `
		SELECT payload
		FROM opportunities
		WHERE last_seen_at >= $1 AND ($2 = '' OR sport_key = $2)
		ORDER BY profit_percent DESC, commence_time ASC
		LIMIT $3;
	`
	rows, err := r.DB.QueryContext(ctx, q, since, sport, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []events.Opportunity{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var o events.Opportunity
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOpportunitiesSince conta oportunidades distintas detectadas desde since
func (r *ReadRepo) CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities WHERE first_seen_at >= $1`, since).Scan(&n)
	return n, err
}
