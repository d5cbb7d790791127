package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// PostgresRepo persiste oportunidades atuais e o histórico de preços
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertCurrent insere ou atualiza a oportunidade pelo id determinístico
// first_seen_at é preservado; last_seen_at e o payload acompanham a última detecção
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, o events.Opportunity) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO opportunities
		  (id, event_id, sport_key, market, home_team, away_team, commence_time,
		   profit_percent, total_implied_probability, payload, first_seen_at, last_seen_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		ON CONFLICT (id) DO UPDATE SET
		  commence_time             = EXCLUDED.commence_time,
		  profit_percent            = EXCLUDED.profit_percent,
		  total_implied_probability = EXCLUDED.total_implied_probability,
		  payload                   = EXCLUDED.payload,
		  last_seen_at              = EXCLUDED.last_seen_at
	`
	_, err = r.DB.ExecContext(ctx, q,
		o.ID, o.EventID, o.SportKey, o.Market, o.HomeTeam, o.AwayTeam, o.CommenceTime,
		o.ProfitPercent, o.TotalImpliedProbability, payload, o.DetectedAt,
	)
	return err
}

type historyPrice struct {
	Bookmaker string   `json:"bookmaker"`
	Outcome   string   `json:"outcome"`
	Point     *float64 `json:"point,omitempty"`
	Price     float64  `json:"price"`
}

// InsertHistory registra os preços desta detecção
func (r *PostgresRepo) InsertHistory(ctx context.Context, o events.Opportunity) error {
	prices := make([]historyPrice, len(o.Legs))
	for i, l := range o.Legs {
		prices[i] = historyPrice{Bookmaker: l.Bookmaker, Outcome: l.Outcome, Point: l.Point, Price: l.Price}
	}
	b, err := json.Marshal(prices)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO opportunity_history
		  (opportunity_id, profit_percent, prices, detected_at)
		VALUES
		  ($1,$2,$3,$4)
	`
	_, err = r.DB.ExecContext(ctx, q, o.ID, o.ProfitPercent, b, o.DetectedAt)
	return err
}
