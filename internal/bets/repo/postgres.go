package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrNotFound = errors.New("bet not found")

// Postgres implementa a persistência de apostas e pernas
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const betColumns = `id, user_id, opportunity_id, event_id, sport_key, market, home_team, away_team, commence_time,
	total_stake_cents, expected_profit_cents, payout_cents, actual_profit_cents,
	COALESCE(winning_outcome, ''), COALESCE(settle_reason, ''), status, created_at, updated_at, settled_at`

// CreatePending insere a aposta PENDING e suas pernas na mesma transação
func (p *Postgres) CreatePending(ctx context.Context, b *Bet) (string, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, opportunity_id, event_id, sport_key, market, home_team, away_team,
			commence_time, total_stake_cents, expected_profit_cents, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'PENDING')`,
		id, b.UserID, b.OpportunityID, b.EventID, b.SportKey, b.Market, b.HomeTeam, b.AwayTeam,
		b.CommenceTime, b.TotalStakeCents, b.ExpectedProfitCents,
	); err != nil {
		return "", err
	}

	for i, l := range b.Legs {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO bet_legs (bet_id, leg_index, bookmaker, outcome, point, price, stake_cents, payout_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			id, i, l.Bookmaker, l.Outcome, l.Point, l.Price, l.StakeCents, l.PayoutCents,
		); err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	b.ID = id
	b.Status = StatusPending
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(s scanner) (Bet, error) {
	var (
		b              Bet
		payout, profit sql.NullInt64
		settledAt      sql.NullTime
	)
	err := s.Scan(&b.ID, &b.UserID, &b.OpportunityID, &b.EventID, &b.SportKey, &b.Market, &b.HomeTeam, &b.AwayTeam,
		&b.CommenceTime, &b.TotalStakeCents, &b.ExpectedProfitCents, &payout, &profit,
		&b.WinningOutcome, &b.SettleReason, &b.Status, &b.CreatedAt, &b.UpdatedAt, &settledAt)
	if err != nil {
		return Bet{}, err
	}
	if payout.Valid {
		b.PayoutCents = &payout.Int64
	}
	if profit.Valid {
		b.ActualProfitCents = &profit.Int64
	}
	if settledAt.Valid {
		b.SettledAt = &settledAt.Time
	}
	return b, nil
}

// Get retorna a aposta com as pernas
func (p *Postgres) Get(ctx context.Context, id string) (Bet, error) {
	b, err := scanBet(p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Bet{}, ErrNotFound
	}
	if err != nil {
		return Bet{}, err
	}
	out := []Bet{b}
	if err := p.attachLegs(ctx, out); err != nil {
		return Bet{}, err
	}
	return out[0], nil
}

// ListByUser lista as apostas mais recentes do usuário, com filtro opcional de status
func (p *Postgres) ListByUser(ctx context.Context, userID, status string, limit int) ([]Bet, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+betColumns+` FROM bets
		WHERE user_id=$1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3`, userID, status, limit)
	if err != nil {
		return nil, err
	}
	return p.collect(ctx, rows)
}

// PendingForSettlement retorna apostas PENDING de eventos que já começaram antes de before
func (p *Postgres) PendingForSettlement(ctx context.Context, before time.Time, limit int) ([]Bet, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+betColumns+` FROM bets
		WHERE status='PENDING' AND commence_time < $1
		ORDER BY commence_time ASC LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	return p.collect(ctx, rows)
}

func (p *Postgres) collect(ctx context.Context, rows *sql.Rows) ([]Bet, error) {
	defer rows.Close()
	out := []Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachLegs(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachLegs carrega as pernas de todas as apostas numa consulta só
func (p *Postgres) attachLegs(ctx context.Context, bets []Bet) error {
	if len(bets) == 0 {
		return nil
	}
	ids := make([]string, len(bets))
	idx := make(map[string]int, len(bets))
	for i, b := range bets {
		ids[i] = b.ID
		idx[b.ID] = i
		bets[i].Legs = []Leg{}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT bet_id, bookmaker, outcome, point, price, stake_cents, payout_cents
		FROM bet_legs WHERE bet_id = ANY($1) ORDER BY bet_id, leg_index`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			betID string
			l     Leg
			point sql.NullFloat64
		)
		if err := rows.Scan(&betID, &l.Bookmaker, &l.Outcome, &point, &l.Price, &l.StakeCents, &l.PayoutCents); err != nil {
			return err
		}
		if point.Valid {
			l.Point = &point.Float64
		}
		if i, ok := idx[betID]; ok {
			bets[i].Legs = append(bets[i].Legs, l)
		}
	}
	return rows.Err()
}

// StatusCounts conta apostas por status (dashboard)
func (p *Postgres) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{StatusPending: 0, StatusSettled: 0, StatusVoid: 0}
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

// MarkSettled encerra a aposta PENDING; false quando ela já não estava pendente
func (p *Postgres) MarkSettled(ctx context.Context, id, winningOutcome string, payoutCents, profitCents int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='SETTLED', winning_outcome=$2, payout_cents=$3, actual_profit_cents=$4,
			settled_at=now(), updated_at=now()
		WHERE id=$1 AND status='PENDING'`, id, winningOutcome, payoutCents, profitCents)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkVoid anula a aposta PENDING registrando o motivo
func (p *Postgres) MarkVoid(ctx context.Context, id, reason string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status='VOID', settle_reason=$2, payout_cents=total_stake_cents, actual_profit_cents=0,
			settled_at=now(), updated_at=now()
		WHERE id=$1 AND status='PENDING'`, id, reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
