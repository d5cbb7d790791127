package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Postgres implementa as operações de portfolio em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Status de reserva
const (
	ReservationPending  = "PENDING"
	ReservationSettled  = "SETTLED"
	ReservationRefunded = "REFUNDED"
)

type Portfolio struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	BalanceCents  int64     `json:"balance_cents"`
	ReservedCents int64     `json:"reserved_cents"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type LedgerEntry struct {
	ID            int64     `json:"id"`
	OperationType string    `json:"operation_type"`
	AmountCents   int64     `json:"amount_cents"`
	ExternalRef   string    `json:"external_ref,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ensurePortfolio(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO portfolios(id, user_id, balance_cents, reserved_cents, version) VALUES($1,$2,0,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID)
	return err
}

func selectPortfolio(ctx context.Context, q querier, userID string, lock bool) (Portfolio, error) {
	query := `SELECT id, user_id, balance_cents, reserved_cents, updated_at FROM portfolios WHERE user_id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	var pf Portfolio
	err := q.QueryRowContext(ctx, query, userID).Scan(&pf.ID, &pf.UserID, &pf.BalanceCents, &pf.ReservedCents, &pf.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, ErrNotFound
	}
	return pf, err
}

// GetOrCreate retorna o portfolio do usuário, criando com saldo zero se não existir
func (p *Postgres) GetOrCreate(ctx context.Context, userID string) (Portfolio, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Portfolio{}, err
	}
	defer tx.Rollback()

	if err = ensurePortfolio(ctx, tx, userID); err != nil {
		return Portfolio{}, err
	}
	pf, err := selectPortfolio(ctx, tx, userID, false)
	if err != nil {
		return Portfolio{}, err
	}
	return pf, tx.Commit()
}

// alreadyApplied verifica idempotência de depósito/saque por external_ref
func alreadyApplied(ctx context.Context, tx *sql.Tx, portfolioID, op, externalRef string) (bool, error) {
	if externalRef == "" {
		return false, nil
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM portfolio_ledger WHERE portfolio_id=$1 AND operation_type=$2 AND external_ref=$3`,
		portfolioID, op, externalRef).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func nullableRef(ref string) any {
	if ref == "" {
		return nil
	}
	return ref
}

// Deposit credita saldo e registra no ledger
// Lock pessimista na linha do portfolio; repetir o mesmo externalRef não credita de novo
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (Portfolio, error) {
	return p.move(ctx, userID, amount, externalRef, "DEPOSIT")
}

// Withdraw debita saldo livre (não reservado)
func (p *Postgres) Withdraw(ctx context.Context, userID string, amount int64, externalRef string) (Portfolio, error) {
	return p.move(ctx, userID, -amount, externalRef, "WITHDRAW")
}

func (p *Postgres) move(ctx context.Context, userID string, delta int64, externalRef, op string) (Portfolio, error) {
	if delta == 0 || (op == "DEPOSIT") != (delta > 0) {
		return Portfolio{}, ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Portfolio{}, err
	}
	defer tx.Rollback()

	if err = ensurePortfolio(ctx, tx, userID); err != nil {
		return Portfolio{}, err
	}
	pf, err := selectPortfolio(ctx, tx, userID, true)
	if err != nil {
		return Portfolio{}, err
	}

	done, err := alreadyApplied(ctx, tx, pf.ID, op, externalRef)
	if err != nil {
		return Portfolio{}, err
	}
	if done {
		return pf, tx.Commit()
	}

	if pf.BalanceCents+delta < 0 {
		return Portfolio{}, ErrInsufficientFunds
	}

	if err = tx.QueryRowContext(ctx,
		`UPDATE portfolios SET balance_cents = balance_cents + $1, version = version + 1, updated_at = now() WHERE id=$2 RETURNING balance_cents, updated_at`,
		delta, pf.ID).Scan(&pf.BalanceCents, &pf.UpdatedAt); err != nil {
		return Portfolio{}, err
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO portfolio_ledger(portfolio_id, operation_type, amount_cents, external_ref, description) VALUES($1,$2,$3,$4,$5)`,
		pf.ID, op, amount, nullableRef(externalRef), "manual"); err != nil {
		return Portfolio{}, err
	}

	return pf, tx.Commit()
}

// Reserve move saldo livre para reservado (aposta pendente)
// Idempotente por (portfolio_id, external_ref)
func (p *Postgres) Reserve(ctx context.Context, userID string, amount int64, externalRef string) (reservationID string, err error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	pf, err := selectPortfolio(ctx, tx, userID, true)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInsufficientFunds
	}
	if err != nil {
		return "", err
	}

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM portfolio_reservations WHERE portfolio_id=$1 AND external_ref=$2`, pf.ID, externalRef).Scan(&exists)
	if err == nil {
		return exists, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	if pf.BalanceCents < amount {
		return "", ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE portfolios SET balance_cents = balance_cents - $1, reserved_cents = reserved_cents + $1, version = version + 1, updated_at = now() WHERE id=$2`,
		amount, pf.ID); err != nil {
		return "", err
	}

	reservationID = uuid.NewString()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO portfolio_reservations(id, portfolio_id, external_ref, amount_cents, status) VALUES($1,$2,$3,$4,'PENDING')`,
		reservationID, pf.ID, externalRef, amount); err != nil {
		return "", err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO portfolio_ledger(portfolio_id, operation_type, amount_cents, external_ref, description) VALUES($1,'RESERVE',$2,$3,$4)`,
		pf.ID, amount, externalRef, "bet"); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return reservationID, nil
}

type reservation struct {
	id          string
	portfolioID string
	amount      int64
	status      string
}

func lockReservation(ctx context.Context, tx *sql.Tx, userID, externalRef string) (reservation, error) {
	var rv reservation
	err := tx.QueryRowContext(ctx, `
		SELECT pr.id, pr.portfolio_id, pr.amount_cents, pr.status
		FROM portfolio_reservations pr
		JOIN portfolios p ON p.id = pr.portfolio_id
		WHERE p.user_id=$1 AND pr.external_ref=$2
		FOR UPDATE`, userID, externalRef).Scan(&rv.id, &rv.portfolioID, &rv.amount, &rv.status)
	if errors.Is(err, sql.ErrNoRows) {
		return rv, ErrNotFound
	}
	return rv, err
}

// Settle encerra uma reserva creditando o payout (0 quando perdida)
// Idempotente: reserva já encerrada não é alterada
func (p *Postgres) Settle(ctx context.Context, userID, externalRef string, payoutCents int64) error {
	if payoutCents < 0 {
		return ErrInvalidAmount
	}
	return p.release(ctx, userID, externalRef, ReservationSettled, func(rv reservation) (int64, string) {
		return payoutCents, "PAYOUT"
	})
}

// Refund devolve o valor reservado ao saldo livre (aposta anulada)
func (p *Postgres) Refund(ctx context.Context, userID, externalRef string) error {
	return p.release(ctx, userID, externalRef, ReservationRefunded, func(rv reservation) (int64, string) {
		return rv.amount, "REFUND"
	})
}

func (p *Postgres) release(ctx context.Context, userID, externalRef, status string, credit func(reservation) (int64, string)) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rv, err := lockReservation(ctx, tx, userID, externalRef)
	if err != nil {
		return err
	}
	if rv.status != ReservationPending {
		return nil
	}

	amount, op := credit(rv)
	if _, err = tx.ExecContext(ctx,
		`UPDATE portfolios SET balance_cents = balance_cents + $1, reserved_cents = reserved_cents - $2, version = version + 1, updated_at = now() WHERE id=$3`,
		amount, rv.amount, rv.portfolioID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE portfolio_reservations SET status=$1, payout_cents=$2, updated_at = now() WHERE id=$3`,
		status, amount, rv.id); err != nil {
		return err
	}

	if amount > 0 {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO portfolio_ledger(portfolio_id, operation_type, amount_cents, external_ref, description) VALUES($1,$2,$3,$4,$5)`,
			rv.portfolioID, op, amount, externalRef, "bet"); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Ledger lista os lançamentos mais recentes do portfolio
func (p *Postgres) Ledger(ctx context.Context, userID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT l.id, l.operation_type, l.amount_cents, COALESCE(l.external_ref, ''), COALESCE(l.description, ''), l.created_at
		FROM portfolio_ledger l
		JOIN portfolios p ON p.id = l.portfolio_id
		WHERE p.user_id=$1
		ORDER BY l.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.OperationType, &e.AmountCents, &e.ExternalRef, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
