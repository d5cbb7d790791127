// Package settler liquida apostas de arbitragem pendentes usando o endpoint
// de scores da API de odds: credita o payout da perna vencedora na carteira,
// ou devolve a banca quando o resultado não pode ser determinado.
package settler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/bet-settlement/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/retry"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// O endpoint de scores só volta até 3 dias
const (
	scoresDaysFrom = 3
	scoresWindow   = scoresDaysFrom * 24 * time.Hour
)

type Bets interface {
	PendingForSettlement(ctx context.Context, before time.Time, limit int) ([]repo.Bet, error)
	MarkSettled(ctx context.Context, id, winningOutcome string, payoutCents, profitCents int64) (bool, error)
	MarkVoid(ctx context.Context, id, reason string) (bool, error)
}

type Wallet interface {
	Settle(ctx context.Context, userID, externalRef string, payoutCents int64) error
	Refund(ctx context.Context, userID, externalRef string) error
}

type Scores interface {
	Scores(ctx context.Context, sport string, daysFrom int, eventIDs []string) ([]oddsapi.ScoreEvent, error)
}

type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Result resume uma rodada de liquidação
type Result struct {
	Pending int
	Settled int
	Voided  int
	Waiting int
	Failed  int
}

type Settler struct {
	Log       *zap.Logger
	Bets      Bets
	Wallet    Wallet
	Scores    Scores
	Publisher Publisher
	DLQ       kafka.Publisher // opcional
	Retry     retry.Policy
	BatchSize int

	OnCycle   func(time.Duration, Result)
	OnSettled func(status string)
	OnError   func(stage string)

	now func() time.Time
}

func (s *Settler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Run liquida a cada interval até o ctx ser cancelado
func (s *Settler) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		start := time.Now()
		res, err := s.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.Log.Error("settlement cycle", zap.Error(err))
		}
		if s.OnCycle != nil {
			s.OnCycle(time.Since(start), res)
		}
		select {
		case <-ctx.Done():
			s.Log.Info("settler stopped")
			return
		case <-t.C:
		}
	}
}

// RunOnce busca as apostas pendentes de eventos já iniciados, agrupa por
// esporte e consulta os placares numa chamada por esporte.
func (s *Settler) RunOnce(ctx context.Context) (Result, error) {
	now := s.clock()
	pending, err := s.Bets.PendingForSettlement(ctx, now, s.BatchSize)
	if err != nil {
		s.fail("load")
		return Result{}, fmt.Errorf("load pending bets: %w", err)
	}
	res := Result{Pending: len(pending)}
	if len(pending) == 0 {
		return res, nil
	}

	bySport := map[string][]repo.Bet{}
	var sports []string
	for _, b := range pending {
		if _, ok := bySport[b.SportKey]; !ok {
			sports = append(sports, b.SportKey)
		}
		bySport[b.SportKey] = append(bySport[b.SportKey], b)
	}

	for _, sport := range sports {
		bets := bySport[sport]
		scores, err := s.fetchScores(ctx, sport, bets)
		if err != nil {
			s.fail("scores")
			s.Log.Warn("fetch scores", zap.String("sport", sport), zap.Error(err))
			res.Waiting += len(bets)
			continue
		}

		for _, b := range bets {
			ev, found := scores[b.EventID]
			var d Decision
			switch {
			case found:
				var done bool
				if d, done = Decide(b, ev); !done {
					res.Waiting++
					continue
				}
			case now.Sub(b.CommenceTime) > scoresWindow:
				d = void("event missing from scores")
			default:
				res.Waiting++
				continue
			}

			if err := s.apply(ctx, b, d); err != nil {
				res.Failed++
				continue
			}
			if d.Status == repo.StatusSettled {
				res.Settled++
			} else {
				res.Voided++
			}
		}
	}

	s.Log.Info("settlement cycle done",
		zap.Int("pending", res.Pending),
		zap.Int("settled", res.Settled),
		zap.Int("voided", res.Voided),
		zap.Int("waiting", res.Waiting),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Settler) fetchScores(ctx context.Context, sport string, bets []repo.Bet) (map[string]oddsapi.ScoreEvent, error) {
	ids := make([]string, 0, len(bets))
	seen := map[string]bool{}
	for _, b := range bets {
		if !seen[b.EventID] {
			seen[b.EventID] = true
			ids = append(ids, b.EventID)
		}
	}
	evs, err := s.Scores.Scores(ctx, sport, scoresDaysFrom, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]oddsapi.ScoreEvent, len(evs))
	for _, ev := range evs {
		out[ev.ID] = ev
	}
	return out, nil
}

// apply move o dinheiro e depois fecha a aposta. As duas etapas são
// idempotentes (reserva já liberada, aposta já fora de PENDING), então
// uma nova tentativa depois de falha parcial é segura.
func (s *Settler) apply(ctx context.Context, b repo.Bet, d Decision) error {
	var changed bool
	attempts := 0
	err := s.Retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		if d.Status == repo.StatusSettled {
			if err = s.Wallet.Settle(ctx, b.UserID, b.ID, d.PayoutCents); err != nil {
				return fmt.Errorf("credit payout: %w", err)
			}
			changed, err = s.Bets.MarkSettled(ctx, b.ID, d.WinningOutcome, d.PayoutCents, d.PayoutCents-b.TotalStakeCents)
		} else {
			if err = s.Wallet.Refund(ctx, b.UserID, b.ID); err != nil {
				return fmt.Errorf("refund stake: %w", err)
			}
			changed, err = s.Bets.MarkVoid(ctx, b.ID, d.Reason)
		}
		return err
	})
	if err != nil {
		s.fail("apply")
		s.Log.Error("settle bet", zap.String("bet_id", b.ID), zap.Int("attempts", attempts), zap.Error(err))
		s.deadLetter(ctx, b, d, attempts, err)
		return err
	}
	if !changed {
		// outro worker já fechou a aposta
		return nil
	}

	if s.OnSettled != nil {
		s.OnSettled(d.Status)
	}
	ev := events.BetSettled{
		BetID:       b.ID,
		UserID:      b.UserID,
		Status:      d.Status,
		WinningLeg:  d.WinningOutcome,
		PayoutCents: d.PayoutCents,
		Reason:      d.Reason,
		Ts:          s.clock().UTC(),
	}
	if d.Status == repo.StatusSettled {
		ev.ProfitCents = d.PayoutCents - b.TotalStakeCents
	} else {
		ev.PayoutCents = b.TotalStakeCents
	}
	if err := s.Publisher.PublishBetSettled(ctx, ev); err != nil {
		s.fail("publish")
		s.Log.Warn("publish bet_settled", zap.String("bet_id", b.ID), zap.Error(err))
	}
	return nil
}

func (s *Settler) deadLetter(ctx context.Context, b repo.Bet, d Decision, attempts int, cause error) {
	if s.DLQ == nil || errors.Is(cause, context.Canceled) {
		return
	}
	job := dto.SettlementJob{
		BetID:           b.ID,
		UserID:          b.UserID,
		EventID:         b.EventID,
		SportKey:        b.SportKey,
		Market:          b.Market,
		Status:          d.Status,
		WinningOutcome:  d.WinningOutcome,
		PayoutCents:     d.PayoutCents,
		TotalStakeCents: b.TotalStakeCents,
		Reason:          d.Reason,
		Attempts:        attempts,
		TsUnixMs:        s.clock().UnixMilli(),
	}
	value, err := json.Marshal(job)
	if err != nil {
		return
	}
	orig := kafka.Message{Topic: "bet_settlement", Key: []byte(b.ID), Value: value}
	if err := kafka.PublishDLQ(ctx, s.DLQ, orig, cause); err != nil {
		s.Log.Error("publish settlement dlq", zap.String("bet_id", b.ID), zap.Error(err))
	}
}

func (s *Settler) fail(stage string) {
	if s.OnError != nil {
		s.OnError(stage)
	}
}
