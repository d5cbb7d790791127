package settler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/bet-settlement/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/retry"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeBets struct {
	pending []repo.Bet
	settled map[string]int64
	voided  map[string]string
}

func (f *fakeBets) PendingForSettlement(ctx context.Context, before time.Time, limit int) ([]repo.Bet, error) {
	return f.pending, nil
}

func (f *fakeBets) MarkSettled(ctx context.Context, id, winning string, payout, profit int64) (bool, error) {
	if _, done := f.settled[id]; done {
		return false, nil
	}
	f.settled[id] = profit
	return true, nil
}

func (f *fakeBets) MarkVoid(ctx context.Context, id, reason string) (bool, error) {
	f.voided[id] = reason
	return true, nil
}

type fakeWallet struct {
	failures int
	calls    int
	payouts  map[string]int64
	refunds  []string
}

func (f *fakeWallet) Settle(ctx context.Context, userID, ref string, payout int64) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("db busy")
	}
	f.payouts[ref] = payout
	return nil
}

func (f *fakeWallet) Refund(ctx context.Context, userID, ref string) error {
	f.refunds = append(f.refunds, ref)
	return nil
}

type fakeScores struct {
	evs   []oddsapi.ScoreEvent
	err   error
	asked map[string][]string
}

func (f *fakeScores) Scores(ctx context.Context, sport string, daysFrom int, ids []string) ([]oddsapi.ScoreEvent, error) {
	f.asked[sport] = ids
	return f.evs, f.err
}

type fakePub struct{ got []events.BetSettled }

func (f *fakePub) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	f.got = append(f.got, e)
	return nil
}

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

type fixture struct {
	s      *Settler
	bets   *fakeBets
	wallet *fakeWallet
	scores *fakeScores
	pub    *fakePub
	dlq    *captureWriter
}

func newFixture(pending ...repo.Bet) *fixture {
	f := &fixture{
		bets:   &fakeBets{pending: pending, settled: map[string]int64{}, voided: map[string]string{}},
		wallet: &fakeWallet{payouts: map[string]int64{}},
		scores: &fakeScores{asked: map[string][]string{}},
		pub:    &fakePub{},
		dlq:    &captureWriter{},
	}
	f.s = &Settler{
		Log:       zap.NewNop(),
		Bets:      f.bets,
		Wallet:    f.wallet,
		Scores:    f.scores,
		Publisher: f.pub,
		DLQ:       f.dlq,
		Retry:     retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2},
		now:       func() time.Time { return now },
	}
	return f
}

func h2hBet(id, eventID string, commence time.Time) repo.Bet {
	return repo.Bet{
		ID: id, UserID: "u1", EventID: eventID, SportKey: "basketball_nba", Market: "h2h",
		HomeTeam: "Lakers", AwayTeam: "Celtics", CommenceTime: commence, TotalStakeCents: 10000,
		Legs: []repo.Leg{
			{Outcome: "Lakers", StakeCents: 4940, PayoutCents: 10374},
			{Outcome: "Celtics", StakeCents: 5060, PayoutCents: 10373},
		},
	}
}

func TestRunOnceSettlesCompletedEvents(t *testing.T) {
	f := newFixture(
		h2hBet("b1", "ev-1", now.Add(-3*time.Hour)),
		h2hBet("b2", "ev-2", now.Add(-time.Hour)),
	)
	f.scores.evs = []oddsapi.ScoreEvent{
		{ID: "ev-1", Completed: true, HomeTeam: "Lakers", AwayTeam: "Celtics",
			Scores: []oddsapi.Score{{Name: "Lakers", Score: "110"}, {Name: "Celtics", Score: "104"}}},
		{ID: "ev-2", Completed: false, HomeTeam: "Lakers", AwayTeam: "Celtics"},
	}

	res, err := f.s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Settled != 1 || res.Waiting != 1 || res.Pending != 2 {
		t.Fatalf("result = %+v", res)
	}
	if f.wallet.payouts["b1"] != 10374 || f.bets.settled["b1"] != 374 {
		t.Fatalf("payout = %d profit = %d", f.wallet.payouts["b1"], f.bets.settled["b1"])
	}
	if len(f.scores.asked["basketball_nba"]) != 2 {
		t.Fatalf("scores asked for %v", f.scores.asked)
	}
	if len(f.pub.got) != 1 || f.pub.got[0].WinningLeg != "Lakers" || f.pub.got[0].ProfitCents != 374 {
		t.Fatalf("published = %+v", f.pub.got)
	}
}

func TestRunOnceVoidsEventsMissingFromScores(t *testing.T) {
	f := newFixture(
		h2hBet("old", "ev-old", now.Add(-4*24*time.Hour)),
		h2hBet("recent", "ev-recent", now.Add(-2*time.Hour)),
	)

	res, _ := f.s.RunOnce(context.Background())
	if res.Voided != 1 || res.Waiting != 1 {
		t.Fatalf("result = %+v", res)
	}
	if f.bets.voided["old"] == "" || len(f.wallet.refunds) != 1 || f.wallet.refunds[0] != "old" {
		t.Fatalf("voided = %v refunds = %v", f.bets.voided, f.wallet.refunds)
	}
	if f.pub.got[0].Status != repo.StatusVoid || f.pub.got[0].PayoutCents != 10000 {
		t.Fatalf("void event = %+v", f.pub.got[0])
	}
}

func TestApplyRetriesThenSucceeds(t *testing.T) {
	f := newFixture(h2hBet("b1", "ev-1", now.Add(-3*time.Hour)))
	f.scores.evs = []oddsapi.ScoreEvent{{ID: "ev-1", Completed: true, HomeTeam: "Lakers", AwayTeam: "Celtics",
		Scores: []oddsapi.Score{{Name: "Lakers", Score: "90"}, {Name: "Celtics", Score: "95"}}}}
	f.wallet.failures = 2

	res, _ := f.s.RunOnce(context.Background())
	if res.Settled != 1 || f.wallet.calls != 3 || len(f.dlq.msgs) != 0 {
		t.Fatalf("result = %+v calls = %d dlq = %d", res, f.wallet.calls, len(f.dlq.msgs))
	}
}

func TestApplyExhaustedGoesToDLQ(t *testing.T) {
	f := newFixture(h2hBet("b1", "ev-1", now.Add(-3*time.Hour)))
	f.scores.evs = []oddsapi.ScoreEvent{{ID: "ev-1", Completed: true, HomeTeam: "Lakers", AwayTeam: "Celtics",
		Scores: []oddsapi.Score{{Name: "Lakers", Score: "90"}, {Name: "Celtics", Score: "95"}}}}
	f.wallet.failures = 10
	var stages []string
	f.s.OnError = func(s string) { stages = append(stages, s) }

	res, _ := f.s.RunOnce(context.Background())
	if res.Failed != 1 || len(f.pub.got) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(f.dlq.msgs) != 1 || string(f.dlq.msgs[0].Key) != "b1" {
		t.Fatalf("dlq = %+v", f.dlq.msgs)
	}
	var job dto.SettlementJob
	if err := json.Unmarshal(f.dlq.msgs[0].Value, &job); err != nil {
		t.Fatal(err)
	}
	if job.Attempts != 3 || job.WinningOutcome != "Celtics" || job.PayoutCents != 10373 {
		t.Fatalf("job = %+v", job)
	}
	if len(stages) != 1 || stages[0] != "apply" {
		t.Fatalf("stages = %v", stages)
	}
}

func TestScoresFailureLeavesBetsPending(t *testing.T) {
	f := newFixture(h2hBet("b1", "ev-1", now.Add(-5*24*time.Hour)))
	f.scores.err = oddsapi.ErrQuotaExceeded

	res, err := f.s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// mesmo velha, a aposta não é anulada sem resposta da API
	if res.Waiting != 1 || len(f.bets.voided) != 0 {
		t.Fatalf("result = %+v voided = %v", res, f.bets.voided)
	}
}
