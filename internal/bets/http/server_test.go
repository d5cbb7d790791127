package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/bets/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
	portfoliorepo "github.com/radieske/sports-arbitrage-platform/internal/portfolio/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

var (
	now   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start = now.Add(6 * time.Hour)
)

type fakeRepo struct {
	bets   map[string]*repo.Bet
	voided map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bets: map[string]*repo.Bet{}, voided: map[string]string{}}
}

func (f *fakeRepo) CreatePending(ctx context.Context, b *repo.Bet) (string, error) {
	b.ID = "bet-1"
	b.Status = repo.StatusPending
	f.bets[b.ID] = b
	return b.ID, nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (repo.Bet, error) {
	b, ok := f.bets[id]
	if !ok {
		return repo.Bet{}, repo.ErrNotFound
	}
	return *b, nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID, status string, limit int) ([]repo.Bet, error) {
	var out []repo.Bet
	for _, b := range f.bets {
		if b.UserID == userID && (status == "" || b.Status == status) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkVoid(ctx context.Context, id, reason string) (bool, error) {
	f.voided[id] = reason
	if b, ok := f.bets[id]; ok {
		b.Status = repo.StatusVoid
	}
	return true, nil
}

type fakeOpps map[string]events.Opportunity

func (f fakeOpps) Get(ctx context.Context, id string) (events.Opportunity, bool, error) {
	o, ok := f[id]
	return o, ok, nil
}

type fakeOdds struct {
	events []oddsapi.Event
	err    error
	query  oddsapi.OddsQuery
}

func (f *fakeOdds) Odds(ctx context.Context, sport string, q oddsapi.OddsQuery) ([]oddsapi.Event, error) {
	f.query = q
	return f.events, f.err
}

type fakeWallet struct{ err error }

func (f fakeWallet) Reserve(ctx context.Context, userID string, amount int64, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "res-1", nil
}

type fakePub struct{ placed []events.BetPlaced }

func (f *fakePub) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	f.placed = append(f.placed, e)
	return nil
}

func opportunity() events.Opportunity {
	return events.Opportunity{
		ID: "opp-1", EventID: "ev-1", SportKey: "basketball_nba", Market: "h2h",
		HomeTeam: "Lakers", AwayTeam: "Celtics", CommenceTime: start,
		Legs: []events.Leg{
			{Bookmaker: "fanduel", Outcome: "Lakers", Price: 2.10},
			{Bookmaker: "draftkings", Outcome: "Celtics", Price: 2.05},
		},
	}
}

func event(lakers, celtics float64) oddsapi.Event {
	return oddsapi.Event{
		ID: "ev-1", SportKey: "basketball_nba", HomeTeam: "Lakers", AwayTeam: "Celtics", CommenceTime: start,
		Bookmakers: []oddsapi.Bookmaker{
			{Key: "fanduel", Markets: []oddsapi.Market{{Key: "h2h", Outcomes: []oddsapi.Outcome{
				{Name: "Lakers", Price: lakers}, {Name: "Celtics", Price: 1.70},
			}}}},
			{Key: "draftkings", Markets: []oddsapi.Market{{Key: "h2h", Outcomes: []oddsapi.Outcome{
				{Name: "Lakers", Price: 1.75}, {Name: "Celtics", Price: celtics},
			}}}},
		},
	}
}

type fixture struct {
	repo *fakeRepo
	odds *fakeOdds
	pub  *fakePub
	h    http.Handler
}

func newFixture(walletErr error, ev oddsapi.Event) *fixture {
	f := &fixture{repo: newFakeRepo(), odds: &fakeOdds{events: []oddsapi.Event{ev}}, pub: &fakePub{}}
	s := NewServer(zap.NewNop(), f.repo, fakeOpps{"opp-1": opportunity()}, f.odds, fakeWallet{err: walletErr}, f.pub, []string{"us"})
	s.now = func() time.Time { return now }
	f.h = s.Router()
	return f
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = req.WithContext(auth.WithUser(req.Context(), auth.User{ID: "u1", Role: auth.RoleUser}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBetSplitsStakeAndPublishes(t *testing.T) {
	f := newFixture(nil, event(2.10, 2.05))

	rec := post(t, f.h, `{"opportunity_id":"opp-1","total_stake":"100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var resp dto.PlaceBetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	b := resp.Bet
	if b.TotalStakeCents != 10000 || b.ExpectedProfitCents != 373 {
		t.Fatalf("bet totals = %d / %d", b.TotalStakeCents, b.ExpectedProfitCents)
	}
	if b.Legs[0].StakeCents != 4940 || b.Legs[1].StakeCents != 5060 {
		t.Fatalf("legs = %+v", b.Legs)
	}
	if f.odds.query.EventIDs[0] != "ev-1" || f.odds.query.Markets[0] != "h2h" {
		t.Fatalf("revalidation query = %+v", f.odds.query)
	}
	if len(f.pub.placed) != 1 || f.pub.placed[0].ReservedRef != "bet-1" || len(f.pub.placed[0].Legs) != 2 {
		t.Fatalf("published = %+v", f.pub.placed)
	}
}

func TestPlaceBetConflicts(t *testing.T) {
	cases := []struct {
		name      string
		ev        oddsapi.Event
		walletErr error
		want      int
		voided    bool
	}{
		{"price moved", event(2.00, 2.05), nil, http.StatusConflict, false},
		{"no longer arbitrage", event(1.90, 1.95), nil, http.StatusConflict, false},
		{"event gone", oddsapi.Event{ID: "other"}, nil, http.StatusConflict, false},
		{"insufficient funds", event(2.10, 2.05), portfoliorepo.ErrInsufficientFunds, http.StatusConflict, true},
		{"wallet failure", event(2.10, 2.05), errors.New("db down"), http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(tc.walletErr, tc.ev)
			rec := post(t, f.h, `{"opportunity_id":"opp-1","total_stake":"100"}`)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body)
			}
			if _, ok := f.repo.voided["bet-1"]; ok != tc.voided {
				t.Fatalf("voided = %v, want %v", ok, tc.voided)
			}
			if len(f.pub.placed) != 0 {
				t.Fatal("nothing should be published")
			}
		})
	}
}

func TestPlaceBetValidation(t *testing.T) {
	f := newFixture(nil, event(2.10, 2.05))
	cases := map[string]struct {
		body string
		want int
	}{
		"bad json":    {`{`, http.StatusBadRequest},
		"zero stake":  {`{"opportunity_id":"opp-1","total_stake":"0"}`, http.StatusBadRequest},
		"missing id":  {`{"total_stake":"10"}`, http.StatusBadRequest},
		"unknown opp": {`{"opportunity_id":"nope","total_stake":"10"}`, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if rec := post(t, f.h, tc.body); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestGetBetHidesOtherUsers(t *testing.T) {
	f := newFixture(nil, event(2.10, 2.05))
	f.repo.bets["mine"] = &repo.Bet{ID: "mine", UserID: "u1", TotalStakeCents: 100}
	f.repo.bets["theirs"] = &repo.Bet{ID: "theirs", UserID: "u2"}

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(auth.WithUser(req.Context(), auth.User{ID: "u1"}))
		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)
		return rec.Code
	}
	if got := get("/mine"); got != http.StatusOK {
		t.Fatalf("own bet status = %d", got)
	}
	if got := get("/theirs"); got != http.StatusNotFound {
		t.Fatalf("other user's bet status = %d", got)
	}
}

func TestCents(t *testing.T) {
	if got := cents(decimal.RequireFromString("103.735")); got != 10374 {
		t.Fatalf("cents = %d", got)
	}
}
