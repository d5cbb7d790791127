package feed

import (
	"testing"
	"time"

	"github.com/radieske/sports-arbitrage-platform/internal/arbitrage"
	"github.com/radieske/sports-arbitrage-platform/internal/odds-api-simulator/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
)

var now = time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC)

func fixed() time.Time { return now }

func TestFixturesAreStable(t *testing.T) {
	s, _ := findSport("basketball_nba")
	a := s.fixtures(now)
	b := s.fixtures(now.Add(20 * time.Minute))
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("fixtures = %d / %d", len(a), len(b))
	}
	for i, fx := range a {
		if fx != b[i] {
			t.Fatalf("fixture %d changed: %+v != %+v", i, fx, b[i])
		}
		if len(fx.EventID) != 32 {
			t.Fatalf("event id %q", fx.EventID)
		}
		if fx.HomeTeam == fx.AwayTeam {
			t.Fatalf("team plays itself: %+v", fx)
		}
		if fx.CommenceTime.Before(now.Add(-lookBack)) || fx.CommenceTime.After(now.Add(lookAhead)) {
			t.Fatalf("fixture outside window: %v", fx.CommenceTime)
		}
	}
}

func TestOddsInjectsArbitrage(t *testing.T) {
	q := oddsapi.OddsQuery{Regions: []string{"us", "eu"}, Markets: []string{"h2h", "spreads", "totals"}}
	det := arbitrage.NewDetector(arbitrage.Config{MinProfitPercent: 0.5, Markets: q.Markets})

	always := New(Options{ArbProbability: 1, Seed: 7, Now: fixed})
	evs, ok := always.Odds("basketball_nba", q)
	if !ok || len(evs) == 0 {
		t.Fatalf("odds = %d, %v", len(evs), ok)
	}
	for _, ev := range evs {
		if len(ev.Bookmakers) != 7 {
			t.Fatalf("bookmakers for us+eu = %d", len(ev.Bookmakers))
		}
		if got := len(det.Detect([]oddsapi.Event{ev})); got != 3 {
			t.Fatalf("event %s: %d opportunities, want one per market", ev.ID, got)
		}
	}

	never := New(Options{ArbProbability: 0, Seed: 7, Now: fixed})
	evs, _ = never.Odds("basketball_nba", q)
	if opps := det.Detect(evs); len(opps) != 0 {
		t.Fatalf("unexpected opportunities without injection: %+v", opps[0])
	}
}

func TestOddsFilters(t *testing.T) {
	f := New(Options{Seed: 1, Now: fixed})
	all, _ := f.Odds("soccer_epl", oddsapi.OddsQuery{Regions: []string{"uk"}})
	if len(all) < 2 {
		t.Fatalf("events = %d", len(all))
	}
	for _, ev := range all {
		if !ev.CommenceTime.Add(gameLength).After(now) {
			t.Fatalf("finished event offered: %v", ev.CommenceTime)
		}
		m, ok := ev.Bookmakers[0].Market("h2h")
		if !ok || len(m.Outcomes) != 3 || m.Outcomes[1].Name != "Draw" {
			t.Fatalf("soccer h2h = %+v", m)
		}
	}

	one, _ := f.Odds("soccer_epl", oddsapi.OddsQuery{
		Bookmakers: []string{"pinnacle"},
		EventIDs:   []string{all[1].ID},
	})
	if len(one) != 1 || len(one[0].Bookmakers) != 1 || one[0].Bookmakers[0].Key != "pinnacle" {
		t.Fatalf("filtered = %+v", one)
	}

	if _, ok := f.Odds("curling", oddsapi.OddsQuery{Regions: []string{"us"}}); ok {
		t.Fatal("unknown sport accepted")
	}
}

func TestScores(t *testing.T) {
	f := New(Options{Now: fixed})
	s, _ := findSport("basketball_nba")

	var finished, live dto.Fixture
	for _, fx := range s.fixtures(now) {
		switch phase(fx, now) {
		case dto.PhaseFinished:
			finished = fx
		case dto.PhaseLive:
			live = fx
		}
	}

	recent, _ := f.Scores("basketball_nba", 0, nil)
	for _, ev := range recent {
		if ev.Completed {
			t.Fatal("completed event without daysFrom")
		}
	}

	got, _ := f.Scores("basketball_nba", 3, []string{finished.EventID, live.EventID})
	if len(got) != 2 {
		t.Fatalf("scores = %+v", got)
	}
	for _, ev := range got {
		if len(ev.Scores) != 2 || ev.LastUpdate == nil {
			t.Fatalf("score event = %+v", ev)
		}
		if ev.ID == finished.EventID && !ev.Completed {
			t.Fatal("finished event not completed")
		}
		if ev.ID == live.EventID && ev.Completed {
			t.Fatal("live event completed")
		}
	}

	// o placar final não muda entre consultas
	again, _ := f.Scores("basketball_nba", 3, []string{finished.EventID})
	if got[0].ID != finished.EventID || again[0].Scores[0] != got[0].Scores[0] || again[0].Scores[1] != got[0].Scores[1] {
		t.Fatalf("final score changed: %+v", again[0].Scores)
	}
}

func TestBookmakersExplicitListWins(t *testing.T) {
	got := Bookmakers([]string{"us"}, []string{"pinnacle", "unknown"})
	if len(got) != 1 || got[0] != "pinnacle" {
		t.Fatalf("bookmakers = %v", got)
	}
	if got := Bookmakers([]string{"au"}, nil); len(got) != 1 {
		t.Fatalf("au bookmakers = %v", got)
	}
}
