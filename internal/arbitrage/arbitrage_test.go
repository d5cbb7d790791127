package arbitrage

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
)

func pt(v float64) *float64 { return &v }

func book(key string, markets ...oddsapi.Market) oddsapi.Bookmaker {
	return oddsapi.Bookmaker{Key: key, Title: key, Markets: markets}
}

func market(key string, outcomes ...oddsapi.Outcome) oddsapi.Market {
	return oddsapi.Market{Key: key, Outcomes: outcomes}
}

func out(name string, price float64, point *float64) oddsapi.Outcome {
	return oddsapi.Outcome{Name: name, Price: price, Point: point}
}

func nbaEvent(id string, books ...oddsapi.Bookmaker) oddsapi.Event {
	return oddsapi.Event{
		ID:           id,
		SportKey:     "basketball_nba",
		SportTitle:   "NBA",
		HomeTeam:     "Boston Celtics",
		AwayTeam:     "Miami Heat",
		CommenceTime: time.Date(2025, 3, 1, 0, 10, 0, 0, time.UTC),
		Bookmakers:   books,
	}
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestProfitPercent(t *testing.T) {
	cases := []struct {
		name   string
		prices []float64
		want   float64
		err    error
	}{
		{"arbitrage", []float64{2.10, 2.05}, 3.7349, nil},
		{"fair book", []float64{2.0, 2.0}, 0, nil},
		{"vig", []float64{1.91, 1.91}, -4.5, nil},
		{"single price", []float64{2.0}, 0, ErrNoPrices},
		{"invalid price", []float64{2.0, 1.0}, 0, ErrInvalidPrice},
		{"nan", []float64{2.0, math.NaN()}, 0, ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ProfitPercent(tc.prices)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
			if err == nil && !near(got, tc.want, 0.001) {
				t.Fatalf("got %.4f, want %.4f", got, tc.want)
			}
		})
	}
}

func TestCalculateStakes(t *testing.T) {
	plan, err := CalculateStakes([]float64{2.10, 2.05}, decimal.NewFromInt(100))
	if err != nil {
		t.Fatal(err)
	}
	want := []struct{ stake, payout string }{{"49.40", "103.74"}, {"50.60", "103.73"}}
	for i, w := range want {
		if !plan.Stakes[i].Equal(decimal.RequireFromString(w.stake)) {
			t.Errorf("stake[%d] = %s, want %s", i, plan.Stakes[i], w.stake)
		}
		if !plan.Payouts[i].Equal(decimal.RequireFromString(w.payout)) {
			t.Errorf("payout[%d] = %s, want %s", i, plan.Payouts[i], w.payout)
		}
	}
	if !plan.TotalStake.Equal(decimal.NewFromInt(100)) {
		t.Errorf("total = %s", plan.TotalStake)
	}
	if !plan.GuaranteedProfit.Equal(decimal.RequireFromString("3.73")) {
		t.Errorf("profit = %s", plan.GuaranteedProfit)
	}
	if !plan.IsArbitrage {
		t.Error("should be arbitrage")
	}
}

func TestCalculateStakesErrors(t *testing.T) {
	if _, err := CalculateStakes(nil, decimal.NewFromInt(100)); !errors.Is(err, ErrNoPrices) {
		t.Fatalf("got %v", err)
	}
	if _, err := CalculateStakes([]float64{2, 0.5}, decimal.NewFromInt(100)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("got %v", err)
	}
	if _, err := CalculateStakes([]float64{2, 2}, decimal.Zero); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("got %v", err)
	}
}

func TestDetectH2HPairwise(t *testing.T) {
	ev := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 2.10, nil), out("Miami Heat", 1.80, nil))),
		book("fanduel", market("h2h", out("Boston Celtics", 1.85, nil), out("Miami Heat", 2.05, nil))),
	)
	d := NewDetector(Config{MinProfitPercent: 0.5, MaxProfitPercent: 15, TotalStake: decimal.NewFromInt(100)})

	opps := d.Detect([]oddsapi.Event{ev})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	o := opps[0]
	if o.Legs[0].Bookmaker != "draftkings" || o.Legs[1].Bookmaker != "fanduel" {
		t.Fatalf("wrong legs %+v", o.Legs)
	}
	if !near(o.ProfitPercent, 3.7349, 0.001) {
		t.Fatalf("profit = %v", o.ProfitPercent)
	}
	if !o.GuaranteedProfit.Equal(decimal.RequireFromString("3.73")) {
		t.Fatalf("guaranteed = %s", o.GuaranteedProfit)
	}
	if o.ID != OpportunityID("evt1", "h2h", o.Legs) || o.ID == "" {
		t.Fatal("id must be deterministic")
	}
}

func TestDetectExcludesSameBookmaker(t *testing.T) {
	// a única combinação lucrativa seria dentro da mesma casa
	ev := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 2.10, nil), out("Miami Heat", 2.10, nil))),
		book("fanduel", market("h2h", out("Boston Celtics", 1.50, nil), out("Miami Heat", 1.50, nil))),
	)
	if opps := NewDetector(Config{}).Detect([]oddsapi.Event{ev}); len(opps) != 0 {
		t.Fatalf("expected none, got %+v", opps)
	}
}

func TestDetectNeedsTwoBookmakers(t *testing.T) {
	ev := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 2.10, nil), out("Miami Heat", 2.10, nil))),
		book("fanduel", market("spreads", out("Boston Celtics", 1.9, pt(-3.5)), out("Miami Heat", 1.9, pt(3.5)))),
	)
	if opps := NewDetector(Config{}).Detect([]oddsapi.Event{ev}); len(opps) != 0 {
		t.Fatalf("expected none, got %d", len(opps))
	}
}

func TestDetectSpreadsOnlyComplementaryPoints(t *testing.T) {
	ev := nbaEvent("evt1",
		book("draftkings", market("spreads",
			out("Boston Celtics", 2.10, pt(-3.5)), out("Miami Heat", 1.80, pt(3.5)))),
		book("fanduel", market("spreads",
			out("Boston Celtics", 1.80, pt(-3.5)), out("Miami Heat", 2.05, pt(3.5)),
			out("Boston Celtics", 2.50, pt(-4.5)), out("Miami Heat", 1.55, pt(4.5)))),
	)
	d := NewDetector(Config{Markets: []string{"spreads"}})

	opps := d.Detect([]oddsapi.Event{ev})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	legs := opps[0].Legs
	if *legs[0].Point != -3.5 || *legs[1].Point != 3.5 {
		t.Fatalf("mixed lines: %v %v", *legs[0].Point, *legs[1].Point)
	}
}

func TestDetectTotalsSameLine(t *testing.T) {
	ev := nbaEvent("evt1",
		book("draftkings", market("totals", out("Over", 2.10, pt(221.5)), out("Under", 1.80, pt(221.5)))),
		book("fanduel", market("totals",
			out("Over", 1.80, pt(221.5)), out("Under", 2.05, pt(221.5)),
			out("Over", 2.60, pt(225.5)))),
	)
	opps := NewDetector(Config{Markets: []string{"totals"}}).Detect([]oddsapi.Event{ev})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	for _, l := range opps[0].Legs {
		if *l.Point != 221.5 {
			t.Fatalf("unexpected line %v", *l.Point)
		}
	}
}

func TestDetectThreeWayBestLine(t *testing.T) {
	ev := oddsapi.Event{
		ID: "epl1", SportKey: "soccer_epl", HomeTeam: "Arsenal", AwayTeam: "Chelsea",
		Bookmakers: []oddsapi.Bookmaker{
			book("bet365", market("h2h", out("Arsenal", 2.60, nil), out("Draw", 3.10, nil), out("Chelsea", 2.90, nil))),
			book("unibet", market("h2h", out("Arsenal", 2.30, nil), out("Draw", 3.60, nil), out("Chelsea", 3.30, nil))),
		},
	}
	opps := NewDetector(Config{}).Detect([]oddsapi.Event{ev})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	got := opps[0].Prices()
	want := []float64{2.60, 3.60, 3.30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prices = %v, want %v", got, want)
		}
	}
	if len(opps[0].Legs) != 3 || opps[0].ProfitPercent <= 0 {
		t.Fatalf("unexpected %+v", opps[0])
	}
}

func TestDetectFilters(t *testing.T) {
	ev := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 2.10, nil), out("Miami Heat", 1.80, nil))),
		book("fanduel", market("h2h", out("Boston Celtics", 1.85, nil), out("Miami Heat", 2.05, nil))),
		book("sketchy", market("h2h", out("Boston Celtics", 1.01, nil), out("Miami Heat", 0.9, nil))),
	)

	cases := []struct {
		name string
		cfg  Config
		want int
	}{
		{"above max profit", Config{MaxProfitPercent: 3}, 0},
		{"below min profit", Config{MinProfitPercent: 5}, 0},
		{"allow-list without fanduel", Config{Bookmakers: []string{"draftkings", "sketchy"}}, 0},
		{"allow-list ok", Config{Bookmakers: []string{"draftkings", "fanduel"}}, 1},
		{"market not configured", Config{Markets: []string{"totals"}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := len(NewDetector(tc.cfg).Detect([]oddsapi.Event{ev})); got != tc.want {
				t.Fatalf("got %d opportunities, want %d", got, tc.want)
			}
		})
	}
}

func TestDetectMaxProfitSkipsStaleBook(t *testing.T) {
	ev := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 2.10, nil), out("Miami Heat", 1.80, nil))),
		book("fanduel", market("h2h", out("Boston Celtics", 1.85, nil), out("Miami Heat", 2.05, nil))),
		book("stale", market("h2h", out("Boston Celtics", 1.20, nil), out("Miami Heat", 9.00, nil))),
	)
	opps := NewDetector(Config{MaxProfitPercent: 10}).Detect([]oddsapi.Event{ev})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	o := opps[0]
	if o.Legs[0].Bookmaker != "draftkings" || o.Legs[1].Bookmaker != "fanduel" {
		t.Fatalf("wrong legs %+v", o.Legs)
	}
	if !near(o.ProfitPercent, 3.7349, 0.001) {
		t.Fatalf("profit = %v", o.ProfitPercent)
	}

	// sem teto a linha velha vence
	opps = NewDetector(Config{}).Detect([]oddsapi.Event{ev})
	if len(opps) != 1 || opps[0].Legs[1].Bookmaker != "stale" {
		t.Fatalf("unexpected %+v", opps)
	}
}

func TestDetectThreeWayMaxProfitDropsOutlier(t *testing.T) {
	ev := oddsapi.Event{
		ID: "epl1", SportKey: "soccer_epl", HomeTeam: "Arsenal", AwayTeam: "Chelsea",
		Bookmakers: []oddsapi.Bookmaker{
			book("bet365", market("h2h", out("Arsenal", 2.60, nil), out("Draw", 3.10, nil), out("Chelsea", 2.90, nil))),
			book("unibet", market("h2h", out("Arsenal", 2.30, nil), out("Draw", 3.60, nil), out("Chelsea", 3.30, nil))),
			book("stale", market("h2h", out("Arsenal", 15.0, nil), out("Draw", 3.00, nil), out("Chelsea", 2.50, nil))),
		},
	}
	opps := NewDetector(Config{MaxProfitPercent: 10}).Detect([]oddsapi.Event{ev})
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	got := opps[0].Prices()
	want := []float64{2.60, 3.60, 3.30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prices = %v, want %v", got, want)
		}
	}
	if opps[0].ProfitPercent > 10 {
		t.Fatalf("profit = %v above max", opps[0].ProfitPercent)
	}
}

func TestDetectSortedByProfit(t *testing.T) {
	small := nbaEvent("small",
		book("a", market("h2h", out("Boston Celtics", 2.05, nil), out("Miami Heat", 1.5, nil))),
		book("b", market("h2h", out("Boston Celtics", 1.5, nil), out("Miami Heat", 2.02, nil))),
	)
	big := nbaEvent("big",
		book("a", market("h2h", out("Boston Celtics", 2.20, nil), out("Miami Heat", 1.5, nil))),
		book("b", market("h2h", out("Boston Celtics", 1.5, nil), out("Miami Heat", 2.10, nil))),
	)
	opps := NewDetector(Config{}).Detect([]oddsapi.Event{small, big})
	if len(opps) != 2 || opps[0].EventID != "big" || opps[1].EventID != "small" {
		t.Fatalf("unexpected order %+v", opps)
	}
}

func TestOpportunityIDStableAcrossPriceChanges(t *testing.T) {
	ev := func(p float64) oddsapi.Event {
		return nbaEvent("evt1",
			book("draftkings", market("h2h", out("Boston Celtics", p, nil), out("Miami Heat", 1.80, nil))),
			book("fanduel", market("h2h", out("Boston Celtics", 1.85, nil), out("Miami Heat", 2.05, nil))),
		)
	}
	d := NewDetector(Config{})
	a := d.Detect([]oddsapi.Event{ev(2.10)})
	b := d.Detect([]oddsapi.Event{ev(2.15)})
	if len(a) != 1 || len(b) != 1 || a[0].ID != b[0].ID {
		t.Fatal("same combination should keep its id")
	}
}

func TestRevalidate(t *testing.T) {
	orig := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 2.10, nil), out("Miami Heat", 1.80, nil))),
		book("fanduel", market("h2h", out("Boston Celtics", 1.85, nil), out("Miami Heat", 2.05, nil))),
	)
	opp := NewDetector(Config{}).Detect([]oddsapi.Event{orig})[0]

	rv := Revalidate(opp, orig)
	if rv.Moved || rv.Missing || !rv.StillArbitrage {
		t.Fatalf("unchanged event: %+v", rv)
	}

	moved := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 1.90, nil), out("Miami Heat", 1.80, nil))),
		book("fanduel", market("h2h", out("Boston Celtics", 1.85, nil), out("Miami Heat", 2.05, nil))),
	)
	rv = Revalidate(opp, moved)
	if !rv.Moved || rv.StillArbitrage || rv.Current[0] != 1.90 {
		t.Fatalf("moved event: %+v", rv)
	}

	gone := nbaEvent("evt1",
		book("draftkings", market("h2h", out("Boston Celtics", 2.10, nil), out("Miami Heat", 1.80, nil))),
	)
	if rv = Revalidate(opp, gone); !rv.Missing {
		t.Fatalf("missing leg not detected: %+v", rv)
	}
}
