package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/settings"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

type fakeOdds struct {
	bySport map[string][]oddsapi.Event
	errs    map[string]error
	quota   oddsapi.Quota
	calls   []string
}

func (f *fakeOdds) Odds(ctx context.Context, sport string, q oddsapi.OddsQuery) ([]oddsapi.Event, error) {
	f.calls = append(f.calls, sport)
	if err := f.errs[sport]; err != nil {
		return nil, err
	}
	return f.bySport[sport], nil
}

func (f *fakeOdds) Quota() oddsapi.Quota { return f.quota }

type fakePublisher struct {
	got []events.Opportunity
	err error
}

func (f *fakePublisher) PublishAll(ctx context.Context, opps []events.Opportunity) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = append(f.got, opps...)
	return len(opps), nil
}

type staticSettings settings.AppSettings

func (s staticSettings) Load(ctx context.Context) settings.AppSettings { return settings.AppSettings(s) }

func appSettings(sports ...string) settings.AppSettings {
	return settings.AppSettings{
		Sports:           sports,
		Regions:          []string{"us"},
		Markets:          []string{"h2h"},
		MinProfitPercent: 0.5,
		MaxProfitPercent: 15,
		DefaultStake:     100,
		PollInterval:     5 * time.Second,
		PollingEnabled:   true,
	}
}

func h2hEvent(id, sport string, home, away float64) oddsapi.Event {
	return oddsapi.Event{
		ID: id, SportKey: sport, HomeTeam: "Home", AwayTeam: "Away",
		CommenceTime: time.Now().Add(time.Hour),
		Bookmakers: []oddsapi.Bookmaker{
			{Key: "fanduel", Markets: []oddsapi.Market{{Key: "h2h", Outcomes: []oddsapi.Outcome{
				{Name: "Home", Price: home}, {Name: "Away", Price: 1.70},
			}}}},
			{Key: "draftkings", Markets: []oddsapi.Market{{Key: "h2h", Outcomes: []oddsapi.Outcome{
				{Name: "Home", Price: 1.75}, {Name: "Away", Price: away},
			}}}},
		},
	}
}

func newPoller(odds *fakeOdds, pub *fakePublisher) (*Poller, *[]string) {
	var stages []string
	p := &Poller{
		Log:       zap.NewNop(),
		Odds:      odds,
		Settings:  staticSettings(appSettings()),
		Publisher: pub,
		MinQuota:  10,
		OnError:   func(s string) { stages = append(stages, s) },
	}
	return p, &stages
}

func TestCycleDetectsAndPublishes(t *testing.T) {
	odds := &fakeOdds{bySport: map[string][]oddsapi.Event{
		"basketball_nba": {h2hEvent("nba-1", "basketball_nba", 2.10, 2.05), h2hEvent("nba-2", "basketball_nba", 1.80, 1.80)},
		"soccer_epl":     {h2hEvent("epl-1", "soccer_epl", 2.20, 2.00)},
	}}
	pub := &fakePublisher{}
	p, _ := newPoller(odds, pub)
	var detected int
	p.OnDetected = func(events.Opportunity) { detected++ }

	res := p.Cycle(context.Background(), appSettings("basketball_nba", "soccer_epl"))
	if res.Sports != 2 || res.Events != 3 || res.Opportunities != 2 || res.Published != 2 {
		t.Fatalf("result = %+v", res)
	}
	if detected != 2 || len(pub.got) != 2 {
		t.Fatalf("detected=%d published=%d", detected, len(pub.got))
	}
	for _, o := range pub.got {
		if o.ID == "" || o.EventID == "nba-2" {
			t.Fatalf("unexpected opportunity %+v", o)
		}
	}
}

func TestCycleSkipsWhenQuotaLow(t *testing.T) {
	odds := &fakeOdds{quota: oddsapi.Quota{Remaining: 3, Known: true}}
	p, _ := newPoller(odds, &fakePublisher{})

	res := p.Cycle(context.Background(), appSettings("basketball_nba"))
	if res.Skipped != "quota" || len(odds.calls) != 0 {
		t.Fatalf("result = %+v calls = %v", res, odds.calls)
	}
}

func TestCycleContinuesAfterSportFailure(t *testing.T) {
	odds := &fakeOdds{
		bySport: map[string][]oddsapi.Event{"soccer_epl": {h2hEvent("epl-1", "soccer_epl", 2.20, 2.00)}},
		errs:    map[string]error{"basketball_nba": errors.New("timeout")},
	}
	pub := &fakePublisher{}
	p, stages := newPoller(odds, pub)

	res := p.Cycle(context.Background(), appSettings("basketball_nba", "soccer_epl"))
	if res.Sports != 1 || res.Published != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(*stages) != 1 || (*stages)[0] != "fetch" {
		t.Fatalf("stages = %v", *stages)
	}
}

func TestCycleStopsOnQuotaExceeded(t *testing.T) {
	odds := &fakeOdds{errs: map[string]error{"basketball_nba": oddsapi.ErrQuotaExceeded}}
	p, _ := newPoller(odds, &fakePublisher{})

	res := p.Cycle(context.Background(), appSettings("basketball_nba", "soccer_epl"))
	if res.Skipped != "upstream" || len(odds.calls) != 1 {
		t.Fatalf("result = %+v calls = %v", res, odds.calls)
	}
}

func TestCyclePublishFailureCounted(t *testing.T) {
	odds := &fakeOdds{bySport: map[string][]oddsapi.Event{
		"basketball_nba": {h2hEvent("nba-1", "basketball_nba", 2.10, 2.05)},
	}}
	p, stages := newPoller(odds, &fakePublisher{err: errors.New("broker down")})
	var cycles int
	p.OnCycle = func(time.Duration, CycleResult) { cycles++ }

	res := p.Cycle(context.Background(), appSettings("basketball_nba"))
	if res.Opportunities != 1 || res.Published != 0 || cycles != 1 {
		t.Fatalf("result = %+v cycles = %d", res, cycles)
	}
	if (*stages)[0] != "publish" {
		t.Fatalf("stages = %v", *stages)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	odds := &fakeOdds{}
	p, _ := newPoller(odds, &fakePublisher{})
	p.Settings = staticSettings(appSettings("basketball_nba"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
