package feed

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sports-arbitrage-platform/internal/odds-api-simulator/dto"
)

const (
	lookBack   = 72 * time.Hour
	lookAhead  = 48 * time.Hour
	gameLength = 2 * time.Hour
)

type sportDef struct {
	key    string
	group  string
	title  string
	teams  []string
	draws  bool    // h2h com três resultados
	spread float64 // handicap do favorito
	total  float64 // linha de pontos
	slot   time.Duration

	// placar final: base + [0, span)
	scoreBase int
	scoreSpan int
}

var sports = []sportDef{
	{
		key: "soccer_brazil_campeonato", group: "Soccer", title: "Brazil Série A",
		teams: []string{"Flamengo", "Palmeiras", "Grêmio", "Internacional", "Corinthians", "Santos", "São Paulo", "Vasco da Gama"},
		draws: true, spread: 0.5, total: 2.5, slot: 6 * time.Hour, scoreBase: 0, scoreSpan: 4,
	},
	{
		key: "soccer_epl", group: "Soccer", title: "EPL",
		teams: []string{"Arsenal", "Chelsea", "Liverpool", "Manchester City", "Manchester United", "Tottenham Hotspur"},
		draws: true, spread: 0.5, total: 2.5, slot: 8 * time.Hour, scoreBase: 0, scoreSpan: 4,
	},
	{
		key: "basketball_nba", group: "Basketball", title: "NBA",
		teams: []string{"Los Angeles Lakers", "Boston Celtics", "Golden State Warriors", "Miami Heat", "Denver Nuggets", "Milwaukee Bucks"},
		spread: 4.5, total: 221.5, slot: 3 * time.Hour, scoreBase: 95, scoreSpan: 35,
	},
	{
		key: "americanfootball_nfl", group: "American Football", title: "NFL",
		teams: []string{"Kansas City Chiefs", "Buffalo Bills", "Philadelphia Eagles", "San Francisco 49ers", "Dallas Cowboys"},
		spread: 3.5, total: 44.5, slot: 12 * time.Hour, scoreBase: 10, scoreSpan: 25,
	},
}

type bookmaker struct {
	key    string
	title  string
	region string
}

var bookmakers = []bookmaker{
	{"fanduel", "FanDuel", "us"},
	{"draftkings", "DraftKings", "us"},
	{"betmgm", "BetMGM", "us"},
	{"williamhill_us", "Caesars", "us"},
	{"pinnacle", "Pinnacle", "eu"},
	{"betfair_ex_eu", "Betfair", "eu"},
	{"unibet_eu", "Unibet", "eu"},
	{"williamhill", "William Hill", "uk"},
	{"paddypower", "Paddy Power", "uk"},
	{"sportsbet", "SportsBet", "au"},
}

func findSport(key string) (sportDef, bool) {
	for _, s := range sports {
		if s.key == key {
			return s, true
		}
	}
	return sportDef{}, false
}

// fixtures gera o calendário em janelas fixas de s.slot, entre now-lookBack
// e now+lookAhead. O mesmo slot sempre produz o mesmo jogo e o mesmo id.
func (s sportDef) fixtures(now time.Time) []dto.Fixture {
	step := int64(s.slot / time.Second)
	first := now.Add(-lookBack).Unix()/step + 1
	last := now.Add(lookAhead).Unix() / step

	n := int64(len(s.teams))
	out := make([]dto.Fixture, 0, last-first+1)
	for k := first; k <= last; k++ {
		home := k % n
		away := (home + 1 + (k/n)%(n-1)) % n
		out = append(out, dto.Fixture{
			EventID:      eventID(s.key, k),
			SportKey:     s.key,
			SportTitle:   s.title,
			HomeTeam:     s.teams[home],
			AwayTeam:     s.teams[away],
			CommenceTime: time.Unix(k*step, 0).UTC(),
			Slot:         k,
		})
	}
	return out
}

// eventID imita os ids hexadecimais de 32 caracteres da API
func eventID(sport string, slot int64) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("odds-sim/%s/%d", sport, slot)))
	return strings.ReplaceAll(id.String(), "-", "")
}

func phase(f dto.Fixture, now time.Time) string {
	switch {
	case now.Before(f.CommenceTime):
		return dto.PhaseUpcoming
	case now.Before(f.CommenceTime.Add(gameLength)):
		return dto.PhaseLive
	}
	return dto.PhaseFinished
}

func seed(id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64() & (1<<63 - 1))
}
