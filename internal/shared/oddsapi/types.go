package oddsapi

import "time"

// Tipos no formato da API v4 (sports, odds, scores)

type Sport struct {
	Key          string `json:"key"`
	Group        string `json:"group"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Active       bool   `json:"active"`
	HasOutrights bool   `json:"has_outrights"`
}

type Outcome struct {
	Name        string   `json:"name"`
	Price       float64  `json:"price"` // sempre decimal (oddsFormat=decimal)
	Point       *float64 `json:"point,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Market struct {
	Key        string    `json:"key"`
	LastUpdate time.Time `json:"last_update"`
	Outcomes   []Outcome `json:"outcomes"`
}

type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market devolve o mercado pelo key, se o bookmaker o oferecer
func (b Bookmaker) Market(key string) (Market, bool) {
	for _, m := range b.Markets {
		if m.Key == key {
			return m, true
		}
	}
	return Market{}, false
}

type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

type Score struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

type ScoreEvent struct {
	ID           string     `json:"id"`
	SportKey     string     `json:"sport_key"`
	SportTitle   string     `json:"sport_title"`
	CommenceTime time.Time  `json:"commence_time"`
	Completed    bool       `json:"completed"`
	HomeTeam     string     `json:"home_team"`
	AwayTeam     string     `json:"away_team"`
	Scores       []Score    `json:"scores"`
	LastUpdate   *time.Time `json:"last_update"`
}

// OddsQuery são os filtros do endpoint de odds
type OddsQuery struct {
	Regions    []string
	Markets    []string
	Bookmakers []string
	EventIDs   []string
}

// Quota reflete os headers x-requests-remaining / x-requests-used da última resposta
type Quota struct {
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	Known     bool      `json:"known"`
	UpdatedAt time.Time `json:"updated_at"`
}
