package settler

import (
	"strconv"
	"strings"

	"github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
)

const (
	outcomeDraw  = "Draw"
	outcomeOver  = "Over"
	outcomeUnder = "Under"
)

// Decision é o resultado da liquidação de uma aposta
type Decision struct {
	Status         string // repo.StatusSettled | repo.StatusVoid
	WinningOutcome string
	PayoutCents    int64
	Reason         string
}

func void(reason string) Decision {
	return Decision{Status: repo.StatusVoid, Reason: reason}
}

// teamScores lê os placares do mandante e do visitante
func teamScores(ev oddsapi.ScoreEvent) (home, away int, ok bool) {
	var gotHome, gotAway bool
	for _, s := range ev.Scores {
		n, err := strconv.Atoi(strings.TrimSpace(s.Score))
		if err != nil {
			return 0, 0, false
		}
		switch s.Name {
		case ev.HomeTeam:
			home, gotHome = n, true
		case ev.AwayTeam:
			away, gotAway = n, true
		}
	}
	return home, away, gotHome && gotAway
}

// winningOutcome aplica a regra do mercado; "" indica push (devolução)
func winningOutcome(b repo.Bet, home, away int) (string, string) {
	switch b.Market {
	case "totals":
		var line *float64
		for _, l := range b.Legs {
			if l.Point != nil {
				line = l.Point
				break
			}
		}
		if line == nil {
			return "", "totals bet without line"
		}
		sum := float64(home + away)
		switch {
		case sum > *line:
			return outcomeOver, ""
		case sum < *line:
			return outcomeUnder, ""
		}
		return "", "push on total line"

	case "spreads":
		var point *float64
		for _, l := range b.Legs {
			if l.Outcome == b.HomeTeam && l.Point != nil {
				point = l.Point
				break
			}
			// só a perna do visitante: o handicap do mandante é o oposto
			if l.Outcome == b.AwayTeam && l.Point != nil && point == nil {
				p := -*l.Point
				point = &p
			}
		}
		if point == nil {
			return "", "spreads bet without handicap"
		}
		adjusted := float64(home) + *point
		switch {
		case adjusted > float64(away):
			return b.HomeTeam, ""
		case adjusted < float64(away):
			return b.AwayTeam, ""
		}
		return "", "push on spread"

	default: // h2h
		switch {
		case home > away:
			return b.HomeTeam, ""
		case away > home:
			return b.AwayTeam, ""
		}
		return outcomeDraw, ""
	}
}

// Decide liquida a aposta a partir do placar final. ok=false enquanto o
// evento não terminou. A perna vencedora paga o seu payout; sem perna
// vencedora (push, empate sem perna de empate, placar ilegível) a aposta é anulada.
func Decide(b repo.Bet, ev oddsapi.ScoreEvent) (Decision, bool) {
	if !ev.Completed {
		return Decision{}, false
	}
	home, away, ok := teamScores(ev)
	if !ok {
		return void("final score unavailable"), true
	}

	winner, reason := winningOutcome(b, home, away)
	if winner == "" {
		return void(reason), true
	}
	for _, l := range b.Legs {
		if l.Outcome == winner {
			return Decision{Status: repo.StatusSettled, WinningOutcome: winner, PayoutCents: l.PayoutCents}, true
		}
	}
	if winner == outcomeDraw {
		return void("draw without draw leg"), true
	}
	return void("no leg on winning outcome " + winner), true
}
