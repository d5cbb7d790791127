package events

import "time"

// Evento emitido pelo bet-settlement-worker após liquidar uma aposta.
type BetSettled struct {
	BetID       string    `json:"betId"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"` // "SETTLED" | "VOID"
	WinningLeg  string    `json:"winningLeg,omitempty"`
	PayoutCents int64     `json:"payoutCents"`
	ProfitCents int64     `json:"profitCents"`
	Reason      string    `json:"reason,omitempty"`
	Ts          time.Time `json:"ts"`
}
