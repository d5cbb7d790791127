package dto

import "time"

// Fixture é uma partida do calendário simulado
type Fixture struct {
	EventID      string
	SportKey     string
	SportTitle   string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Slot         int64
}

// Fase da partida no instante consultado
const (
	PhaseUpcoming = "upcoming"
	PhaseLive     = "live"
	PhaseFinished = "finished"
)

// ErrorResp é o corpo de erro no formato da API real
type ErrorResp struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}
