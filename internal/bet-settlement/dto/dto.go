package dto

// SettlementJob é o que vai para a DLQ quando a liquidação de uma aposta
// esgota as tentativas; carrega a decisão já calculada para reprocessamento.
type SettlementJob struct {
	BetID           string `json:"betId"`
	UserID          string `json:"userId"`
	EventID         string `json:"eventId"`
	SportKey        string `json:"sportKey"`
	Market          string `json:"market"`
	Status          string `json:"status"` // SETTLED | VOID
	WinningOutcome  string `json:"winningOutcome,omitempty"`
	PayoutCents     int64  `json:"payoutCents"`
	TotalStakeCents int64  `json:"totalStakeCents"`
	Reason          string `json:"reason,omitempty"`
	Attempts        int    `json:"attempts"`
	TsUnixMs        int64  `json:"tsUnixMs"`
}
