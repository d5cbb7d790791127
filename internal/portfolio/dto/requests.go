package dto

// MoveRequest é o corpo de depósito e saque
type MoveRequest struct {
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência
}
