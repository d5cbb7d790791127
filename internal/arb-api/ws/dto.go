package ws

import "encoding/json"

// AllSports assina todas as oportunidades
const AllSports = "*"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Sport: obrigatório para subscribe/unsubscribe ("*" = todos)
type ClientMsg struct {
	Type  string `json:"type"`
	Sport string `json:"sport"`
}

// OpportunityUpdate é o que chega do Redis Pub/Sub e vai para o cliente
type OpportunityUpdate struct {
	Type     string          `json:"type"`
	SportKey string          `json:"sportKey"`
	Payload  json.RawMessage `json:"payload"`
}
