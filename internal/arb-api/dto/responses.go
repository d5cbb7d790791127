package dto

import (
	"time"

	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/settings"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/fetchcache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

type OpportunityList struct {
	Count         int                  `json:"count"`
	Opportunities []events.Opportunity `json:"opportunities"`
}

// ArbitrageResponse é o resultado da detecção sob demanda para um esporte
type ArbitrageResponse struct {
	Sport            string               `json:"sport"`
	Markets          []string             `json:"markets"`
	MinProfitPercent float64              `json:"min_profit_percent"`
	EventsScanned    int                  `json:"events_scanned"`
	Opportunities    []events.Opportunity `json:"opportunities"`
}

// CreateUserResponse traz a API key em claro; ela não é mostrada de novo
type CreateUserResponse struct {
	User   auth.User `json:"user"`
	APIKey string    `json:"api_key"`
}

type CacheInvalidateResponse struct {
	Sport   string `json:"sport,omitempty"`
	Removed int    `json:"removed"`
}

type SettingsResponse struct {
	Settings settings.AppSettings `json:"settings"`
	Defaults settings.AppSettings `json:"defaults"`
}

type Dashboard struct {
	GeneratedAt          time.Time            `json:"generated_at"`
	Users                int                  `json:"users"`
	Bets                 map[string]int       `json:"bets"`
	OpportunitiesCurrent int                  `json:"opportunities_current"`
	OpportunitiesLast24h int                  `json:"opportunities_last_24h"`
	Cache                fetchcache.Stats     `json:"cache"`
	Quota                oddsapi.Quota        `json:"quota"`
	WSSubscribers        int                  `json:"ws_subscribers"`
	Settings             settings.AppSettings `json:"settings"`
	RecentMetrics        []repo.SystemMetric  `json:"recent_metrics"`
}

type MetricsResponse struct {
	Samples []repo.SystemMetric `json:"samples"`
}
