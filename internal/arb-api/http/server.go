package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/settings"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/fetchcache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/ratelimit"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// Odds é o cliente da API de odds com o cache de deduplicação na frente
type Odds interface {
	Sports(ctx context.Context) ([]oddsapi.Sport, error)
	OddsRaw(ctx context.Context, sport string, q oddsapi.OddsQuery) ([]byte, error)
	Odds(ctx context.Context, sport string, q oddsapi.OddsQuery) ([]oddsapi.Event, error)
	Quota() oddsapi.Quota
	Stats() fetchcache.Stats
	Invalidate(ctx context.Context, sport string) (int, error)
}

// Opportunities lê as oportunidades atuais (Redis, com fallback no Postgres)
type Opportunities interface {
	Get(ctx context.Context, id string) (events.Opportunity, bool, error)
	List(ctx context.Context, sport string, limit int) ([]events.Opportunity, error)
	Count(ctx context.Context) (int, error)
}

// Store reúne as consultas do arb-api no Postgres
type Store interface {
	CreateUser(ctx context.Context, email string, role auth.Role, keyHash string) (auth.User, error)
	CountUsers(ctx context.Context) (int, error)
	CountOpportunitiesSince(ctx context.Context, since time.Time) (int, error)
	RecentSystemMetrics(ctx context.Context, limit int) ([]repo.SystemMetric, error)
}

type BetStats interface {
	StatusCounts(ctx context.Context) (map[string]int, error)
}

type Settings interface {
	Defaults() settings.AppSettings
	Load(ctx context.Context) settings.AppSettings
	Save(ctx context.Context, s settings.AppSettings, updatedBy string) error
}

// Rules são as janelas de rate limit por tipo de cliente
type Rules struct {
	PreAuth ratelimit.Rule // por IP, antes da autenticação; Limit 0 desliga
	Public  ratelimit.Rule
	Auth    ratelimit.Rule
	Admin   ratelimit.Rule
}

// API expõe os endpoints REST e o feed WebSocket do arb-api.
// Portfolio e Bets são routers próprios montados atrás de auth.RequireUser.
type API struct {
	Log       *zap.Logger
	Odds      Odds
	Opps      Opportunities
	Store     Store
	Bets      BetStats
	Settings  Settings
	Auth      *auth.Authenticator
	Limiter   *ratelimit.Limiter // opcional
	Rules     Rules
	WS        http.HandlerFunc
	Portfolio http.Handler
	BetsAPI   http.Handler

	CORSOrigins []string
	Subscribers func() int

	now func() time.Time
}

func (a *API) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// Router retorna o roteador HTTP com todos os endpoints
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(a.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(a.preAuthLimit)
	r.Use(a.Auth.Middleware)
	r.Use(a.rateLimit)

	if a.WS != nil {
		r.Get("/ws", a.WS)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sports", a.listSports)
		r.Get("/sports/{sport}/odds", a.sportOdds)
		r.Get("/sports/{sport}/arbitrage", a.sportArbitrage)

		r.Get("/opportunities", a.listOpportunities)
		r.Get("/opportunities/{id}", a.getOpportunity)

		r.Post("/odds/convert", a.convertOdds)
		r.Post("/arbitrage/calculate", a.calculateStakes)

		if a.Portfolio != nil {
			r.With(auth.RequireUser).Mount("/portfolio", a.Portfolio)
		}
		if a.BetsAPI != nil {
			r.With(auth.RequireUser).Mount("/bets", a.BetsAPI)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/dashboard", a.dashboard)
			r.Get("/metrics", a.systemMetrics)
			r.Get("/settings", a.getSettings)
			r.Put("/settings", a.putSettings)
			r.Post("/users", a.createUser)
			r.Delete("/cache", a.invalidateCache)
		})
	})
	return r
}

// rateLimit escolhe a regra pelo tipo de cliente: anônimo, usuário ou admin
// preAuthLimit conta toda requisição pelo IP antes da consulta da chave,
// assim chaves inválidas em sequência não chegam ao banco sem limite
func (a *API) preAuthLimit(next http.Handler) http.Handler {
	if a.Limiter == nil || a.Rules.PreAuth.Limit <= 0 {
		return next
	}
	return a.Limiter.Middleware(a.Rules.PreAuth)(next)
}

func (a *API) rateLimit(next http.Handler) http.Handler {
	if a.Limiter == nil {
		return next
	}
	public := a.Limiter.Middleware(a.Rules.Public)(next)
	authed := a.Limiter.Middleware(a.Rules.Auth)(next)
	admin := a.Limiter.Middleware(a.Rules.Admin)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFrom(r.Context())
		switch {
		case !ok:
			public.ServeHTTP(w, r)
		case u.Role == auth.RoleAdmin:
			admin.ServeHTTP(w, r)
		default:
			authed.ServeHTTP(w, r)
		}
	})
}

// accessLog registra cada requisição e alimenta as métricas HTTP por rota
func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())

		a.Log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
