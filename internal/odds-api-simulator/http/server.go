package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/odds-api-simulator/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/odds-api-simulator/feed"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
)

// Server imita a API v4: mesma forma de resposta, cota por chave e
// custo por consulta (mercados x regiões nas odds).
type Server struct {
	log    *zap.Logger
	feed   *feed.Feed
	apiKey string
	limit  int

	mu   sync.Mutex
	used int

	// OnRequest recebe o endpoint e o status de cada resposta (métricas)
	OnRequest func(endpoint string, status int)
}

// NewServer cria o servidor; apiKey vazio aceita qualquer chave
func NewServer(log *zap.Logger, f *feed.Feed, apiKey string, quota int) *Server {
	return &Server{log: log, feed: f, apiKey: apiKey, limit: quota}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v4/sports", func(r chi.Router) {
		r.Get("/", s.listSports)
		r.Get("/{sport}/odds", s.odds)
		r.Get("/{sport}/scores", s.scores)
	})
	return r
}

// charge valida a chave e debita a cota; false quando a resposta já foi escrita
func (s *Server) charge(w http.ResponseWriter, r *http.Request, endpoint string, cost int) bool {
	if s.apiKey != "" && r.URL.Query().Get("apiKey") != s.apiKey {
		s.writeError(w, endpoint, http.StatusUnauthorized, dto.ErrorResp{
			Message: "API key is not valid", ErrorCode: "INVALID_KEY",
		})
		return false
	}

	s.mu.Lock()
	if s.limit > 0 && s.used+cost > s.limit {
		used := s.used
		s.mu.Unlock()
		s.quotaHeaders(w, used, 0)
		s.writeError(w, endpoint, http.StatusTooManyRequests, dto.ErrorResp{
			Message: "Usage quota has been reached", ErrorCode: "OUT_OF_USAGE_CREDITS",
		})
		return false
	}
	s.used += cost
	used := s.used
	s.mu.Unlock()

	s.quotaHeaders(w, used, cost)
	return true
}

func (s *Server) quotaHeaders(w http.ResponseWriter, used, last int) {
	remaining := s.limit - used
	if s.limit <= 0 || remaining < 0 {
		remaining = 0
	}
	w.Header().Set("x-requests-remaining", strconv.Itoa(remaining))
	w.Header().Set("x-requests-used", strconv.Itoa(used))
	w.Header().Set("x-requests-last", strconv.Itoa(last))
}

func (s *Server) listSports(w http.ResponseWriter, r *http.Request) {
	if !s.charge(w, r, "sports", 0) {
		return
	}
	s.writeJSON(w, "sports", http.StatusOK, s.feed.Sports())
}

func (s *Server) odds(w http.ResponseWriter, r *http.Request) {
	sport := chi.URLParam(r, "sport")
	q := oddsapi.OddsQuery{
		Regions:    csv(r, "regions"),
		Markets:    csv(r, "markets"),
		Bookmakers: csv(r, "bookmakers"),
		EventIDs:   csv(r, "eventIds"),
	}
	if len(q.Regions) == 0 && len(q.Bookmakers) == 0 {
		s.writeError(w, "odds", http.StatusUnprocessableEntity, dto.ErrorResp{
			Message: "Missing regions or bookmakers", ErrorCode: "MISSING_REGION",
		})
		return
	}
	if f := r.URL.Query().Get("oddsFormat"); f != "" && f != "decimal" {
		s.writeError(w, "odds", http.StatusUnprocessableEntity, dto.ErrorResp{
			Message: "Only decimal odds are simulated", ErrorCode: "INVALID_ODDS_FORMAT",
		})
		return
	}
	if !s.feed.HasSport(sport) {
		s.writeError(w, "odds", http.StatusNotFound, dto.ErrorResp{Message: "Unknown sport", ErrorCode: "UNKNOWN_SPORT"})
		return
	}
	if !s.charge(w, r, "odds", oddsCost(q)) {
		return
	}

	evs, _ := s.feed.Odds(sport, q)
	s.writeJSON(w, "odds", http.StatusOK, evs)
}

// oddsCost segue a regra da API: mercados x regiões, com cada 10 casas
// explícitas contando como uma região
func oddsCost(q oddsapi.OddsQuery) int {
	markets := len(q.Markets)
	if markets == 0 {
		markets = 1
	}
	regions := len(q.Regions)
	if len(q.Bookmakers) > 0 {
		regions = (len(q.Bookmakers) + 9) / 10
	}
	return markets * regions
}

func (s *Server) scores(w http.ResponseWriter, r *http.Request) {
	sport := chi.URLParam(r, "sport")
	daysFrom := 0
	if v := r.URL.Query().Get("daysFrom"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 3 {
			s.writeError(w, "scores", http.StatusUnprocessableEntity, dto.ErrorResp{
				Message: "daysFrom must be between 1 and 3", ErrorCode: "INVALID_DAYS_FROM",
			})
			return
		}
		daysFrom = n
	}
	if !s.feed.HasSport(sport) {
		s.writeError(w, "scores", http.StatusNotFound, dto.ErrorResp{Message: "Unknown sport", ErrorCode: "UNKNOWN_SPORT"})
		return
	}
	cost := 1
	if daysFrom > 0 {
		cost = 2
	}
	if !s.charge(w, r, "scores", cost) {
		return
	}

	evs, _ := s.feed.Scores(sport, daysFrom, csv(r, "eventIds"))
	s.writeJSON(w, "scores", http.StatusOK, evs)
}

func csv(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, endpoint string, status int, body dto.ErrorResp) {
	s.log.Debug("simulator request rejected",
		zap.String("endpoint", endpoint),
		zap.Int("status", status),
		zap.String("reason", body.Message),
	)
	s.writeJSON(w, endpoint, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, endpoint string, status int, v any) {
	if s.OnRequest != nil {
		s.OnRequest(endpoint, status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
