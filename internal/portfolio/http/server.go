package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/portfolio/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/portfolio/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
)

// Repo define as operações de portfolio usadas pelo handler HTTP
type Repo interface {
	GetOrCreate(ctx context.Context, userID string) (repo.Portfolio, error)
	Deposit(ctx context.Context, userID string, amount int64, externalRef string) (repo.Portfolio, error)
	Withdraw(ctx context.Context, userID string, amount int64, externalRef string) (repo.Portfolio, error)
	Ledger(ctx context.Context, userID string, limit int) ([]repo.LedgerEntry, error)
}

// Server expõe o portfolio do usuário autenticado
type Server struct {
	log  *zap.Logger
	repo Repo
}

func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router é montado em /v1/portfolio atrás de auth.RequireUser
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.getPortfolio)
	r.Post("/deposit", s.deposit)
	r.Post("/withdraw", s.withdraw)
	return r
}

func (s *Server) getPortfolio(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	pf, err := s.repo.GetOrCreate(r.Context(), u.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("ledger"))
	ledger, err := s.repo.Ledger(r.Context(), u.ID, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := dto.FromPortfolio(pf)
	resp.Ledger = ledger
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, s.repo.Deposit)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, s.repo.Withdraw)
}

type moveFunc func(ctx context.Context, userID string, amount int64, externalRef string) (repo.Portfolio, error)

func (s *Server) move(w http.ResponseWriter, r *http.Request, fn moveFunc) {
	var req dto.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if req.AmountCents <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount_cents must be positive"})
		return
	}
	u, _ := auth.UserFrom(r.Context())
	pf, err := fn(r.Context(), u.ID, req.AmountCents, req.ExternalRef)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromPortfolio(pf))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, repo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "portfolio not found"})
	default:
		s.log.Error("portfolio", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
