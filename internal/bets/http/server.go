package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/arbitrage"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
	portfoliorepo "github.com/radieske/sports-arbitrage-platform/internal/portfolio/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

type Repo interface {
	CreatePending(ctx context.Context, b *repo.Bet) (string, error)
	Get(ctx context.Context, id string) (repo.Bet, error)
	ListByUser(ctx context.Context, userID, status string, limit int) ([]repo.Bet, error)
	MarkVoid(ctx context.Context, id, reason string) (bool, error)
}

// Opportunities busca a oportunidade atual pelo id
type Opportunities interface {
	Get(ctx context.Context, id string) (events.Opportunity, bool, error)
}

// Odds é a fonte das odds atuais usadas na revalidação (cliente com cache)
type Odds interface {
	Odds(ctx context.Context, sport string, q oddsapi.OddsQuery) ([]oddsapi.Event, error)
}

type Reserver interface {
	Reserve(ctx context.Context, userID string, amount int64, externalRef string) (string, error)
}

type Publisher interface {
	PublishBetPlaced(context.Context, events.BetPlaced) error
}

type Server struct {
	log     *zap.Logger
	repo    Repo
	opps    Opportunities
	odds    Odds
	wallet  Reserver
	publ    Publisher
	regions []string
	now     func() time.Time
}

func NewServer(log *zap.Logger, r Repo, opps Opportunities, odds Odds, wallet Reserver, p Publisher, regions []string) *Server {
	return &Server{log: log, repo: r, opps: opps, odds: odds, wallet: wallet, publ: p, regions: regions, now: time.Now}
}

// Router é montado em /v1/bets atrás de auth.RequireUser
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.placeBet)
	r.Get("/", s.listBets)
	r.Get("/{id}", s.getBet)
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, _ := auth.UserFrom(ctx)

	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.OpportunityID == "" || !req.TotalStake.IsPositive() {
		writeError(w, http.StatusBadRequest, "opportunity_id and a positive total_stake are required")
		return
	}

	// 1) Oportunidade ainda existe?
	opp, ok, err := s.opps.Get(ctx, req.OpportunityID)
	if err != nil {
		s.log.Error("load opportunity", zap.String("opportunity_id", req.OpportunityID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	if !opp.CommenceTime.After(s.now()) {
		writeError(w, http.StatusConflict, "event already started")
		return
	}

	// 2) Revalida contra as odds atuais
	evs, err := s.odds.Odds(ctx, opp.SportKey, oddsapi.OddsQuery{
		Regions:  s.regions,
		Markets:  []string{opp.Market},
		EventIDs: []string{opp.EventID},
	})
	if err != nil {
		s.log.Warn("revalidate odds", zap.String("sport", opp.SportKey), zap.Error(err))
		writeError(w, http.StatusBadGateway, "odds provider unavailable")
		return
	}
	rv := arbitrage.Revalidation{Missing: true, Current: make([]float64, len(opp.Legs))}
	for _, ev := range evs {
		if ev.ID == opp.EventID {
			rv = arbitrage.Revalidate(opp, ev)
			break
		}
	}
	if rv.Missing || rv.Moved || !rv.StillArbitrage {
		writeJSON(w, http.StatusConflict, dto.OddsMovedResponse{Error: "odds changed", Revalidation: rv})
		return
	}

	// 3) Divide a banca
	plan, err := arbitrage.CalculateStakes(rv.Current, req.TotalStake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bet := &repo.Bet{
		UserID:              u.ID,
		OpportunityID:       opp.ID,
		EventID:             opp.EventID,
		SportKey:            opp.SportKey,
		Market:              opp.Market,
		HomeTeam:            opp.HomeTeam,
		AwayTeam:            opp.AwayTeam,
		CommenceTime:        opp.CommenceTime,
		TotalStakeCents:     cents(plan.TotalStake),
		ExpectedProfitCents: cents(plan.GuaranteedProfit),
		Legs:                make([]repo.Leg, len(opp.Legs)),
	}
	for i, l := range opp.Legs {
		bet.Legs[i] = repo.Leg{
			Bookmaker:   l.Bookmaker,
			Outcome:     l.Outcome,
			Point:       l.Point,
			Price:       rv.Current[i],
			StakeCents:  cents(plan.Stakes[i]),
			PayoutCents: cents(plan.Payouts[i]),
		}
	}

	// 4) Cria aposta PENDING
	betID, err := s.repo.CreatePending(ctx, bet)
	if err != nil {
		s.log.Error("create bet", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 5) Reserva a banca no portfolio (external_ref = betID)
	resID, err := s.wallet.Reserve(ctx, u.ID, bet.TotalStakeCents, betID)
	if err != nil {
		reason := "reserve failed"
		status := http.StatusInternalServerError
		if errors.Is(err, portfoliorepo.ErrInsufficientFunds) {
			reason = "insufficient funds"
			status = http.StatusConflict
		} else {
			s.log.Error("reserve stake", zap.String("bet_id", betID), zap.Error(err))
		}
		if _, verr := s.repo.MarkVoid(context.WithoutCancel(ctx), betID, reason); verr != nil {
			s.log.Error("void bet", zap.String("bet_id", betID), zap.Error(verr))
		}
		writeError(w, status, reason)
		return
	}

	// 6) Publica bet_placed
	if err := s.publ.PublishBetPlaced(ctx, placedEvent(bet)); err != nil {
		s.log.Warn("publish bet_placed", zap.String("bet_id", betID), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		BetID:         betID,
		Status:        repo.StatusPending,
		ReservationID: resID,
		Bet:           *bet,
	})
}

func placedEvent(b *repo.Bet) events.BetPlaced {
	legs := make([]events.BetLeg, len(b.Legs))
	for i, l := range b.Legs {
		legs[i] = events.BetLeg{
			Bookmaker:   l.Bookmaker,
			Outcome:     l.Outcome,
			Point:       l.Point,
			Price:       l.Price,
			StakeCents:  l.StakeCents,
			PayoutCents: l.PayoutCents,
		}
	}
	return events.BetPlaced{
		BetID:               b.ID,
		UserID:              b.UserID,
		OpportunityID:       b.OpportunityID,
		EventID:             b.EventID,
		SportKey:            b.SportKey,
		Market:              b.Market,
		TotalStakeCents:     b.TotalStakeCents,
		ExpectedProfitCents: b.ExpectedProfitCents,
		Legs:                legs,
		ReservedRef:         b.ID,
	}
}

var hundred = decimal.NewFromInt(100)

func cents(d decimal.Decimal) int64 { return d.Mul(hundred).Round(0).IntPart() }

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	bets, err := s.repo.ListByUser(r.Context(), u.ID, r.URL.Query().Get("status"), limit)
	if err != nil {
		s.log.Error("list bets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dto.BetListResponse{Bets: bets})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	b, err := s.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && b.UserID != u.ID) {
		writeError(w, http.StatusNotFound, "bet not found")
		return
	}
	if err != nil {
		s.log.Error("get bet", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
