package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/arbitrage"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/oddsmath"
)

// listParam lê uma lista separada por vírgula da query; ausente devolve def
func listParam(r *http.Request, key string, def []string) []string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(r *http.Request, key string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && n > 0 {
		return n
	}
	return def
}

// upstreamError traduz falhas da API de odds para o cliente
func (a *API) upstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, oddsapi.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown sport or event")
	case errors.Is(err, oddsapi.ErrQuotaExceeded):
		writeError(w, http.StatusServiceUnavailable, "odds provider quota exhausted")
	default:
		a.Log.Warn(op, zap.Error(err))
		writeError(w, http.StatusBadGateway, "odds provider unavailable")
	}
}

func (a *API) setQuotaHeader(w http.ResponseWriter) {
	if q := a.Odds.Quota(); q.Known {
		w.Header().Set("X-Requests-Remaining", strconv.Itoa(q.Remaining))
	}
}

func (a *API) listSports(w http.ResponseWriter, r *http.Request) {
	sports, err := a.Odds.Sports(r.Context())
	if err != nil {
		a.upstreamError(w, "list sports", err)
		return
	}
	writeJSON(w, http.StatusOK, sports)
}

// sportOdds repassa as odds no formato da API, servidas pelo cache
func (a *API) sportOdds(w http.ResponseWriter, r *http.Request) {
	st := a.Settings.Load(r.Context())
	q := oddsapi.OddsQuery{
		Regions:    listParam(r, "regions", st.Regions),
		Markets:    listParam(r, "markets", st.Markets),
		Bookmakers: listParam(r, "bookmakers", nil),
		EventIDs:   listParam(r, "eventIds", nil),
	}
	body, err := a.Odds.OddsRaw(r.Context(), chi.URLParam(r, "sport"), q)
	if err != nil {
		a.upstreamError(w, "proxy odds", err)
		return
	}
	a.setQuotaHeader(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// sportArbitrage roda a detecção sob demanda com os filtros da query
// (minProfit, maxProfit, stake, markets, bookmakers, regions)
func (a *API) sportArbitrage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sport := chi.URLParam(r, "sport")
	st := a.Settings.Load(ctx)

	cfg := arbitrage.Config{
		MinProfitPercent: st.MinProfitPercent,
		MaxProfitPercent: st.MaxProfitPercent,
		TotalStake:       decimal.NewFromFloat(st.DefaultStake),
		Markets:          listParam(r, "markets", st.Markets),
		Bookmakers:       listParam(r, "bookmakers", st.Bookmakers),
	}
	qs := r.URL.Query()
	if v := qs.Get("minProfit"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			writeError(w, http.StatusBadRequest, "minProfit must be a non-negative number")
			return
		}
		cfg.MinProfitPercent = f
	}
	if v := qs.Get("maxProfit"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "maxProfit must be a number")
			return
		}
		cfg.MaxProfitPercent = f
	}
	if v := qs.Get("stake"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || !d.IsPositive() {
			writeError(w, http.StatusBadRequest, "stake must be a positive number")
			return
		}
		cfg.TotalStake = d
	}

	evs, err := a.Odds.Odds(ctx, sport, oddsapi.OddsQuery{
		Regions:    listParam(r, "regions", st.Regions),
		Markets:    cfg.Markets,
		Bookmakers: cfg.Bookmakers,
	})
	if err != nil {
		a.upstreamError(w, "arbitrage odds", err)
		return
	}

	opps := arbitrage.NewDetector(cfg).Detect(evs)
	a.setQuotaHeader(w)
	writeJSON(w, http.StatusOK, dto.ArbitrageResponse{
		Sport:            sport,
		Markets:          cfg.Markets,
		MinProfitPercent: cfg.MinProfitPercent,
		EventsScanned:    len(evs),
		Opportunities:    opps,
	})
}

func (a *API) listOpportunities(w http.ResponseWriter, r *http.Request) {
	opps, err := a.Opps.List(r.Context(), r.URL.Query().Get("sport"), intParam(r, "limit", 100))
	if err != nil {
		a.Log.Error("list opportunities", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dto.OpportunityList{Count: len(opps), Opportunities: opps})
}

func (a *API) getOpportunity(w http.ResponseWriter, r *http.Request) {
	o, ok, err := a.Opps.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.Log.Error("get opportunity", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) convertOdds(w http.ResponseWriter, r *http.Request) {
	var req dto.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	conv, err := oddsmath.Convert(req.Value, oddsmath.Format(req.Format))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// calculateStakes aceita odds em qualquer formato e divide a banca
func (a *API) calculateStakes(w http.ResponseWriter, r *http.Request) {
	var req dto.CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	format := oddsmath.Format(req.Format)
	if format == "" {
		format = oddsmath.OddsDecimal
	}

	prices := make([]float64, len(req.Odds))
	for i, v := range req.Odds {
		if format == oddsmath.OddsDecimal {
			prices[i] = v
			continue
		}
		conv, err := oddsmath.Convert(v, format)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		prices[i] = conv.Decimal
	}

	plan, err := arbitrage.CalculateStakes(prices, req.TotalStake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
