package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/settings"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
)

const dashboardSamples = 60

// dashboard agrega usuários, apostas, oportunidades, cache e cota numa resposta só
func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	now := a.clock()
	out := dto.Dashboard{
		GeneratedAt: now.UTC(),
		Cache:       a.Odds.Stats(),
		Quota:       a.Odds.Quota(),
	}
	if a.Subscribers != nil {
		out.WSSubscribers = a.Subscribers()
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		out.Users, err = a.Store.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Bets, err = a.Bets.StatusCounts(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.OpportunitiesLast24h, err = a.Store.CountOpportunitiesSince(ctx, now.Add(-24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		out.RecentMetrics, err = a.Store.RecentSystemMetrics(ctx, dashboardSamples)
		return err
	})
	g.Go(func() error {
		// Redis fora do ar não derruba o dashboard
		n, err := a.Opps.Count(ctx)
		if err != nil {
			a.Log.Warn("dashboard: count opportunities", zap.Error(err))
		}
		out.OpportunitiesCurrent = n
		return nil
	})
	g.Go(func() error {
		out.Settings = a.Settings.Load(ctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		a.Log.Error("dashboard", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) systemMetrics(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", dashboardSamples)
	if limit > 1440 {
		limit = 1440
	}
	samples, err := a.Store.RecentSystemMetrics(r.Context(), limit)
	if err != nil {
		a.Log.Error("system metrics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dto.MetricsResponse{Samples: samples})
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.SettingsResponse{
		Settings: a.Settings.Load(r.Context()),
		Defaults: a.Settings.Defaults(),
	})
}

// putSettings aplica a atualização parcial sobre os valores atuais
func (a *API) putSettings(w http.ResponseWriter, r *http.Request) {
	var req dto.SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	next, err := mergeSettings(a.Settings.Load(r.Context()), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, _ := auth.UserFrom(r.Context())
	if err := a.Settings.Save(r.Context(), next, u.Email); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Log.Error("save settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.Log.Info("settings updated", zap.String("by", u.Email))
	writeJSON(w, http.StatusOK, dto.SettingsResponse{Settings: next, Defaults: a.Settings.Defaults()})
}

func mergeSettings(cur settings.AppSettings, req dto.SettingsRequest) (settings.AppSettings, error) {
	if req.Sports != nil {
		cur.Sports = req.Sports
	}
	if req.Regions != nil {
		cur.Regions = req.Regions
	}
	if req.Markets != nil {
		cur.Markets = req.Markets
	}
	if req.Bookmakers != nil {
		cur.Bookmakers = req.Bookmakers
	}
	if req.MinProfitPercent != nil {
		cur.MinProfitPercent = *req.MinProfitPercent
	}
	if req.MaxProfitPercent != nil {
		cur.MaxProfitPercent = *req.MaxProfitPercent
	}
	if req.DefaultStake != nil {
		cur.DefaultStake = *req.DefaultStake
	}
	if req.PollingEnabled != nil {
		cur.PollingEnabled = *req.PollingEnabled
	}
	if req.PollInterval != "" {
		d, err := time.ParseDuration(req.PollInterval)
		if err != nil {
			return cur, errors.New("poll_interval must be a duration like 60s")
		}
		cur.PollInterval = d
	}
	return cur, nil
}

// createUser gera a API key; ela só aparece nesta resposta
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleUser
	}
	if req.Role != auth.RoleUser && req.Role != auth.RoleAdmin {
		writeError(w, http.StatusBadRequest, "role must be user or admin")
		return
	}

	key, hash, err := auth.GenerateAPIKey()
	if err != nil {
		a.Log.Error("generate api key", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	u, err := a.Store.CreateUser(r.Context(), req.Email, req.Role, hash)
	if errors.Is(err, repo.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		a.Log.Error("create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.Log.Info("user created", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	writeJSON(w, http.StatusCreated, dto.CreateUserResponse{User: u, APIKey: key})
}

// invalidateCache limpa as odds em cache de um esporte (?sport=) ou de todos
func (a *API) invalidateCache(w http.ResponseWriter, r *http.Request) {
	sport := r.URL.Query().Get("sport")
	n, err := a.Odds.Invalidate(r.Context(), sport)
	if err != nil {
		a.Log.Error("invalidate cache", zap.String("sport", sport), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	writeJSON(w, http.StatusOK, dto.CacheInvalidateResponse{Sport: sport, Removed: n})
}
