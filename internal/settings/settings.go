// Package settings guarda os parâmetros de detecção ajustáveis em tempo de
// execução (tabela app_settings). O que não estiver no banco vem da config.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/config"
)

// Chaves da tabela app_settings
const (
	KeySports           = "sports"
	KeyRegions          = "regions"
	KeyMarkets          = "markets"
	KeyBookmakers       = "bookmakers"
	KeyMinProfitPercent = "min_profit_percent"
	KeyMaxProfitPercent = "max_profit_percent"
	KeyDefaultStake     = "default_stake"
	KeyPollInterval     = "poll_interval"
	KeyPollingEnabled   = "polling_enabled"
)

var ErrInvalid = errors.New("invalid setting")

type AppSettings struct {
	Sports           []string      `json:"sports"`
	Regions          []string      `json:"regions"`
	Markets          []string      `json:"markets"`
	Bookmakers       []string      `json:"bookmakers"`
	MinProfitPercent float64       `json:"min_profit_percent"`
	MaxProfitPercent float64       `json:"max_profit_percent"`
	DefaultStake     float64       `json:"default_stake"`
	PollInterval     time.Duration `json:"poll_interval"`
	PollingEnabled   bool          `json:"polling_enabled"`
}

func Defaults(cfg config.Config) AppSettings {
	d := cfg.Detection
	return AppSettings{
		Sports:           d.Sports,
		Regions:          d.Regions,
		Markets:          d.Markets,
		Bookmakers:       d.Bookmakers,
		MinProfitPercent: d.MinProfitPercent,
		MaxProfitPercent: d.MaxProfitPercent,
		DefaultStake:     d.DefaultStake,
		PollInterval:     cfg.PollInterval,
		PollingEnabled:   true,
	}
}

// Apply sobrepõe os valores crus do banco aos defaults.
// Chaves desconhecidas são ignoradas; valor inválido é erro.
func Apply(base AppSettings, raw map[string]string) (AppSettings, error) {
	out := base
	for k, v := range raw {
		var err error
		switch k {
		case KeySports:
			out.Sports = splitList(v)
		case KeyRegions:
			out.Regions = splitList(v)
		case KeyMarkets:
			out.Markets = splitList(v)
		case KeyBookmakers:
			out.Bookmakers = splitList(v)
		case KeyMinProfitPercent:
			out.MinProfitPercent, err = strconv.ParseFloat(v, 64)
		case KeyMaxProfitPercent:
			out.MaxProfitPercent, err = strconv.ParseFloat(v, 64)
		case KeyDefaultStake:
			out.DefaultStake, err = strconv.ParseFloat(v, 64)
		case KeyPollInterval:
			out.PollInterval, err = time.ParseDuration(v)
		case KeyPollingEnabled:
			out.PollingEnabled, err = strconv.ParseBool(v)
		}
		if err != nil {
			return base, fmt.Errorf("%w: %s=%q", ErrInvalid, k, v)
		}
	}
	return out, out.Validate()
}

func (s AppSettings) Validate() error {
	switch {
	case len(s.Sports) == 0:
		return fmt.Errorf("%w: at least one sport", ErrInvalid)
	case len(s.Regions) == 0:
		return fmt.Errorf("%w: at least one region", ErrInvalid)
	case len(s.Markets) == 0:
		return fmt.Errorf("%w: at least one market", ErrInvalid)
	case s.MinProfitPercent < 0:
		return fmt.Errorf("%w: min_profit_percent must be >= 0", ErrInvalid)
	case s.MaxProfitPercent > 0 && s.MaxProfitPercent < s.MinProfitPercent:
		return fmt.Errorf("%w: max_profit_percent below min_profit_percent", ErrInvalid)
	case s.DefaultStake <= 0:
		return fmt.Errorf("%w: default_stake must be positive", ErrInvalid)
	case s.PollInterval < 5*time.Second:
		return fmt.Errorf("%w: poll_interval must be at least 5s", ErrInvalid)
	}
	for _, m := range s.Markets {
		if m != "h2h" && m != "spreads" && m != "totals" {
			return fmt.Errorf("%w: unsupported market %q", ErrInvalid, m)
		}
	}
	return nil
}

// Encode converte para o formato da tabela (usado no PUT /admin/settings)
func (s AppSettings) Encode() map[string]string {
	return map[string]string{
		KeySports:           strings.Join(s.Sports, ","),
		KeyRegions:          strings.Join(s.Regions, ","),
		KeyMarkets:          strings.Join(s.Markets, ","),
		KeyBookmakers:       strings.Join(s.Bookmakers, ","),
		KeyMinProfitPercent: strconv.FormatFloat(s.MinProfitPercent, 'f', -1, 64),
		KeyMaxProfitPercent: strconv.FormatFloat(s.MaxProfitPercent, 'f', -1, 64),
		KeyDefaultStake:     strconv.FormatFloat(s.DefaultStake, 'f', -1, 64),
		KeyPollInterval:     s.PollInterval.String(),
		KeyPollingEnabled:   strconv.FormatBool(s.PollingEnabled),
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Store é a persistência crua das chaves
type Store interface {
	GetAll(ctx context.Context) (map[string]string, error)
	UpsertMany(ctx context.Context, values map[string]string, updatedBy string) error
}

// Loader resolve AppSettings a cada ciclo; banco fora do ar mantém os defaults
type Loader struct {
	store    Store
	defaults AppSettings
	log      *zap.Logger
}

func NewLoader(store Store, defaults AppSettings, log *zap.Logger) *Loader {
	return &Loader{store: store, defaults: defaults, log: log}
}

func (l *Loader) Defaults() AppSettings { return l.defaults }

func (l *Loader) Load(ctx context.Context) AppSettings {
	raw, err := l.store.GetAll(ctx)
	if err != nil {
		l.log.Warn("load app_settings, using defaults", zap.Error(err))
		return l.defaults
	}
	s, err := Apply(l.defaults, raw)
	if err != nil {
		l.log.Warn("invalid app_settings, using defaults", zap.Error(err))
		return l.defaults
	}
	return s
}

// Save valida e grava todas as chaves
func (l *Loader) Save(ctx context.Context, s AppSettings, updatedBy string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return l.store.UpsertMany(ctx, s.Encode(), updatedBy)
}
