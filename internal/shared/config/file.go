package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// LoadFile aplica um YAML por cima da configuração vinda do ambiente.
// Só as chaves presentes no arquivo são sobrescritas; segredos e conexões
// continuam vindo apenas de variáveis de ambiente.
//
//	detection:
//	  sports: [basketball_nba, soccer_epl]
//	  min_profit_percent: 1.0
//	cache:
//	  ttl: 45s
//	  max_entries: 1000
func LoadFile(path string, base Config) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}

	det := base.Detection
	det.Sports = slices.Clone(det.Sports)
	det.Regions = slices.Clone(det.Regions)
	det.Markets = slices.Clone(det.Markets)
	det.Bookmakers = slices.Clone(det.Bookmakers)

	overlay := fileConfig{
		Detection:             det,
		Cache:                 base.Cache,
		RateLimit:             base.RateLimit,
		PollInterval:          base.PollInterval,
		SettleInterval:        base.SettleInterval,
		MetricsSampleInterval: base.MetricsSampleInterval,
		OpportunityTTL:        base.OpportunityTTL,
		CORSOrigins:           slices.Clone(base.CORSOrigins),
		SimArbProbability:     base.SimArbProbability,
		SimQuota:              base.SimQuota,
	}
	if err := v.Unmarshal(&overlay); err != nil {
		return base, fmt.Errorf("unmarshal config file: %w", err)
	}

	out := base
	out.Detection = overlay.Detection
	out.Cache = overlay.Cache
	out.RateLimit = overlay.RateLimit
	out.PollInterval = overlay.PollInterval
	out.SettleInterval = overlay.SettleInterval
	out.MetricsSampleInterval = overlay.MetricsSampleInterval
	out.OpportunityTTL = overlay.OpportunityTTL
	out.CORSOrigins = overlay.CORSOrigins
	out.SimArbProbability = overlay.SimArbProbability
	out.SimQuota = overlay.SimQuota
	return out, nil
}

// fileConfig é o subconjunto de Config que pode vir do arquivo
type fileConfig struct {
	Detection             DetectionConfig `mapstructure:"detection"`
	Cache                 CacheConfig     `mapstructure:"cache"`
	RateLimit             RateLimitConfig `mapstructure:"rate_limit"`
	PollInterval          time.Duration   `mapstructure:"poll_interval"`
	SettleInterval        time.Duration   `mapstructure:"settle_interval"`
	MetricsSampleInterval time.Duration   `mapstructure:"metrics_sample_interval"`
	OpportunityTTL        time.Duration   `mapstructure:"opportunity_ttl"`
	CORSOrigins           []string        `mapstructure:"cors_origins"`
	SimArbProbability     float64         `mapstructure:"sim_arb_probability"`
	SimQuota              int             `mapstructure:"sim_quota"`
}
