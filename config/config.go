package config

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/DomeLiquid/lending/core"
	"github.com/DomeLiquid/lending/utils"
	"github.com/DomeLiquid/lending/wad"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the engine's startup configuration. Ratios are decimal strings such
// as "0.75".
type Config struct {
	AccrualPeriod int64       `yaml:"accrual_period"`
	StrictPrices  bool        `yaml:"strict_prices"`
	Liquidation   Liquidation `yaml:"liquidation"`
	Assets        []Asset     `yaml:"assets"`
}

type Liquidation struct {
	Bonus              string `yaml:"bonus"`
	TargetHealthFactor string `yaml:"target_health_factor"`
	MaxHealthFactor    string `yaml:"max_health_factor"`
}

// Asset registers one pool. Id is a uuid, or any name to derive one from.
type Asset struct {
	Id            string `yaml:"id"`
	Symbol        string `yaml:"symbol"`
	Decimals      uint8  `yaml:"decimals"`
	Vault         string `yaml:"vault"`
	LendFactor    string `yaml:"lend_factor"`
	BorrowFactor  string `yaml:"borrow_factor"`
	ReserveFactor string `yaml:"reserve_factor"`
	Rate          Rate   `yaml:"rate"`
}

// Rate is either a fixed per-period rate or a utilization curve in APR.
type Rate struct {
	Fixed              string `yaml:"fixed"`
	OptimalUtilization string `yaml:"optimal_utilization"`
	PlateauRate        string `yaml:"plateau_rate"`
	MaxRate            string `yaml:"max_rate"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg.AccrualPeriod == 0 {
		cfg.AccrualPeriod = core.DEFAULT_ACCRUAL_PERIOD
	}
	cfg.Liquidation.Bonus = orDefault(cfg.Liquidation.Bonus, core.DEFAULT_LIQUIDATION_BONUS)
	cfg.Liquidation.TargetHealthFactor = orDefault(cfg.Liquidation.TargetHealthFactor, core.DEFAULT_TARGET_HEALTH_FACTOR)
	cfg.Liquidation.MaxHealthFactor = orDefault(cfg.Liquidation.MaxHealthFactor, core.DEFAULT_MAX_HEALTH_FACTOR)

	for i := range cfg.Assets {
		a := &cfg.Assets[i]
		a.Id = strings.TrimSpace(a.Id)
		a.Symbol = strings.TrimSpace(a.Symbol)
		a.Vault = strings.TrimSpace(a.Vault)
		if strings.TrimSpace(a.ReserveFactor) == "" {
			a.ReserveFactor = "0"
		}
	}
}

func orDefault(s string, def *uint256.Int) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return wad.ToDecimal(def).String()
}

func (cfg *Config) validate() error {
	if _, err := cfg.Params(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for i, a := range cfg.Assets {
		if a.Id == "" {
			return errors.Errorf("assets[%d]: id required", i)
		}
		if seen[a.Id] {
			return errors.Errorf("assets[%d]: duplicate id %s", i, a.Id)
		}
		seen[a.Id] = true
		if _, _, err := a.build(cfg.AccrualPeriod); err != nil {
			return errors.Wrapf(err, "assets[%d] %s", i, a.Symbol)
		}
	}
	return nil
}

// Params converts the engine-wide settings.
func (cfg *Config) Params() (core.Params, error) {
	params := core.DefaultParams()
	params.AccrualPeriod = cfg.AccrualPeriod
	params.StrictPrices = cfg.StrictPrices

	var err error
	if params.LiquidationBonus, err = ratio(cfg.Liquidation.Bonus); err != nil {
		return params, errors.Wrap(err, "liquidation.bonus")
	}
	if params.TargetHealthFactor, err = ratio(cfg.Liquidation.TargetHealthFactor); err != nil {
		return params, errors.Wrap(err, "liquidation.target_health_factor")
	}
	if params.MaxHealthFactor, err = ratio(cfg.Liquidation.MaxHealthFactor); err != nil {
		return params, errors.Wrap(err, "liquidation.max_health_factor")
	}
	return params, params.Validate()
}

// EngineOptions returns the options that carry the configuration into core.NewEngine.
func (cfg *Config) EngineOptions() ([]core.OptionFunc, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	return []core.OptionFunc{core.WithParams(params)}, nil
}

// Apply configures every listed asset that the engine does not know yet and
// links its rate model.
func (cfg *Config) Apply(ctx context.Context, engine *core.Engine) error {
	for _, a := range cfg.Assets {
		asset, config, err := a.build(cfg.AccrualPeriod)
		if err != nil {
			return errors.Wrapf(err, "asset %s", a.Symbol)
		}
		if _, err := engine.Asset(asset.Id); err == nil {
			continue
		}
		if err := engine.ConfigureAsset(ctx, asset, a.Vault, config); err != nil {
			return errors.Wrapf(err, "configure %s", a.Symbol)
		}
	}
	return nil
}

func (a Asset) build(period int64) (core.Asset, core.AssetConfig, error) {
	id, err := utils.ParseUuid(a.Id)
	if err != nil {
		return core.Asset{}, core.AssetConfig{}, err
	}
	asset := core.Asset{Id: id, Symbol: a.Symbol, Decimals: a.Decimals}
	if err := asset.Validate(); err != nil {
		return asset, core.AssetConfig{}, err
	}
	if a.Vault == "" {
		return asset, core.AssetConfig{}, errors.Wrap(core.ErrInvalidConfig, "vault required")
	}

	var config core.AssetConfig
	if config.LendFactor, err = ratio(a.LendFactor); err != nil {
		return asset, config, errors.Wrap(err, "lend_factor")
	}
	if config.BorrowFactor, err = ratio(a.BorrowFactor); err != nil {
		return asset, config, errors.Wrap(err, "borrow_factor")
	}
	if config.ReserveFactor, err = ratio(a.ReserveFactor); err != nil {
		return asset, config, errors.Wrap(err, "reserve_factor")
	}
	if config.RateModel, err = a.Rate.build(period); err != nil {
		return asset, config, errors.Wrap(err, "rate")
	}
	return asset, config, config.Validate()
}

func (r Rate) build(period int64) (core.RateModel, error) {
	if fixed := strings.TrimSpace(r.Fixed); fixed != "" {
		rate, err := ratio(fixed)
		if err != nil {
			return nil, err
		}
		return core.NewFixedRate(rate), nil
	}
	if r.OptimalUtilization == "" && r.PlateauRate == "" && r.MaxRate == "" {
		return nil, nil
	}

	var (
		curve = core.InterestRateConfig{PeriodSeconds: period}
		err   error
	)
	if curve.OptimalUtilizationRate, err = decimal.NewFromString(r.OptimalUtilization); err != nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "optimal_utilization")
	}
	if curve.PlateauInterestRate, err = decimal.NewFromString(r.PlateauRate); err != nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "plateau_rate")
	}
	if curve.MaxInterestRate, err = decimal.NewFromString(r.MaxRate); err != nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "max_rate")
	}
	return &curve, nil
}

func ratio(s string) (*uint256.Int, error) {
	v, err := wad.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrapf(core.ErrInvalidConfig, "%q is not a ratio", s)
	}
	return v, nil
}
