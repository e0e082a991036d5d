package core

import (
	"sync/atomic"

	"github.com/DomeLiquid/lending/wad"
	"github.com/facebookgo/clock"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Metrics observes committed and failed operations.
type Metrics interface {
	ObserveOperate(op OperateType, err error)
	ObserveLiquidation(result *LiquidateResult)
}

type Params struct {
	// AccrualPeriod is the length of one interest period in seconds.
	AccrualPeriod int64

	LiquidationBonus   *uint256.Int
	TargetHealthFactor *uint256.Int
	MaxHealthFactor    *uint256.Int

	// StrictPrices rejects operations that meet a zero price on any enabled asset.
	StrictPrices bool
}

func DefaultParams() Params {
	return Params{
		AccrualPeriod:      DEFAULT_ACCRUAL_PERIOD,
		LiquidationBonus:   wad.Clone(DEFAULT_LIQUIDATION_BONUS),
		TargetHealthFactor: wad.Clone(DEFAULT_TARGET_HEALTH_FACTOR),
		MaxHealthFactor:    wad.Clone(DEFAULT_MAX_HEALTH_FACTOR),
	}
}

func (p Params) Validate() error {
	if p.AccrualPeriod <= 0 {
		return errors.Wrap(ErrInvalidConfig, "accrual period must be positive")
	}
	if p.LiquidationBonus == nil || !p.LiquidationBonus.Lt(ONE) {
		return errors.Wrap(ErrInvalidConfig, "liquidation bonus must be below 1")
	}
	if p.TargetHealthFactor == nil || p.TargetHealthFactor.Lt(MIN_HEALTH_FACTOR) {
		return errors.Wrap(ErrInvalidConfig, "target health factor must be at least 1")
	}
	if p.MaxHealthFactor == nil || p.MaxHealthFactor.Lt(p.TargetHealthFactor) {
		return errors.Wrap(ErrInvalidConfig, "max health factor must not be below target")
	}
	return nil
}

// Engine is the lending ledger. Operations are serialized by the host; a call that
// arrives while another is in flight (for example from inside an asset transfer)
// fails with ErrReentrantCall.
type Engine struct {
	clk      clock.Clock
	log      Log
	oracle   Oracle
	transfer AssetTransfer
	operates OperateStore
	metrics  Metrics
	params   Params

	state    *State
	inFlight atomic.Bool
}

type OptionFunc func(e *Engine)

func WithClock(clk clock.Clock) OptionFunc {
	return func(e *Engine) {
		e.clk = clk
	}
}

func WithLogger(log Log) OptionFunc {
	return func(e *Engine) {
		e.log = log
	}
}

func WithParams(params Params) OptionFunc {
	return func(e *Engine) {
		e.params = params
	}
}

// WithState starts the engine from a previously saved state.
func WithState(state *State) OptionFunc {
	return func(e *Engine) {
		e.state = state.Clone()
	}
}

func WithOperateStore(store OperateStore) OptionFunc {
	return func(e *Engine) {
		e.operates = store
	}
}

func WithMetrics(m Metrics) OptionFunc {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(oracle Oracle, transfer AssetTransfer, opts ...OptionFunc) (*Engine, error) {
	e := &Engine{
		clk:      clock.New(),
		log:      nopLog(),
		oracle:   oracle,
		transfer: transfer,
		params:   DefaultParams(),
		state:    NewState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.params.Validate(); err != nil {
		return nil, err
	}
	if e.transfer == nil {
		return nil, errors.New("asset transfer is required")
	}
	return e, nil
}

func (e *Engine) Params() Params {
	return e.params
}

// Snapshot returns a deep copy of the ledger state.
func (e *Engine) Snapshot() (*State, error) {
	if !e.acquire() {
		return nil, ErrReentrantCall
	}
	defer e.release()
	return e.state.Clone(), nil
}

func (e *Engine) acquire() bool {
	return e.inFlight.CompareAndSwap(false, true)
}

func (e *Engine) release() {
	e.inFlight.Store(false)
}

func (e *Engine) now() int64 {
	return e.clk.Now().Unix()
}
