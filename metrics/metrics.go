package metrics

import (
	"github.com/DomeLiquid/lending/core"
	"github.com/DomeLiquid/lending/wad"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lending"

// Collector implements core.Metrics on prometheus.
type Collector struct {
	operates     *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	closed       prometheus.Counter
	repaid       *prometheus.CounterVec
	health       prometheus.Histogram
}

var _ core.Metrics = (*Collector)(nil)

func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		operates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operates_total",
			Help:      "Engine operations by type and outcome.",
		}, []string{"op", "result"}),
		liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidation",
			Name:      "liquidations_total",
			Help:      "Committed liquidations by repaid and seized asset.",
		}, []string{"repay_asset", "collateral_asset"}),
		closed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidation",
			Name:      "write_offs_total",
			Help:      "Liquidations that wrote off residual debt and closed the account.",
		}),
		repaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidation",
			Name:      "repaid_raw_total",
			Help:      "Raw underlying amount repaid by liquidators, per asset.",
		}, []string{"asset"}),
		health: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "liquidation",
			Name:      "pre_health_factor",
			Help:      "Health factor of accounts at the time they were liquidated.",
			Buckets:   []float64{0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1},
		}),
	}
	for _, collector := range []prometheus.Collector{c.operates, c.liquidations, c.closed, c.repaid, c.health} {
		if err := reg.Register(collector); err != nil {
			return nil, errors.Wrap(err, "register metrics")
		}
	}
	return c, nil
}

func (c *Collector) ObserveOperate(op core.OperateType, err error) {
	c.operates.WithLabelValues(op.String(), result(err)).Inc()
}

func (c *Collector) ObserveLiquidation(r *core.LiquidateResult) {
	c.liquidations.WithLabelValues(r.RepayAssetId.String(), r.CollateralAssetId.String()).Inc()
	if r.Closed {
		c.closed.Inc()
	}
	repaid, _ := wad.ScaleToDecimal(r.RepayAmount, 0).Float64()
	c.repaid.WithLabelValues(r.RepayAssetId.String()).Add(repaid)
	health, _ := wad.ToDecimal(r.LiquidateePreHealth).Float64()
	c.health.Observe(health)
}

// result collapses an error into a low-cardinality label.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrInsufficientHealthFactor):
		return "unhealthy"
	case errors.Is(err, core.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, core.ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, core.ErrInternalInvariantViolated):
		return "invariant"
	default:
		return "rejected"
	}
}
