package core

import (
	"github.com/DomeLiquid/lending/wad"
)

const (
	SECONDS_PER_YEAR = 31_536_000

	DEFAULT_ACCRUAL_PERIOD = 1 // seconds

	MAX_ASSET_DECIMALS = 36
)

// Shared read-only values. Nothing in the engine mutates them in place.
var (
	ONE = wad.One()

	MIN_HEALTH_FACTOR            = wad.One()
	DEFAULT_TARGET_HEALTH_FACTOR = wad.One()
	DEFAULT_MAX_HEALTH_FACTOR    = wad.MustParse("1.25")
	DEFAULT_LIQUIDATION_BONUS    = wad.MustParse("0.05")
)
