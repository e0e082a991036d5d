package core

import (
	"context"

	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// ConfigureAsset registers an asset once. Its vault reference and base unit are
// fixed from then on.
func (e *Engine) ConfigureAsset(ctx context.Context, asset Asset, vaultRef string, config AssetConfig) (err error) {
	tx, err := e.begin(OpConfigure)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	if existing, ok := e.state.Assets[asset.Id]; ok && existing.VaultRef != "" {
		return errors.Wrapf(ErrAlreadyConfigured, "asset %s", asset.Id)
	}
	if vaultRef == "" {
		return errors.Wrap(ErrInvalidConfig, "empty vault reference")
	}
	if err := asset.Validate(); err != nil {
		return err
	}
	if config.ReserveFactor == nil {
		config.ReserveFactor = wad.Zero()
	}
	if err := config.Validate(); err != nil {
		return err
	}
	baseUnit, err := wad.Pow10(asset.Decimals)
	if err != nil {
		return mathErr(err, "base unit")
	}

	tx.addAsset(NewAssetState(tx.now, asset, vaultRef, baseUnit, config))
	tx.record(uuid.Nil, OpConfigure, NewActionDetail(uuid.Nil, OpConfigure, asset.Id, baseUnit))

	e.log.Info().
		Str("asset", asset.Id.String()).
		Str("symbol", asset.Symbol).
		Str("vault", vaultRef).
		Str("lendFactor", wad.ToDecimal(config.LendFactor).String()).
		Str("borrowFactor", wad.ToDecimal(config.BorrowFactor).String()).
		Msg("asset configured")
	return nil
}

// UpdateConfiguration replaces the lend and borrow factors of a configured asset.
func (e *Engine) UpdateConfiguration(ctx context.Context, assetId uuid.UUID, config AssetConfig) (err error) {
	tx, err := e.begin(OpUpdateConfig)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	a, err := tx.rawAsset(assetId)
	if err != nil {
		return errors.Wrapf(ErrNotConfigured, "asset %s", assetId)
	}

	next := a.Config.Clone()
	next.Update(config)
	if err := next.Validate(); err != nil {
		return err
	}
	a.Config = next
	a.UpdatedAt = tx.now
	tx.record(uuid.Nil, OpUpdateConfig, NewActionDetail(uuid.Nil, OpUpdateConfig, assetId, nil))

	e.log.Info().
		Str("asset", assetId.String()).
		Str("lendFactor", wad.ToDecimal(next.LendFactor).String()).
		Str("borrowFactor", wad.ToDecimal(next.BorrowFactor).String()).
		Msg("asset config updated")
	return nil
}

// SetRateModel links a new interest rate model. Interest up to now is charged at
// the previous model first, if there was one.
func (e *Engine) SetRateModel(ctx context.Context, assetId uuid.UUID, model RateModel) (err error) {
	tx, err := e.begin(OpSetRateModel)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	if model == nil {
		return errors.Wrap(ErrInvalidConfig, "nil rate model")
	}
	a, err := tx.rawAsset(assetId)
	if err != nil {
		return errors.Wrapf(ErrNotConfigured, "asset %s", assetId)
	}
	if a.Config.RateModel != nil {
		if a, err = tx.asset(assetId); err != nil {
			return err
		}
	}

	next := a.Config.Clone()
	next.RateModel = model
	if err := next.Validate(); err != nil {
		return err
	}
	a.Config = next
	a.UpdatedAt = tx.now
	tx.record(uuid.Nil, OpSetRateModel, NewActionDetail(uuid.Nil, OpSetRateModel, assetId, nil))
	return nil
}

// Accrue brings the asset's borrows up to date without touching any account.
func (e *Engine) Accrue(ctx context.Context, assetId uuid.UUID) (err error) {
	tx, err := e.begin(OpAccrue)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	_, err = tx.asset(assetId)
	return err
}
