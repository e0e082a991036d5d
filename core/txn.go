package core

import (
	"context"

	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// txn journals every record an operation touches so a failure anywhere restores
// the exact pre-operation state. A nil pre-image means the record was created by
// the operation.
type txn struct {
	e   *Engine
	op  OperateType
	now int64

	assets   map[uuid.UUID]*AssetState
	accounts map[uuid.UUID]*Account
	accrued  map[uuid.UUID]bool
	sequence uint64
	records  []*Operate
}

func (e *Engine) begin(op OperateType) (*txn, error) {
	if !e.acquire() {
		return nil, ErrReentrantCall
	}
	return &txn{
		e:        e,
		op:       op,
		now:      e.now(),
		assets:   map[uuid.UUID]*AssetState{},
		accounts: map[uuid.UUID]*Account{},
		accrued:  map[uuid.UUID]bool{},
		sequence: e.state.Sequence,
	}, nil
}

// finish commits or rolls back, then releases the engine. Call it deferred with
// the operation's named error.
func (tx *txn) finish(ctx context.Context, errp *error) {
	e := tx.e
	defer e.release()

	if err := *errp; err != nil {
		tx.rollback()
		e.log.Debug().Err(err).Msgf("%s rolled back", tx.op)
		if e.metrics != nil {
			e.metrics.ObserveOperate(tx.op, err)
		}
		return
	}

	if e.metrics != nil {
		e.metrics.ObserveOperate(tx.op, nil)
	}
	if e.operates == nil {
		return
	}
	for _, record := range tx.records {
		if err := e.operates.CreateOperate(ctx, record); err != nil {
			e.log.Error().Err(err).Msgf("record %s %s", record.Op, record.Id)
		}
	}
}

func (tx *txn) rollback() {
	state := tx.e.state
	for id, pre := range tx.assets {
		if pre == nil {
			delete(state.Assets, id)
		} else {
			state.Assets[id] = pre
		}
	}
	for id, pre := range tx.accounts {
		if pre == nil {
			delete(state.Accounts, id)
		} else {
			state.Accounts[id] = pre
		}
	}
	state.Sequence = tx.sequence
}

// rawAsset journals the asset without accruing it.
func (tx *txn) rawAsset(id uuid.UUID) (*AssetState, error) {
	a, ok := tx.e.state.Assets[id]
	if !ok {
		return nil, errors.Wrapf(ErrAssetNotConfigured, "asset %s", id)
	}
	if _, journaled := tx.assets[id]; !journaled {
		tx.assets[id] = a.Clone()
	}
	return a, nil
}

// asset journals the asset and brings its interest up to date, once per operation.
func (tx *txn) asset(id uuid.UUID) (*AssetState, error) {
	a, err := tx.rawAsset(id)
	if err != nil {
		return nil, err
	}
	if !tx.accrued[id] {
		if err := a.AccrueInterest(tx.e.log, tx.now, tx.e.params.AccrualPeriod); err != nil {
			return nil, err
		}
		tx.accrued[id] = true
	}
	return a, nil
}

func (tx *txn) addAsset(a *AssetState) {
	if _, journaled := tx.assets[a.Id]; !journaled {
		tx.assets[a.Id] = nil
	}
	tx.e.state.Assets[a.Id] = a
	tx.accrued[a.Id] = true
}

func (tx *txn) account(id uuid.UUID, create bool) (*Account, error) {
	a, ok := tx.e.state.Accounts[id]
	if !ok {
		if !create {
			return nil, errors.Wrapf(ErrAccountNotFound, "account %s", id)
		}
		if id == uuid.Nil {
			return nil, errors.Wrap(ErrAccountNotFound, "nil account id")
		}
		a = NewAccount(tx.now, id)
		tx.accounts[id] = nil
		tx.e.state.Accounts[id] = a
		return a, nil
	}
	if _, journaled := tx.accounts[id]; !journaled {
		tx.accounts[id] = a.Clone()
	}
	return a, nil
}

func (tx *txn) record(accountId uuid.UUID, typ OperateType, actions ...ActionDetail) {
	tx.e.state.Sequence++
	tx.records = append(tx.records, NewOperate(tx.now, tx.e.state.Sequence, accountId, typ, actions...))
}

func (tx *txn) riskEngine(account *Account) *RiskEngine {
	return NewRiskEngine(account, tx, tx.e.oracle, tx.e.params.StrictPrices)
}

func (tx *txn) transferIn(ctx context.Context, assetId, from uuid.UUID, amount *uint256.Int) error {
	if err := tx.e.transfer.TransferIn(ctx, assetId, from, wad.Clone(amount)); err != nil {
		return errors.Wrapf(ErrTransferFailed, "transfer %s of %s from %s: %v", amount, assetId, from, err)
	}
	return nil
}

func (tx *txn) transferOut(ctx context.Context, assetId, to uuid.UUID, amount *uint256.Int) error {
	if err := tx.e.transfer.TransferOut(ctx, assetId, to, wad.Clone(amount)); err != nil {
		return errors.Wrapf(ErrTransferFailed, "transfer %s of %s to %s: %v", amount, assetId, to, err)
	}
	return nil
}
