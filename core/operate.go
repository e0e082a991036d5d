package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"strconv"

	"github.com/DomeLiquid/lending/utils"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	OperateStore interface {
		CreateOperate(ctx context.Context, operate *Operate) error
		ListOperates(ctx context.Context, accountId uuid.UUID, op OperateType, createdBeforeAt, limit int64) ([]*Operate, error)
	}

	// Operate is the record of one committed engine operation.
	Operate struct {
		Id        uuid.UUID     `json:"id"`
		Seq       uint64        `json:"seq"`
		AccountId uuid.UUID     `json:"accountId"`
		Op        OperateType   `json:"op"`
		Extra     OperateDetail `json:"extra"`
		CreatedAt int64         `json:"createdAt"`
	}

	OperateDetail struct {
		Actions []ActionDetail `json:"actions"`
	}

	// ActionDetail amounts are raw integer amounts of the asset's underlying.
	ActionDetail struct {
		AccountId  uuid.UUID       `json:"actor"`
		ActionType OperateType     `json:"actionType"`
		AssetId    uuid.UUID       `json:"assetId"`
		Amount     decimal.Decimal `json:"amount"`
	}
)

func NewOperate(now int64, seq uint64, accountId uuid.UUID, typ OperateType, actions ...ActionDetail) *Operate {
	return &Operate{
		Id:        utils.GenUuidFromStrings(accountId.String(), typ.String(), strconv.FormatUint(seq, 10)),
		Seq:       seq,
		AccountId: accountId,
		Op:        typ,
		Extra:     OperateDetail{Actions: actions},
		CreatedAt: now,
	}
}

func NewActionDetail(accountId uuid.UUID, typ OperateType, assetId uuid.UUID, amount *uint256.Int) ActionDetail {
	return ActionDetail{
		AccountId:  accountId,
		ActionType: typ,
		AssetId:    assetId,
		Amount:     toDecimal(amount),
	}
}

func (j OperateDetail) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *OperateDetail) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		return nil
	default:
		return errors.Errorf("unsupported operate detail type %T", value)
	}
	return json.Unmarshal(raw, j)
}

type OperateType uint8

const (
	OpConfigure OperateType = iota + 1
	OpUpdateConfig
	OpSetRateModel
	OpDeposit
	OpWithdraw
	OpBorrow
	OpRepay
	OpLiquidate
	OpWriteOff
	OpAccrue
)

func (o OperateType) String() string {
	switch o {
	case OpConfigure:
		return "Configure"
	case OpUpdateConfig:
		return "UpdateConfig"
	case OpSetRateModel:
		return "SetRateModel"
	case OpDeposit:
		return "Deposit"
	case OpWithdraw:
		return "Withdraw"
	case OpBorrow:
		return "Borrow"
	case OpRepay:
		return "Repay"
	case OpLiquidate:
		return "Liquidate"
	case OpWriteOff:
		return "WriteOff"
	case OpAccrue:
		return "Accrue"
	default:
		return "Unknown"
	}
}

func ParseOperateType(s string) (OperateType, bool) {
	for op := OpConfigure; op <= OpAccrue; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}

func (o OperateType) Valid() bool {
	return o >= OpConfigure && o <= OpAccrue
}
