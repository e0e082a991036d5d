package store

import (
	"github.com/DomeLiquid/lending/core"
)

// Amounts are stored as decimal strings of the raw 256-bit integers.

type assetRow struct {
	Id       string `gorm:"primaryKey;size:36"`
	Symbol   string `gorm:"size:32"`
	Decimals uint8
	VaultRef string `gorm:"size:255"`
	BaseUnit string

	LendFactor    string
	BorrowFactor  string
	ReserveFactor string
	RateKind      string `gorm:"size:16"`
	RateParams    string

	Cash               string
	Reserves           string
	CachedTotalBorrows string
	TotalBalanceUnits  string
	TotalDebtUnits     string
	LastAccrual        int64

	CreatedAt int64 `gorm:"autoCreateTime:false"`
	UpdatedAt int64 `gorm:"autoUpdateTime:false"`
}

func (assetRow) TableName() string { return "assets" }

type accountRow struct {
	Id    string `gorm:"primaryKey;size:36"`
	Flags uint8

	CreatedAt int64 `gorm:"autoCreateTime:false"`
	UpdatedAt int64 `gorm:"autoUpdateTime:false"`
}

func (accountRow) TableName() string { return "accounts" }

// positionRow keeps the slot of the asset in the account's collateral and loan
// sets, -1 when not enabled.
type positionRow struct {
	AccountId       string `gorm:"primaryKey;size:36"`
	AssetId         string `gorm:"primaryKey;size:36"`
	BalanceUnits    string
	DebtUnits       string
	CollateralIndex int
	LoanIndex       int
	LastUpdate      int64
}

func (positionRow) TableName() string { return "positions" }

type propertyRow struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string
}

func (propertyRow) TableName() string { return "properties" }

type operateRow struct {
	Id        string             `gorm:"primaryKey;size:36"`
	Seq       uint64             `gorm:"index"`
	AccountId string             `gorm:"index;size:36"`
	Op        core.OperateType   `gorm:"index"`
	Extra     core.OperateDetail `gorm:"type:text"`
	CreatedAt int64              `gorm:"index;autoCreateTime:false"`
}

func (operateRow) TableName() string { return "operates" }
