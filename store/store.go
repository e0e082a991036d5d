package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/DomeLiquid/lending/core"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sequenceKey = "sequence"

// Store persists the ledger and its operate log through gorm.
type Store struct {
	db *gorm.DB
}

var (
	_ core.StateStore   = (*Store)(nil)
	_ core.AssetStore   = (*Store)(nil)
	_ core.AccountStore = (*Store)(nil)
	_ core.OperateStore = (*Store)(nil)
)

func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&assetRow{}, &accountRow{}, &positionRow{}, &propertyRow{}, &operateRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return &Store{db: db}, nil
}

// SaveState writes the whole ledger in one transaction.
func (s *Store) SaveState(ctx context.Context, state *core.State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range state.Assets {
			if err := upsertAsset(tx, a); err != nil {
				return err
			}
		}
		for _, a := range state.Accounts {
			if err := upsertAccount(tx, a); err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&propertyRow{Name: sequenceKey, Value: strconv.FormatUint(state.Sequence, 10)}).Error
	})
}

func (s *Store) LoadState(ctx context.Context) (*core.State, error) {
	db := s.db.WithContext(ctx)
	state := core.NewState()

	assets, err := s.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		state.Assets[a.Id] = a
	}

	var accounts []accountRow
	if err := db.Find(&accounts).Error; err != nil {
		return nil, errors.Wrap(err, "load accounts")
	}
	var positions []positionRow
	if err := db.Order("account_id").Find(&positions).Error; err != nil {
		return nil, errors.Wrap(err, "load positions")
	}
	byAccount := map[string][]positionRow{}
	for _, p := range positions {
		byAccount[p.AccountId] = append(byAccount[p.AccountId], p)
	}
	for _, row := range accounts {
		account, err := toAccount(row, byAccount[row.Id])
		if err != nil {
			return nil, err
		}
		state.Accounts[account.Id] = account
	}

	var seq propertyRow
	err = db.Where("name = ?", sequenceKey).Take(&seq).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, errors.Wrap(err, "load sequence")
	default:
		if state.Sequence, err = strconv.ParseUint(seq.Value, 10, 64); err != nil {
			return nil, errors.Wrap(err, "parse sequence")
		}
	}
	return state, nil
}

func (s *Store) UpsertAsset(ctx context.Context, asset *core.AssetState) error {
	return upsertAsset(s.db.WithContext(ctx), asset)
}

func (s *Store) GetAssetById(ctx context.Context, assetId uuid.UUID) (*core.AssetState, error) {
	var row assetRow
	if err := s.db.WithContext(ctx).Where("id = ?", assetId.String()).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(core.ErrNotConfigured, "asset %s", assetId)
		}
		return nil, err
	}
	return toAsset(row)
}

func (s *Store) ListAssets(ctx context.Context) ([]*core.AssetState, error) {
	var rows []assetRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list assets")
	}
	assets := make([]*core.AssetState, 0, len(rows))
	for _, row := range rows {
		a, err := toAsset(row)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func (s *Store) UpsertAccount(ctx context.Context, account *core.Account) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertAccount(tx, account)
	})
}

func (s *Store) GetAccountById(ctx context.Context, accountId uuid.UUID) (*core.Account, error) {
	db := s.db.WithContext(ctx)
	var row accountRow
	if err := db.Where("id = ?", accountId.String()).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(core.ErrAccountNotFound, "account %s", accountId)
		}
		return nil, err
	}
	var positions []positionRow
	if err := db.Where("account_id = ?", row.Id).Find(&positions).Error; err != nil {
		return nil, errors.Wrap(err, "load positions")
	}
	return toAccount(row, positions)
}

func (s *Store) CreateOperate(ctx context.Context, operate *core.Operate) error {
	row := operateRow{
		Id:        operate.Id.String(),
		Seq:       operate.Seq,
		AccountId: operate.AccountId.String(),
		Op:        operate.Op,
		Extra:     operate.Extra,
		CreatedAt: operate.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// ListOperates pages through an account's records, newest first. A zero op
// matches every type and a zero createdBeforeAt starts from the latest record.
func (s *Store) ListOperates(ctx context.Context, accountId uuid.UUID, op core.OperateType, createdBeforeAt, limit int64) ([]*core.Operate, error) {
	query := s.db.WithContext(ctx).Where("account_id = ?", accountId.String())
	if op != 0 {
		query = query.Where("op = ?", op)
	}
	if createdBeforeAt > 0 {
		query = query.Where("created_at < ?", createdBeforeAt)
	}
	if limit > 0 {
		query = query.Limit(int(limit))
	}

	var rows []operateRow
	if err := query.Order("seq DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list operates")
	}
	operates := make([]*core.Operate, 0, len(rows))
	for _, row := range rows {
		operates = append(operates, &core.Operate{
			Id:        uuid.FromStringOrNil(row.Id),
			Seq:       row.Seq,
			AccountId: uuid.FromStringOrNil(row.AccountId),
			Op:        row.Op,
			Extra:     row.Extra,
			CreatedAt: row.CreatedAt,
		})
	}
	return operates, nil
}

func upsertAsset(db *gorm.DB, a *core.AssetState) error {
	kind, params, err := encodeRateModel(a.Config.RateModel)
	if err != nil {
		return err
	}
	row := assetRow{
		Id:                 a.Id.String(),
		Symbol:             a.Symbol,
		Decimals:           a.Decimals,
		VaultRef:           a.VaultRef,
		BaseUnit:           dec(a.BaseUnit),
		LendFactor:         dec(a.Config.LendFactor),
		BorrowFactor:       dec(a.Config.BorrowFactor),
		ReserveFactor:      dec(a.Config.ReserveFactor),
		RateKind:           kind,
		RateParams:         params,
		Cash:               dec(a.Cash),
		Reserves:           dec(a.Reserves),
		CachedTotalBorrows: dec(a.CachedTotalBorrows),
		TotalBalanceUnits:  dec(a.TotalBalanceUnits),
		TotalDebtUnits:     dec(a.TotalDebtUnits),
		LastAccrual:        a.LastAccrual,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func upsertAccount(db *gorm.DB, a *core.Account) error {
	row := accountRow{
		Id:        a.Id.String(),
		Flags:     uint8(a.AccountFlags),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return err
	}
	for assetId, p := range a.Positions {
		pos := positionRow{
			AccountId:       row.Id,
			AssetId:         assetId.String(),
			BalanceUnits:    dec(p.BalanceUnits),
			DebtUnits:       dec(p.DebtUnits),
			CollateralIndex: a.Collateral.IndexOf(assetId),
			LoanIndex:       a.Loans.IndexOf(assetId),
			LastUpdate:      p.LastUpdate,
		}
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&pos).Error; err != nil {
			return err
		}
	}
	return nil
}

func toAsset(row assetRow) (*core.AssetState, error) {
	id, err := uuid.FromString(row.Id)
	if err != nil {
		return nil, errors.Wrapf(err, "asset id %q", row.Id)
	}
	model, err := decodeRateModel(row.RateKind, row.RateParams)
	if err != nil {
		return nil, errors.Wrapf(err, "asset %s", row.Id)
	}

	a := &core.AssetState{
		Asset:       core.Asset{Id: id, Symbol: row.Symbol, Decimals: row.Decimals},
		VaultRef:    row.VaultRef,
		Config:      core.AssetConfig{RateModel: model},
		LastAccrual: row.LastAccrual,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	fields := []struct {
		dst **uint256.Int
		src string
	}{
		{&a.BaseUnit, row.BaseUnit},
		{&a.Config.LendFactor, row.LendFactor},
		{&a.Config.BorrowFactor, row.BorrowFactor},
		{&a.Config.ReserveFactor, row.ReserveFactor},
		{&a.Cash, row.Cash},
		{&a.Reserves, row.Reserves},
		{&a.CachedTotalBorrows, row.CachedTotalBorrows},
		{&a.TotalBalanceUnits, row.TotalBalanceUnits},
		{&a.TotalDebtUnits, row.TotalDebtUnits},
	}
	for _, f := range fields {
		if *f.dst, err = parseDec(f.src); err != nil {
			return nil, errors.Wrapf(err, "asset %s", row.Id)
		}
	}
	return a, nil
}

func toAccount(row accountRow, positions []positionRow) (*core.Account, error) {
	id, err := uuid.FromString(row.Id)
	if err != nil {
		return nil, errors.Wrapf(err, "account id %q", row.Id)
	}
	account := core.NewAccount(row.CreatedAt, id)
	account.AccountFlags = core.AccountFlags(row.Flags)
	account.UpdatedAt = row.UpdatedAt

	var collateral, loans []positionRow
	for _, p := range positions {
		assetId, err := uuid.FromString(p.AssetId)
		if err != nil {
			return nil, errors.Wrapf(err, "position asset id %q", p.AssetId)
		}
		pos := core.NewPosition(p.LastUpdate, id, assetId)
		if pos.BalanceUnits, err = parseDec(p.BalanceUnits); err != nil {
			return nil, err
		}
		if pos.DebtUnits, err = parseDec(p.DebtUnits); err != nil {
			return nil, err
		}
		account.Positions[assetId] = pos

		if p.CollateralIndex >= 0 {
			collateral = append(collateral, p)
		}
		if p.LoanIndex >= 0 {
			loans = append(loans, p)
		}
	}

	sort.Slice(collateral, func(i, j int) bool { return collateral[i].CollateralIndex < collateral[j].CollateralIndex })
	for _, p := range collateral {
		account.EnableCollateral(uuid.FromStringOrNil(p.AssetId))
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].LoanIndex < loans[j].LoanIndex })
	for _, p := range loans {
		account.EnableLoan(uuid.FromStringOrNil(p.AssetId))
	}
	return account, nil
}

func encodeRateModel(model core.RateModel) (string, string, error) {
	switch m := model.(type) {
	case nil:
		return "", "", nil
	case *core.FixedRate:
		return "fixed", dec(m.Rate), nil
	case *core.InterestRateConfig:
		b, err := json.Marshal(m)
		return "curve", string(b), err
	default:
		return "", "", errors.Errorf("unsupported rate model %T", model)
	}
}

func decodeRateModel(kind, params string) (core.RateModel, error) {
	switch kind {
	case "":
		return nil, nil
	case "fixed":
		rate, err := parseDec(params)
		if err != nil {
			return nil, err
		}
		return core.NewFixedRate(rate), nil
	case "curve":
		var curve core.InterestRateConfig
		if err := json.Unmarshal([]byte(params), &curve); err != nil {
			return nil, errors.Wrap(err, "rate curve")
		}
		return &curve, nil
	default:
		return nil, errors.Errorf("unknown rate model %q", kind)
	}
}

func dec(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}

func parseDec(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "amount %q", s)
	}
	return x, nil
}
