package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
)

// AssetTransfer moves underlying value between accounts and the pool. A failed
// transfer must leave no partial effect behind.
type AssetTransfer interface {
	TransferIn(ctx context.Context, assetId, from uuid.UUID, amount *uint256.Int) error
	TransferOut(ctx context.Context, assetId, to uuid.UUID, amount *uint256.Int) error
}
