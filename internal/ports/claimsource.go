package ports

import (
	"context"
	"faucetdrops/internal/types"
)

// ClaimSource reads raw claim-like records for one network.
type ClaimSource interface {
	// StorageClaims returns the already-shaped claims of the network claims index.
	StorageClaims(ctx context.Context, network types.NetworkConfig) ([]types.StorageClaim, error)

	// FactoryTransactions returns every transaction logged by one factory contract.
	FactoryTransactions(ctx context.Context, network types.NetworkConfig, factory string) ([]types.FactoryTransaction, error)
}
