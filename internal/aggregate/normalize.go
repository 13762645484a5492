package aggregate

import (
	"faucetdrops/internal/types"
	"strings"
)

// IsClaim reports whether a factory transaction type describes a claim.
func IsClaim(txType string) bool {
	return strings.Contains(strings.ToLower(txType), "claim")
}

// FromStorage maps a claims index record onto the unified shape.
func FromStorage(c types.StorageClaim, network types.NetworkConfig) types.ClaimRecord {
	return types.ClaimRecord{
		ClaimerAddress:   types.NormalizeAddress(c.Claimer),
		FaucetAddress:    types.NormalizeAddress(c.Faucet),
		Amount:           c.Amount.BigInt(),
		IsNativeToken:    c.IsEther,
		NetworkName:      network.Name,
		ChainID:          network.ChainID,
		TimestampSeconds: types.NormalizeTimestamp(int64(c.Timestamp)),
		SourceOrigin:     types.OriginStorage,
	}
}

// FromFactory maps a factory transaction onto the unified shape. The initiator is the claimer.
func FromFactory(tx types.FactoryTransaction, network types.NetworkConfig) types.ClaimRecord {
	return types.ClaimRecord{
		ClaimerAddress:   types.NormalizeAddress(tx.Initiator),
		FaucetAddress:    types.NormalizeAddress(tx.FaucetAddress),
		Amount:           tx.Amount.BigInt(),
		IsNativeToken:    tx.IsEther,
		NetworkName:      network.Name,
		ChainID:          network.ChainID,
		TimestampSeconds: types.NormalizeTimestamp(int64(tx.Timestamp)),
		SourceOrigin:     types.OriginFactory,
	}
}

type dedupKey struct {
	chainID   int64
	faucet    string
	claimer   string
	timestamp int64
}

func keyOf(r types.ClaimRecord) dedupKey {
	return dedupKey{
		chainID:   r.ChainID,
		faucet:    strings.ToLower(r.FaucetAddress),
		claimer:   strings.ToLower(r.ClaimerAddress),
		timestamp: r.TimestampSeconds,
	}
}

// Dedup drops factory records that duplicate a storage record of the same claim. Records from the same
// origin are never collapsed into each other.
func Dedup(records []types.ClaimRecord) []types.ClaimRecord {
	stored := make(map[dedupKey]struct{})
	for _, r := range records {
		if r.SourceOrigin == types.OriginStorage {
			stored[keyOf(r)] = struct{}{}
		}
	}
	out := make([]types.ClaimRecord, 0, len(records))
	for _, r := range records {
		if r.SourceOrigin == types.OriginFactory {
			if _, dup := stored[keyOf(r)]; dup {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
