package types

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// SourceOrigin tags which upstream produced a ClaimRecord.
type SourceOrigin string

const (
	OriginStorage SourceOrigin = "storage"
	OriginFactory SourceOrigin = "factory"
)

// ClaimRecord is the unified claim shape. Addresses are lower-cased, Amount is in raw token units and
// TimestampSeconds is always Unix seconds.
type ClaimRecord struct {
	ClaimerAddress   string       `json:"claimer_address"`
	FaucetAddress    string       `json:"faucet_address"`
	Amount           *big.Int     `json:"amount"`
	IsNativeToken    bool         `json:"is_native_token"`
	NetworkName      string       `json:"network_name"`
	ChainID          int64        `json:"chain_id"`
	TimestampSeconds int64        `json:"timestamp_seconds"`
	SourceOrigin     SourceOrigin `json:"source_origin"`
}

// StorageClaim is a claim as served by a per-network claims index.
type StorageClaim struct {
	Claimer   string  `json:"claimer"`
	Faucet    string  `json:"faucet"`
	Amount    Amount  `json:"amount"`
	IsEther   bool    `json:"isEther"`
	Timestamp FlexInt `json:"timestamp"`
}

// FactoryTransaction is one entry of a factory contract transaction log.
type FactoryTransaction struct {
	FaucetAddress   string  `json:"faucetAddress"`
	TransactionType string  `json:"transactionType"`
	Initiator       string  `json:"initiator"`
	Amount          Amount  `json:"amount"`
	IsEther         bool    `json:"isEther"`
	Timestamp       FlexInt `json:"timestamp"`
}

// Amount decodes an arbitrary-precision integer from a JSON number, a decimal string or a 0x-prefixed hex
// string.
type Amount struct {
	big.Int
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		a.SetInt64(0)
		return nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
		if s == "" {
			a.SetInt64(0)
			return nil
		}
	}
	if _, ok := a.SetString(s, base); !ok {
		return fmt.Errorf("invalid amount %q", string(b))
	}
	return nil
}

// BigInt returns a copy of the decoded value.
func (a *Amount) BigInt() *big.Int {
	return new(big.Int).Set(&a.Int)
}

// FlexInt decodes an int64 from a JSON number, a decimal string or a hex string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		// Some indexes emit floats for timestamps.
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", string(b))
		}
		v = int64(fv)
	}
	*f = FlexInt(v)
	return nil
}

// millisThreshold separates millisecond timestamps from second timestamps; 1e12 ms is September 2001 while
// 1e12 s is tens of thousands of years away.
const millisThreshold = 1_000_000_000_000

// NormalizeTimestamp returns the timestamp in Unix seconds.
func NormalizeTimestamp(ts int64) int64 {
	if ts >= millisThreshold {
		return ts / 1000
	}
	return ts
}

// NormalizeAddress lower-cases and trims an address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsAddress reports whether s is a well-formed hex address.
func IsAddress(s string) bool {
	return AddressPattern.MatchString(strings.TrimSpace(s))
}
