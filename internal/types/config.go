package types

import (
	"fmt"
	"regexp"
	"strings"
)

// AddressPattern matches a 20-byte hex address with the 0x prefix.
var AddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

const (
	DefaultClaimsPath       = "claims"
	DefaultTransactionsPath = "result"
)

// NetworkConfig describes one chain the aggregator pulls claims from.
// RPCURLs are tried in order; the first one answering wins.
// ClaimsURL points at the per-network claims index ("storage" origin). It is optional.
// ClaimsPath and TransactionsPath are JMESPath expressions selecting the record array out of the
// upstream JSON document. They default to DefaultClaimsPath and DefaultTransactionsPath.
// FactoryAddresses are the factory contracts whose transaction logs are read ("factory" origin).
type NetworkConfig struct {
	Name             string   `json:"name" yaml:"name"`
	ChainID          int64    `json:"chain_id" yaml:"chain_id"`
	RPCURLs          []string `json:"rpc_urls" yaml:"rpc_urls"`
	ClaimsURL        string   `json:"claims_url,omitempty" yaml:"claims_url"`
	ClaimsPath       string   `json:"claims_path,omitempty" yaml:"claims_path"`
	TransactionsPath string   `json:"transactions_path,omitempty" yaml:"transactions_path"`
	FactoryAddresses []string `json:"factory_addresses" yaml:"factory_addresses"`
}

// NetworksFile is the on-disk layout of the networks YAML file.
type NetworksFile struct {
	Networks []NetworkConfig `yaml:"networks"`
}

func (c NetworkConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive")
	}
	if len(c.FactoryAddresses) > 0 && len(c.RPCURLs) == 0 {
		return fmt.Errorf("rpc_urls is required when factory_addresses is set")
	}
	for _, addr := range c.FactoryAddresses {
		if !AddressPattern.MatchString(addr) {
			return fmt.Errorf("factory address %q is not a hex address", addr)
		}
	}
	if c.ClaimsURL == "" && len(c.FactoryAddresses) == 0 {
		return fmt.Errorf("network %s has neither claims_url nor factory_addresses", c.Name)
	}
	return nil
}

func (c NetworkConfig) EffectiveClaimsPath() string {
	if c.ClaimsPath == "" {
		return DefaultClaimsPath
	}
	return c.ClaimsPath
}

func (c NetworkConfig) EffectiveTransactionsPath() string {
	if c.TransactionsPath == "" {
		return DefaultTransactionsPath
	}
	return c.TransactionsPath
}

// ValidateNetworks validates every network and rejects duplicate names.
func ValidateNetworks(networks []NetworkConfig) error {
	seen := make(map[string]struct{}, len(networks))
	for _, n := range networks {
		if err := n.Validate(); err != nil {
			return Err(ErrInvalidNetworkConfig, err, "network %q", n.Name)
		}
		key := strings.ToLower(n.Name)
		if _, dup := seen[key]; dup {
			return Err(ErrInvalidNetworkConfig, nil, "duplicate network %q", n.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}
