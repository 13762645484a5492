package cmds

import (
	"faucetdrops/internal/types"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadNetworks reads and validates the network list from a YAML file of the form:
//
//	networks:
//	  - name: celo
//	    chain_id: 42220
//	    rpc_urls: [https://forno.celo.org]
//	    claims_url: https://indexer.example/celo/claims
//	    factory_addresses: [0x...]
func LoadNetworks(path string) ([]types.NetworkConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Err(types.ErrInvalidNetworkConfig, err, "read networks file %s", path)
	}
	var file types.NetworksFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, types.Err(types.ErrInvalidNetworkConfig, err, "parse networks file %s", path)
	}
	if err := types.ValidateNetworks(file.Networks); err != nil {
		return nil, err
	}
	return file.Networks, nil
}
