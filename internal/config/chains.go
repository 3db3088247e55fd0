package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChainSpec describes one target chain from the chains file.
type ChainSpec struct {
	Name              string `yaml:"name"`
	ChainID           uint64 `yaml:"chain_id"`
	RPCEnvVar         string `yaml:"rpc_env_var"`
	ExplorerURL       string `yaml:"explorer_url"`
	ExplorerAPIURL    string `yaml:"explorer_api_url"`
	ExplorerAPIKeyEnv string `yaml:"explorer_api_key_env"`
	NativeCurrency    string `yaml:"native_currency"`
}

// ExplorerAPIKey reads the chain's explorer API key from the environment.
// Empty when the variable is unset.
func (s ChainSpec) ExplorerAPIKey() string {
	if s.ExplorerAPIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.ExplorerAPIKeyEnv)
}

// ChainRegistry is the parsed chains file: per-chain specs plus optional
// Alchemy RPC URL prefixes completed with ALCHEMY_API_KEY.
type ChainRegistry struct {
	Chains      map[string]ChainSpec `yaml:"chains"`
	AlchemyRPCs map[string]string    `yaml:"alchemy_rpcs"`
}

// LoadChains reads and parses a chains file.
func LoadChains(path string) (*ChainRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chains file: %w", err)
	}

	var reg ChainRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse chains file: %w", err)
	}
	if len(reg.Chains) == 0 {
		return nil, fmt.Errorf("chains file %s defines no chains", path)
	}

	return &reg, nil
}

// Chain returns the spec for the named chain.
func (r *ChainRegistry) Chain(name string) (ChainSpec, error) {
	spec, ok := r.Chains[name]
	if !ok {
		return ChainSpec{}, fmt.Errorf("unknown chain: %s", name)
	}
	return spec, nil
}

// RPCURL resolves the RPC endpoint for the named chain. An Alchemy prefix
// completed with ALCHEMY_API_KEY wins over the chain's own RPC env var.
func (r *ChainRegistry) RPCURL(name string) (string, error) {
	spec, err := r.Chain(name)
	if err != nil {
		return "", err
	}

	if key := os.Getenv("ALCHEMY_API_KEY"); key != "" {
		if prefix, ok := r.AlchemyRPCs[name]; ok {
			return prefix + key, nil
		}
	}

	if spec.RPCEnvVar != "" {
		if url := os.Getenv(spec.RPCEnvVar); url != "" {
			return url, nil
		}
	}

	return "", fmt.Errorf("rpc url for %s not set: define %s or ALCHEMY_API_KEY", name, spec.RPCEnvVar)
}
