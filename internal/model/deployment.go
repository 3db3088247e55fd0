package model

// DeploymentLog is the on-disk record of one deployment run.
type DeploymentLog struct {
	DeploymentInfo DeploymentInfo              `yaml:"deployment_info" json:"deployment_info"`
	Contracts      map[string]ContractRecord   `yaml:"contracts" json:"contracts"`
	Verification   map[string]VerificationInfo `yaml:"verification" json:"verification"`
}

// DeploymentInfo identifies the run: when, by whom, on which chain.
type DeploymentInfo struct {
	Timestamp string `yaml:"timestamp" json:"timestamp"`
	Deployer  string `yaml:"deployer" json:"deployer"`
	Chain     string `yaml:"chain" json:"chain"`
	ChainID   uint64 `yaml:"chain_id" json:"chain_id"`
}

// ContractRecord describes one published contract.
type ContractRecord struct {
	Address          string   `yaml:"address" json:"address"`
	TxHash           string   `yaml:"tx_hash,omitempty" json:"tx_hash,omitempty"`
	ContractType     string   `yaml:"contract_type,omitempty" json:"contract_type,omitempty"`
	BlueprintAddress string   `yaml:"blueprint_address,omitempty" json:"blueprint_address,omitempty"`
	ConstructorArgs  []string `yaml:"constructor_args,omitempty" json:"constructor_args,omitempty"`
}

// VerificationInfo records the explorer verification outcome for one contract.
type VerificationInfo struct {
	Status      string `yaml:"status" json:"status"`
	GUID        string `yaml:"guid,omitempty" json:"guid,omitempty"`
	ExplorerURL string `yaml:"explorer_url,omitempty" json:"explorer_url,omitempty"`
	Message     string `yaml:"message,omitempty" json:"message,omitempty"`
}

// DeploymentRecord is one contract row in the deployments ledger.
type DeploymentRecord struct {
	ChainID          uint64 `json:"chain_id"`
	Chain            string `json:"chain"`
	Deployer         string `json:"deployer"`
	ContractName     string `json:"contract_name"`
	Address          string `json:"address"`
	TxHash           string `json:"tx_hash,omitempty"`
	ContractType     string `json:"contract_type,omitempty"`
	BlueprintAddress string `json:"blueprint_address,omitempty"`
	DeployedAt       string `json:"deployed_at"`
}
