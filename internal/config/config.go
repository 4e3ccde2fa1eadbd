// Package config loads declarative network definitions from TOML and
// validates them into the orchestrator's immutable NetworkSpec.
package config

// Config is the root of a TOML network definition.
type Config struct {
	Settings     Settings        `toml:"settings"`
	Relaychain   Relaychain      `toml:"relaychain"`
	Parachains   []Parachain     `toml:"parachains"`
	HrmpChannels []HrmpChannel   `toml:"hrmp_channels"`
	CustomProcs  []CustomProcess `toml:"custom_processes"`
}

// Settings mirrors the global settings table.
type Settings struct {
	Provider           string `toml:"provider"`
	BaseDir            string `toml:"base_dir"`
	SpawnConcurrency   int    `toml:"spawn_concurrency"`
	NodeSpawnTimeout   int    `toml:"node_spawn_timeout"`
	Timeout            int    `toml:"timeout"`
	TearDownOnFailure  *bool  `toml:"tear_down_on_failure"`
	TokenDecimals      *uint8 `toml:"token_decimals"`
	StakingMin         uint64 `toml:"staking_min"`
	NodeVerifier       string `toml:"node_verifier"`
	LocalIPWorkaround  bool   `toml:"local_ip_workaround"`
}

// Relaychain mirrors the relaychain table.
type Relaychain struct {
	Chain            string         `toml:"chain"`
	DefaultCommand   string         `toml:"default_command"`
	DefaultImage     string         `toml:"default_image"`
	DefaultArgs      []string       `toml:"default_args"`
	ChainSpecPath    string         `toml:"chain_spec_path"`
	ChainSpecCommand string         `toml:"chain_spec_command"`
	RuntimeWasm      string         `toml:"runtime_wasm"`
	RuntimePreset    string         `toml:"runtime_preset"`
	GenesisOverrides map[string]any `toml:"genesis"`
	RawSpecOverridePath string      `toml:"raw_spec_override_path"`
	RandomNominators bool           `toml:"random_nominators_count"`
	MaxNominations   uint8          `toml:"max_nominations"`
	DefaultResources Resources      `toml:"default_resources"`
	Nodes            []Node         `toml:"nodes"`
	NodeGroups       []NodeGroup    `toml:"node_groups"`
}

// Parachain mirrors one [[parachains]] table.
type Parachain struct {
	ID                    uint32         `toml:"id"`
	Chain                 string         `toml:"chain"`
	AddToGenesis          *bool          `toml:"add_to_genesis"`
	RegisterPara          *bool          `toml:"register_para"`
	OnboardAsParachain    *bool          `toml:"onboard_as_parachain"`
	CumulusBased          *bool          `toml:"cumulus_based"`
	EvmBased              bool           `toml:"evm_based"`
	DefaultCommand        string         `toml:"default_command"`
	DefaultImage          string         `toml:"default_image"`
	DefaultArgs           []string       `toml:"default_args"`
	ChainSpecPath         string         `toml:"chain_spec_path"`
	ChainSpecCommand      string         `toml:"chain_spec_command"`
	GenesisOverrides      map[string]any `toml:"genesis"`
	GenesisStateGenerator string         `toml:"genesis_state_generator"`
	GenesisWasmGenerator  string         `toml:"genesis_wasm_generator"`
	WasmOverridePath      string         `toml:"wasm_override_path"`
	RawSpecOverridePath   string         `toml:"raw_spec_override_path"`
	Collators             []Node         `toml:"collators"`
	CollatorGroups        []NodeGroup    `toml:"collator_groups"`
}

// Node mirrors a node or collator table.
type Node struct {
	Name           string            `toml:"name"`
	Validator      *bool             `toml:"validator"`
	Command        string            `toml:"command"`
	Image          string            `toml:"image"`
	Args           []string          `toml:"args"`
	FullNodeArgs   []string          `toml:"full_node_args"`
	Env            map[string]string `toml:"env"`
	KeyTypes       []string          `toml:"key_types"`
	InitialBalance *uint64           `toml:"initial_balance"`
	IsBootnode     bool              `toml:"is_bootnode"`
	// Both spellings are accepted; they are unioned during validation.
	Bootnodes          []string  `toml:"bootnodes"`
	BootnodesAddresses []string  `toml:"bootnodes_addresses"`
	DBSnapshot         string    `toml:"db_snapshot"`
	Paused             bool      `toml:"paused"`
	EthKey             string    `toml:"eth_key"`
	Resources          Resources `toml:"resources"`
	RPCPort            uint16    `toml:"rpc_port"`
	WSPort             uint16    `toml:"ws_port"`
	PrometheusPort     uint16    `toml:"prometheus_port"`
	P2PPort            uint16    `toml:"p2p_port"`
}

// NodeGroup expands into count nodes named name-<i>.
type NodeGroup struct {
	Name      string   `toml:"name"`
	Count     int      `toml:"count"`
	Validator *bool    `toml:"validator"`
	Command   string   `toml:"command"`
	Image     string   `toml:"image"`
	Args      []string `toml:"args"`
}

// Resources mirrors request/limit pass-through.
type Resources struct {
	RequestMemory string `toml:"request_memory"`
	RequestCPU    string `toml:"request_cpu"`
	LimitMemory   string `toml:"limit_memory"`
	LimitCPU      string `toml:"limit_cpu"`
}

// HrmpChannel mirrors one [[hrmp_channels]] table.
type HrmpChannel struct {
	Sender         uint32 `toml:"sender"`
	Recipient      uint32 `toml:"recipient"`
	MaxCapacity    uint32 `toml:"max_capacity"`
	MaxMessageSize uint32 `toml:"max_message_size"`
}

// CustomProcess mirrors one [[custom_processes]] table.
type CustomProcess struct {
	Name    string            `toml:"name"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}
