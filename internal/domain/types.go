// Package domain holds the fully-resolved network model consumed by the
// orchestrator. Values here are immutable once the spec has been validated;
// runtime mutation happens on the network handle, never on the spec.
package domain

import "time"

// Provider kinds.
const (
	ProviderNative = "native"
	ProviderDocker = "docker"
	ProviderPodman = "podman"
	ProviderK8s    = "k8s"
)

// NodeRole is the role a node plays in its chain.
type NodeRole string

const (
	RoleValidator NodeRole = "validator"
	RoleFullNode  NodeRole = "full_node"
	RoleCollator  NodeRole = "collator"
)

// RegistrationStrategy controls when a parachain is registered on the relay.
type RegistrationStrategy string

const (
	RegisterInGenesis      RegistrationStrategy = "in_genesis"
	RegisterUsingExtrinsic RegistrationStrategy = "using_extrinsic"
	RegisterManual         RegistrationStrategy = "manual"
)

// NodeStatus is the lifecycle state of a running node.
type NodeStatus string

const (
	StatusSpawning NodeStatus = "spawning"
	StatusReady    NodeStatus = "ready"
	StatusPaused   NodeStatus = "paused"
	StatusStopped  NodeStatus = "stopped"
	StatusFailed   NodeStatus = "failed"
)

// ChainSpecSourceKind discriminates how a chain spec is obtained.
type ChainSpecSourceKind string

const (
	SpecSourcePreExisting ChainSpecSourceKind = "pre_existing"
	SpecSourceCommand     ChainSpecSourceKind = "command"
	SpecSourceRuntime     ChainSpecSourceKind = "runtime"
	SpecSourceAuto        ChainSpecSourceKind = "auto"
)

// ChainSpecSource describes where the plain chain spec comes from.
type ChainSpecSource struct {
	Kind ChainSpecSourceKind
	// Path or URL for PreExisting sources.
	Location string
	// Command template for Command sources; {chain} is substituted.
	Template string
	// WASM runtime reference for Runtime sources.
	RuntimeRef string
	// Optional genesis preset for Runtime sources.
	Preset string
}

// PortSet holds the four ports every node exposes.
type PortSet struct {
	RPC        uint16 `json:"rpc"`
	WS         uint16 `json:"ws"`
	Prometheus uint16 `json:"prometheus"`
	P2P        uint16 `json:"p2p"`
}

// Resources carries request/limit pass-through for container providers.
type Resources struct {
	RequestMemory string
	RequestCPU    string
	LimitMemory   string
	LimitCPU      string
}

// KeyPair is one derived account key.
type KeyPair struct {
	// Hex-encoded public key, no 0x prefix.
	Public string
	// SS58 address for the relay network prefix.
	Address string
	// Derivation URI, e.g. "//Alice" or "//Alice//stash".
	URI string
}

// NodeAccounts holds every per-scheme account derived for a node.
type NodeAccounts struct {
	Sr      KeyPair
	SrStash KeyPair
	Ed      KeyPair
	Ec      KeyPair
	// Eth is set only for EVM-based collators.
	Eth *EthAccount
}

// EthAccount is a secp256k1 account in Ethereum form.
type EthAccount struct {
	Address    string
	PrivateKey string
}

// NodeSpec is the fully-resolved definition of one node.
type NodeSpec struct {
	Name    string
	Chain   string
	Role    NodeRole
	Command string
	Image   string
	Args    []string
	// FullNodeArgs go after the cumulus "--" separator.
	FullNodeArgs []string
	Env          map[string]string
	KeyTypes     []string
	Resources    Resources
	DBSnapshot   string
	Ports        PortSet
	Accounts     NodeAccounts
	// NodeKey is the 32-byte libp2p identity seed, hex-encoded.
	NodeKey string
	PeerID  string
	// Bootnode marks this node as advertised to the rest of its chain.
	Bootnode bool
	// Bootnodes lists multiaddresses (or node names to resolve) this node dials.
	Bootnodes []string
	// InitialBalance of the sr account; nil means the chain default.
	InitialBalance *uint64
	// Paused spawns the node under the supervisor in paused state.
	Paused bool
	// IsCumulusValidator marks a cumulus collator running with the validator role.
	IsCumulusValidator bool
	// ParaID is set for collators; zero for relay nodes.
	ParaID uint32
}

// RelaychainSpec is the resolved relay-chain section of a network.
type RelaychainSpec struct {
	Chain            string
	DefaultCommand   string
	DefaultImage     string
	DefaultArgs      []string
	DefaultResources Resources
	ChainSpecSource  ChainSpecSource
	// GenesisOverrides is a JSON patch tree merged into the plain spec.
	GenesisOverrides map[string]any
	RandomNominators bool
	MaxNominations   uint8
	// RawSpecOverridePath merges a JSON patch into the raw spec.
	RawSpecOverridePath string
	Nodes               []*NodeSpec
}

// ParachainSpec is the resolved definition of one parachain.
type ParachainSpec struct {
	ID                 uint32
	Chain              string
	CumulusBased       bool
	EvmBased           bool
	OnboardAsParachain bool
	Registration       RegistrationStrategy
	DefaultCommand     string
	DefaultImage       string
	DefaultArgs        []string
	ChainSpecSource    ChainSpecSource
	GenesisOverrides   map[string]any
	// GenesisStateGenerator and GenesisWasmGenerator override the built-in
	// export subcommands when set.
	GenesisStateGenerator string
	GenesisWasmGenerator  string
	// WasmOverridePath replaces :code after raw conversion.
	WasmOverridePath string
	// RawSpecOverridePath merges a JSON patch into the raw spec.
	RawSpecOverridePath string
	Collators           []*NodeSpec
}

// HrmpChannelSpec preopens one HRMP channel in the relay genesis.
type HrmpChannelSpec struct {
	Sender         uint32
	Recipient      uint32
	MaxCapacity    uint32
	MaxMessageSize uint32
}

// CustomProcessSpec is an auxiliary process spawned with the network.
type CustomProcessSpec struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// GlobalSettings applies network-wide.
type GlobalSettings struct {
	Provider          string
	BaseDir           string
	SpawnConcurrency  int
	NodeSpawnTimeout  time.Duration
	NetworkTimeout    time.Duration
	TearDownOnFailure bool
	// TokenDecimals of the relay native token, for funding math.
	TokenDecimals uint8
	// StakingMin is the minimum validator bond used in balance floors.
	StakingMin uint64
	// NodeVerifier selects readiness detection: "metric" or "none".
	NodeVerifier string
}

// NetworkSpec is the orchestrator's internal, fully-resolved network form.
type NetworkSpec struct {
	ID              string
	Settings        GlobalSettings
	Relaychain      RelaychainSpec
	Parachains      []*ParachainSpec
	HrmpChannels    []HrmpChannelSpec
	CustomProcesses []CustomProcessSpec
}

// AllNodes returns every node in the network, relay first, in declaration order.
func (s *NetworkSpec) AllNodes() []*NodeSpec {
	nodes := make([]*NodeSpec, 0, len(s.Relaychain.Nodes))
	nodes = append(nodes, s.Relaychain.Nodes...)
	for _, para := range s.Parachains {
		nodes = append(nodes, para.Collators...)
	}
	return nodes
}

// ChainSpecArtifact tracks the plain and raw forms of a generated chain spec.
type ChainSpecArtifact struct {
	Chain     string
	PlainPath string
	RawPath   string
	// Raw reports whether per-node copies must be taken from RawPath.
	Raw bool
}

// CurrentPath returns the path nodes should consume.
func (a *ChainSpecArtifact) CurrentPath() string {
	if a.Raw {
		return a.RawPath
	}
	return a.PlainPath
}
