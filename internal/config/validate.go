package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/keys"
)

// Defaults applied when the definition leaves fields unset.
const (
	DefaultProvider         = domain.ProviderDocker
	DefaultSpawnConcurrency = 100
	DefaultNodeSpawnTimeout = 600 * time.Second
	DefaultNetworkTimeout   = 3600 * time.Second
	DefaultTokenDecimals    = 12
	DefaultStakingMin       = 1_000_000_000_000
	DefaultRelayCommand     = "polkadot"
	DefaultParaCommand      = "polkadot-parachain"
)

func secondsDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Validate performs the semantic checks and resolves the definition into the
// immutable NetworkSpec, deriving node identities along the way. Ports are
// assigned later by the orchestrator, per provider.
func Validate(cfg *Config) (*domain.NetworkSpec, error) {
	if cfg.Relaychain.Chain == "" {
		return nil, domain.Errorf(domain.ErrConfigInvalid, "relaychain.chain is required")
	}

	spec := &domain.NetworkSpec{
		ID:       uuid.NewString(),
		Settings: resolveSettings(&cfg.Settings),
	}

	relay, err := resolveRelaychain(&cfg.Relaychain)
	if err != nil {
		return nil, err
	}
	spec.Relaychain = *relay

	strategies := map[uint32][]domain.RegistrationStrategy{}
	for i := range cfg.Parachains {
		para, err := resolveParachain(&cfg.Parachains[i])
		if err != nil {
			return nil, err
		}
		spec.Parachains = append(spec.Parachains, para)
		strategies[para.ID] = append(strategies[para.ID], para.Registration)
	}

	// Parachain ids may repeat only when at most one instance per id wants
	// automatic registration.
	for id, regs := range strategies {
		autos := 0
		for _, r := range regs {
			if r != domain.RegisterManual {
				autos++
			}
		}
		if autos > 1 {
			return nil, &domain.ZombieError{
				Kind:  domain.ErrConfigInvalid,
				Chain: fmt.Sprintf("para-%d", id),
				Hint:  "mark all but one instance of the id with registration strategy manual",
				Err:   fmt.Errorf("parachain id %d used by %d non-manual parachains", id, autos),
			}
		}
	}

	for _, ch := range cfg.HrmpChannels {
		spec.HrmpChannels = append(spec.HrmpChannels, domain.HrmpChannelSpec(ch))
	}
	for _, cp := range cfg.CustomProcs {
		spec.CustomProcesses = append(spec.CustomProcesses, domain.CustomProcessSpec(cp))
	}

	if err := checkUniqueNames(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func resolveSettings(s *Settings) domain.GlobalSettings {
	out := domain.GlobalSettings{
		Provider:          s.Provider,
		BaseDir:           s.BaseDir,
		SpawnConcurrency:  s.SpawnConcurrency,
		NodeSpawnTimeout:  secondsDuration(s.NodeSpawnTimeout),
		NetworkTimeout:    secondsDuration(s.Timeout),
		TearDownOnFailure: true,
		TokenDecimals:     DefaultTokenDecimals,
		StakingMin:        s.StakingMin,
		NodeVerifier:      s.NodeVerifier,
	}
	if out.Provider == "" {
		out.Provider = DefaultProvider
	}
	if out.SpawnConcurrency == 0 {
		out.SpawnConcurrency = DefaultSpawnConcurrency
	}
	if out.NodeSpawnTimeout == 0 {
		out.NodeSpawnTimeout = DefaultNodeSpawnTimeout
	}
	if out.NetworkTimeout == 0 {
		out.NetworkTimeout = DefaultNetworkTimeout
	}
	if s.TearDownOnFailure != nil {
		out.TearDownOnFailure = *s.TearDownOnFailure
	}
	if s.TokenDecimals != nil {
		out.TokenDecimals = *s.TokenDecimals
	}
	if out.StakingMin == 0 {
		out.StakingMin = DefaultStakingMin
	}
	if out.NodeVerifier == "" {
		out.NodeVerifier = "metric"
	}
	return out
}

func resolveRelaychain(r *Relaychain) (*domain.RelaychainSpec, error) {
	relay := &domain.RelaychainSpec{
		Chain:            r.Chain,
		DefaultCommand:   r.DefaultCommand,
		DefaultImage:     r.DefaultImage,
		DefaultArgs:      r.DefaultArgs,
		DefaultResources: domain.Resources(r.DefaultResources),
		GenesisOverrides: r.GenesisOverrides,
		RandomNominators: r.RandomNominators,
		RawSpecOverridePath: r.RawSpecOverridePath,
		MaxNominations:   r.MaxNominations,
		ChainSpecSource:  specSource(r.ChainSpecPath, r.ChainSpecCommand, r.RuntimeWasm, r.RuntimePreset),
	}
	if relay.DefaultCommand == "" {
		relay.DefaultCommand = DefaultRelayCommand
	}
	if relay.DefaultImage == "" {
		relay.DefaultImage = os.Getenv("POLKADOT_IMAGE")
	}

	nodes := expandGroups(r.Nodes, r.NodeGroups)
	for i := range nodes {
		node, err := resolveNode(&nodes[i], relay.Chain, relay.DefaultCommand, relay.DefaultImage, relay.DefaultArgs, 0, false)
		if err != nil {
			return nil, err
		}
		relay.Nodes = append(relay.Nodes, node)
	}
	if len(relay.Nodes) > 0 {
		markDefaultBootnode(relay.Nodes)
	}
	return relay, nil
}

func resolveParachain(p *Parachain) (*domain.ParachainSpec, error) {
	if p.ID == 0 {
		return nil, domain.Errorf(domain.ErrConfigInvalid, "parachain id is required and must be non-zero")
	}

	addToGenesis := p.AddToGenesis != nil && *p.AddToGenesis
	registerPara := p.RegisterPara != nil && *p.RegisterPara
	if addToGenesis && registerPara {
		return nil, &domain.ZombieError{
			Kind:  domain.ErrConfigInvalid,
			Chain: fmt.Sprintf("para-%d", p.ID),
			Hint:  "choose either add_to_genesis or register_para, not both",
			Err:   fmt.Errorf("parachain %d sets both add_to_genesis and register_para", p.ID),
		}
	}

	registration := domain.RegisterInGenesis
	switch {
	case registerPara:
		registration = domain.RegisterUsingExtrinsic
	case p.AddToGenesis != nil && !*p.AddToGenesis && !registerPara:
		registration = domain.RegisterManual
	}

	para := &domain.ParachainSpec{
		ID:                    p.ID,
		Chain:                 p.Chain,
		CumulusBased:          p.CumulusBased == nil || *p.CumulusBased,
		EvmBased:              p.EvmBased,
		OnboardAsParachain:    p.OnboardAsParachain == nil || *p.OnboardAsParachain,
		Registration:          registration,
		DefaultCommand:        p.DefaultCommand,
		DefaultImage:          p.DefaultImage,
		DefaultArgs:           p.DefaultArgs,
		GenesisOverrides:      p.GenesisOverrides,
		GenesisStateGenerator: p.GenesisStateGenerator,
		GenesisWasmGenerator:  p.GenesisWasmGenerator,
		WasmOverridePath:      p.WasmOverridePath,
		RawSpecOverridePath:   p.RawSpecOverridePath,
		ChainSpecSource:       specSource(p.ChainSpecPath, p.ChainSpecCommand, "", ""),
	}
	if para.DefaultCommand == "" {
		para.DefaultCommand = DefaultParaCommand
	}
	if para.DefaultImage == "" {
		para.DefaultImage = firstEnv("COL_IMAGE", "CUMULUS_IMAGE")
	}

	collators := expandGroups(p.Collators, p.CollatorGroups)
	for i := range collators {
		node, err := resolveNode(&collators[i], p.Chain, para.DefaultCommand, para.DefaultImage, para.DefaultArgs, p.ID, p.EvmBased)
		if err != nil {
			return nil, err
		}
		node.Role = domain.RoleCollator
		node.IsCumulusValidator = para.CumulusBased && (collators[i].Validator == nil || *collators[i].Validator)
		para.Collators = append(para.Collators, node)
	}
	return para, nil
}

func resolveNode(n *Node, chain, defaultCommand, defaultImage string, defaultArgs []string, paraID uint32, evmBased bool) (*domain.NodeSpec, error) {
	if n.Name == "" {
		return nil, domain.Errorf(domain.ErrConfigInvalid, "node name is required")
	}

	role := domain.RoleValidator
	if n.Validator != nil && !*n.Validator {
		role = domain.RoleFullNode
	}

	node := &domain.NodeSpec{
		Name:           n.Name,
		Chain:          chain,
		Role:           role,
		Command:        n.Command,
		Image:          n.Image,
		Args:           append(append([]string{}, defaultArgs...), n.Args...),
		FullNodeArgs:   n.FullNodeArgs,
		Env:            n.Env,
		KeyTypes:       n.KeyTypes,
		Resources:      domain.Resources(n.Resources),
		DBSnapshot:     n.DBSnapshot,
		Bootnode:       n.IsBootnode,
		Bootnodes:      append(append([]string{}, n.Bootnodes...), n.BootnodesAddresses...),
		InitialBalance: n.InitialBalance,
		Paused:         n.Paused,
		ParaID:         paraID,
		Ports: domain.PortSet{
			RPC:        n.RPCPort,
			WS:         n.WSPort,
			Prometheus: n.PrometheusPort,
			P2P:        n.P2PPort,
		},
	}
	if node.Command == "" {
		node.Command = defaultCommand
	}
	if node.Image == "" {
		node.Image = defaultImage
		// Malicious test nodes ship in their own image.
		if strings.Contains(node.Command, "malus") {
			if img := os.Getenv("MALUS_IMAGE"); img != "" {
				node.Image = img
			}
		}
	}

	accounts, err := keys.DeriveAccounts(n.Name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfigInvalid, n.Name, chain, err)
	}
	if evmBased {
		if n.EthKey != "" {
			accounts.Eth, err = keys.ParseEthKey(n.EthKey)
		} else {
			accounts.Eth, err = keys.DeriveEthAccount(n.Name)
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrConfigInvalid, n.Name, chain, err)
		}
	}
	node.Accounts = accounts

	nodeKey, peerID, err := keys.NodeKey(n.Name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfigInvalid, n.Name, chain, err)
	}
	node.NodeKey = nodeKey
	node.PeerID = peerID

	return node, nil
}

// expandGroups turns node groups into name-<i> node entries after the
// explicitly declared nodes.
func expandGroups(nodes []Node, groups []NodeGroup) []Node {
	out := append([]Node{}, nodes...)
	for _, g := range groups {
		for i := 1; i <= g.Count; i++ {
			out = append(out, Node{
				Name:      fmt.Sprintf("%s-%d", g.Name, i),
				Validator: g.Validator,
				Command:   g.Command,
				Image:     g.Image,
				Args:      g.Args,
			})
		}
	}
	return out
}

// markDefaultBootnode promotes the first node when none is flagged.
func markDefaultBootnode(nodes []*domain.NodeSpec) {
	for _, n := range nodes {
		if n.Bootnode {
			return
		}
	}
	nodes[0].Bootnode = true
}

func specSource(path, command, runtimeWasm, preset string) domain.ChainSpecSource {
	switch {
	case path != "":
		return domain.ChainSpecSource{Kind: domain.SpecSourcePreExisting, Location: path}
	case command != "":
		return domain.ChainSpecSource{Kind: domain.SpecSourceCommand, Template: command}
	case runtimeWasm != "":
		return domain.ChainSpecSource{Kind: domain.SpecSourceRuntime, RuntimeRef: runtimeWasm, Preset: preset}
	}
	return domain.ChainSpecSource{Kind: domain.SpecSourceAuto}
}

func checkUniqueNames(spec *domain.NetworkSpec) error {
	seen := map[string]bool{}
	for _, node := range spec.AllNodes() {
		if seen[node.Name] {
			return &domain.ZombieError{
				Kind: domain.ErrConfigInvalid,
				Node: node.Name,
				Hint: "node names must be unique across the whole network",
				Err:  fmt.Errorf("duplicate node name %q", node.Name),
			}
		}
		seen[node.Name] = true
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
