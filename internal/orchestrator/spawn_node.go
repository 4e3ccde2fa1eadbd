package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	argspkg "github.com/paritytech/zombienet-sdk/internal/args"
	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/keys"
	"github.com/paritytech/zombienet-sdk/internal/metrics"
	"github.com/paritytech/zombienet-sdk/internal/network"
	"github.com/paritytech/zombienet-sdk/internal/provider"
)

// readinessMetric is the sample whose presence marks a node Ready.
const readinessMetric = "node_roles"

// readinessPoll is the scrape cadence while waiting for readiness.
const readinessPoll = time.Second

// SpawnNode materializes one node's files, spawns it through the provider
// and waits for readiness. Also the Spawner entry point for runtime adds.
func (o *Orchestrator) SpawnNode(ctx context.Context, node *domain.NodeSpec, para *domain.ParachainSpec) (*network.NodeRecord, error) {
	settings := &o.spec.Settings
	basePath := filepath.Join(settings.BaseDir, node.Name)
	logPath := filepath.Join(settings.BaseDir, node.Name+".log")

	if node.Ports.RPC == 0 {
		// Runtime-added nodes arrive without ports.
		if err := o.assignNodePorts(node); err != nil {
			return nil, err
		}
	}

	if node.NodeKey == "" {
		// Runtime-added nodes arrive without derived identities.
		accounts, err := keys.DeriveAccounts(node.Name)
		if err != nil {
			return nil, domain.WrapError(domain.ErrConfigInvalid, node.Name, node.Chain, err)
		}
		node.Accounts = accounts
		if node.NodeKey, node.PeerID, err = keys.NodeKey(node.Name); err != nil {
			return nil, domain.WrapError(domain.ErrConfigInvalid, node.Name, node.Chain, err)
		}
	}

	artifact := o.relayArtifact
	var cumulus *argspkg.CumulusOptions
	if para != nil {
		rec := o.paraRecord(para.ID)
		if rec == nil || rec.Artifact == nil {
			if para.CumulusBased {
				return nil, domain.Errorf(domain.ErrNetworkInconsistent, "parachain %d has no chain spec artifact", para.ID)
			}
		} else {
			artifact = rec.Artifact
		}
		if para.CumulusBased {
			cumulus = &argspkg.CumulusOptions{
				RelayChainSpecPath: o.relayArtifact.CurrentPath(),
				RelayBasePath:      filepath.Join(basePath, "relay-data"),
			}
		}
	}

	specCopy, err := o.engine.NodeSpecCopy(artifact, node.Name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
	}

	chainID, err := o.chainID(artifact)
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, node.Name, node.Chain, err)
	}
	keystoreDir := filepath.Join(basePath, "chains", chainID, "keystore")
	if err := o.engine.InjectKeys(keystoreDir, node); err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
	}

	if node.DBSnapshot != "" {
		if err := o.fetchSnapshot(node.DBSnapshot, basePath); err != nil {
			return nil, domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
		}
	}

	userArgs, err := o.resolveRuntimeTokens(node.Args)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
	}
	fullNodeArgs, err := o.resolveRuntimeTokens(node.FullNodeArgs)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
	}

	resolved := *node
	resolved.Args = userArgs
	resolved.FullNodeArgs = fullNodeArgs

	caps := o.prov.Capabilities()
	cmdline, err := argspkg.Assemble(argspkg.Options{
		Node:                  &resolved,
		ChainSpecPath:         specCopy,
		BasePath:              basePath,
		Containerized:         caps.RequiresImage,
		InsecureValidatorFlag: true,
		Bootnodes:             o.bootnodeAddresses(node),
		Cumulus:               cumulus,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
	}

	o.out.Info("spawning %s (%s)", node.Name, node.Chain)
	handle, err := o.prov.SpawnNode(ctx, provider.SpawnOptions{
		Name:      node.Name,
		Command:   node.Command,
		Args:      cmdline,
		Env:       node.Env,
		Image:     node.Image,
		BasePath:  basePath,
		LogPath:   logPath,
		Ports:     node.Ports,
		Resources: node.Resources,
		Paused:    node.Paused,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
	}

	rec := &network.NodeRecord{
		Spec:          node,
		Handle:        handle,
		Status:        domain.StatusSpawning,
		BasePath:      basePath,
		LogPath:       handle.LogPath(),
		ChainSpecPath: specCopy,
		CommandLine:   append([]string{node.Command}, cmdline...),
	}

	if !node.Paused && settings.NodeVerifier != "none" {
		if err := o.waitReady(ctx, rec); err != nil {
			rec.Status = domain.StatusFailed
			return nil, err
		}
	}

	rec.Multiaddr = o.captureMultiaddr(rec)
	if node.Paused {
		rec.Status = domain.StatusPaused
	} else {
		rec.Status = domain.StatusReady
	}

	o.logger.Info().Str("node", node.Name).Str("multiaddr", rec.Multiaddr).Msg("node ready")
	return rec, nil
}

// assignNodePorts gives a runtime-added node its port set.
func (o *Orchestrator) assignNodePorts(node *domain.NodeSpec) error {
	if o.spec.Settings.Provider == domain.ProviderNative {
		set, err := o.allocator.ReserveSet(4)
		if err != nil {
			return domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain, err)
		}
		assignMissing(&node.Ports, set)
		return nil
	}

	// Deterministic next block after the existing nodes.
	max := uint16(containerPortBase)
	for _, rec := range o.net.Nodes() {
		if p := rec.Spec.Ports.RPC; p >= max {
			max = p + 10
		}
	}
	assignMissing(&node.Ports, []uint16{max, max + 1, max + 2, max + 3})
	return nil
}

// paraRecord finds the runtime record of a parachain id.
func (o *Orchestrator) paraRecord(id uint32) *network.ParachainRecord {
	for _, rec := range o.net.Parachains() {
		if rec.Spec.ID == id {
			return rec
		}
	}
	return nil
}

// chainID reads the "id" field of a chain spec, used for the keystore path.
func (o *Orchestrator) chainID(artifact *domain.ChainSpecArtifact) (string, error) {
	data, err := o.fs.ReadFile(artifact.CurrentPath())
	if err != nil {
		return "", err
	}
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("failed to parse chain spec id: %w", err)
	}
	if head.ID == "" {
		return "", fmt.Errorf("chain spec %s has no id", artifact.CurrentPath())
	}
	return head.ID, nil
}

// resolveRuntimeTokens substitutes ZOMBIE tokens from spawned node records.
func (o *Orchestrator) resolveRuntimeTokens(in []string) ([]string, error) {
	if !argspkg.HasZombieToken(in) {
		return in, nil
	}
	return argspkg.ResolveZombieTokens(in, func(nodeName, field string) (string, error) {
		rec, err := o.net.GetNode(nodeName)
		if err != nil {
			return "", err
		}
		return rec.Field(field)
	})
}

// bootnodeAddresses resolves the addresses a node should dial: its explicit
// bootnode list (names resolved against the registry) or, by default, the
// ready bootnodes of its chain.
func (o *Orchestrator) bootnodeAddresses(node *domain.NodeSpec) []string {
	var out []string

	if len(node.Bootnodes) > 0 {
		for _, ref := range node.Bootnodes {
			if rec, err := o.net.GetNode(ref); err == nil {
				out = append(out, rec.Multiaddr)
				continue
			}
			// Literal multiaddress.
			out = append(out, ref)
		}
		return out
	}

	if node.Bootnode {
		return nil
	}
	for _, peer := range o.chainPeers(node) {
		if !peer.Bootnode || peer.Name == node.Name {
			continue
		}
		if rec, err := o.net.GetNode(peer.Name); err == nil && rec.Multiaddr != "" {
			out = append(out, rec.Multiaddr)
		}
	}
	return out
}

// waitReady polls the metrics endpoint until node_roles reports a finite
// value or the per-node timeout elapses.
func (o *Orchestrator) waitReady(ctx context.Context, rec *network.NodeRecord) error {
	expr, err := metrics.CompileExpr(readinessMetric)
	if err != nil {
		return err
	}

	node := rec.Spec
	deadline := time.Now().Add(o.spec.Settings.NodeSpawnTimeout)
	for {
		if !rec.Handle.IsRunning() {
			return domain.WrapError(domain.ErrSpawnFailed, node.Name, node.Chain,
				fmt.Errorf("node exited before becoming ready"))
		}

		samples, err := metrics.Scrape(ctx, rec.PrometheusURI())
		if err == nil && expr.HasFinite(samples) {
			return nil
		}

		if time.Now().After(deadline) {
			return &domain.ZombieError{
				Kind:  domain.ErrReadinessTimeout,
				Node:  node.Name,
				Chain: node.Chain,
				Hint:  "inspect the node log under base_dir, or raise node_spawn_timeout",
				Err:   fmt.Errorf("%s not observed within %s", readinessMetric, o.spec.Settings.NodeSpawnTimeout),
			}
		}
		select {
		case <-ctx.Done():
			return domain.WrapError(domain.ErrOperationCancelled, node.Name, node.Chain, ctx.Err())
		case <-time.After(readinessPoll):
		}
	}
}

// captureMultiaddr extracts the node's advertised multiaddress from its log,
// falling back to the address constructed from the derived peer id.
func (o *Orchestrator) captureMultiaddr(rec *network.NodeRecord) string {
	node := rec.Spec
	pattern := regexp.MustCompile(`(/ip[46]/\S+/p2p/` + regexp.QuoteMeta(node.PeerID) + `)`)

	if lines, err := rec.Handle.Logs(200); err == nil {
		for _, line := range lines {
			if m := pattern.FindStringSubmatch(line); m != nil {
				return m[1]
			}
		}
	}
	return fmt.Sprintf("/ip4/%s/tcp/%d/ws/p2p/%s", rec.Handle.Host(), node.Ports.P2P, node.PeerID)
}
