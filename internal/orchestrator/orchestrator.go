// Package orchestrator turns a validated NetworkSpec into a running network:
// chain-spec builds, port and identity materialization, bounded-concurrency
// node spawns with readiness tracking, and failure unwind.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/paritytech/zombienet-sdk/internal/args"
	"github.com/paritytech/zombienet-sdk/internal/chainspec"
	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/persistence"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/ports"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/process"
	"github.com/paritytech/zombienet-sdk/internal/network"
	"github.com/paritytech/zombienet-sdk/internal/output"
	"github.com/paritytech/zombienet-sdk/internal/provider"
	"github.com/paritytech/zombienet-sdk/pkg/log"
)

// Orchestrator drives one network spawn.
type Orchestrator struct {
	spec      *domain.NetworkSpec
	prov      provider.Provider
	fs        filesystem.FileSystem
	engine    *chainspec.Engine
	allocator *ports.Allocator
	client    network.ChainClient
	out       *output.Logger
	logger    zerolog.Logger

	net           *network.Network
	relayArtifact *domain.ChainSpecArtifact

	readyMu   sync.Mutex
	readiness map[string]chan struct{}

	customProcs []*process.Proc
}

// New creates an orchestrator for one spec/provider pair.
func New(spec *domain.NetworkSpec, prov provider.Provider, fs filesystem.FileSystem, allocator *ports.Allocator, client network.ChainClient, out *output.Logger) *Orchestrator {
	if out == nil {
		out = output.DefaultLogger
	}
	return &Orchestrator{
		spec:      spec,
		prov:      prov,
		fs:        fs,
		engine:    chainspec.NewEngine(fs, process.NewRunner(), spec.Settings.BaseDir),
		allocator: allocator,
		client:    client,
		out:       out,
		logger:    log.WithComponent("orchestrator"),
		readiness: make(map[string]chan struct{}),
	}
}

// Spawn runs the whole pipeline and returns the live network handle.
func (o *Orchestrator) Spawn(ctx context.Context) (*network.Network, error) {
	ctx, cancel := context.WithTimeout(ctx, o.spec.Settings.NetworkTimeout)
	defer cancel()

	if err := o.prov.CreateNamespace(ctx); err != nil {
		return nil, err
	}

	if err := o.assignPorts(); err != nil {
		return nil, err
	}

	o.net = network.New(o.spec.ID, o.spec.Settings.BaseDir, o.spec.Settings, o.prov, o, o.client, nil)

	// Parachain specs build first: in-genesis paras must be fully realized in
	// the relay spec before any relay node starts.
	var inGenesis []*chainspec.ParaGenesis
	for _, para := range o.spec.Parachains {
		rec, err := o.BuildParachain(ctx, para)
		if err != nil {
			return nil, err
		}
		o.net.AddParachainRecord(rec)
		if para.Registration == domain.RegisterInGenesis {
			rec.Registered = true
			inGenesis = append(inGenesis, rec.Genesis)
		}
	}

	relayArtifact, err := o.engine.BuildRelay(ctx, o.spec, inGenesis)
	if err != nil {
		return nil, err
	}
	o.relayArtifact = relayArtifact
	o.net.SetRelaySpec(relayArtifact)

	if err := o.startCustomProcesses(ctx); err != nil {
		return nil, err
	}

	if err := o.spawnAll(ctx); err != nil {
		if o.spec.Settings.TearDownOnFailure {
			o.out.Warn("spawn failed, tearing network down: %v", err)
			o.teardown()
			return nil, err
		}
		return o.net, err
	}

	// Extrinsic-registered parachains onboard once the relay is live.
	for _, rec := range o.net.Parachains() {
		if rec.Spec.Registration == domain.RegisterUsingExtrinsic {
			if err := o.net.RegisterParachain(ctx, rec.Spec.ID, rec.Tag); err != nil {
				return o.net, err
			}
		}
	}

	if err := o.persistState(); err != nil {
		return o.net, err
	}

	o.out.Success("network %s is up: %d nodes", o.spec.ID, len(o.net.Nodes()))
	return o.net, nil
}

// BuildParachain produces a parachain's spec artifacts and genesis material.
// Also the Spawner entry point for runtime-added parachains.
func (o *Orchestrator) BuildParachain(ctx context.Context, para *domain.ParachainSpec) (*network.ParachainRecord, error) {
	artifact, genesis, err := o.engine.BuildParachain(ctx, o.spec.Relaychain.Chain, para, &o.spec.Settings)
	if err != nil {
		return nil, err
	}
	return &network.ParachainRecord{
		Spec:     para,
		Artifact: artifact,
		Genesis:  genesis,
	}, nil
}

// spawnAll launches every node honoring the partial order: chain bootnodes
// before their dependents, ZOMBIE-token referents before their consumers.
func (o *Orchestrator) spawnAll(ctx context.Context) error {
	nodes := o.spec.AllNodes()

	concurrency := int64(o.spec.Settings.SpawnConcurrency)
	for _, node := range nodes {
		if args.HasZombieToken(node.Args) || args.HasZombieToken(node.FullNodeArgs) {
			// Runtime-record templating needs a fully serialized order.
			concurrency = 1
			break
		}
	}
	o.logger.Info().Int("nodes", len(nodes)).Int64("concurrency", concurrency).Msg("spawning network")

	o.readyMu.Lock()
	for _, node := range nodes {
		o.readiness[node.Name] = make(chan struct{})
	}
	o.readyMu.Unlock()

	spawnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(concurrency)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	// The first failure stops new spawns: dependents of a dead node can
	// never proceed. Already spawned nodes stay up unless the caller's
	// tear-down setting destroys the namespace afterwards.
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		cancel()
	}

	for _, node := range nodes {
		node := node
		para := o.paraOf(node)

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := o.waitDependencies(spawnCtx, node); err != nil {
				fail(err)
				return
			}
			if err := sem.Acquire(spawnCtx, 1); err != nil {
				fail(domain.WrapError(domain.ErrOperationCancelled, node.Name, node.Chain, err))
				return
			}
			defer sem.Release(1)

			rec, err := o.SpawnNode(spawnCtx, node, para)
			if err != nil {
				fail(err)
				return
			}
			o.net.AddRecord(rec)
			o.markReady(node.Name)
		}()
	}

	wg.Wait()
	return firstErr
}

// waitDependencies blocks until every node this one depends on is Ready.
func (o *Orchestrator) waitDependencies(ctx context.Context, node *domain.NodeSpec) error {
	var deps []string

	if !node.Bootnode {
		for _, other := range o.chainPeers(node) {
			if other.Bootnode && other.Name != node.Name {
				deps = append(deps, other.Name)
			}
		}
	}
	deps = append(deps, args.ZombieReferents(node.Args)...)
	deps = append(deps, args.ZombieReferents(node.FullNodeArgs)...)

	for _, dep := range deps {
		o.readyMu.Lock()
		ch, ok := o.readiness[dep]
		o.readyMu.Unlock()
		if !ok {
			return domain.Errorf(domain.ErrConfigInvalid, "node %s depends on unknown node %s", node.Name, dep)
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return domain.WrapError(domain.ErrOperationCancelled, node.Name, node.Chain, ctx.Err())
		}
	}
	return nil
}

// chainPeers returns the nodes of the same chain segment.
func (o *Orchestrator) chainPeers(node *domain.NodeSpec) []*domain.NodeSpec {
	if node.ParaID == 0 {
		return o.spec.Relaychain.Nodes
	}
	for _, para := range o.spec.Parachains {
		for _, col := range para.Collators {
			if col.Name == node.Name {
				return para.Collators
			}
		}
	}
	return nil
}

func (o *Orchestrator) paraOf(node *domain.NodeSpec) *domain.ParachainSpec {
	if node.ParaID == 0 {
		return nil
	}
	for _, para := range o.spec.Parachains {
		for _, col := range para.Collators {
			if col.Name == node.Name {
				return para
			}
		}
	}
	return nil
}

func (o *Orchestrator) markReady(name string) {
	o.readyMu.Lock()
	defer o.readyMu.Unlock()
	if ch, ok := o.readiness[name]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// startCustomProcesses launches auxiliary processes alongside the network.
func (o *Orchestrator) startCustomProcesses(ctx context.Context) error {
	if len(o.spec.CustomProcesses) == 0 {
		return nil
	}

	runner := process.NewRunner()
	for _, cp := range o.spec.CustomProcesses {
		env := make([]string, 0, len(cp.Env))
		for k, v := range cp.Env {
			env = append(env, k+"="+v)
		}
		proc, err := runner.Begin(ctx, process.Spec{
			Program: cp.Command,
			Args:    cp.Args,
			Env:     env,
			Dir:     o.spec.Settings.BaseDir,
			LogFile: fmt.Sprintf("%s/%s.log", o.spec.Settings.BaseDir, cp.Name),
		})
		if err != nil {
			return domain.WrapError(domain.ErrSpawnFailed, cp.Name, "", err)
		}
		o.customProcs = append(o.customProcs, proc)
	}
	return nil
}

// teardown best-effort destroys everything already spawned.
func (o *Orchestrator) teardown() {
	ctx := context.Background()
	for _, proc := range o.customProcs {
		_ = proc.Kill()
	}
	if err := o.prov.DestroyNamespace(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("teardown left residue behind")
	}
}

// persistState writes zombie.json once every node is Ready.
func (o *Orchestrator) persistState() error {
	repo := persistence.NewStateRepository(o.fs)

	state := &persistence.State{
		NetworkID: o.spec.ID,
		Provider:  o.spec.Settings.Provider,
		BaseDir:   o.spec.Settings.BaseDir,
		Relay: persistence.RelayState{
			Chain:         o.spec.Relaychain.Chain,
			ChainSpecPath: o.relayArtifact.CurrentPath(),
		},
	}

	for _, rec := range o.net.Nodes() {
		state.Nodes = append(state.Nodes, persistence.NodeState{
			Name:      rec.Spec.Name,
			ParaID:    rec.Spec.ParaID,
			Role:      string(rec.Spec.Role),
			Endpoints: rec.Handle.Ports(),
			Host:      rec.Handle.Host(),
			Multiaddr: rec.Multiaddr,
			BasePath:  rec.BasePath,
			Command:   rec.CommandLine,
			LogPath:   rec.LogPath,
		})
	}
	for _, rec := range o.net.Parachains() {
		ps := persistence.ParachainState{
			ID:       rec.Spec.ID,
			Strategy: string(rec.Spec.Registration),
		}
		if rec.Artifact != nil {
			ps.ChainSpecPath = rec.Artifact.CurrentPath()
		}
		state.Parachains = append(state.Parachains, ps)
	}

	return repo.Save(state)
}
