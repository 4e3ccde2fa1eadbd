package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/paritytech/zombienet-sdk/internal/chainspec"
	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/metrics"
	"github.com/paritytech/zombienet-sdk/internal/provider"
	"github.com/paritytech/zombienet-sdk/pkg/log"
)

// Spawner spawns additional nodes through the full derivation pipeline. The
// orchestrator implements it; the handle only holds the capability.
type Spawner interface {
	SpawnNode(ctx context.Context, node *domain.NodeSpec, para *domain.ParachainSpec) (*NodeRecord, error)
	BuildParachain(ctx context.Context, para *domain.ParachainSpec) (*ParachainRecord, error)
}

// ChainClient submits the ecosystem extrinsics the handle needs. Implemented
// by the glue package; swapped for a stub in tests.
type ChainClient interface {
	RegisterParachain(ctx context.Context, wsURI string, id uint32, head, wasm string, onboard bool) error
	AuthorizeUpgrade(ctx context.Context, wsURI string, paraID uint32, wasm []byte) error
	EnactAuthorizedUpgrade(ctx context.Context, wsURI string, paraID uint32, wasm []byte) error
	BestBlock(ctx context.Context, wsURI string) (uint64, error)
}

// ParachainRecord is the runtime state of one parachain.
type ParachainRecord struct {
	Spec       *domain.ParachainSpec
	Artifact   *domain.ChainSpecArtifact
	Genesis    *chainspec.ParaGenesis
	Registered bool
	// Tag distinguishes multiple instances sharing a para id.
	Tag string
}

// Network is the live handle over a spawned (or reattached) network.
type Network struct {
	ID       string
	BaseDir  string
	Settings domain.GlobalSettings

	prov    provider.Provider
	spawner Spawner
	client  ChainClient
	relay   *domain.ChainSpecArtifact
	logger  zerolog.Logger

	mu         sync.RWMutex
	nodes      map[string]*NodeRecord
	parachains []*ParachainRecord
}

// New creates a handle over already spawned state.
func New(id, baseDir string, settings domain.GlobalSettings, prov provider.Provider, spawner Spawner, client ChainClient, relay *domain.ChainSpecArtifact) *Network {
	return &Network{
		ID:       id,
		BaseDir:  baseDir,
		Settings: settings,
		prov:     prov,
		spawner:  spawner,
		client:   client,
		relay:    relay,
		logger:   log.WithComponent("network"),
		nodes:    make(map[string]*NodeRecord),
	}
}

// RelaySpec returns the relay chain spec artifact.
func (n *Network) RelaySpec() *domain.ChainSpecArtifact { return n.relay }

// SetRelaySpec records the relay artifact once the chain-spec engine has
// produced it.
func (n *Network) SetRelaySpec(a *domain.ChainSpecArtifact) { n.relay = a }

// Provider returns the execution backend of this network.
func (n *Network) Provider() provider.Provider { return n.prov }

// AddRecord registers a spawned node in the registry.
func (n *Network) AddRecord(rec *NodeRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[rec.Spec.Name] = rec
}

// AddParachainRecord registers a parachain.
func (n *Network) AddParachainRecord(rec *ParachainRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parachains = append(n.parachains, rec)
}

// GetNode returns the record of a node by name.
func (n *Network) GetNode(name string) (*NodeRecord, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	rec, ok := n.nodes[name]
	if !ok {
		return nil, domain.Errorf(domain.ErrNetworkInconsistent, "unknown node %q", name)
	}
	return rec, nil
}

// Nodes returns a snapshot of every node record.
func (n *Network) Nodes() []*NodeRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*NodeRecord, 0, len(n.nodes))
	for _, rec := range n.nodes {
		out = append(out, rec)
	}
	return out
}

// Parachains returns a snapshot of every parachain record.
func (n *Network) Parachains() []*ParachainRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*ParachainRecord{}, n.parachains...)
}

// AddNode derives and spawns a new relay-chain node at runtime.
func (n *Network) AddNode(ctx context.Context, node *domain.NodeSpec) (*NodeRecord, error) {
	if n.spawner == nil {
		return nil, domain.Errorf(domain.ErrNetworkInconsistent, "network handle has no spawner (attached?)")
	}
	if _, err := n.GetNode(node.Name); err == nil {
		return nil, domain.Errorf(domain.ErrNetworkInconsistent, "node %q already exists", node.Name)
	}

	rec, err := n.spawner.SpawnNode(ctx, node, nil)
	if err != nil {
		return nil, err
	}
	n.AddRecord(rec)
	return rec, nil
}

// AddCollator derives and spawns a new collator for an existing parachain.
func (n *Network) AddCollator(ctx context.Context, node *domain.NodeSpec, paraID uint32) (*NodeRecord, error) {
	if n.spawner == nil {
		return nil, domain.Errorf(domain.ErrNetworkInconsistent, "network handle has no spawner (attached?)")
	}

	para := n.findParachain(paraID, "")
	if para == nil {
		return nil, domain.Errorf(domain.ErrNetworkInconsistent, "unknown parachain %d", paraID)
	}

	node.Role = domain.RoleCollator
	node.ParaID = paraID
	rec, err := n.spawner.SpawnNode(ctx, node, para.Spec)
	if err != nil {
		return nil, err
	}
	n.AddRecord(rec)
	return rec, nil
}

// AddParachain builds and spawns a whole new parachain at runtime. tag
// disambiguates instances sharing a para id.
func (n *Network) AddParachain(ctx context.Context, para *domain.ParachainSpec, tag string) (*ParachainRecord, error) {
	if n.spawner == nil {
		return nil, domain.Errorf(domain.ErrNetworkInconsistent, "network handle has no spawner (attached?)")
	}

	rec, err := n.spawner.BuildParachain(ctx, para)
	if err != nil {
		return nil, err
	}
	rec.Tag = tag
	n.AddParachainRecord(rec)

	for _, col := range para.Collators {
		nodeRec, err := n.spawner.SpawnNode(ctx, col, para)
		if err != nil {
			return nil, err
		}
		n.AddRecord(nodeRec)
	}
	return rec, nil
}

// RemoveNode destroys a node and drops it from the registry.
func (n *Network) RemoveNode(ctx context.Context, name string) error {
	rec, err := n.GetNode(name)
	if err != nil {
		return err
	}

	if err := n.prov.Destroy(ctx, rec.Handle); err != nil {
		return err
	}

	n.mu.Lock()
	delete(n.nodes, name)
	n.mu.Unlock()
	return nil
}

// Pause suspends a node through the supervisor.
func (n *Network) Pause(ctx context.Context, name string) error {
	rec, err := n.GetNode(name)
	if err != nil {
		return err
	}
	if err := n.prov.Pause(ctx, rec.Handle); err != nil {
		return err
	}
	n.setStatus(name, domain.StatusPaused)
	return nil
}

// Resume continues a paused node.
func (n *Network) Resume(ctx context.Context, name string) error {
	rec, err := n.GetNode(name)
	if err != nil {
		return err
	}
	if err := n.prov.Resume(ctx, rec.Handle); err != nil {
		return err
	}
	n.setStatus(name, domain.StatusReady)
	return nil
}

// Restart restarts a node, optionally after a delay.
func (n *Network) Restart(ctx context.Context, name string, after time.Duration) error {
	rec, err := n.GetNode(name)
	if err != nil {
		return err
	}
	return n.prov.Restart(ctx, rec.Handle, after)
}

func (n *Network) setStatus(name string, status domain.NodeStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if rec, ok := n.nodes[name]; ok {
		rec.Status = status
	}
}

// RunScript uploads a script to a node and executes it.
func (n *Network) RunScript(ctx context.Context, name, script string, scriptArgs []string, env map[string]string) ([]byte, []byte, int, error) {
	rec, err := n.GetNode(name)
	if err != nil {
		return nil, nil, -1, err
	}

	dst := "/tmp/zombie-script.sh"
	if err := n.prov.CopyToNode(ctx, rec.Handle, script, dst); err != nil {
		return nil, nil, -1, err
	}

	cmd := []string{"sh", dst}
	cmd = append(cmd, scriptArgs...)
	for k, v := range env {
		cmd = append([]string{"env", k + "=" + v}, cmd...)
	}
	return n.prov.Exec(ctx, rec.Handle, cmd)
}

// findParachain picks the parachain with the given id, preferring an exact
// tag match.
func (n *Network) findParachain(id uint32, tag string) *ParachainRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var fallback *ParachainRecord
	for _, rec := range n.parachains {
		if rec.Spec.ID != id {
			continue
		}
		if rec.Tag == tag {
			return rec
		}
		if fallback == nil {
			fallback = rec
		}
	}
	return fallback
}

// anyNodeWsURI returns a relay node endpoint for extrinsic submission.
func (n *Network) anyNodeWsURI() (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, rec := range n.nodes {
		if rec.Spec.ParaID == 0 && rec.Status == domain.StatusReady {
			return rec.WsURI(), nil
		}
	}
	for _, rec := range n.nodes {
		if rec.Spec.ParaID == 0 {
			return rec.WsURI(), nil
		}
	}
	return "", domain.Errorf(domain.ErrNetworkInconsistent, "no relay chain node available")
}

// collatorWsURI returns an endpoint of one of a parachain's collators.
func (n *Network) collatorWsURI(paraID uint32) (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, rec := range n.nodes {
		if rec.Spec.ParaID == paraID {
			return rec.WsURI(), nil
		}
	}
	return "", domain.Errorf(domain.ErrNetworkInconsistent, "no collator found for parachain %d", paraID)
}

// Reports returns the current value of a metric on a node.
func (n *Network) Reports(ctx context.Context, nodeName, metricName string) (float64, error) {
	rec, err := n.GetNode(nodeName)
	if err != nil {
		return 0, err
	}

	expr, err := metrics.CompileExpr(metricName)
	if err != nil {
		return 0, domain.WrapError(domain.ErrParseFailed, nodeName, "", err)
	}

	samples, err := rec.Metrics(ctx)
	if err != nil {
		return 0, err
	}

	v, ok := expr.Eval(samples)
	if !ok {
		return 0, domain.Errorf(domain.ErrParseFailed, "metric %q not reported by %s", metricName, nodeName)
	}
	return v, nil
}

// Assert compiles a metric expression and checks it against a fresh scrape.
func (n *Network) Assert(ctx context.Context, nodeName, metricExpr string, pred func(float64) bool) (bool, error) {
	v, err := n.Reports(ctx, nodeName, metricExpr)
	if err != nil {
		return false, err
	}
	return pred(v), nil
}

// WaitMetric polls until pred holds for the metric or the timeout elapses.
func (n *Network) WaitMetric(ctx context.Context, nodeName, metricExpr string, pred func(float64) bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := n.Assert(ctx, nodeName, metricExpr, pred)
		if err == nil && ok {
			return nil
		}
		if time.Now().After(deadline) {
			return domain.Errorf(domain.ErrReadinessTimeout, "metric %q did not satisfy predicate on %s within %s", metricExpr, nodeName, timeout)
		}
		select {
		case <-ctx.Done():
			return domain.WrapError(domain.ErrOperationCancelled, nodeName, "", ctx.Err())
		case <-time.After(waitInterval):
		}
	}
}

// WaitLogLine polls a node's logs until a line matches the pattern.
func (n *Network) WaitLogLine(ctx context.Context, nodeName, pattern string, timeout time.Duration) error {
	rec, err := n.GetNode(nodeName)
	if err != nil {
		return err
	}

	matcher, err := globMatcher(pattern)
	if err != nil {
		return domain.WrapError(domain.ErrParseFailed, nodeName, "", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		lines, err := rec.Handle.Logs(500)
		if err == nil {
			for _, line := range lines {
				if matcher(line) {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return domain.Errorf(domain.ErrReadinessTimeout, "log pattern %q not seen on %s within %s", pattern, nodeName, timeout)
		}
		select {
		case <-ctx.Done():
			return domain.WrapError(domain.ErrOperationCancelled, nodeName, "", ctx.Err())
		case <-time.After(waitInterval):
		}
	}
}

// RegisterParachain submits the registration extrinsic for a manually
// registered parachain instance. A second invocation for the same instance
// is a NetworkInconsistent error.
func (n *Network) RegisterParachain(ctx context.Context, id uint32, tag string) error {
	rec := n.findParachain(id, tag)
	if rec == nil {
		return domain.Errorf(domain.ErrNetworkInconsistent, "unknown parachain %d", id)
	}

	n.mu.Lock()
	if rec.Registered {
		n.mu.Unlock()
		return domain.Errorf(domain.ErrNetworkInconsistent, "parachain %d is already registered", id)
	}
	rec.Registered = true
	n.mu.Unlock()

	wsURI, err := n.anyNodeWsURI()
	if err != nil {
		return err
	}
	if rec.Genesis == nil {
		return domain.Errorf(domain.ErrNetworkInconsistent, "parachain %d has no genesis material", id)
	}

	err = n.client.RegisterParachain(ctx, wsURI, id, rec.Genesis.Head, rec.Genesis.Wasm, rec.Genesis.OnboardAsParachain)
	if err != nil {
		n.mu.Lock()
		rec.Registered = false
		n.mu.Unlock()
		return err
	}

	n.logger.Info().Uint32("para_id", id).Msg("parachain registered")
	return nil
}

// RuntimeUpgrade submits the authorize/enact pair for a parachain runtime
// upgrade. The extrinsics go to one of the parachain's own collators.
func (n *Network) RuntimeUpgrade(ctx context.Context, paraID uint32, wasm []byte) error {
	wsURI, err := n.collatorWsURI(paraID)
	if err != nil {
		return err
	}

	if err := n.client.AuthorizeUpgrade(ctx, wsURI, paraID, wasm); err != nil {
		return fmt.Errorf("authorize_upgrade for para %d: %w", paraID, err)
	}
	if err := n.client.EnactAuthorizedUpgrade(ctx, wsURI, paraID, wasm); err != nil {
		return fmt.Errorf("enact_authorized_upgrade for para %d: %w", paraID, err)
	}

	n.logger.Info().Uint32("para_id", paraID).Msg("runtime upgrade submitted")
	return nil
}

// Destroy tears the whole network down.
func (n *Network) Destroy(ctx context.Context) error {
	return n.prov.DestroyNamespace(ctx)
}
