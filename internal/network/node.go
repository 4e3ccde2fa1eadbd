// Package network exposes the live handle returned by a successful spawn:
// node lookup, dynamic mutation, metric assertions and parachain operations.
package network

import (
	"context"
	"fmt"
	"time"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/metrics"
	"github.com/paritytech/zombienet-sdk/internal/provider"
)

// NodeRecord is the runtime state of one node. Records live in the network
// registry and are looked up by name; nothing holds back-pointers.
type NodeRecord struct {
	Spec          *domain.NodeSpec
	Handle        provider.NodeHandle
	Status        domain.NodeStatus
	Multiaddr     string
	BasePath      string
	LogPath       string
	ChainSpecPath string
	CommandLine   []string
}

// WsURI returns the node's websocket RPC endpoint.
func (r *NodeRecord) WsURI() string {
	return fmt.Sprintf("ws://%s:%d", r.Handle.Host(), r.Handle.Ports().WS)
}

// RPCURI returns the node's HTTP RPC endpoint.
func (r *NodeRecord) RPCURI() string {
	return fmt.Sprintf("http://%s:%d", r.Handle.Host(), r.Handle.Ports().RPC)
}

// PrometheusURI returns the node's metrics endpoint.
func (r *NodeRecord) PrometheusURI() string {
	return fmt.Sprintf("http://%s:%d/metrics", r.Handle.Host(), r.Handle.Ports().Prometheus)
}

// Field resolves a ZOMBIE-token field name against this record.
func (r *NodeRecord) Field(name string) (string, error) {
	switch name {
	case "multiaddr":
		return r.Multiaddr, nil
	case "ws_uri":
		return r.WsURI(), nil
	case "prometheus_uri":
		return r.PrometheusURI(), nil
	}
	return "", fmt.Errorf("unknown node field %q", name)
}

// Metrics scrapes and parses the node's metrics endpoint.
func (r *NodeRecord) Metrics(ctx context.Context) ([]metrics.Sample, error) {
	return metrics.Scrape(ctx, r.PrometheusURI())
}

// attachedHandle is a provider-less handle rebuilt from persisted state. It
// carries endpoints only; lifecycle operations need a provider-issued handle,
// which reattach does not restore.
type attachedHandle struct {
	name  string
	host  string
	ports domain.PortSet
}

func (h *attachedHandle) Name() string          { return h.name }
func (h *attachedHandle) Host() string          { return h.host }
func (h *attachedHandle) Ports() domain.PortSet { return h.ports }
func (h *attachedHandle) LogPath() string       { return "" }
func (h *attachedHandle) Logs(int) ([]string, error) {
	return nil, fmt.Errorf("logs unavailable on an attached handle")
}
func (h *attachedHandle) IsRunning() bool { return true }

// waitInterval is the poll cadence for metric waits.
const waitInterval = time.Second
