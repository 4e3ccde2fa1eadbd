// Package provider defines the uniform contract the native, docker and k8s
// execution backends implement.
package provider

import (
	"context"
	"time"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// Capabilities advertises backend-specific behavior to the orchestrator.
type Capabilities struct {
	RequiresImage            bool
	SupportsResourceLimits   bool
	HasStableIntraNetworkDNS bool
}

// SpawnOptions carries everything a backend needs to start one node.
type SpawnOptions struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	Image   string
	// BasePath is the node's host-side data directory.
	BasePath string
	LogPath  string
	Ports    domain.PortSet
	Resources domain.Resources
	// Paused starts the node under the supervisor in paused state.
	Paused bool
	// Files maps host paths to in-node destinations, placed before start.
	Files map[string]string
}

// NodeHandle is a live reference to a spawned node.
type NodeHandle interface {
	Name() string
	// Host is the address the node's mapped ports are reachable on.
	Host() string
	// Ports as reachable from the driver (mapped for container providers).
	Ports() domain.PortSet
	// Logs returns the last n lines of node output.
	Logs(n int) ([]string, error)
	// LogPath is the host-side log file, empty when logs are engine-held.
	LogPath() string
	// IsRunning reports liveness.
	IsRunning() bool
}

// Provider is the polymorphic execution backend contract. Implementations
// must be safe under concurrent SpawnNode calls.
type Provider interface {
	Kind() string
	Capabilities() Capabilities

	// CreateNamespace prepares the per-network scope (base dir, bridge
	// network or k8s namespace).
	CreateNamespace(ctx context.Context) error

	SpawnNode(ctx context.Context, opts SpawnOptions) (NodeHandle, error)

	CopyToNode(ctx context.Context, h NodeHandle, src, dst string) error
	CopyFromNode(ctx context.Context, h NodeHandle, src, dst string) error

	// Exec runs a command inside the node scope.
	Exec(ctx context.Context, h NodeHandle, cmd []string) (stdout, stderr []byte, exitCode int, err error)

	// Pause, Resume and Restart drive the supervisor protocol.
	Pause(ctx context.Context, h NodeHandle) error
	Resume(ctx context.Context, h NodeHandle) error
	Restart(ctx context.Context, h NodeHandle, after time.Duration) error

	Destroy(ctx context.Context, h NodeHandle) error
	DestroyNamespace(ctx context.Context) error
}
