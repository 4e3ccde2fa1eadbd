// Package native runs network nodes as local child processes.
package native

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/ports"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/process"
	"github.com/paritytech/zombienet-sdk/internal/provider"
	"github.com/paritytech/zombienet-sdk/pkg/log"
)

// Provider implements provider.Provider with local child processes.
type Provider struct {
	baseDir   string
	fs        filesystem.FileSystem
	runner    *process.Runner
	allocator *ports.Allocator
	logger    zerolog.Logger

	mu      sync.Mutex
	handles map[string]*nodeHandle
}

// NewProvider creates a native provider rooted at baseDir.
func NewProvider(baseDir string, fs filesystem.FileSystem, allocator *ports.Allocator) *Provider {
	return &Provider{
		baseDir:   baseDir,
		fs:        fs,
		runner:    process.NewRunner(),
		allocator: allocator,
		logger:    log.WithComponent("provider.native"),
		handles:   make(map[string]*nodeHandle),
	}
}

func (p *Provider) Kind() string { return domain.ProviderNative }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		RequiresImage:            false,
		SupportsResourceLimits:   false,
		HasStableIntraNetworkDNS: false,
	}
}

// CreateNamespace prepares the network base directory and supervisor script.
func (p *Provider) CreateNamespace(_ context.Context) error {
	if err := p.fs.MkdirAll(p.baseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create base dir: %w", err)
	}
	return p.fs.WriteFile(p.wrapperPath(), []byte(provider.WrapperScript), 0o755)
}

func (p *Provider) wrapperPath() string {
	return filepath.Join(p.baseDir, "zombie-wrapper.sh")
}

type nodeHandle struct {
	name     string
	ports    domain.PortSet
	pipePath string
	proc     *process.Proc
}

func (h *nodeHandle) Name() string          { return h.name }
func (h *nodeHandle) Host() string          { return "127.0.0.1" }
func (h *nodeHandle) Ports() domain.PortSet { return h.ports }
func (h *nodeHandle) LogPath() string       { return h.proc.LogFile() }
func (h *nodeHandle) IsRunning() bool       { return h.proc.Alive() }

func (h *nodeHandle) Logs(n int) ([]string, error) {
	return h.proc.Tail(n)
}

// SpawnNode starts one node under the supervisor wrapper.
func (p *Provider) SpawnNode(ctx context.Context, opts provider.SpawnOptions) (provider.NodeHandle, error) {
	if err := p.fs.MkdirAll(opts.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path for %s: %w", opts.Name, err)
	}

	for src, dst := range opts.Files {
		if err := p.fs.Copy(src, dst); err != nil {
			return nil, fmt.Errorf("failed to place %s for %s: %w", dst, opts.Name, err)
		}
	}

	// Parked ports are released just before the node binds them.
	for _, port := range []uint16{opts.Ports.RPC, opts.Ports.WS, opts.Ports.Prometheus, opts.Ports.P2P} {
		p.allocator.Release(port)
	}

	pipePath := filepath.Join(opts.BasePath, "zombie.pipe")
	paused := "0"
	if opts.Paused {
		paused = "1"
	}

	env := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}

	proc, err := p.runner.Begin(ctx, process.Spec{
		Program: "sh",
		Args:    append([]string{p.wrapperPath(), pipePath, paused, opts.Command}, opts.Args...),
		Env:     env,
		Dir:     opts.BasePath,
		LogFile: opts.LogPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", opts.Name, err)
	}

	h := &nodeHandle{
		name:     opts.Name,
		ports:    opts.Ports,
		pipePath: pipePath,
		proc:     proc,
	}

	p.mu.Lock()
	p.handles[opts.Name] = h
	p.mu.Unlock()

	p.logger.Debug().Str("node", opts.Name).Int("pid", proc.PID()).Msg("node spawned")
	return h, nil
}

func (p *Provider) CopyToNode(_ context.Context, h provider.NodeHandle, src, dst string) error {
	return p.fs.Copy(src, dst)
}

func (p *Provider) CopyFromNode(_ context.Context, h provider.NodeHandle, src, dst string) error {
	return p.fs.Copy(src, dst)
}

// Exec runs a command on the host in the node's scope.
func (p *Provider) Exec(ctx context.Context, h provider.NodeHandle, cmd []string) ([]byte, []byte, int, error) {
	if len(cmd) == 0 {
		return nil, nil, -1, fmt.Errorf("empty command")
	}
	out, err := p.runner.Capture(ctx, process.Spec{Program: cmd[0], Args: cmd[1:]})
	if err != nil {
		return out, nil, 1, err
	}
	return out, nil, 0, nil
}

func (p *Provider) Pause(ctx context.Context, h provider.NodeHandle) error {
	return p.pipeCommand(h, provider.CmdPause)
}

func (p *Provider) Resume(ctx context.Context, h provider.NodeHandle) error {
	return p.pipeCommand(h, provider.CmdResume)
}

func (p *Provider) Restart(ctx context.Context, h provider.NodeHandle, after time.Duration) error {
	return p.pipeCommand(h, provider.RestartCommand(int(after.Seconds())))
}

// pipeCommand writes one supervisor command line into the node's pipe.
func (p *Provider) pipeCommand(h provider.NodeHandle, cmd string) error {
	nh, ok := h.(*nodeHandle)
	if !ok {
		return fmt.Errorf("foreign node handle")
	}

	pipe, err := os.OpenFile(nh.pipePath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open supervisor pipe for %s: %w", nh.name, err)
	}
	defer pipe.Close()

	if _, err := pipe.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("failed to write supervisor command: %w", err)
	}
	return nil
}

// Destroy quits the supervisor and reaps the process.
func (p *Provider) Destroy(ctx context.Context, h provider.NodeHandle) error {
	nh, ok := h.(*nodeHandle)
	if !ok {
		return fmt.Errorf("foreign node handle")
	}

	// Best effort: ask the supervisor to quit, then force the issue.
	_ = p.pipeCommand(nh, provider.CmdQuit)
	if err := nh.proc.Halt(ctx, 10*time.Second); err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.handles, nh.name)
	p.mu.Unlock()
	return nil
}

// DestroyNamespace stops every remaining node. The base dir is retained for
// log inspection.
func (p *Provider) DestroyNamespace(ctx context.Context) error {
	p.mu.Lock()
	remaining := make([]*nodeHandle, 0, len(p.handles))
	for _, h := range p.handles {
		remaining = append(remaining, h)
	}
	p.mu.Unlock()

	var firstErr error
	for _, h := range remaining {
		if err := p.Destroy(ctx, h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.allocator.ReleaseAll()
	return firstErr
}

// Ensure Provider implements the contract.
var _ provider.Provider = (*Provider)(nil)
