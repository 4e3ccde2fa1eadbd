// Package docker runs network nodes as containers driven through the
// docker (or podman) CLI.
package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
	"github.com/paritytech/zombienet-sdk/internal/provider"
	"github.com/paritytech/zombienet-sdk/pkg/log"
)

// getCurrentUserID returns the current user's UID:GID for the --user flag so
// files created by containers are owned by the invoking user.
func getCurrentUserID() string {
	return fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
}

// Provider implements provider.Provider on top of the container CLI.
type Provider struct {
	binary    string
	networkID string
	baseDir   string
	fs        filesystem.FileSystem
	logger    zerolog.Logger

	mu      sync.Mutex
	handles map[string]*nodeHandle
}

// NewProvider creates a docker/podman provider. binary selects the CLI
// ("docker" or "podman"); networkID suffixes every object name so concurrent
// networks on one host cannot collide.
func NewProvider(binary, networkID, baseDir string, fs filesystem.FileSystem) *Provider {
	return &Provider{
		binary:    binary,
		networkID: networkID,
		baseDir:   baseDir,
		fs:        fs,
		logger:    log.WithComponent("provider." + binary),
		handles:   make(map[string]*nodeHandle),
	}
}

func (p *Provider) Kind() string { return p.binary }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		RequiresImage:            true,
		SupportsResourceLimits:   true,
		HasStableIntraNetworkDNS: true,
	}
}

func (p *Provider) networkName() string {
	return "zombie-" + p.networkID
}

func (p *Provider) containerName(node string) string {
	return fmt.Sprintf("zombie-%s-%s", p.networkID, node)
}

func (p *Provider) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s failed: %w (output: %s)", p.binary, strings.Join(args[:min(len(args), 3)], " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// CreateNamespace creates the private bridge network and stages the
// supervisor script into the shared volume directory.
func (p *Provider) CreateNamespace(ctx context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return domain.Errorf(domain.ErrProviderUnavailable, "%s CLI not found in PATH", p.binary)
	}

	if err := p.fs.MkdirAll(p.baseDir, 0o755); err != nil {
		return err
	}
	if err := p.fs.WriteFile(p.wrapperHostPath(), []byte(provider.WrapperScript), 0o755); err != nil {
		return err
	}

	if _, err := p.run(ctx, "network", "create", p.networkName()); err != nil {
		return fmt.Errorf("failed to create network: %w", err)
	}
	return nil
}

func (p *Provider) wrapperHostPath() string {
	return filepath.Join(p.baseDir, "zombie-wrapper.sh")
}

type nodeHandle struct {
	name      string
	container string
	ports     domain.PortSet
	provider  *Provider
}

func (h *nodeHandle) Name() string          { return h.name }
func (h *nodeHandle) Host() string          { return "127.0.0.1" }
func (h *nodeHandle) Ports() domain.PortSet { return h.ports }
func (h *nodeHandle) LogPath() string       { return "" }

func (h *nodeHandle) IsRunning() bool {
	out, err := h.provider.run(context.Background(), "inspect", "-f", "{{.State.Running}}", h.container)
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func (h *nodeHandle) Logs(n int) ([]string, error) {
	out, err := h.provider.run(context.Background(), "logs", "--tail", fmt.Sprintf("%d", n), h.container)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(out), "\n"), "\n"), nil
}

// SpawnNode starts one container under the supervisor wrapper. Ports keep
// their in-network values and are published to the host one-to-one.
func (p *Provider) SpawnNode(ctx context.Context, opts provider.SpawnOptions) (provider.NodeHandle, error) {
	if opts.Image == "" {
		return nil, domain.Errorf(domain.ErrSpawnFailed, "node %s has no image and provider %s requires one", opts.Name, p.binary)
	}

	if err := p.fs.MkdirAll(opts.BasePath, 0o755); err != nil {
		return nil, err
	}
	for src, dst := range opts.Files {
		if err := p.fs.Copy(src, dst); err != nil {
			return nil, fmt.Errorf("failed to place %s for %s: %w", dst, opts.Name, err)
		}
	}

	container := p.containerName(opts.Name)
	paused := "0"
	if opts.Paused {
		paused = "1"
	}

	args := []string{
		"run", "-d",
		"--name", container,
		"--network", p.networkName(),
		"--user", getCurrentUserID(),
		"-v", p.baseDir + ":" + p.baseDir,
	}
	for _, port := range []uint16{opts.Ports.RPC, opts.Ports.WS, opts.Ports.Prometheus, opts.Ports.P2P} {
		args = append(args, "-p", fmt.Sprintf("%d:%d", port, port))
	}
	for k, v := range opts.Env {
		args = append(args, "-e", k+"="+v)
	}
	if opts.Resources.LimitMemory != "" {
		args = append(args, "--memory", opts.Resources.LimitMemory)
	}
	if opts.Resources.LimitCPU != "" {
		args = append(args, "--cpus", opts.Resources.LimitCPU)
	}

	args = append(args, "--entrypoint", "sh", opts.Image,
		p.wrapperHostPath(), provider.PipePath, paused, opts.Command)
	args = append(args, opts.Args...)

	if _, err := p.run(ctx, args...); err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, opts.Name, "", err)
	}

	h := &nodeHandle{name: opts.Name, container: container, ports: opts.Ports, provider: p}

	p.mu.Lock()
	p.handles[opts.Name] = h
	p.mu.Unlock()

	p.logger.Debug().Str("node", opts.Name).Str("container", container).Msg("container started")
	return h, nil
}

func (p *Provider) CopyToNode(ctx context.Context, h provider.NodeHandle, src, dst string) error {
	nh := h.(*nodeHandle)
	_, err := p.run(ctx, "cp", src, nh.container+":"+dst)
	return err
}

func (p *Provider) CopyFromNode(ctx context.Context, h provider.NodeHandle, src, dst string) error {
	nh := h.(*nodeHandle)
	_, err := p.run(ctx, "cp", nh.container+":"+src, dst)
	return err
}

func (p *Provider) Exec(ctx context.Context, h provider.NodeHandle, cmdline []string) ([]byte, []byte, int, error) {
	nh := h.(*nodeHandle)
	args := append([]string{"exec", nh.container}, cmdline...)

	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	return []byte(stdout.String()), []byte(stderr.String()), exitCode, err
}

func (p *Provider) Pause(ctx context.Context, h provider.NodeHandle) error {
	return p.pipeCommand(ctx, h, provider.CmdPause)
}

func (p *Provider) Resume(ctx context.Context, h provider.NodeHandle) error {
	return p.pipeCommand(ctx, h, provider.CmdResume)
}

func (p *Provider) Restart(ctx context.Context, h provider.NodeHandle, after time.Duration) error {
	return p.pipeCommand(ctx, h, provider.RestartCommand(int(after.Seconds())))
}

func (p *Provider) pipeCommand(ctx context.Context, h provider.NodeHandle, cmd string) error {
	nh := h.(*nodeHandle)
	_, err := p.run(ctx, "exec", nh.container, "sh", "-c",
		fmt.Sprintf("echo %s > %s", cmd, provider.PipePath))
	return err
}

func (p *Provider) Destroy(ctx context.Context, h provider.NodeHandle) error {
	nh := h.(*nodeHandle)

	if _, err := p.run(ctx, "stop", "-t", "5", nh.container); err != nil {
		p.logger.Warn().Str("container", nh.container).Err(err).Msg("failed to stop container")
	}
	if _, err := p.run(ctx, "rm", "-f", nh.container); err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.handles, nh.name)
	p.mu.Unlock()
	return nil
}

// DestroyNamespace removes every container and the bridge network.
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
	if _, err := p.run(ctx, "network", "rm", p.networkName()); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Ensure Provider implements the contract.
var _ provider.Provider = (*Provider)(nil)
