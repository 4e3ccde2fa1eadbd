// Package k8s runs network nodes as pods driven through kubectl.
package k8s

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/provider"
	"github.com/paritytech/zombienet-sdk/pkg/log"
)

// Provider implements provider.Provider with one pod per node inside a
// per-network namespace.
type Provider struct {
	networkID string
	logger    zerolog.Logger

	mu      sync.Mutex
	handles map[string]*nodeHandle
}

// NewProvider creates a k8s provider; networkID suffixes the namespace.
func NewProvider(networkID string) *Provider {
	return &Provider{
		networkID: networkID,
		logger:    log.WithComponent("provider.k8s"),
		handles:   make(map[string]*nodeHandle),
	}
}

func (p *Provider) Kind() string { return domain.ProviderK8s }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		RequiresImage:            true,
		SupportsResourceLimits:   true,
		HasStableIntraNetworkDNS: true,
	}
}

func (p *Provider) namespace() string {
	return "zombie-" + p.networkID
}

func (p *Provider) kubectl(ctx context.Context, stdin string, args ...string) ([]byte, error) {
	args = append([]string{"--namespace", p.namespace()}, args...)
	cmd := exec.CommandContext(ctx, "kubectl", args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("kubectl %s failed: %w (output: %s)", args[2], err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// CreateNamespace creates the per-network namespace and stages the
// supervisor script as a ConfigMap mounted into every pod.
func (p *Provider) CreateNamespace(ctx context.Context) error {
	if _, err := exec.LookPath("kubectl"); err != nil {
		return domain.Errorf(domain.ErrProviderUnavailable, "kubectl not found in PATH")
	}

	cmd := exec.CommandContext(ctx, "kubectl", "create", "namespace", p.namespace())
	if out, err := cmd.CombinedOutput(); err != nil {
		return domain.Errorf(domain.ErrProviderUnavailable, "failed to create namespace: %s", strings.TrimSpace(string(out)))
	}

	if _, err := p.kubectl(ctx, "", "create", "configmap", "zombie-wrapper",
		"--from-literal=zombie-wrapper.sh="+provider.WrapperScript); err != nil {
		return err
	}
	return nil
}

type nodeHandle struct {
	name     string
	pod      string
	podIP    string
	ports    domain.PortSet
	provider *Provider
}

func (h *nodeHandle) Name() string          { return h.name }
func (h *nodeHandle) Host() string          { return h.podIP }
func (h *nodeHandle) Ports() domain.PortSet { return h.ports }
func (h *nodeHandle) LogPath() string       { return "" }

func (h *nodeHandle) IsRunning() bool {
	out, err := h.provider.kubectl(context.Background(), "", "get", "pod", h.pod,
		"-o", "jsonpath={.status.phase}")
	return err == nil && strings.TrimSpace(string(out)) == "Running"
}

func (h *nodeHandle) Logs(n int) ([]string, error) {
	out, err := h.provider.kubectl(context.Background(), "", "logs", h.pod,
		"--tail", fmt.Sprintf("%d", n))
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(out), "\n"), "\n"), nil
}

// SpawnNode applies a pod manifest and waits for it to be scheduled, then
// copies staged files in.
func (p *Provider) SpawnNode(ctx context.Context, opts provider.SpawnOptions) (provider.NodeHandle, error) {
	if opts.Image == "" {
		return nil, domain.Errorf(domain.ErrSpawnFailed, "node %s has no image and the k8s provider requires one", opts.Name)
	}

	manifest, err := renderPodManifest(p.namespace(), opts)
	if err != nil {
		return nil, err
	}

	if _, err := p.kubectl(ctx, manifest, "apply", "-f", "-"); err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, opts.Name, "", err)
	}

	pod := opts.Name
	if _, err := p.kubectl(ctx, "", "wait", "--for=condition=Ready", "--timeout=120s", "pod/"+pod); err != nil {
		return nil, domain.WrapError(domain.ErrSpawnFailed, opts.Name, "", err)
	}

	h := &nodeHandle{name: opts.Name, pod: pod, ports: opts.Ports, provider: p}

	// Staged files land after the pod main container is up; the supervisor
	// only starts the node once it receives "start".
	for src, dst := range opts.Files {
		if err := p.CopyToNode(ctx, h, src, dst); err != nil {
			return nil, err
		}
	}
	if !opts.Paused {
		if err := p.pipeCommand(ctx, h, provider.CmdStart); err != nil {
			return nil, err
		}
	}

	ip, err := p.kubectl(ctx, "", "get", "pod", pod, "-o", "jsonpath={.status.podIP}")
	if err != nil {
		return nil, err
	}
	h.podIP = strings.TrimSpace(string(ip))

	p.mu.Lock()
	p.handles[opts.Name] = h
	p.mu.Unlock()

	p.logger.Debug().Str("node", opts.Name).Str("pod", pod).Str("ip", h.podIP).Msg("pod running")
	return h, nil
}

func (p *Provider) CopyToNode(ctx context.Context, h provider.NodeHandle, src, dst string) error {
	nh := h.(*nodeHandle)
	_, err := p.kubectl(ctx, "", "cp", src, nh.pod+":"+dst)
	return err
}

func (p *Provider) CopyFromNode(ctx context.Context, h provider.NodeHandle, src, dst string) error {
	nh := h.(*nodeHandle)
	_, err := p.kubectl(ctx, "", "cp", nh.pod+":"+src, dst)
	return err
}

func (p *Provider) Exec(ctx context.Context, h provider.NodeHandle, cmdline []string) ([]byte, []byte, int, error) {
	nh := h.(*nodeHandle)
	args := append([]string{"--namespace", p.namespace(), "exec", nh.pod, "--"}, cmdline...)

	cmd := exec.CommandContext(ctx, "kubectl", args...)
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
	_, err := p.kubectl(ctx, "", "exec", nh.pod, "--", "sh", "-c",
		fmt.Sprintf("echo %s > %s", cmd, provider.PipePath))
	return err
}

func (p *Provider) Destroy(ctx context.Context, h provider.NodeHandle) error {
	nh := h.(*nodeHandle)
	if _, err := p.kubectl(ctx, "", "delete", "pod", nh.pod, "--grace-period=5"); err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.handles, nh.name)
	p.mu.Unlock()
	return nil
}

// DestroyNamespace deletes the whole namespace, taking every pod with it.
func (p *Provider) DestroyNamespace(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "kubectl", "delete", "namespace", p.namespace(), "--wait=false")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to delete namespace: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// Ensure Provider implements the contract.
var _ provider.Provider = (*Provider)(nil)
