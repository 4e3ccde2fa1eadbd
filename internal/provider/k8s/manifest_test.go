package k8s

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/provider"
)

func TestRenderPodManifest(t *testing.T) {
	opts := provider.SpawnOptions{
		Name:    "alice",
		Command: "polkadot",
		Args:    []string{"--validator"},
		Image:   "parity/polkadot:latest",
		Env:     map[string]string{"RUST_LOG": "info"},
		Ports:   domain.PortSet{RPC: 9933, WS: 9944, Prometheus: 9615, P2P: 30333},
		Resources: domain.Resources{
			RequestMemory: "1Gi",
			LimitCPU:      "2",
		},
		BasePath: "/data",
	}

	manifest, err := renderPodManifest("zombie-abc", opts)
	require.NoError(t, err)

	var pod map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(manifest), &pod))

	assert.Equal(t, "Pod", pod["kind"])
	metadata := pod["metadata"].(map[string]any)
	assert.Equal(t, "alice", metadata["name"])
	assert.Equal(t, "zombie-abc", metadata["namespace"])

	spec := pod["spec"].(map[string]any)
	containers := spec["containers"].([]any)
	require.Len(t, containers, 1)
	container := containers[0].(map[string]any)
	assert.Equal(t, "parity/polkadot:latest", container["image"])

	// The supervisor wraps the node command, starting paused.
	command := container["command"].([]any)
	assert.Equal(t, "sh", command[0])
	assert.Equal(t, "/scripts/zombie-wrapper.sh", command[1])
	assert.Equal(t, "1", command[3])
	assert.Contains(t, command, "polkadot")
	assert.Contains(t, command, "--validator")

	resources := container["resources"].(map[string]any)
	requests := resources["requests"].(map[string]any)
	assert.Equal(t, "1Gi", requests["memory"])
	limits := resources["limits"].(map[string]any)
	assert.Equal(t, "2", limits["cpu"])
}
