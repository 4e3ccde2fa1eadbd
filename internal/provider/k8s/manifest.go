package k8s

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/paritytech/zombienet-sdk/internal/provider"
)

// renderPodManifest builds the pod YAML for one node. The container always
// starts under the supervisor in paused state; SpawnNode releases it once
// staged files are in place.
func renderPodManifest(namespace string, opts provider.SpawnOptions) (string, error) {
	command := []string{"sh", "/scripts/zombie-wrapper.sh", provider.PipePath, "1", opts.Command}
	command = append(command, opts.Args...)

	env := make([]map[string]any, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, map[string]any{"name": k, "value": v})
	}

	ports := make([]map[string]any, 0, 4)
	for name, port := range map[string]uint16{
		"rpc":        opts.Ports.RPC,
		"ws":         opts.Ports.WS,
		"prometheus": opts.Ports.Prometheus,
		"p2p":        opts.Ports.P2P,
	} {
		ports = append(ports, map[string]any{
			"name":          name,
			"containerPort": int(port),
		})
	}

	container := map[string]any{
		"name":    opts.Name,
		"image":   opts.Image,
		"command": command,
		"env":     env,
		"ports":   ports,
		"volumeMounts": []map[string]any{
			{"name": "wrapper", "mountPath": "/scripts"},
			{"name": "data", "mountPath": opts.BasePath},
		},
	}

	resources := map[string]map[string]string{}
	if opts.Resources.RequestMemory != "" || opts.Resources.RequestCPU != "" {
		requests := map[string]string{}
		if opts.Resources.RequestMemory != "" {
			requests["memory"] = opts.Resources.RequestMemory
		}
		if opts.Resources.RequestCPU != "" {
			requests["cpu"] = opts.Resources.RequestCPU
		}
		resources["requests"] = requests
	}
	if opts.Resources.LimitMemory != "" || opts.Resources.LimitCPU != "" {
		limits := map[string]string{}
		if opts.Resources.LimitMemory != "" {
			limits["memory"] = opts.Resources.LimitMemory
		}
		if opts.Resources.LimitCPU != "" {
			limits["cpu"] = opts.Resources.LimitCPU
		}
		resources["limits"] = limits
	}
	if len(resources) > 0 {
		container["resources"] = resources
	}

	pod := map[string]any{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]any{
			"name":      opts.Name,
			"namespace": namespace,
			"labels": map[string]string{
				"app.kubernetes.io/managed-by": "zombienet",
				"zombienet/node":               opts.Name,
			},
		},
		"spec": map[string]any{
			"restartPolicy": "Never",
			"containers":    []any{container},
			"volumes": []map[string]any{
				{
					"name": "wrapper",
					"configMap": map[string]any{
						"name":        "zombie-wrapper",
						"defaultMode": 0o755,
					},
				},
				{"name": "data", "emptyDir": map[string]any{}},
			},
		},
	}

	out, err := yaml.Marshal(pod)
	if err != nil {
		return "", fmt.Errorf("failed to render pod manifest for %s: %w", opts.Name, err)
	}
	return string(out), nil
}
