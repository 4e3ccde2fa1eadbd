package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paritytech/zombienet-sdk/internal/config"
	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/glue"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/ports"
	"github.com/paritytech/zombienet-sdk/internal/orchestrator"
	"github.com/paritytech/zombienet-sdk/internal/provider"
	"github.com/paritytech/zombienet-sdk/internal/provider/docker"
	"github.com/paritytech/zombienet-sdk/internal/provider/k8s"
	"github.com/paritytech/zombienet-sdk/internal/provider/native"
)

func newSpawnCmd() *cobra.Command {
	var (
		flagProvider     string
		flagDir          string
		flagConcurrency  int
		flagNodeVerifier string
	)

	cmd := &cobra.Command{
		Use:   "spawn <CONFIG>",
		Short: "Spawn the network described by a TOML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			spec, err := config.Load(cmdArgs[0])
			if err != nil {
				return err
			}
			if err := config.ApplyEnvOverrides(&spec.Settings); err != nil {
				return err
			}

			// CLI flags win over both file and environment.
			if flagProvider != "" {
				spec.Settings.Provider = flagProvider
			}
			if flagDir != "" {
				spec.Settings.BaseDir = flagDir
			}
			if flagConcurrency > 0 {
				spec.Settings.SpawnConcurrency = flagConcurrency
			}
			if flagNodeVerifier != "" {
				spec.Settings.NodeVerifier = flagNodeVerifier
			}

			if spec.Settings.BaseDir == "" {
				dir, err := os.MkdirTemp("", "zombie-")
				if err != nil {
					return err
				}
				spec.Settings.BaseDir = dir
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fs := filesystem.NewOSFileSystem()
			allocator := ports.NewAllocator()
			defer allocator.ReleaseAll()

			prov, err := buildProvider(spec, fs, allocator)
			if err != nil {
				return err
			}

			cliOut.Info("spawning network under %s (provider %s)", spec.Settings.BaseDir, spec.Settings.Provider)
			o := orchestrator.New(spec, prov, fs, allocator, glue.NewClient(), cliOut)
			net, err := o.Spawn(ctx)
			if err != nil {
				return err
			}

			for _, rec := range net.Nodes() {
				cliOut.Info("  %s: rpc=%s ws=%s prometheus=%s", rec.Spec.Name, rec.RPCURI(), rec.WsURI(), rec.PrometheusURI())
			}
			cliOut.Info("state written to %s/zombie.json, press ctrl-c to tear down", spec.Settings.BaseDir)

			<-ctx.Done()
			cliOut.Info("tearing down")
			return net.Destroy(context.Background())
		},
	}

	cmd.Flags().StringVar(&flagProvider, "provider", "", "execution backend: native|docker|podman|k8s")
	cmd.Flags().StringVar(&flagDir, "dir", "", "base directory for network artifacts")
	cmd.Flags().IntVar(&flagConcurrency, "spawn-concurrency", 0, "maximum concurrent node spawns")
	cmd.Flags().StringVar(&flagNodeVerifier, "node-verifier", "", "readiness detection: metric|none")
	return cmd
}

func buildProvider(spec *domain.NetworkSpec, fs filesystem.FileSystem, allocator *ports.Allocator) (provider.Provider, error) {
	switch spec.Settings.Provider {
	case domain.ProviderNative:
		return native.NewProvider(spec.Settings.BaseDir, fs, allocator), nil
	case domain.ProviderDocker, domain.ProviderPodman:
		return docker.NewProvider(spec.Settings.Provider, spec.ID[:8], spec.Settings.BaseDir, fs), nil
	case domain.ProviderK8s:
		return k8s.NewProvider(spec.ID[:8]), nil
	}
	return nil, domain.Errorf(domain.ErrProviderUnavailable, "unknown provider %q", spec.Settings.Provider)
}
