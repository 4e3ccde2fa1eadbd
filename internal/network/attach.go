package network

import (
	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/persistence"
	"github.com/paritytech/zombienet-sdk/internal/provider"
)

// AttachToLive rehydrates a handle from a zombie.json written by a previous
// spawn. Node endpoints are read as persisted; identities are not
// re-validated. The handle supports lookups and metric operations. Its nodes
// carry endpoint-only handles, so provider lifecycle calls (pause, resume,
// restart, destroy) and log reads are not available on them, and adding
// nodes is not supported (no spawner is restored).
func AttachToLive(statePath string, fs filesystem.FileSystem, prov provider.Provider, client ChainClient) (*Network, error) {
	repo := persistence.NewStateRepository(fs)
	state, err := repo.Load(statePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNetworkInconsistent, "", "", err)
	}

	relay := &domain.ChainSpecArtifact{
		Chain:   state.Relay.Chain,
		RawPath: state.Relay.ChainSpecPath,
		Raw:     state.Relay.ChainSpecPath != "",
	}

	settings := domain.GlobalSettings{
		Provider: state.Provider,
		BaseDir:  state.BaseDir,
	}

	net := New(state.NetworkID, state.BaseDir, settings, prov, nil, client, relay)

	for _, ns := range state.Nodes {
		spec := &domain.NodeSpec{
			Name:   ns.Name,
			Role:   domain.NodeRole(ns.Role),
			ParaID: ns.ParaID,
			Ports:  ns.Endpoints,
		}
		net.AddRecord(&NodeRecord{
			Spec:        spec,
			Handle:      &attachedHandle{name: ns.Name, host: ns.Host, ports: ns.Endpoints},
			Status:      domain.StatusReady,
			Multiaddr:   ns.Multiaddr,
			BasePath:    ns.BasePath,
			LogPath:     ns.LogPath,
			CommandLine: ns.Command,
		})
	}

	for _, ps := range state.Parachains {
		var artifact *domain.ChainSpecArtifact
		if ps.ChainSpecPath != "" {
			artifact = &domain.ChainSpecArtifact{
				RawPath: ps.ChainSpecPath,
				Raw:     true,
			}
		}
		net.AddParachainRecord(&ParachainRecord{
			Spec: &domain.ParachainSpec{
				ID:           ps.ID,
				Registration: domain.RegistrationStrategy(ps.Strategy),
			},
			Artifact:   artifact,
			Registered: ps.Strategy != string(domain.RegisterManual),
		})
	}

	return net, nil
}
