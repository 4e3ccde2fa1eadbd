package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/infrastructure/filesystem"
)

func TestStateRepository_RoundTrip(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	repo := NewStateRepository(fs)

	state := &State{
		NetworkID: "3bc5e588-6dc3-4f44-9f0c-6b0b0f62cbb4",
		Provider:  domain.ProviderNative,
		BaseDir:   "/tmp/zombie-1",
		Nodes: []NodeState{
			{
				Name:      "alice",
				Role:      string(domain.RoleValidator),
				Endpoints: domain.PortSet{RPC: 9933, WS: 9944, Prometheus: 9615, P2P: 30333},
				Host:      "127.0.0.1",
				Multiaddr: "/ip4/127.0.0.1/tcp/30333/ws/p2p/12D3KooWAbc",
				BasePath:  "/tmp/zombie-1/alice",
				Command:   []string{"polkadot", "--validator"},
				LogPath:   "/tmp/zombie-1/alice.log",
			},
		},
		Parachains: []ParachainState{
			{ID: 2000, Strategy: string(domain.RegisterManual), ChainSpecPath: "/tmp/zombie-1/para-2000-raw.json"},
		},
		Relay: RelayState{Chain: "rococo-local", ChainSpecPath: "/tmp/zombie-1/rococo-local-raw.json"},
	}

	require.NoError(t, repo.Save(state))

	loaded, err := repo.Load(repo.Path("/tmp/zombie-1"))
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestStateRepository_NotFound(t *testing.T) {
	repo := NewStateRepository(filesystem.NewMemoryFileSystem())

	_, err := repo.Load("/nowhere/zombie.json")
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
