package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

const minimalTOML = `
[settings]
provider = "native"

[relaychain]
chain = "rococo-local"
default_command = "polkadot"

  [[relaychain.nodes]]
  name = "alice"

  [[relaychain.nodes]]
  name = "bob"
`

func TestParse_MinimalRelay(t *testing.T) {
	spec, err := Parse([]byte(minimalTOML))
	require.NoError(t, err)

	assert.NotEmpty(t, spec.ID)
	assert.Equal(t, domain.ProviderNative, spec.Settings.Provider)
	assert.Equal(t, DefaultSpawnConcurrency, spec.Settings.SpawnConcurrency)
	assert.Equal(t, 600*time.Second, spec.Settings.NodeSpawnTimeout)
	assert.True(t, spec.Settings.TearDownOnFailure)

	require.Len(t, spec.Relaychain.Nodes, 2)
	alice := spec.Relaychain.Nodes[0]
	assert.Equal(t, "alice", alice.Name)
	assert.Equal(t, domain.RoleValidator, alice.Role)
	assert.Equal(t, "polkadot", alice.Command)
	assert.True(t, alice.Bootnode, "first node becomes the default bootnode")
	assert.NotEmpty(t, alice.PeerID)
	assert.NotEmpty(t, alice.Accounts.Sr.Address)
	assert.NotEqual(t, alice.Accounts.Sr.Address, spec.Relaychain.Nodes[1].Accounts.Sr.Address)
}

func TestParse_DuplicateNodeName(t *testing.T) {
	_, err := Parse([]byte(`
[relaychain]
chain = "rococo-local"

  [[relaychain.nodes]]
  name = "alice"

  [[relaychain.nodes]]
  name = "alice"
`))
	require.Error(t, err)
	assert.Equal(t, domain.ErrConfigInvalid, domain.KindOf(err))
}

func TestParse_BothRegistrationModes(t *testing.T) {
	_, err := Parse([]byte(`
[relaychain]
chain = "rococo-local"

  [[relaychain.nodes]]
  name = "alice"

[[parachains]]
id = 1000
add_to_genesis = true
register_para = true

  [[parachains.collators]]
  name = "col1"
`))
	require.Error(t, err)
	assert.Equal(t, domain.ErrConfigInvalid, domain.KindOf(err))
}

func TestParse_DuplicateParaID(t *testing.T) {
	base := `
[relaychain]
chain = "rococo-local"

  [[relaychain.nodes]]
  name = "alice"

[[parachains]]
id = 2000

  [[parachains.collators]]
  name = "col1"

[[parachains]]
id = 2000
add_to_genesis = %s

  [[parachains.collators]]
  name = "col2"
`
	// Two non-manual instances of one id are rejected.
	_, err := Parse([]byte(fmt.Sprintf(base, "true")))
	require.Error(t, err)
	assert.Equal(t, domain.ErrConfigInvalid, domain.KindOf(err))

	// A manual second instance is fine.
	spec, err := Parse([]byte(fmt.Sprintf(base, "false")))
	require.NoError(t, err)
	require.Len(t, spec.Parachains, 2)
	assert.Equal(t, domain.RegisterInGenesis, spec.Parachains[0].Registration)
	assert.Equal(t, domain.RegisterManual, spec.Parachains[1].Registration)
}

func TestParse_GroupExpansion(t *testing.T) {
	spec, err := Parse([]byte(`
[relaychain]
chain = "rococo-local"

  [[relaychain.nodes]]
  name = "alice"

  [[relaychain.node_groups]]
  name = "val"
  count = 3
`))
	require.NoError(t, err)

	require.Len(t, spec.Relaychain.Nodes, 4)
	assert.Equal(t, "val-1", spec.Relaychain.Nodes[1].Name)
	assert.Equal(t, "val-3", spec.Relaychain.Nodes[3].Name)
}

func TestParse_BootnodeSpellings(t *testing.T) {
	spec, err := Parse([]byte(`
[relaychain]
chain = "rococo-local"

  [[relaychain.nodes]]
  name = "alice"

  [[relaychain.nodes]]
  name = "bob"
  bootnodes = ["/ip4/1.2.3.4/tcp/30333/p2p/x"]
  bootnodes_addresses = ["/ip4/5.6.7.8/tcp/30333/p2p/y"]
`))
	require.NoError(t, err)

	bob := spec.Relaychain.Nodes[1]
	assert.Equal(t, []string{
		"/ip4/1.2.3.4/tcp/30333/p2p/x",
		"/ip4/5.6.7.8/tcp/30333/p2p/y",
	}, bob.Bootnodes)
}

func TestParse_EnvSubstitution(t *testing.T) {
	t.Setenv("ZOMBIE_TEST_CMD", "polkadot-dev")

	spec, err := Parse([]byte(`
[relaychain]
chain = "rococo-local"
default_command = "{{ZOMBIE_TEST_CMD}}"

  [[relaychain.nodes]]
  name = "alice"
`))
	require.NoError(t, err)
	assert.Equal(t, "polkadot-dev", spec.Relaychain.DefaultCommand)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ZOMBIE_PROVIDER", "k8s")
	t.Setenv("ZOMBIE_SPAWN_CONCURRENCY", "7")
	t.Setenv("ZOMBIE_NODE_SPAWN_TIMEOUT_SECONDS", "42")

	settings := domain.GlobalSettings{}
	require.NoError(t, ApplyEnvOverrides(&settings))
	assert.Equal(t, domain.ProviderK8s, settings.Provider)
	assert.Equal(t, 7, settings.SpawnConcurrency)
	assert.Equal(t, 42*time.Second, settings.NodeSpawnTimeout)

	t.Setenv("ZOMBIE_PROVIDER", "vmware")
	err := ApplyEnvOverrides(&settings)
	require.Error(t, err)
	assert.Equal(t, domain.ErrConfigInvalid, domain.KindOf(err))
}
