package args

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

func validatorNode(name string, extra ...string) *domain.NodeSpec {
	return &domain.NodeSpec{
		Name: name,
		Role: domain.RoleValidator,
		Args: extra,
		Ports: domain.PortSet{
			RPC:        9933,
			WS:         9944,
			Prometheus: 9615,
			P2P:        30333,
		},
		NodeKey: "aa11",
	}
}

func countFlag(args []string, name string) int {
	n := 0
	for _, a := range args {
		if a == name || flagName(a) == name {
			n++
		}
	}
	return n
}

func TestAssemble_FrameworkFlags(t *testing.T) {
	node := validatorNode("alice")
	out, err := Assemble(Options{
		Node:                  node,
		ChainSpecPath:         "/specs/rococo-local.json",
		BasePath:              "/data/alice",
		InsecureValidatorFlag: true,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "--chain=/specs/rococo-local.json")
	assert.Contains(t, out, "--name=alice")
	assert.Contains(t, out, "--rpc-cors=all")
	assert.Contains(t, out, "--rpc-methods=unsafe")
	assert.Contains(t, out, "--node-key=aa11")
	assert.Contains(t, out, "--validator")
	assert.Contains(t, out, "--insecure-validator-i-know-what-i-do")
	assert.Contains(t, out, "--no-telemetry")
	assert.Contains(t, out, "--prometheus-port=9615")
	assert.Contains(t, out, "--rpc-port=9933")
	assert.Contains(t, out, "--listen-addr=/ip4/0.0.0.0/tcp/30333/ws")
	assert.Contains(t, out, "--base-path=/data/alice")
	assert.NotContains(t, out, "--unsafe-rpc-external")
}

func TestAssemble_RemovalOperator(t *testing.T) {
	// Removal alone: the framework flag disappears.
	node := validatorNode("bob", "-:--insecure-validator-i-know-what-i-do")
	out, err := Assemble(Options{Node: node, InsecureValidatorFlag: true})
	require.NoError(t, err)
	assert.Equal(t, 0, countFlag(out, "--insecure-validator-i-know-what-i-do"))

	// Removal plus re-add: the user value appears exactly once.
	node = validatorNode("bob", "-:--rpc-cors", "--rpc-cors=localhost")
	out, err = Assemble(Options{Node: node})
	require.NoError(t, err)
	assert.Equal(t, 1, countFlag(out, "--rpc-cors"))
	assert.Contains(t, out, "--rpc-cors=localhost")

	// Dash normalization: -:foo matches --foo.
	node = validatorNode("bob", "-:no-telemetry")
	out, err = Assemble(Options{Node: node})
	require.NoError(t, err)
	assert.Equal(t, 0, countFlag(out, "--no-telemetry"))
}

func TestAssemble_FrameworkFiltersUserFlag(t *testing.T) {
	node := validatorNode("alice", "--rpc-methods=safe")
	out, err := Assemble(Options{Node: node})
	require.NoError(t, err)
	assert.Equal(t, 1, countFlag(out, "--rpc-methods"))
	assert.Contains(t, out, "--rpc-methods=unsafe")
}

func TestAssemble_ContainerizedFlags(t *testing.T) {
	node := validatorNode("alice")
	out, err := Assemble(Options{Node: node, Containerized: true})
	require.NoError(t, err)
	assert.Contains(t, out, "--unsafe-rpc-external")
}

func TestAssemble_Bootnodes(t *testing.T) {
	node := validatorNode("bob")
	addr := "/ip4/127.0.0.1/tcp/30333/ws/p2p/12D3KooWAbc"
	out, err := Assemble(Options{Node: node, Bootnodes: []string{addr}})
	require.NoError(t, err)
	assert.Contains(t, out, "--bootnodes="+addr)
}

func TestAssemble_CumulusSplit(t *testing.T) {
	node := &domain.NodeSpec{
		Name:               "col1",
		Role:               domain.RoleCollator,
		ParaID:             1000,
		IsCumulusValidator: true,
		FullNodeArgs:       []string{"--db-cache=128"},
		Ports:              domain.PortSet{RPC: 8845, Prometheus: 8855, P2P: 31000},
	}
	out, err := Assemble(Options{
		Node:          node,
		ChainSpecPath: "/specs/para-1000.json",
		BasePath:      "/data/col1",
		Cumulus: &CumulusOptions{
			RelayChainSpecPath:  "/specs/rococo-local-raw.json",
			RelayBasePath:       "/data/col1/relay-data",
			RelayP2PPort:        31001,
			RelayPrometheusPort: 8856,
		},
	})
	require.NoError(t, err)

	sep := -1
	for i, a := range out {
		if a == "--" {
			sep = i
			break
		}
	}
	require.GreaterOrEqual(t, sep, 0, "missing cumulus separator")

	collatorSide := out[:sep]
	relaySide := out[sep+1:]

	assert.Contains(t, collatorSide, "--collator")
	assert.Contains(t, collatorSide, "--parachain-id=1000")
	assert.NotContains(t, collatorSide, "--no-telemetry")

	assert.Contains(t, relaySide, "--base-path")
	assert.Contains(t, relaySide, "/data/col1/relay-data")
	assert.Contains(t, relaySide, "--chain")
	assert.Contains(t, relaySide, "/specs/rococo-local-raw.json")
	assert.Contains(t, relaySide, "--execution")
	assert.Contains(t, relaySide, "wasm")
	assert.Contains(t, relaySide, "--db-cache=128")
}

func TestSubstituteEnv(t *testing.T) {
	t.Setenv("ZOMBIE_TEST_IMAGE", "parity/polkadot:latest")

	assert.Equal(t, "parity/polkadot:latest", SubstituteEnv("{{ZOMBIE_TEST_IMAGE}}"))
	// Unresolved placeholders stay verbatim.
	assert.Equal(t, "{{NOT_SET_ANYWHERE}}", SubstituteEnv("{{NOT_SET_ANYWHERE}}"))
	// ZOMBIE runtime tokens are left for spawn-time resolution.
	assert.Equal(t, "{{ZOMBIE:alice:multiaddr}}", SubstituteEnv("{{ZOMBIE:alice:multiaddr}}"))
}

func TestZombieTokens(t *testing.T) {
	in := []string{"--bootnodes={{ZOMBIE:alice:multiaddr}}", "--rpc={{ZOMBIE:bob:wsUri}}"}

	assert.True(t, HasZombieToken(in))
	assert.False(t, HasZombieToken([]string{"--name=x"}))
	assert.Equal(t, []string{"alice", "bob"}, ZombieReferents(in))

	out, err := ResolveZombieTokens(in, func(node, field string) (string, error) {
		return node + "/" + field, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "--bootnodes=alice/multiaddr", out[0])
	assert.Equal(t, "--rpc=bob/ws_uri", out[1])

	_, err = ResolveZombieTokens([]string{"{{ZOMBIE:alice:nope}}"}, func(string, string) (string, error) {
		return "", nil
	})
	require.Error(t, err)
}
