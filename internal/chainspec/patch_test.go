package chainspec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/keys"
)

func relayTree() map[string]any {
	return map[string]any{
		"name": "Rococo Local",
		"id":   "rococo_local",
		"genesis": map[string]any{
			"runtime": map[string]any{
				"session": map[string]any{
					"keys": []any{[]any{"old", "old", map[string]any{}}},
				},
				"staking": map[string]any{
					"validatorCount": json.Number("10"),
					"invulnerables":  []any{"old"},
					"stakers":        []any{[]any{"old", "old", json.Number("1"), "Validator"}},
				},
				"balances": map[string]any{
					"balances": []any{[]any{"preexisting", json.Number("1000")}},
				},
				"hrmp":  map[string]any{"preopenHrmpChannels": []any{}},
				"paras": map[string]any{"paras": []any{}},
			},
		},
	}
}

func relaySpec(t *testing.T) *domain.NetworkSpec {
	t.Helper()

	spec := &domain.NetworkSpec{
		Settings: domain.GlobalSettings{
			TokenDecimals: 12,
			StakingMin:    1000000000000,
		},
		Relaychain: domain.RelaychainSpec{Chain: "rococo-local"},
		HrmpChannels: []domain.HrmpChannelSpec{
			{Sender: 1000, Recipient: 2000, MaxCapacity: 8, MaxMessageSize: 512},
		},
	}
	for _, name := range []string{"alice", "bob"} {
		accounts, err := keys.DeriveAccounts(name)
		require.NoError(t, err)
		spec.Relaychain.Nodes = append(spec.Relaychain.Nodes, &domain.NodeSpec{
			Name:     name,
			Role:     domain.RoleValidator,
			Accounts: accounts,
		})
	}
	return spec
}

func TestPatchRelay(t *testing.T) {
	tree := relayTree()
	spec := relaySpec(t)
	paras := []*ParaGenesis{{ID: 1000, Head: "0x00", Wasm: "0x11", OnboardAsParachain: true}}

	require.NoError(t, PatchRelay(tree, spec, paras))

	runtime, err := runtimeSection(tree)
	require.NoError(t, err)

	// Old authorities replaced by the network's validators.
	sessionKeys, _ := getPath(runtime, "session/keys")
	require.Len(t, sessionKeys, 2)
	first := sessionKeys.([]any)[0].([]any)
	assert.Equal(t, spec.Relaychain.Nodes[0].Accounts.Sr.Address, first[0])

	stakers, _ := getPath(runtime, "staking/stakers")
	require.Len(t, stakers, 2)
	count, _ := getPath(runtime, "staking/validatorCount")
	assert.Equal(t, json.Number("2"), count)

	// Balances: preexisting entry kept, node + stash + zombie added.
	balances, _ := getPath(runtime, "balances/balances")
	addrs := map[string]bool{}
	for _, raw := range balances.([]any) {
		addrs[raw.([]any)[0].(string)] = true
	}
	assert.True(t, addrs["preexisting"])
	assert.True(t, addrs[spec.Relaychain.Nodes[0].Accounts.Sr.Address])
	assert.True(t, addrs[spec.Relaychain.Nodes[0].Accounts.SrStash.Address])

	zombie, err := keys.DeriveAccounts(keys.ZombieAccountName)
	require.NoError(t, err)
	assert.True(t, addrs[zombie.Sr.Address])

	channels, _ := getPath(runtime, "hrmp/preopenHrmpChannels")
	require.Len(t, channels, 1)

	parasList, _ := getPath(runtime, "paras/paras")
	require.Len(t, parasList, 1)
	entry := parasList.([]any)[0].([]any)
	assert.Equal(t, json.Number("1000"), entry[0])
	genesisArgs := entry[1].(map[string]any)
	assert.Equal(t, "0x00", genesisArgs["genesis_head"])
	assert.Equal(t, "0x11", genesisArgs["validation_code"])
	assert.Equal(t, true, genesisArgs["para_kind"])
}

func TestPatchRelay_SkipsZeroBalanceNodes(t *testing.T) {
	tree := relayTree()
	spec := relaySpec(t)
	zero := uint64(0)
	spec.Relaychain.Nodes[1].InitialBalance = &zero

	require.NoError(t, PatchRelay(tree, spec, nil))

	runtime, _ := runtimeSection(tree)
	balances, _ := getPath(runtime, "balances/balances")
	for _, raw := range balances.([]any) {
		addr := raw.([]any)[0].(string)
		assert.NotEqual(t, spec.Relaychain.Nodes[1].Accounts.Sr.Address, addr)
	}
}

func TestPatchRelay_Idempotent(t *testing.T) {
	spec := relaySpec(t)
	paras := []*ParaGenesis{{ID: 1000, Head: "0x00", Wasm: "0x11"}}

	once := relayTree()
	require.NoError(t, PatchRelay(once, spec, paras))

	twice := relayTree()
	require.NoError(t, PatchRelay(twice, spec, paras))
	require.NoError(t, PatchRelay(twice, spec, paras))

	onceJSON, err := json.Marshal(once)
	require.NoError(t, err)
	twiceJSON, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.JSONEq(t, string(onceJSON), string(twiceJSON))
}

func TestPatchRelay_AuraFallback(t *testing.T) {
	tree := map[string]any{
		"genesis": map[string]any{
			"runtime": map[string]any{
				"aura":    map[string]any{"authorities": []any{"old"}},
				"grandpa": map[string]any{"authorities": []any{}},
			},
		},
	}
	spec := relaySpec(t)
	spec.HrmpChannels = nil

	require.NoError(t, PatchRelay(tree, spec, nil))

	runtime, _ := runtimeSection(tree)
	aura, _ := getPath(runtime, "aura/authorities")
	require.Len(t, aura, 2)
	assert.Equal(t, spec.Relaychain.Nodes[0].Accounts.Sr.Address, aura.([]any)[0])
	grandpa, _ := getPath(runtime, "grandpa/authorities")
	require.Len(t, grandpa, 2)
}

func TestPatchParachain(t *testing.T) {
	tree := map[string]any{
		"genesis": map[string]any{
			"runtimeGenesis": map[string]any{
				"patch": map[string]any{
					"collatorSelection": map[string]any{"invulnerables": []any{"old"}},
					"parachainInfo":     map[string]any{"parachainId": json.Number("0")},
					"balances":          map[string]any{"balances": []any{}},
					"assets": map[string]any{
						"accounts": []any{[]any{json.Number("1"), "asset-holder", json.Number("5")}},
					},
				},
			},
		},
	}

	accounts, err := keys.DeriveAccounts("col1")
	require.NoError(t, err)
	para := &domain.ParachainSpec{
		ID:           2000,
		CumulusBased: true,
		Collators: []*domain.NodeSpec{
			{Name: "col1", Role: domain.RoleCollator, Accounts: accounts},
		},
	}
	settings := &domain.GlobalSettings{TokenDecimals: 12}

	require.NoError(t, PatchParachain(tree, "rococo-local", para, settings))

	assert.Equal(t, json.Number("2000"), tree["para_id"])
	assert.Equal(t, json.Number("2000"), tree["paraId"])
	assert.Equal(t, "rococo-local", tree["relay_chain"])

	runtime, err := runtimeSection(tree)
	require.NoError(t, err)

	inv, _ := getPath(runtime, "collatorSelection/invulnerables")
	require.Len(t, inv, 1)
	assert.Equal(t, accounts.Sr.Address, inv.([]any)[0])

	paraID, _ := getPath(runtime, "parachainInfo/parachainId")
	assert.Equal(t, json.Number("2000"), paraID)

	aura, _ := getPath(runtime, "aura/authorities")
	require.Len(t, aura, 1)

	balances, _ := getPath(runtime, "balances/balances")
	addrs := map[string]bool{}
	for _, raw := range balances.([]any) {
		addrs[raw.([]any)[0].(string)] = true
	}
	assert.True(t, addrs[accounts.Sr.Address])
	assert.True(t, addrs["asset-holder"])
}

func TestMergeJSON(t *testing.T) {
	base := []byte(`{"a": 1, "nested": {"x": 1, "y": 2}}`)
	override := []byte(`{"nested": {"y": 3, "z": 4}, "b": 2}`)

	merged, err := MergeJSON(base, override)
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal(merged, &tree))
	assert.Equal(t, 1.0, tree["a"])
	assert.Equal(t, 2.0, tree["b"])
	nested := tree["nested"].(map[string]any)
	assert.Equal(t, 1.0, nested["x"])
	assert.Equal(t, 3.0, nested["y"])
	assert.Equal(t, 4.0, nested["z"])
}
