package chainspec

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/paritytech/zombienet-sdk/internal/domain"
	"github.com/paritytech/zombienet-sdk/internal/keys"
)

// ZombieFunding is the balance of the internal //Zombie account, expressed in
// whole tokens before decimal scaling.
const ZombieFunding = 1000

// authorityPaths are cleared before the network's own authorities are added.
var authorityPaths = []string{
	"session/keys",
	"aura/authorities",
	"grandpa/authorities",
	"collatorSelection/invulnerables",
	"staking/invulnerables",
	"staking/stakers",
}

// runtimeSection locates the pallet tree inside a plain chain spec, covering
// the genesis layouts used across runtime versions.
func runtimeSection(tree map[string]any) (map[string]any, error) {
	for _, path := range []string{
		"genesis/runtime",
		"genesis/runtimeGenesis/patch",
		"genesis/runtimeGenesis/config",
	} {
		if v, ok := getPath(tree, path); ok {
			if m, ok := v.(map[string]any); ok {
				return m, nil
			}
			return nil, fmt.Errorf("%s is not an object", path)
		}
	}
	return nil, fmt.Errorf("no runtime genesis section found")
}

// PatchRelay applies the relay-chain plain-spec pipeline.
func PatchRelay(tree map[string]any, spec *domain.NetworkSpec, paras []*ParaGenesis) error {
	runtime, err := runtimeSection(tree)
	if err != nil {
		return err
	}

	// User overrides merge before authority surgery so the pipeline stays
	// idempotent over its own output.
	if len(spec.Relaychain.GenesisOverrides) > 0 {
		DeepMerge(runtime, spec.Relaychain.GenesisOverrides)
	}

	for _, path := range authorityPaths {
		clearPath(runtime, path)
	}

	hasDevStakers := false
	if staking, ok := getPath(runtime, "staking"); ok {
		if m, ok := staking.(map[string]any); ok {
			_, hasDevStakers = m["devStakers"]
		}
		if !hasDevStakers {
			if err := setPath(runtime, "staking/validatorCount", json.Number("0")); err != nil {
				return err
			}
		}
	}

	settings := &spec.Settings
	stakingMin := sdkmath.NewIntFromUint64(settings.StakingMin)
	balanceFloor := stakingMin.MulRaw(2)

	for _, node := range spec.Relaychain.Nodes {
		balance := balanceFloor
		if node.InitialBalance != nil {
			if *node.InitialBalance == 0 {
				continue
			}
			initial := sdkmath.NewIntFromUint64(*node.InitialBalance)
			if initial.GT(balance) {
				balance = initial
			}
		}
		if err := setBalance(runtime, node.Accounts.Sr.Address, balance); err != nil {
			return err
		}
		if err := setBalance(runtime, node.Accounts.SrStash.Address, balance); err != nil {
			return err
		}
	}

	zombie, err := keys.DeriveAccounts(keys.ZombieAccountName)
	if err != nil {
		return err
	}
	funding := sdkmath.NewIntWithDecimal(ZombieFunding, int(settings.TokenDecimals))
	if err := setBalance(runtime, zombie.Sr.Address, funding); err != nil {
		return err
	}

	if err := addStakingEntries(runtime, spec.Relaychain.Nodes, stakingMin, hasDevStakers); err != nil {
		return err
	}

	if err := addRelayAuthorities(runtime, spec.Relaychain.Nodes); err != nil {
		return err
	}

	// Rebuilt from the spec on every run, which keeps the pipeline idempotent.
	clearPath(runtime, "hrmp/preopenHrmpChannels")
	clearPath(runtime, "paras/paras")

	for _, ch := range spec.HrmpChannels {
		entry := []any{
			json.Number(fmt.Sprintf("%d", ch.Sender)),
			json.Number(fmt.Sprintf("%d", ch.Recipient)),
			json.Number(fmt.Sprintf("%d", ch.MaxCapacity)),
			json.Number(fmt.Sprintf("%d", ch.MaxMessageSize)),
		}
		if err := appendPath(runtime, "hrmp/preopenHrmpChannels", entry); err != nil {
			return err
		}
	}

	for _, para := range paras {
		entry := []any{
			json.Number(fmt.Sprintf("%d", para.ID)),
			map[string]any{
				"genesis_head":    para.Head,
				"validation_code": para.Wasm,
				"para_kind":       para.OnboardAsParachain,
			},
		}
		if err := appendPath(runtime, "paras/paras", entry); err != nil {
			return err
		}
	}

	return nil
}

// addStakingEntries records validator bonds and invulnerables.
func addStakingEntries(runtime map[string]any, nodes []*domain.NodeSpec, stakingMin sdkmath.Int, hasDevStakers bool) error {
	if _, ok := getPath(runtime, "staking"); !ok {
		return nil
	}

	validators := 0
	for _, node := range nodes {
		if node.Role != domain.RoleValidator {
			continue
		}
		validators++
		stash := node.Accounts.SrStash.Address
		if err := appendPath(runtime, "staking/invulnerables", stash); err != nil {
			return err
		}
		entry := []any{stash, stash, json.Number(stakingMin.String()), "Validator"}
		if err := appendPath(runtime, "staking/stakers", entry); err != nil {
			return err
		}
	}

	if !hasDevStakers {
		return setPath(runtime, "staking/validatorCount", json.Number(fmt.Sprintf("%d", validators)))
	}
	return nil
}

// addRelayAuthorities adds session authorities when a session pallet key
// exists, else falls back to aura/grandpa authorities directly.
func addRelayAuthorities(runtime map[string]any, nodes []*domain.NodeSpec) error {
	_, hasSession := getPath(runtime, "session")

	for _, node := range nodes {
		if node.Role != domain.RoleValidator {
			continue
		}
		if hasSession {
			entry := []any{
				node.Accounts.Sr.Address,
				node.Accounts.Sr.Address,
				sessionKeysOf(node),
			}
			if err := appendPath(runtime, "session/keys", entry); err != nil {
				return err
			}
			continue
		}
		if err := appendPath(runtime, "aura/authorities", node.Accounts.Sr.Address); err != nil {
			return err
		}
		if err := appendPath(runtime, "grandpa/authorities", []any{node.Accounts.Ed.Address, json.Number("1")}); err != nil {
			return err
		}
	}
	return nil
}

// sessionKeysOf maps a validator's derived accounts onto the relay session
// key set.
func sessionKeysOf(node *domain.NodeSpec) map[string]any {
	sr := node.Accounts.Sr.Address
	return map[string]any{
		"babe":                sr,
		"grandpa":             node.Accounts.Ed.Address,
		"im_online":           sr,
		"parachain_validator": sr,
		"para_validator":      sr,
		"para_assignment":     sr,
		"authority_discovery": sr,
		"beefy":               "0x" + node.Accounts.Ec.Public,
	}
}

// setBalance writes (or replaces) one entry in balances/balances.
func setBalance(runtime map[string]any, address string, amount sdkmath.Int) error {
	entry := []any{address, json.Number(amount.String())}

	existing, ok := getPath(runtime, "balances/balances")
	if !ok {
		return setPath(runtime, "balances/balances", []any{entry})
	}
	arr, ok := existing.([]any)
	if !ok {
		return fmt.Errorf("balances/balances is not an array")
	}

	for i, raw := range arr {
		pair, ok := raw.([]any)
		if ok && len(pair) == 2 && pair[0] == address {
			arr[i] = entry
			return setPath(runtime, "balances/balances", arr)
		}
	}
	return setPath(runtime, "balances/balances", append(arr, entry))
}
