package chainspec

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// PatchParachain applies the parachain plain-spec pipeline.
func PatchParachain(tree map[string]any, relayChain string, para *domain.ParachainSpec, settings *domain.GlobalSettings) error {
	id := json.Number(fmt.Sprintf("%d", para.ID))

	// Both spellings appear across runtimes; set them at the root.
	tree["para_id"] = id
	tree["paraId"] = id
	tree["relay_chain"] = relayChain

	runtime, err := runtimeSection(tree)
	if err != nil {
		return err
	}

	if len(para.GenesisOverrides) > 0 {
		DeepMerge(runtime, para.GenesisOverrides)
	}

	for _, path := range authorityPaths {
		clearPath(runtime, path)
	}

	if err := addCollatorAuthorities(runtime, para); err != nil {
		return err
	}

	if _, ok := getPath(runtime, "collatorSelection"); ok {
		for _, col := range para.Collators {
			if err := appendPath(runtime, "collatorSelection/invulnerables", col.Accounts.Sr.Address); err != nil {
				return err
			}
		}
	}

	if _, ok := getPath(runtime, "parachainInfo"); ok {
		if err := setPath(runtime, "parachainInfo/parachainId", id); err != nil {
			return err
		}
	}

	if err := fundAssetAccounts(runtime, settings); err != nil {
		return err
	}

	defaultBalance := sdkmath.NewIntWithDecimal(ZombieFunding, int(settings.TokenDecimals))
	for _, col := range para.Collators {
		balance := defaultBalance
		if col.InitialBalance != nil {
			if *col.InitialBalance == 0 {
				continue
			}
			balance = sdkmath.NewIntFromUint64(*col.InitialBalance)
		}
		if err := setBalance(runtime, col.Accounts.Sr.Address, balance); err != nil {
			return err
		}
	}

	return nil
}

// addCollatorAuthorities adds collator session keys (or aura authorities when
// no session pallet exists). EVM-based chains authorize the collators' ecdsa
// keys instead of sr25519.
func addCollatorAuthorities(runtime map[string]any, para *domain.ParachainSpec) error {
	_, hasSession := getPath(runtime, "session")

	for _, col := range para.Collators {
		authority := col.Accounts.Sr.Address
		if para.EvmBased {
			if col.Accounts.Eth == nil {
				return fmt.Errorf("collator %s on evm parachain %d has no eth account", col.Name, para.ID)
			}
			authority = "0x" + col.Accounts.Ec.Public
		}

		if hasSession {
			entry := []any{
				col.Accounts.Sr.Address,
				col.Accounts.Sr.Address,
				map[string]any{"aura": authority},
			}
			if err := appendPath(runtime, "session/keys", entry); err != nil {
				return err
			}
			continue
		}
		if err := appendPath(runtime, "aura/authorities", authority); err != nil {
			return err
		}
	}
	return nil
}

// fundAssetAccounts gives native-token balances to every account referenced
// by the assets pallet so asset operations do not fail on existential
// deposit.
func fundAssetAccounts(runtime map[string]any, settings *domain.GlobalSettings) error {
	accountsRaw, ok := getPath(runtime, "assets/accounts")
	if !ok {
		return nil
	}
	entries, ok := accountsRaw.([]any)
	if !ok {
		return fmt.Errorf("assets/accounts is not an array")
	}

	funding := sdkmath.NewIntWithDecimal(1, int(settings.TokenDecimals))
	for _, raw := range entries {
		entry, ok := raw.([]any)
		if !ok || len(entry) < 2 {
			continue
		}
		account, ok := entry[1].(string)
		if !ok {
			continue
		}
		if err := setBalance(runtime, account, funding); err != nil {
			return err
		}
	}
	return nil
}
