package chainspec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// DefaultKeyTypes injected for validators when a node lists none.
var DefaultKeyTypes = []string{"babe", "gran", "imon", "audi", "asgn", "para", "beef"}

// DefaultCollatorKeyTypes injected for collators.
var DefaultCollatorKeyTypes = []string{"aura"}

// InjectKeys writes a node's session keys into its keystore directory before
// the node starts. Keystore entries are files named by the 4-byte key-type id
// (hex) concatenated with the public key (hex); the content is the secret
// derivation URI as a JSON string.
func (e *Engine) InjectKeys(keystoreDir string, node *domain.NodeSpec) error {
	keyTypes := node.KeyTypes
	if len(keyTypes) == 0 {
		if node.Role == domain.RoleCollator {
			keyTypes = DefaultCollatorKeyTypes
		} else {
			keyTypes = DefaultKeyTypes
		}
	}

	if err := e.fs.MkdirAll(keystoreDir, 0o755); err != nil {
		return fmt.Errorf("failed to create keystore: %w", err)
	}

	for _, kt := range keyTypes {
		if len(kt) != 4 {
			return fmt.Errorf("invalid key type %q: must be 4 characters", kt)
		}

		pair, err := keyForType(node, kt)
		if err != nil {
			return err
		}

		filename := hex.EncodeToString([]byte(kt)) + pair.Public
		content, err := json.Marshal(pair.URI)
		if err != nil {
			return err
		}
		if err := e.fs.WriteFile(filepath.Join(keystoreDir, filename), content, 0o600); err != nil {
			return fmt.Errorf("failed to write keystore entry %s: %w", kt, err)
		}
	}
	return nil
}

// keyForType selects the scheme-correct account for a session key type:
// grandpa is ed25519, beefy is ecdsa, everything else sr25519.
func keyForType(node *domain.NodeSpec, keyType string) (domain.KeyPair, error) {
	switch keyType {
	case "gran":
		return node.Accounts.Ed, nil
	case "beef":
		return node.Accounts.Ec, nil
	case "babe", "imon", "audi", "asgn", "para", "aura", "acco", "stak":
		return node.Accounts.Sr, nil
	}
	return domain.KeyPair{}, fmt.Errorf("unknown key type %q", keyType)
}
