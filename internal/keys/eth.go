package keys

import (
	"encoding/hex"
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// DeriveEthAccount derives a deterministic secp256k1 account for an
// EVM-based collator. The key material comes from the node name so respawns
// keep the same address; user-supplied keys take precedence upstream.
func DeriveEthAccount(name string) (*domain.EthAccount, error) {
	seed := blake2b.Sum256([]byte(name + "/eth"))

	priv, err := gethcrypto.ToECDSA(seed[:])
	if err != nil {
		return nil, fmt.Errorf("eth key for %q: %w", name, err)
	}

	return &domain.EthAccount{
		Address:    gethcrypto.PubkeyToAddress(priv.PublicKey).Hex(),
		PrivateKey: hex.EncodeToString(gethcrypto.FromECDSA(priv)),
	}, nil
}

// ParseEthKey validates a user-supplied private key and returns its account.
func ParseEthKey(privHex string) (*domain.EthAccount, error) {
	priv, err := gethcrypto.HexToECDSA(privHex)
	if err != nil {
		return nil, fmt.Errorf("invalid eth private key: %w", err)
	}
	return &domain.EthAccount{
		Address:    gethcrypto.PubkeyToAddress(priv.PublicKey).Hex(),
		PrivateKey: hex.EncodeToString(gethcrypto.FromECDSA(priv)),
	}, nil
}
