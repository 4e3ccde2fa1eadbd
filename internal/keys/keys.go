// Package keys derives per-node identities: session accounts via the standard
// dev-seed scheme, the libp2p node key, and eth accounts for EVM collators.
package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	lcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	subkey "github.com/vedhavyas/go-subkey/v2"
	subecdsa "github.com/vedhavyas/go-subkey/v2/ecdsa"
	subed25519 "github.com/vedhavyas/go-subkey/v2/ed25519"
	subsr25519 "github.com/vedhavyas/go-subkey/v2/sr25519"
	"golang.org/x/crypto/blake2b"

	"github.com/paritytech/zombienet-sdk/internal/domain"
)

// SS58Prefix is the generic substrate address prefix used for derived
// account addresses.
const SS58Prefix = 42

// ZombieAccountName is the internal funding account inserted into every
// relay genesis and used as the default extrinsic signer.
const ZombieAccountName = "Zombie"

// DeriveAccounts derives the full per-scheme account set for a node name.
func DeriveAccounts(name string) (domain.NodeAccounts, error) {
	var accounts domain.NodeAccounts

	uri := DevURI(name)
	stashURI := uri + "//stash"

	sr, err := derive(subsr25519.Scheme{}, uri)
	if err != nil {
		return accounts, fmt.Errorf("sr25519 derivation for %q: %w", name, err)
	}
	srStash, err := derive(subsr25519.Scheme{}, stashURI)
	if err != nil {
		return accounts, fmt.Errorf("sr25519 stash derivation for %q: %w", name, err)
	}
	ed, err := derive(subed25519.Scheme{}, uri)
	if err != nil {
		return accounts, fmt.Errorf("ed25519 derivation for %q: %w", name, err)
	}
	ec, err := derive(subecdsa.Scheme{}, uri)
	if err != nil {
		return accounts, fmt.Errorf("ecdsa derivation for %q: %w", name, err)
	}

	accounts.Sr = sr
	accounts.SrStash = srStash
	accounts.Ed = ed
	accounts.Ec = ec
	return accounts, nil
}

// DevURI maps a node name onto its dev-seed derivation path. The leading
// letter is capitalized to match the well-known //Alice style accounts.
func DevURI(name string) string {
	if name == "" {
		return "//"
	}
	return "//" + strings.ToUpper(name[:1]) + name[1:]
}

func derive(scheme subkey.Scheme, uri string) (domain.KeyPair, error) {
	kp, err := subkey.DeriveKeyPair(scheme, uri)
	if err != nil {
		return domain.KeyPair{}, err
	}

	addr := kp.SS58Address(SS58Prefix)

	return domain.KeyPair{
		Public:  hex.EncodeToString(kp.Public()),
		Address: addr,
		URI:     uri,
	}, nil
}

// NodeKey derives the deterministic libp2p identity seed for a node name and
// the resulting peer id. The seed is the blake2b-256 hash of the name, which
// keeps peer ids stable across respawns of the same network definition.
func NodeKey(name string) (seedHex string, peerID string, err error) {
	seed := blake2b.Sum256([]byte(name))

	priv, err := lcrypto.UnmarshalEd25519PrivateKey(ed25519.NewKeyFromSeed(seed[:]))
	if err != nil {
		return "", "", fmt.Errorf("node key for %q: %w", name, err)
	}

	pid, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("peer id for %q: %w", name, err)
	}

	return hex.EncodeToString(seed[:]), pid.String(), nil
}
