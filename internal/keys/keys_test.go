package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAccounts_Deterministic(t *testing.T) {
	a, err := DeriveAccounts("alice")
	require.NoError(t, err)
	b, err := DeriveAccounts("alice")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveAccounts("bob")
	require.NoError(t, err)
	assert.NotEqual(t, a.Sr.Public, c.Sr.Public)
}

func TestDeriveAccounts_StashDiffers(t *testing.T) {
	a, err := DeriveAccounts("alice")
	require.NoError(t, err)
	assert.NotEqual(t, a.Sr.Public, a.SrStash.Public)
	assert.Equal(t, "//Alice", a.Sr.URI)
	assert.Equal(t, "//Alice//stash", a.SrStash.URI)
	assert.NotEmpty(t, a.Sr.Address)
	assert.NotEmpty(t, a.Ed.Public)
	assert.NotEmpty(t, a.Ec.Public)
}

func TestNodeKey_StablePeerID(t *testing.T) {
	seed1, peer1, err := NodeKey("alice")
	require.NoError(t, err)
	seed2, peer2, err := NodeKey("alice")
	require.NoError(t, err)

	assert.Equal(t, seed1, seed2)
	assert.Equal(t, peer1, peer2)
	assert.Len(t, seed1, 64)
	// Ed25519 identities encode as base58 starting with 12D3KooW.
	assert.True(t, strings.HasPrefix(peer1, "12D3KooW"), "unexpected peer id %s", peer1)

	_, peerOther, err := NodeKey("bob")
	require.NoError(t, err)
	assert.NotEqual(t, peer1, peerOther)
}

func TestDeriveEthAccount(t *testing.T) {
	a, err := DeriveEthAccount("col1")
	require.NoError(t, err)
	b, err := DeriveEthAccount("col1")
	require.NoError(t, err)
	assert.Equal(t, a.Address, b.Address)
	assert.True(t, strings.HasPrefix(a.Address, "0x"))

	round, err := ParseEthKey(a.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, a.Address, round.Address)
}
