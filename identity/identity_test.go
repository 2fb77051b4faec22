package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-mvx/types"
)

func newAccount(t *testing.T) AccountID {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	acct, err := FromPubKey(pub)
	require.NoError(t, err)
	return acct
}

func TestBech32RoundTrip(t *testing.T) {
	acct := newAccount(t)

	addr := acct.Bech32()
	assert.True(t, strings.HasPrefix(addr, "erd1"))

	decoded, err := FromBech32(addr)
	require.NoError(t, err)
	assert.Equal(t, acct.Bech32(), decoded.Bech32())
	assert.Equal(t, acct.PubKey(), decoded.PubKey())
	assert.Len(t, decoded.Hex(), 64)
}

func TestFromBech32Rejects(t *testing.T) {
	acct := newAccount(t)

	corrupted := acct.Bech32()
	last := corrupted[len(corrupted)-1]
	repl := byte('x')
	if last == 'x' {
		repl = 'z'
	}
	corrupted = corrupted[:len(corrupted)-1] + string(repl)

	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"not bech32", "not-an-address"},
		{"wrong prefix", strings.Replace(acct.Bech32(), "erd1", "btc1", 1)},
		{"corrupted checksum", corrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromBech32(tt.addr)
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalidAddress, err.(*types.Error).Code)
		})
	}
}

func TestFromPubKeyRejectsWrongLength(t *testing.T) {
	_, err := FromPubKey(make([]byte, 31))
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidAddress, err.(*types.Error).Code)
}

func TestChainAgnosticIdentifiers(t *testing.T) {
	acct := newAccount(t)
	addr := acct.Bech32()

	assert.Equal(t, "mvx:1", types.ChainMainnet.CAIP2())
	assert.Equal(t, "mvx:1:"+addr, acct.CAIP10(types.ChainMainnet))
	assert.Equal(t, "did:pkh:mvx:D:"+addr, acct.DID(types.ChainDevnet))
}

func TestDIDRoundTrip(t *testing.T) {
	acct := newAccount(t)

	for _, chain := range []types.ChainID{types.ChainMainnet, types.ChainDevnet, types.ChainTestnet} {
		did := acct.DID(chain)
		decoded, gotChain, err := FromDID(did)
		require.NoError(t, err, "did %q", did)
		assert.Equal(t, chain, gotChain)
		assert.Equal(t, acct.Bech32(), decoded.Bech32())
	}
}

func TestFromDIDRejects(t *testing.T) {
	acct := newAccount(t)
	addr := acct.Bech32()

	tests := []struct {
		name string
		did  string
	}{
		{"wrong method", "did:web:mvx:1:" + addr},
		{"wrong namespace", "did:pkh:eip155:1:0x1234"},
		{"unknown chain", "did:pkh:mvx:9:" + addr},
		{"too few parts", "did:pkh:mvx"},
		{"bad address", "did:pkh:mvx:1:erd1invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FromDID(tt.did)
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalidAddress, err.(*types.Error).Code)
		})
	}
}
