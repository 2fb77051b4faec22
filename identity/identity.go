// Package identity converts between native MultiversX addresses and the
// chain-agnostic identifier formats (CAIP-2, CAIP-10, did:pkh). All
// functions are pure and bijective on valid inputs.
package identity

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/vitwit/x402-mvx/types"
)

// hrp is the bech32 human-readable part of every MultiversX address.
const hrp = "erd"

// pubKeyLen is the ed25519 public key length carried by an address.
const pubKeyLen = 32

// didMethod prefixes every did:pkh identifier produced here.
const didMethod = "did:pkh"

// AccountID is a validated native address. It is only constructed through
// FromBech32 or FromDID, so downstream code can rely on the invariants.
type AccountID struct {
	addr   string
	pubKey []byte
}

// FromBech32 parses and validates a native erd1... address.
func FromBech32(addr string) (AccountID, error) {
	gotHRP, data, err := bech32.Decode(addr)
	if err != nil {
		return AccountID{}, types.Errf(types.ErrInvalidAddress, "decoding %q: %v", addr, err)
	}
	if gotHRP != hrp {
		return AccountID{}, types.Errf(types.ErrInvalidAddress, "address %q has prefix %q, want %q", addr, gotHRP, hrp)
	}
	pub, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return AccountID{}, types.Errf(types.ErrInvalidAddress, "converting %q: %v", addr, err)
	}
	if len(pub) != pubKeyLen {
		return AccountID{}, types.Errf(types.ErrInvalidAddress, "address %q carries %d key bytes, want %d", addr, len(pub), pubKeyLen)
	}
	return AccountID{addr: addr, pubKey: pub}, nil
}

// FromPubKey builds the account for a raw 32-byte ed25519 public key.
func FromPubKey(pub []byte) (AccountID, error) {
	if len(pub) != pubKeyLen {
		return AccountID{}, types.Errf(types.ErrInvalidAddress, "public key has %d bytes, want %d", len(pub), pubKeyLen)
	}
	data, err := bech32.ConvertBits(pub, 8, 5, true)
	if err != nil {
		return AccountID{}, types.Errf(types.ErrInvalidAddress, "converting public key: %v", err)
	}
	addr, err := bech32.Encode(hrp, data)
	if err != nil {
		return AccountID{}, types.Errf(types.ErrInvalidAddress, "encoding public key: %v", err)
	}
	key := make([]byte, pubKeyLen)
	copy(key, pub)
	return AccountID{addr: addr, pubKey: key}, nil
}

// Bech32 returns the native address representation.
func (a AccountID) Bech32() string { return a.addr }

// Hex returns the 64-character lowercase hex of the public key, the form
// embedded in transfer data payloads.
func (a AccountID) Hex() string { return hex.EncodeToString(a.pubKey) }

// PubKey returns a copy of the ed25519 public key.
func (a AccountID) PubKey() []byte {
	key := make([]byte, len(a.pubKey))
	copy(key, a.pubKey)
	return key
}

// IsZero reports whether the account was never initialized.
func (a AccountID) IsZero() bool { return a.addr == "" }

// CAIP10 returns the CAIP-10 account id, e.g. "mvx:1:erd1...".
func (a AccountID) CAIP10(chain types.ChainID) string {
	return chain.CAIP2() + ":" + a.addr
}

// DID returns the did:pkh identifier, e.g. "did:pkh:mvx:1:erd1...".
func (a AccountID) DID(chain types.ChainID) string {
	return didMethod + ":" + chain.CAIP2() + ":" + a.addr
}

// FromDID resolves a did:pkh:mvx:<chainRef>:<address> identifier back to
// the account and chain it names. Encode-then-decode yields the original.
func FromDID(did string) (AccountID, types.ChainID, error) {
	parts := strings.Split(did, ":")
	if len(parts) != 5 || parts[0] != "did" || parts[1] != "pkh" {
		return AccountID{}, "", types.Errf(types.ErrInvalidAddress, "%q is not a did:pkh identifier", did)
	}
	if parts[2] != types.CAIP2Namespace {
		return AccountID{}, "", types.Errf(types.ErrInvalidAddress, "%q names namespace %q, want %q", did, parts[2], types.CAIP2Namespace)
	}
	chain, err := types.ParseChainID(parts[3])
	if err != nil {
		return AccountID{}, "", types.Errf(types.ErrInvalidAddress, "%q names unknown chain %q", did, parts[3])
	}
	acct, err := FromBech32(parts[4])
	if err != nil {
		return AccountID{}, "", err
	}
	return acct, chain, nil
}
