package types

import "regexp"

// ChainID identifies a MultiversX network. The set is closed: anything
// outside it is rejected at construction, never at use.
type ChainID string

const (
	ChainMainnet ChainID = "1"
	ChainDevnet  ChainID = "D"
	ChainTestnet ChainID = "T"
)

// CAIP2Namespace is the chain-agnostic namespace for MultiversX.
const CAIP2Namespace = "mvx"

// ParseChainID validates a raw chain reference against the closed set.
func ParseChainID(raw string) (ChainID, error) {
	switch ChainID(raw) {
	case ChainMainnet, ChainDevnet, ChainTestnet:
		return ChainID(raw), nil
	}
	return "", Errf(ErrChainMismatch, "unknown chain id %q", raw)
}

// CAIP2 returns the CAIP-2 identifier, e.g. "mvx:1".
func (c ChainID) CAIP2() string {
	return CAIP2Namespace + ":" + string(c)
}

func (c ChainID) String() string { return string(c) }

// TokenID is either the native-coin sentinel or a validated ESDT
// identifier. Downstream code treats a TokenID as pre-validated.
type TokenID string

// TokenEGLD is the native coin sentinel.
const TokenEGLD TokenID = "EGLD"

// esdtPattern matches ticker (3-10 uppercase alphanumerics) plus the
// fixed-length hex suffix assigned at issuance, e.g. "USDC-c76f1f".
var esdtPattern = regexp.MustCompile(`^[A-Z0-9]{3,10}-[a-f0-9]{6}$`)

// ParseTokenID validates a token identifier once, at ingestion.
func ParseTokenID(raw string) (TokenID, error) {
	if TokenID(raw) == TokenEGLD {
		return TokenEGLD, nil
	}
	if !esdtPattern.MatchString(raw) {
		return "", Errf(ErrUnsupportedToken, "token identifier %q does not match ESDT format", raw)
	}
	return TokenID(raw), nil
}

// IsNative reports whether the token is the chain's native coin.
func (t TokenID) IsNative() bool { return t == TokenEGLD }

func (t TokenID) String() string { return string(t) }
