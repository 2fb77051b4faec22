// Package types defines the data model shared by the x402 MultiversX
// payment scheme: requirements, payloads, results, and the closed error
// taxonomy surfaced to callers.
package types

import (
	"fmt"
	"math/big"
)

// X402Version is the protocol version carried in payment payloads.
const X402Version = 1

// SchemeMVX is the scheme discriminator for the MultiversX payment scheme.
const SchemeMVX = "mvx"

// Amount is a token amount in atomic units together with the decimal
// precision used to produce it. The atomic value is always an exact
// integer; no floating-point representation is carried past parsing.
type Amount struct {
	Atomic   *big.Int
	Decimals uint32
}

// Cmp compares two amounts by atomic value.
func (a Amount) Cmp(b Amount) int {
	return a.Atomic.Cmp(b.Atomic)
}

// String returns the atomic value in base 10.
func (a Amount) String() string {
	if a.Atomic == nil {
		return "0"
	}
	return a.Atomic.String()
}

// PaymentRequirement is created once by the payee side per payment
// negotiation and is immutable afterwards. It is identified by Nonce for
// idempotent re-verification.
type PaymentRequirement struct {
	// Scheme discriminator, always "mvx" for this package.
	Scheme string `json:"scheme"`

	// ChainID of the ledger the payment must land on.
	ChainID ChainID `json:"chainId"`

	// PayTo is the bech32 address of the payee.
	PayTo string `json:"payTo"`

	// Token being charged, EGLD or an ESDT identifier.
	Token TokenID `json:"token"`

	// AmountAtomic is the exact amount required, in atomic units.
	// Represented as a string because amounts exceed uint64.
	AmountAtomic string `json:"amountAtomic"`

	// Decimals used when the price was parsed.
	Decimals uint32 `json:"decimals"`

	// GasLimit is the minimum gas budget the payer must declare.
	GasLimit uint64 `json:"gasLimit"`

	// Relayed marks a requirement whose fee is paid by a relayer.
	Relayed bool `json:"relayed,omitempty"`

	// ValidAfter and ValidBefore bound the validity window (unix seconds).
	ValidAfter  int64 `json:"validAfter"`
	ValidBefore int64 `json:"validBefore"`

	// Nonce correlates payloads with this requirement.
	Nonce string `json:"nonce"`
}

// Amount returns the requirement's amount as a typed value.
func (r *PaymentRequirement) Amount() (Amount, error) {
	v, ok := new(big.Int).SetString(r.AmountAtomic, 10)
	if !ok {
		return Amount{}, Errf(ErrInvalidAmount, "malformed atomic amount %q", r.AmountAtomic)
	}
	return Amount{Atomic: v, Decimals: r.Decimals}, nil
}

// PaymentPayload is the signed artifact produced by the payer. It is
// structurally complete but untrusted until verified against the
// originating requirement.
type PaymentPayload struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`

	// Nonce references the originating requirement.
	Nonce string `json:"nonce"`

	Transaction Transaction `json:"transaction"`
}

// VerificationResult reports whether a payload satisfies its requirement.
// It is ephemeral and never persisted. A failed verification is an
// expected input, not an error condition.
type VerificationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Invalid builds a failed result carrying one of the closed reason codes.
func Invalid(reason string) *VerificationResult {
	return &VerificationResult{Valid: false, Reason: reason}
}

// TxStatus is a transaction status reported by the network-state provider.
type TxStatus string

const (
	TxStatusPending  TxStatus = "pending"
	TxStatusSuccess  TxStatus = "success"
	TxStatusFailed   TxStatus = "failed"
	TxStatusNotFound TxStatus = "not_found"
)

// SettlementResult is produced once per payload. Settling the same
// payload again returns the recorded result without resubmission.
type SettlementResult struct {
	Success   bool     `json:"success"`
	TxHash    string   `json:"txHash,omitempty"`
	Status    TxStatus `json:"status,omitempty"`
	NetworkID string   `json:"networkId,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Error is the typed error carried by every synchronous failure in this
// module. Code is drawn from the closed taxonomy below.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errf builds a taxonomy error with a formatted message.
func Errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Closed error taxonomy. Codec and encoding errors surface synchronously;
// payload-content problems come back as VerificationResult reasons.
const (
	ErrInvalidAddress        = "invalid_address"
	ErrInvalidAmount         = "invalid_amount"
	ErrUnsupportedToken      = "unsupported_token"
	ErrRequirementExpired    = "requirement_expired"
	ErrSigningFailed         = "signing_failed"
	ErrSchemeMismatch        = "scheme_mismatch"
	ErrNonceMismatch         = "nonce_mismatch"
	ErrChainMismatch         = "chain_mismatch"
	ErrPayloadTamperedData   = "payload_tampered_data"
	ErrPayloadOutOfWindow    = "payload_out_of_window"
	ErrInvalidSignature      = "invalid_signature"
	ErrInsufficientGas       = "insufficient_gas"
	ErrSettlementTimeout     = "settlement_timeout"
	ErrSettlementRejected    = "settlement_rejected"
	ErrMissingConfiguration  = "missing_configuration"
	ErrTransientNetworkError = "transient_network_error"
)
