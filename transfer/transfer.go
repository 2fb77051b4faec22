// Package transfer builds the transaction-data payload for native and
// ESDT token transfers and computes the gas budget for a payload. The
// encoding is deterministic: the payee side re-derives the expected
// payload independently and byte-compares it against what the payer
// declared, rather than trusting the payer's encoding.
package transfer

import (
	"encoding/hex"
	"strings"

	"github.com/vitwit/x402-mvx/identity"
	"github.com/vitwit/x402-mvx/types"
)

// multiTransferSelector is the function selector for ESDT transfers.
// Wire format: selector@receiverHex@transferCount@tokenHex@nonce@amountHex
// with optional @functionHex@argHex... appended for contract calls.
const multiTransferSelector = "MultiESDTNFTTransfer"

// singleTransfer and fungibleNonce are the fixed count and reserved nonce
// fields for a one-token fungible transfer.
const (
	singleTransfer = "01"
	fungibleNonce  = "00"
)

// Encode produces the data payload for a transfer. For the native coin it
// is empty, or the extra call data joined verbatim when present. For an
// ESDT token it is the @-delimited hex instruction string. Identical
// inputs always produce byte-identical output.
func Encode(payee identity.AccountID, token types.TokenID, amt types.Amount, extraCall []string) (string, error) {
	if payee.IsZero() {
		return "", types.Errf(types.ErrInvalidAddress, "payee account is empty")
	}
	if amt.Atomic == nil || amt.Atomic.Sign() < 0 {
		return "", types.Errf(types.ErrInvalidAmount, "transfer amount must be a non-negative integer")
	}

	if token.IsNative() {
		if len(extraCall) == 0 {
			return "", nil
		}
		// Function-call transfer: pass the call data through unmodified.
		return strings.Join(extraCall, "@"), nil
	}

	fields := []string{
		multiTransferSelector,
		payee.Hex(),
		singleTransfer,
		hex.EncodeToString([]byte(token)),
		fungibleNonce,
		evenHex(amt),
	}
	for _, arg := range extraCall {
		fields = append(fields, hex.EncodeToString([]byte(arg)))
	}
	return strings.Join(fields, "@"), nil
}

// evenHex renders the atomic amount as even-length hex, the form the
// ledger's transaction-data parser expects.
func evenHex(amt types.Amount) string {
	h := amt.Atomic.Text(16)
	if len(h)%2 != 0 {
		h = "0" + h
	}
	return h
}

// EstimateGas computes the gas budget for a payload of the given byte
// length. Every constant comes from the configuration-supplied schedule;
// the result is monotonically non-decreasing in payloadLen.
func EstimateGas(payloadLen int, relayed bool, g types.GasSchedule) uint64 {
	gas := g.BaseCost + g.PerByteCost*uint64(payloadLen) + g.TransferSurcharge
	if relayed {
		gas += g.RelayedSurcharge
	}
	return gas
}
