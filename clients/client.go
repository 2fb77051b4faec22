// Package clients provides the network-state provider contract consumed
// by the payment scheme and the settlement executor, plus an HTTP
// implementation backed by the MultiversX gateway API.
package clients

import (
	"context"

	"github.com/vitwit/x402-mvx/types"
)

// NetworkProvider is the only path through which the scheme and the
// settlement executor touch the ledger network. Verification never uses
// it; payload construction and settlement do.
type NetworkProvider interface {
	// GetAccountSequence returns the current on-chain sequence counter
	// for the given bech32 address.
	GetAccountSequence(ctx context.Context, address string) (uint64, error)

	// SubmitTransaction broadcasts a signed transaction and returns the
	// network-assigned hash. Resubmitting an already-pending transaction
	// must not be treated as an error by callers; see IsAlreadyKnown.
	SubmitTransaction(ctx context.Context, tx *types.Transaction) (string, error)

	// GetTransactionStatus reports the current on-chain status.
	GetTransactionStatus(ctx context.Context, txHash string) (types.TxStatus, error)
}
