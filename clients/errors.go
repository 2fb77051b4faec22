package clients

import (
	"errors"
	"strings"

	"github.com/vitwit/x402-mvx/types"
)

// IsTransient reports whether a network error is worth retrying.
// Timeouts, connection drops and server-side failures are transient;
// explicit rejections (bad nonce, insufficient balance) are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var terr *types.Error
	if errors.As(err, &terr) {
		switch terr.Code {
		case types.ErrTransientNetworkError:
			return true
		case types.ErrSettlementRejected:
			return false
		}
	}

	msg := err.Error()
	for _, marker := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"context deadline exceeded",
		"502", "503", "504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsAlreadyKnown reports whether a submission failed only because the
// transaction is already in the pool or already executed. Such a
// resubmission is a no-op confirmation, not a failure.
func IsAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "transaction already known") ||
		strings.Contains(msg, "already in the pool") ||
		strings.Contains(msg, "tx already exists")
}
