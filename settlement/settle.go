// Package settlement submits verified payment payloads to the ledger
// network and drives them to a terminal state. The executor owns the one
// piece of shared mutable state in the module: the per-nonce idempotency
// table guaranteeing at most one in-flight submission per payload.
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"golang.org/x/sync/singleflight"

	"github.com/vitwit/x402-mvx/clients"
	"github.com/vitwit/x402-mvx/logger"
	"github.com/vitwit/x402-mvx/metrics"
	"github.com/vitwit/x402-mvx/types"
)

// tableEntry caches a terminal settlement result until the payload's
// validity window (plus the polling budget) has passed.
type tableEntry struct {
	result    *types.SettlementResult
	expiresAt int64
}

// Executor settles payloads with idempotency and bounded retry semantics.
// Safe for concurrent use.
type Executor struct {
	provider clients.NetworkProvider
	cfg      *types.Config
	chain    types.ChainID
	clock    clockz.Clock
	log      logger.Logger
	rec      metrics.Recorder

	group singleflight.Group

	mu      sync.Mutex
	settled map[string]tableEntry
}

// New builds an executor. The config must already be validated.
func New(cfg *types.Config, provider clients.NetworkProvider, clock clockz.Clock, log logger.Logger, rec metrics.Recorder) *Executor {
	if clock == nil {
		clock = clockz.RealClock
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Executor{
		provider: provider,
		cfg:      cfg,
		chain:    types.ChainID(cfg.ChainID),
		clock:    clock,
		log:      log,
		rec:      rec,
		settled:  make(map[string]tableEntry),
	}
}

// Settle submits the payload and waits for a terminal on-chain status.
// It is idempotent by payload nonce: a repeat call returns the recorded
// result without resubmitting, and two concurrent calls for the same
// nonce share a single execution, so exactly one network submission
// happens. The visible per-nonce state sequence is monotonic:
// pending -> settled|failed, never reversed.
func (e *Executor) Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) (*types.SettlementResult, error) {
	e.expireStale()

	if cached, ok := e.lookup(payload.Nonce); ok {
		return cached, nil
	}

	v, err, _ := e.group.Do(payload.Nonce, func() (any, error) {
		if cached, ok := e.lookup(payload.Nonce); ok {
			return cached, nil
		}
		res := e.execute(ctx, payload, req)
		e.record(payload.Nonce, req, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.SettlementResult), nil
}

func (e *Executor) lookup(nonce string) (*types.SettlementResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.settled[nonce]
	if !ok {
		return nil, false
	}
	return entry.result, true
}

func (e *Executor) record(nonce string, req *types.PaymentRequirement, res *types.SettlementResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settled[nonce] = tableEntry{
		result:    res,
		expiresAt: req.ValidBefore + e.cfg.MaxSettlementPollSeconds,
	}
}

// expireStale drops entries whose validity window has passed. The table
// only ever holds in-flight or recently settled nonces.
func (e *Executor) expireStale() {
	now := e.clock.Now().Unix()
	e.mu.Lock()
	defer e.mu.Unlock()
	for nonce, entry := range e.settled {
		if entry.expiresAt < now {
			delete(e.settled, nonce)
		}
	}
}

func (e *Executor) execute(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) *types.SettlementResult {
	start := e.clock.Now()
	defer func() {
		e.rec.ObserveLatency("settle", e.clock.Now().Sub(start), map[string]string{"chain": e.chain.String()})
	}()

	txHash, res := e.submit(ctx, payload)
	if res != nil {
		return res
	}

	e.log.Info("transaction submitted", map[string]any{
		"nonce":  payload.Nonce,
		"txHash": txHash,
	})

	return e.awaitFinality(ctx, txHash, req)
}

// submit broadcasts the signed transaction, retrying transient failures a
// bounded number of times with exponential backoff. A rejection because
// the transaction is already known is a no-op confirmation: the hash is
// computed locally and polling proceeds. Non-transient rejections are
// terminal immediately.
func (e *Executor) submit(ctx context.Context, payload *types.PaymentPayload) (string, *types.SettlementResult) {
	tx := payload.Transaction

	var lastErr error
	delay := time.Duration(e.cfg.SettlementPollIntervalSeconds) * time.Second
	for attempt := 0; attempt <= e.cfg.SubmitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", e.failed("", types.ErrSettlementTimeout)
			case <-e.clock.After(delay):
			}
			delay *= 2
		}

		txHash, err := e.provider.SubmitTransaction(ctx, &tx)
		if err == nil {
			e.rec.IncCounter("tx_submitted", map[string]string{"chain": e.chain.String()})
			return txHash, nil
		}

		if clients.IsAlreadyKnown(err) {
			hash, herr := tx.Hash()
			if herr != nil {
				return "", e.failed("", types.ErrSettlementRejected)
			}
			e.log.Debug("transaction already known, confirming instead", map[string]any{"txHash": hash})
			return hash, nil
		}

		if !clients.IsTransient(err) {
			e.log.Warn("submission rejected", map[string]any{
				"nonce": payload.Nonce,
				"error": err.Error(),
			})
			return "", e.failed("", types.ErrSettlementRejected)
		}
		lastErr = err
	}

	e.log.Warn("submission retries exhausted", map[string]any{
		"nonce": payload.Nonce,
		"error": lastErr.Error(),
	})
	return "", e.failed("", types.ErrSettlementTimeout)
}

// awaitFinality polls the transaction status at the configured interval
// until the network reports a terminal state or the deadline passes.
// Polling also stops once the requirement's validity window is over: a
// transaction still pending at that point can no longer settle validly.
func (e *Executor) awaitFinality(ctx context.Context, txHash string, req *types.PaymentRequirement) *types.SettlementResult {
	deadline := e.clock.Now().Add(time.Duration(e.cfg.MaxSettlementPollSeconds) * time.Second)
	interval := time.Duration(e.cfg.SettlementPollIntervalSeconds) * time.Second

	for {
		status, err := e.provider.GetTransactionStatus(ctx, txHash)
		if err != nil && !clients.IsTransient(err) {
			return e.failed(txHash, types.ErrSettlementRejected)
		}

		switch status {
		case types.TxStatusSuccess:
			e.rec.IncCounter("tx_settled", map[string]string{"chain": e.chain.String()})
			return &types.SettlementResult{
				Success:   true,
				TxHash:    txHash,
				Status:    types.TxStatusSuccess,
				NetworkID: e.chain.CAIP2(),
			}
		case types.TxStatusFailed:
			e.rec.IncCounter("tx_failed", map[string]string{"chain": e.chain.String()})
			return e.failed(txHash, types.ErrSettlementRejected)
		}

		// Pending or not yet indexed: a transaction still pending past
		// the requirement's validity window can no longer settle validly.
		if e.clock.Now().Unix() > req.ValidBefore && status != types.TxStatusSuccess {
			return e.failed(txHash, types.ErrSettlementRejected)
		}
		if !e.clock.Now().Before(deadline) {
			return e.failed(txHash, types.ErrSettlementTimeout)
		}

		select {
		case <-ctx.Done():
			return e.failed(txHash, types.ErrSettlementTimeout)
		case <-e.clock.After(interval):
		}
	}
}

func (e *Executor) failed(txHash, reason string) *types.SettlementResult {
	status := types.TxStatusFailed
	if txHash == "" {
		status = types.TxStatusNotFound
	}
	return &types.SettlementResult{
		Success:   false,
		TxHash:    txHash,
		Status:    status,
		NetworkID: e.chain.CAIP2(),
		Reason:    reason,
	}
}
