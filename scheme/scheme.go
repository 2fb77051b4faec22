// Package scheme implements the MultiversX x402 payment scheme state
// machine: requirement creation on the payee side, payload construction
// and signing on the payer side, and pure structural/cryptographic
// verification of a received payload against its requirement.
//
// Verification deliberately performs no network I/O. Whether the sender's
// sequence number is still fresh is only meaningful against current chain
// state, so that check is deferred to settlement.
package scheme

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/vitwit/x402-mvx/amount"
	"github.com/vitwit/x402-mvx/clients"
	"github.com/vitwit/x402-mvx/identity"
	"github.com/vitwit/x402-mvx/logger"
	"github.com/vitwit/x402-mvx/metrics"
	"github.com/vitwit/x402-mvx/transfer"
	"github.com/vitwit/x402-mvx/types"
)

// Scheme drives one payment negotiation:
//
//	REQUIREMENT_CREATED -> PAYLOAD_RECEIVED -> {VALID, INVALID}
//	                       -> (if VALID) SETTLEMENT_PENDING -> {SETTLED, SETTLEMENT_FAILED}
//
// The scheme itself is stateless and safe for concurrent use; the
// settlement states are owned by the settlement executor.
type Scheme struct {
	cfg   *types.Config
	chain types.ChainID
	clock clockz.Clock
	log   logger.Logger
	rec   metrics.Recorder
}

// New builds a scheme instance for the configured chain. The config must
// already be validated.
func New(cfg *types.Config, clock clockz.Clock, log logger.Logger, rec metrics.Recorder) *Scheme {
	if clock == nil {
		clock = clockz.RealClock
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Scheme{
		cfg:   cfg,
		chain: types.ChainID(cfg.ChainID),
		clock: clock,
		log:   log,
		rec:   rec,
	}
}

// Name returns the scheme discriminator.
func (s *Scheme) Name() string { return types.SchemeMVX }

// CreatePaymentRequirement mints an immutable requirement for a price in
// the given token. validitySeconds <= 0 selects the configured default.
// The gas budget is computed from the payload the requirement implies, so
// the payer and payee agree on the floor without further negotiation.
func (s *Scheme) CreatePaymentRequirement(payee, token, price string, decimals uint32, validitySeconds int64, relayed bool) (*types.PaymentRequirement, error) {
	tok, err := types.ParseTokenID(token)
	if err != nil {
		return nil, err
	}
	payeeAcct, err := identity.FromBech32(payee)
	if err != nil {
		return nil, err
	}
	amt, err := amount.Parse(price, decimals)
	if err != nil {
		return nil, err
	}

	data, err := transfer.Encode(payeeAcct, tok, amt, nil)
	if err != nil {
		return nil, err
	}
	gas := transfer.EstimateGas(len(data), relayed, s.cfg.GasSchedule())

	if validitySeconds <= 0 {
		validitySeconds = s.cfg.DefaultValiditySeconds
	}
	now := s.clock.Now().Unix()

	req := &types.PaymentRequirement{
		Scheme:       types.SchemeMVX,
		ChainID:      s.chain,
		PayTo:        payeeAcct.Bech32(),
		Token:        tok,
		AmountAtomic: amt.String(),
		Decimals:     decimals,
		GasLimit:     gas,
		Relayed:      relayed,
		ValidAfter:   now - s.cfg.ClockSkewAllowanceSeconds,
		ValidBefore:  now + validitySeconds,
		Nonce:        uuid.NewString(),
	}

	s.rec.IncCounter("requirement_created", map[string]string{"chain": s.chain.String()})
	s.log.Debug("payment requirement created", map[string]any{
		"nonce": req.Nonce,
		"token": tok.String(),
		"gas":   gas,
	})
	return req, nil
}

// ConstructPaymentPayload builds and signs the transaction a requirement
// implies. The signer capability is the only component that ever touches
// key material; the sender's sequence counter comes from the injected
// network-state provider.
func (s *Scheme) ConstructPaymentPayload(ctx context.Context, req *types.PaymentRequirement, signer Signer, sender string, provider clients.NetworkProvider) (*types.PaymentPayload, error) {
	if s.clock.Now().Unix() > req.ValidBefore {
		return nil, types.Errf(types.ErrRequirementExpired, "requirement %s expired at %d", req.Nonce, req.ValidBefore)
	}

	tx, err := s.deriveTransaction(req, sender)
	if err != nil {
		return nil, err
	}

	seq, err := provider.GetAccountSequence(ctx, sender)
	if err != nil {
		return nil, types.Errf(types.ErrTransientNetworkError, "fetching account sequence: %v", err)
	}
	tx.Nonce = seq

	signBytes, err := tx.SigningBytes()
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(signBytes)
	if err != nil {
		return nil, types.Errf(types.ErrSigningFailed, "signer rejected transaction: %v", err)
	}
	tx.Signature = hex.EncodeToString(sig)

	s.rec.IncCounter("payload_constructed", map[string]string{"chain": s.chain.String()})
	return &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeMVX,
		Nonce:       req.Nonce,
		Transaction: *tx,
	}, nil
}

// deriveTransaction rebuilds the exact unsigned transaction a requirement
// implies. A native transfer carries the amount as value and the payee as
// receiver. An ESDT transfer carries zero value and the sender as
// receiver, with the payee embedded in the instruction data, per the
// MultiESDTNFTTransfer convention.
func (s *Scheme) deriveTransaction(req *types.PaymentRequirement, sender string) (*types.Transaction, error) {
	senderAcct, err := identity.FromBech32(sender)
	if err != nil {
		return nil, err
	}
	payeeAcct, err := identity.FromBech32(req.PayTo)
	if err != nil {
		return nil, err
	}
	amt, err := req.Amount()
	if err != nil {
		return nil, err
	}

	data, err := transfer.Encode(payeeAcct, req.Token, amt, nil)
	if err != nil {
		return nil, err
	}

	tx := &types.Transaction{
		GasPrice: s.cfg.GasPrice,
		GasLimit: req.GasLimit,
		ChainID:  req.ChainID.String(),
		Version:  types.TxVersion,
		Sender:   senderAcct.Bech32(),
	}
	if req.Token.IsNative() {
		tx.Value = amt.String()
		tx.Receiver = payeeAcct.Bech32()
	} else {
		tx.Value = "0"
		tx.Receiver = senderAcct.Bech32()
		tx.Data = []byte(data)
	}
	return tx, nil
}

// VerifyPaymentPayload checks a received payload against the originating
// requirement without trusting any client-supplied metadata and without
// touching the network. Checks run in order and short-circuit on the
// first failure; each failure maps to a distinct reason code. A malformed
// or malicious payload is an expected input, so content problems are
// reported in the result, never as an error.
func (s *Scheme) VerifyPaymentPayload(payload *types.PaymentPayload, req *types.PaymentRequirement) *types.VerificationResult {
	start := s.clock.Now()
	res := s.verify(payload, req)
	s.rec.ObserveLatency("verify", s.clock.Now().Sub(start), map[string]string{"chain": s.chain.String()})
	if !res.Valid {
		s.rec.IncCounter("verify_invalid", map[string]string{"chain": s.chain.String()})
		s.log.Info("payment payload rejected", map[string]any{
			"nonce":  payload.Nonce,
			"reason": res.Reason,
		})
	}
	return res
}

func (s *Scheme) verify(payload *types.PaymentPayload, req *types.PaymentRequirement) *types.VerificationResult {
	// 1. Scheme discriminator.
	if payload.Scheme != req.Scheme || payload.Scheme != types.SchemeMVX {
		return types.Invalid(types.ErrSchemeMismatch)
	}

	// 2. Correlation nonce.
	if payload.Nonce != req.Nonce {
		return types.Invalid(types.ErrNonceMismatch)
	}

	// 3. Chain id.
	tx := payload.Transaction
	if tx.ChainID != req.ChainID.String() {
		return types.Invalid(types.ErrChainMismatch)
	}

	// 4. Re-derive the expected transfer and byte-compare. Any mismatch
	// in receiver, value or instruction data means the payload was not
	// built from this requirement.
	expected, err := s.deriveTransaction(req, tx.Sender)
	if err != nil {
		return types.Invalid(types.ErrPayloadTamperedData)
	}
	if tx.Receiver != expected.Receiver ||
		tx.Value != expected.Value ||
		string(tx.Data) != string(expected.Data) {
		return types.Invalid(types.ErrPayloadTamperedData)
	}

	// 5. Validity window.
	now := s.clock.Now().Unix()
	if now < req.ValidAfter || now > req.ValidBefore {
		return types.Invalid(types.ErrPayloadOutOfWindow)
	}

	// 6. Signature against the sender's public key.
	senderAcct, err := identity.FromBech32(tx.Sender)
	if err != nil {
		return types.Invalid(types.ErrInvalidSignature)
	}
	sig, err := tx.SignatureBytes()
	if err != nil || len(sig) != ed25519.SignatureSize {
		return types.Invalid(types.ErrInvalidSignature)
	}
	signBytes, err := tx.SigningBytes()
	if err != nil {
		return types.Invalid(types.ErrInvalidSignature)
	}
	if !ed25519.Verify(senderAcct.PubKey(), signBytes, sig) {
		return types.Invalid(types.ErrInvalidSignature)
	}

	// 7. Declared gas must cover the requirement's floor.
	if tx.GasLimit < req.GasLimit {
		return types.Invalid(types.ErrInsufficientGas)
	}

	return &types.VerificationResult{Valid: true}
}

// RemainingValidity returns how long a requirement's window still has to
// run; settlement uses it to bound its polling deadline.
func (s *Scheme) RemainingValidity(req *types.PaymentRequirement) time.Duration {
	remaining := req.ValidBefore - s.clock.Now().Unix()
	if remaining < 0 {
		return 0
	}
	return time.Duration(remaining) * time.Second
}
