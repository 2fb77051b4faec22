// Package x402 implements the x402 payment-required handshake for the
// MultiversX ledger: canonical payment requirements, signed payment
// payloads, trustless verification, and idempotent on-chain settlement.
package x402

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/vitwit/x402-mvx/clients"
	"github.com/vitwit/x402-mvx/logger"
	"github.com/vitwit/x402-mvx/metrics"
	"github.com/vitwit/x402-mvx/scheme"
	"github.com/vitwit/x402-mvx/settlement"
	"github.com/vitwit/x402-mvx/types"
)

// SchemeHandler is the contract every payment scheme variant implements.
// A dispatcher routes by the payload's scheme discriminator, so a
// multi-chain deployment can mix handlers without type inspection.
type SchemeHandler interface {
	Name() string
	Verify(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) (*types.VerificationResult, error)
	Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) (*types.SettlementResult, error)
}

// SupportedKind describes one scheme/network pair a facilitator accepts.
type SupportedKind struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
}

// X402 is the entry point. It owns the scheme registry and the
// MultiversX handler built from the supplied configuration.
type X402 struct {
	cfg      *types.Config
	handlers map[string]SchemeHandler

	mvx  *scheme.Scheme
	exec *settlement.Executor

	provider clients.NetworkProvider
	clock    clockz.Clock
	log      logger.Logger
	rec      metrics.Recorder
}

// New validates the configuration, wires the MultiversX handler, and
// applies options. A missing or invalid configuration is fatal here; it
// is never silently defaulted.
func New(cfg *types.Config, provider clients.NetworkProvider, opts ...Option) (*X402, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil && cfg.ProxyURL != "" {
		provider = clients.NewProxyClient(cfg.ProxyURL, 15*time.Second)
	}
	if provider == nil {
		return nil, types.Errf(types.ErrMissingConfiguration, "no network provider and no proxy url configured")
	}

	x := &X402{
		cfg:      cfg,
		handlers: make(map[string]SchemeHandler),
		provider: provider,
		clock:    clockz.RealClock,
		log:      logger.NoopLogger{},
		rec:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(x)
	}

	x.mvx = scheme.New(cfg, x.clock, x.log, x.rec)
	x.exec = settlement.New(cfg, provider, x.clock, x.log, x.rec)
	x.RegisterScheme(&mvxHandler{scheme: x.mvx, exec: x.exec})
	return x, nil
}

// RegisterScheme adds a handler to the dispatch registry. Registering a
// second handler with the same name replaces the first.
func (x *X402) RegisterScheme(h SchemeHandler) {
	x.handlers[h.Name()] = h
}

// CreatePaymentRequirement mints a requirement on the configured chain.
func (x *X402) CreatePaymentRequirement(payee, token, price string, decimals uint32, validitySeconds int64) (*types.PaymentRequirement, error) {
	return x.mvx.CreatePaymentRequirement(payee, token, price, decimals, validitySeconds, false)
}

// CreateRelayedPaymentRequirement mints a requirement whose gas budget
// includes the relayed-transaction surcharge.
func (x *X402) CreateRelayedPaymentRequirement(payee, token, price string, decimals uint32, validitySeconds int64) (*types.PaymentRequirement, error) {
	return x.mvx.CreatePaymentRequirement(payee, token, price, decimals, validitySeconds, true)
}

// ConstructPaymentPayload builds and signs the payload a requirement
// implies, on behalf of the paying agent.
func (x *X402) ConstructPaymentPayload(ctx context.Context, req *types.PaymentRequirement, signer scheme.Signer, sender string) (*types.PaymentPayload, error) {
	return x.mvx.ConstructPaymentPayload(ctx, req, signer, sender, x.provider)
}

// Verify routes the payload to its scheme handler by discriminator.
func (x *X402) Verify(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) (*types.VerificationResult, error) {
	h, ok := x.handlers[payload.Scheme]
	if !ok {
		return types.Invalid(types.ErrSchemeMismatch), nil
	}
	return h.Verify(ctx, payload, req)
}

// Settle routes the payload to its scheme handler by discriminator.
func (x *X402) Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) (*types.SettlementResult, error) {
	h, ok := x.handlers[payload.Scheme]
	if !ok {
		return nil, types.Errf(types.ErrSchemeMismatch, "no handler registered for scheme %q", payload.Scheme)
	}
	return h.Settle(ctx, payload, req)
}

// Supported lists the scheme/network pairs this instance accepts.
func (x *X402) Supported() []SupportedKind {
	chain := types.ChainID(x.cfg.ChainID)
	kinds := make([]SupportedKind, 0, len(x.handlers))
	for name := range x.handlers {
		kinds = append(kinds, SupportedKind{
			X402Version: types.X402Version,
			Scheme:      name,
			Network:     chain.CAIP2(),
		})
	}
	return kinds
}

// mvxHandler adapts the scheme state machine and the settlement executor
// to the registry contract.
type mvxHandler struct {
	scheme *scheme.Scheme
	exec   *settlement.Executor
}

func (h *mvxHandler) Name() string { return types.SchemeMVX }

func (h *mvxHandler) Verify(_ context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) (*types.VerificationResult, error) {
	// Verification is pure CPU work; it takes no context on purpose so
	// it can never be starved by network unavailability.
	return h.scheme.VerifyPaymentPayload(payload, req), nil
}

func (h *mvxHandler) Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirement) (*types.SettlementResult, error) {
	return h.exec.Settle(ctx, payload, req)
}
