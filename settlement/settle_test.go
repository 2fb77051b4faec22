package settlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-mvx/types"
)

func testConfig() *types.Config {
	return &types.Config{
		ChainID:                       "D",
		GasBaseCost:                   50000,
		GasPerByteCost:                1500,
		GasTransferSurcharge:          200000,
		GasRelayedSurcharge:           50000,
		GasPrice:                      1000000000,
		DefaultValiditySeconds:        600,
		ClockSkewAllowanceSeconds:     30,
		MaxSettlementPollSeconds:      2,
		SettlementPollIntervalSeconds: 1,
		SubmitRetries:                 2,
	}
}

// fakeProvider scripts submission and status responses.
type fakeProvider struct {
	mu          sync.Mutex
	submits     atomic.Int64
	submitErrs  []error
	submitDelay time.Duration
	statuses    []types.TxStatus
	statusErr   error
}

func (p *fakeProvider) GetAccountSequence(_ context.Context, _ string) (uint64, error) {
	return 0, nil
}

func (p *fakeProvider) SubmitTransaction(_ context.Context, _ *types.Transaction) (string, error) {
	if p.submitDelay > 0 {
		time.Sleep(p.submitDelay)
	}
	n := p.submits.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if int(n) <= len(p.submitErrs) {
		if err := p.submitErrs[n-1]; err != nil {
			return "", err
		}
	}
	return "c0ffee", nil
}

func (p *fakeProvider) GetTransactionStatus(_ context.Context, _ string) (types.TxStatus, error) {
	if p.statusErr != nil {
		return types.TxStatusNotFound, p.statusErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.statuses) == 0 {
		return types.TxStatusPending, nil
	}
	status := p.statuses[0]
	if len(p.statuses) > 1 {
		p.statuses = p.statuses[1:]
	}
	return status, nil
}

func handshake(nonce string, validBefore int64) (*types.PaymentPayload, *types.PaymentRequirement) {
	payload := &types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      types.SchemeMVX,
		Nonce:       nonce,
		Transaction: types.Transaction{
			Nonce:     3,
			Value:     "0",
			Receiver:  "erd1payer",
			Sender:    "erd1payer",
			GasPrice:  1000000000,
			GasLimit:  500000,
			Data:      []byte("MultiESDTNFTTransfer@aa@01@bb@00@ff"),
			ChainID:   "D",
			Version:   types.TxVersion,
			Signature: "00ff",
		},
	}
	req := &types.PaymentRequirement{
		Scheme:      types.SchemeMVX,
		ChainID:     types.ChainDevnet,
		Nonce:       nonce,
		ValidBefore: validBefore,
	}
	return payload, req
}

func future() int64 { return time.Now().Unix() + 600 }

func TestSettleSuccess(t *testing.T) {
	provider := &fakeProvider{statuses: []types.TxStatus{types.TxStatusSuccess}}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-success", future())

	res, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "c0ffee", res.TxHash)
	assert.Equal(t, types.TxStatusSuccess, res.Status)
	assert.Equal(t, "mvx:D", res.NetworkID)
	assert.Empty(t, res.Reason)
	assert.Equal(t, int64(1), provider.submits.Load())
}

func TestSettleIdempotentRepeat(t *testing.T) {
	provider := &fakeProvider{statuses: []types.TxStatus{types.TxStatusSuccess}}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-repeat", future())

	first, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)
	second, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), provider.submits.Load(), "repeat settle must not resubmit")
}

func TestSettleConcurrentSingleSubmission(t *testing.T) {
	provider := &fakeProvider{
		statuses:    []types.TxStatus{types.TxStatusSuccess},
		submitDelay: 50 * time.Millisecond,
	}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-concurrent", future())

	const callers = 8
	results := make([]*types.SettlementResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Settle(context.Background(), payload, req)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), provider.submits.Load(), "concurrent callers must share one submission")
	for _, res := range results {
		assert.True(t, res.Success)
		assert.Equal(t, "c0ffee", res.TxHash)
	}
}

func TestSettleRetriesTransientSubmitFailure(t *testing.T) {
	provider := &fakeProvider{
		submitErrs: []error{errors.New("dial tcp: connection refused"), nil},
		statuses:   []types.TxStatus{types.TxStatusSuccess},
	}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-transient", future())

	res, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, int64(2), provider.submits.Load())
}

func TestSettleRejectsNonTransientSubmitFailure(t *testing.T) {
	provider := &fakeProvider{
		submitErrs: []error{types.Errf(types.ErrSettlementRejected, "insufficient funds")},
	}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-rejected", future())

	res, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, types.ErrSettlementRejected, res.Reason)
	assert.Equal(t, types.TxStatusNotFound, res.Status)
	assert.Equal(t, int64(1), provider.submits.Load(), "rejection must not be retried")
}

func TestSettleAlreadyKnownConfirms(t *testing.T) {
	provider := &fakeProvider{
		submitErrs: []error{errors.New("transaction already known")},
		statuses:   []types.TxStatus{types.TxStatusSuccess},
	}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-known", future())

	res, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.True(t, res.Success)
	// The hash is computed locally from the signed transaction bytes.
	wantHash, herr := payload.Transaction.Hash()
	require.NoError(t, herr)
	assert.Equal(t, wantHash, res.TxHash)
	assert.Equal(t, int64(1), provider.submits.Load())
}

func TestSettleFailedTransaction(t *testing.T) {
	provider := &fakeProvider{statuses: []types.TxStatus{types.TxStatusFailed}}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-failed", future())

	res, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, types.ErrSettlementRejected, res.Reason)
	assert.Equal(t, types.TxStatusFailed, res.Status)
}

func TestSettlePendingPastWindowRejected(t *testing.T) {
	provider := &fakeProvider{} // always pending
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-stale", time.Now().Unix()-1)

	res, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, types.ErrSettlementRejected, res.Reason)
}

func TestSettleTimesOutWhilePending(t *testing.T) {
	provider := &fakeProvider{} // always pending
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-timeout", future())

	res, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, types.ErrSettlementTimeout, res.Reason)
}

func TestSettleHonorsContextCancellation(t *testing.T) {
	provider := &fakeProvider{} // always pending
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-cancel", future())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Settle(ctx, payload, req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, types.ErrSettlementTimeout, res.Reason)
}

func TestSettleIdempotencyCoversFailures(t *testing.T) {
	provider := &fakeProvider{
		submitErrs: []error{types.Errf(types.ErrSettlementRejected, "invalid signature")},
	}
	e := New(testConfig(), provider, nil, nil, nil)
	payload, req := handshake("nonce-failed-cache", future())

	first, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)
	second, err := e.Settle(context.Background(), payload, req)
	require.NoError(t, err)

	assert.False(t, first.Success)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), provider.submits.Load())
}
