package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vitwit/x402-mvx/types"
)

// ProxyClient implements NetworkProvider against the MultiversX gateway
// REST API (the "proxy"). All requests honor the caller's context and a
// per-request timeout.
type ProxyClient struct {
	baseURL string
	http    *http.Client
}

// NewProxyClient builds a provider for the given gateway URL.
func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ProxyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// proxyEnvelope is the common response wrapper of the gateway API.
type proxyEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

func (c *ProxyClient) GetAccountSequence(ctx context.Context, address string) (uint64, error) {
	var out struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := c.get(ctx, fmt.Sprintf("/address/%s/nonce", address), &out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

func (c *ProxyClient) SubmitTransaction(ctx context.Context, tx *types.Transaction) (string, error) {
	var out struct {
		TxHash string `json:"txHash"`
	}
	if err := c.post(ctx, "/transaction/send", tx, &out); err != nil {
		return "", err
	}
	return out.TxHash, nil
}

func (c *ProxyClient) GetTransactionStatus(ctx context.Context, txHash string) (types.TxStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.get(ctx, fmt.Sprintf("/transaction/%s/status", txHash), &out)
	if err != nil {
		var terr *types.Error
		if errors.As(err, &terr) && terr.Code == types.ErrSettlementRejected &&
			strings.Contains(strings.ToLower(terr.Message), "not found") {
			return types.TxStatusNotFound, nil
		}
		return "", err
	}

	switch strings.ToLower(out.Status) {
	case "pending", "received", "partially-executed":
		return types.TxStatusPending, nil
	case "success", "executed":
		return types.TxStatusSuccess, nil
	case "fail", "failed", "invalid":
		return types.TxStatusFailed, nil
	default:
		return types.TxStatusNotFound, nil
	}
}

func (c *ProxyClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return types.Errf(types.ErrTransientNetworkError, "building request: %v", err)
	}
	return c.do(req, out)
}

func (c *ProxyClient) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return types.Errf(types.ErrSettlementRejected, "encoding request body: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return types.Errf(types.ErrTransientNetworkError, "building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *ProxyClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return types.Errf(types.ErrTransientNetworkError, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.Errf(types.ErrTransientNetworkError, "reading response: %v", err)
	}

	if resp.StatusCode >= 500 {
		return types.Errf(types.ErrTransientNetworkError, "%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	var env proxyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return types.Errf(types.ErrTransientNetworkError, "decoding response: %v", err)
	}
	if resp.StatusCode >= 400 || (env.Code != "" && env.Code != "successful") {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return types.Errf(types.ErrSettlementRejected, "%s %s: %s", req.Method, req.URL.Path, msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return types.Errf(types.ErrTransientNetworkError, "decoding response data: %v", err)
		}
	}
	return nil
}
