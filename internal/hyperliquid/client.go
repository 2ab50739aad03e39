package hyperliquid

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	MainnetWSURL = "wss://api.hyperliquid.xyz/ws"
	TestnetWSURL = "wss://api.hyperliquid-testnet.xyz/ws"
)

// APIError is a non-2xx response from the Hyperliquid API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hyperliquid API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Client talks to the Hyperliquid /info and /exchange endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	signer     *Signer
	limiter    *rate.Limiter
	pipeline   failsafe.Executor[*http.Response]
	dryRun     bool
}

type ClientOption func(*Client)

// WithSigner enables the /exchange endpoint. Without it the client is
// read-only.
func WithSigner(signer *Signer) ClientOption {
	return func(c *Client) { c.signer = signer }
}

// WithDryRun makes order placement return synthetic accepted results without
// touching the exchange endpoint.
func WithDryRun() ClientOption {
	return func(c *Client) { c.dryRun = true }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func NewClient(useTestnet bool, opts ...ClientOption) *Client {
	baseURL := MainnetAPIURL
	if useTestnet {
		baseURL = TestnetAPIURL
	}

	retryPolicy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			// Release the failed attempt's connection.
			if resp := e.LastResult(); resp != nil {
				resp.Body.Close()
			}
		}).
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		pipeline:   failsafe.With[*http.Response](retryPolicy, breaker),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Meta fetches the perpetual universe.
func (c *Client) Meta(ctx context.Context) (*Meta, error) {
	body, err := c.post(ctx, "/info", map[string]any{"type": "meta"})
	if err != nil {
		return nil, fmt.Errorf("meta request failed: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse meta response: %w", err)
	}
	return &meta, nil
}

// SpotMeta fetches the spot universe.
func (c *Client) SpotMeta(ctx context.Context) (*SpotMeta, error) {
	body, err := c.post(ctx, "/info", map[string]any{"type": "spotMeta"})
	if err != nil {
		return nil, fmt.Errorf("spotMeta request failed: %w", err)
	}

	var meta SpotMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse spotMeta response: %w", err)
	}
	return &meta, nil
}

// MetaAndAssetCtxs fetches the perp universe together with the per-asset
// funding/price contexts. The response is a two-element array: [meta, ctxs].
func (c *Client) MetaAndAssetCtxs(ctx context.Context) (*Meta, []AssetCtx, error) {
	body, err := c.post(ctx, "/info", map[string]any{"type": "metaAndAssetCtxs"})
	if err != nil {
		return nil, nil, fmt.Errorf("metaAndAssetCtxs request failed: %w", err)
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, nil, fmt.Errorf("failed to parse metaAndAssetCtxs response: %w", err)
	}
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("unexpected metaAndAssetCtxs shape: %d elements", len(parts))
	}

	var meta Meta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("failed to parse universe: %w", err)
	}

	var ctxs []AssetCtx
	if err := json.Unmarshal(parts[1], &ctxs); err != nil {
		return nil, nil, fmt.Errorf("failed to parse asset contexts: %w", err)
	}

	return &meta, ctxs, nil
}

// PlaceOrder submits one signed limit order and parses its status.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if req.Cloid == "" {
		req.Cloid = NewCloid()
	}

	if c.dryRun {
		log.Info().
			Int("asset", req.AssetID).
			Bool("buy", req.IsBuy).
			Str("price", req.Price).
			Str("size", req.Size).
			Str("cloid", req.Cloid).
			Msg("dry run: order not sent")
		return &OrderResult{OrderID: time.Now().UnixMilli(), Cloid: req.Cloid, Filled: true, FilledSize: req.Size, AvgPrice: req.Price}, nil
	}

	if c.signer == nil {
		return nil, fmt.Errorf("client has no signer, cannot place orders")
	}

	action := orderAction{
		Type: "order",
		Orders: []wireOrder{{
			Asset:      req.AssetID,
			IsBuy:      req.IsBuy,
			Price:      req.Price,
			Size:       req.Size,
			ReduceOnly: req.ReduceOnly,
			Type:       wireOrderType{Limit: wireLimit{Tif: req.Tif}},
			Cloid:      req.Cloid,
		}},
		Grouping: "na",
	}

	statuses, err := c.submitAction(ctx, action)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("no order status in exchange response")
	}

	status := statuses[0]
	switch {
	case status.Error != "":
		return nil, fmt.Errorf("order rejected: %s", status.Error)
	case status.Filled != nil:
		return &OrderResult{
			OrderID:    status.Filled.Oid,
			Cloid:      req.Cloid,
			Filled:     true,
			FilledSize: status.Filled.TotalSz,
			AvgPrice:   status.Filled.AvgPx,
		}, nil
	case status.Resting != nil:
		return &OrderResult{OrderID: status.Resting.Oid, Cloid: req.Cloid}, nil
	default:
		return nil, fmt.Errorf("unrecognized order status in exchange response")
	}
}

// CancelOrder cancels a resting order by client order id.
func (c *Client) CancelOrder(ctx context.Context, assetID int, cloid string) error {
	if c.dryRun {
		log.Info().Int("asset", assetID).Str("cloid", cloid).Msg("dry run: cancel not sent")
		return nil
	}

	if c.signer == nil {
		return fmt.Errorf("client has no signer, cannot cancel orders")
	}

	action := cancelAction{
		Type:    "cancelByCloid",
		Cancels: []wireCancel{{Asset: assetID, Cloid: cloid}},
	}

	_, err := c.submitAction(ctx, action)
	return err
}

func (c *Client) submitAction(ctx context.Context, action any) ([]orderStatus, error) {
	actionBytes, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action: %w", err)
	}

	nonce := time.Now().UnixMilli()
	signature, err := c.signer.SignAction(actionBytes, nonce)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "/exchange", exchangeEnvelope{
		Action:    json.RawMessage(actionBytes),
		Nonce:     nonce,
		Signature: signature,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange request failed: %w", err)
	}

	var parsed exchangeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse exchange response: %w", err)
	}
	if parsed.Status != "ok" {
		return nil, fmt.Errorf("exchange returned status %q: %s", parsed.Status, string(body))
	}

	return parsed.Response.Data.Statuses, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	resp, err := c.pipeline.GetWithExecution(func(exec failsafe.Execution[*http.Response]) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// NewCloid returns a fresh 0x-prefixed 16-byte client order id.
func NewCloid() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(id[:])
}
