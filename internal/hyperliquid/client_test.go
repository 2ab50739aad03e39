package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append(opts, WithBaseURL(server.URL))
	return NewClient(false, opts...)
}

func infoHandler(t *testing.T, responses map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)

		var payload struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		body, ok := responses[payload.Type]
		require.True(t, ok, "unexpected info request type %q", payload.Type)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func TestMeta(t *testing.T) {
	client := newTestClient(t, infoHandler(t, map[string]string{
		"meta": `{"universe":[{"name":"BTC","szDecimals":5,"maxLeverage":50},{"name":"ETH","szDecimals":4}]}`,
	}))

	meta, err := client.Meta(context.Background())
	require.NoError(t, err)
	require.Len(t, meta.Universe, 2)
	assert.Equal(t, "BTC", meta.Universe[0].Name)
	assert.Equal(t, 5, meta.Universe[0].SizeDecimals)
}

func TestSpotMeta(t *testing.T) {
	client := newTestClient(t, infoHandler(t, map[string]string{
		"spotMeta": `{"universe":[{"name":"PURR/USDC","index":0},{"name":"BTC/USDC","index":3}]}`,
	}))

	meta, err := client.SpotMeta(context.Background())
	require.NoError(t, err)
	require.Len(t, meta.Universe, 2)
	assert.Equal(t, "BTC/USDC", meta.Universe[1].Name)
	assert.Equal(t, 3, meta.Universe[1].Index)
}

func TestMetaAndAssetCtxs(t *testing.T) {
	client := newTestClient(t, infoHandler(t, map[string]string{
		"metaAndAssetCtxs": `[{"universe":[{"name":"BTC","szDecimals":5}]},[{"funding":"0.0000125","markPx":"50000.0","midPx":"50001.5","openInterest":"123.4"}]]`,
	}))

	meta, ctxs, err := client.MetaAndAssetCtxs(context.Background())
	require.NoError(t, err)
	require.Len(t, meta.Universe, 1)
	require.Len(t, ctxs, 1)
	assert.Equal(t, "0.0000125", ctxs[0].Funding)
	assert.Equal(t, "50000.0", ctxs[0].MarkPx)
}

func TestMetaAndAssetCtxsRejectsBadShape(t *testing.T) {
	client := newTestClient(t, infoHandler(t, map[string]string{
		"metaAndAssetCtxs": `[{"universe":[]}]`,
	}))

	_, _, err := client.MetaAndAssetCtxs(context.Background())
	assert.ErrorContains(t, err, "unexpected metaAndAssetCtxs shape")
}

func TestPostRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, "temporarily unavailable")
			return
		}
		io.WriteString(w, `{"universe":[{"name":"BTC","szDecimals":5}]}`)
	})

	meta, err := client.Meta(context.Background())
	require.NoError(t, err)
	require.Len(t, meta.Universe, 1)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestPostReturnsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, "bad payload")
	})

	_, err := client.Meta(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, string(apiErr.Body), "bad payload")
}

func TestPlaceOrderSignsAndParsesResting(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	require.NoError(t, err)

	var envelope struct {
		Action struct {
			Type     string `json:"type"`
			Grouping string `json:"grouping"`
			Orders   []struct {
				Asset int    `json:"a"`
				IsBuy bool   `json:"b"`
				Price string `json:"p"`
				Size  string `json:"s"`
				Cloid string `json:"c"`
			} `json:"orders"`
		} `json:"action"`
		Nonce     int64      `json:"nonce"`
		Signature *Signature `json:"signature"`
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		io.WriteString(w, `{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":7742}}]}}}`)
	}, WithSigner(signer))

	result, err := client.PlaceOrder(context.Background(), OrderRequest{
		AssetID: 3,
		IsBuy:   true,
		Price:   "50050",
		Size:    "0.02",
		Tif:     TifGtc,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7742), result.OrderID)
	assert.False(t, result.Filled)
	assert.NotEmpty(t, result.Cloid)

	require.Len(t, envelope.Action.Orders, 1)
	assert.Equal(t, "order", envelope.Action.Type)
	assert.Equal(t, "na", envelope.Action.Grouping)
	assert.Equal(t, 3, envelope.Action.Orders[0].Asset)
	assert.Equal(t, "50050", envelope.Action.Orders[0].Price)
	assert.True(t, strings.HasPrefix(envelope.Action.Orders[0].Cloid, "0x"))
	assert.NotZero(t, envelope.Nonce)
	require.NotNil(t, envelope.Signature)
	assert.Len(t, envelope.Signature.R, 66)
}

func TestPlaceOrderParsesFilled(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	require.NoError(t, err)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"oid":901,"totalSz":"0.02","avgPx":"50012.5"}}]}}}`)
	}, WithSigner(signer))

	result, err := client.PlaceOrder(context.Background(), OrderRequest{AssetID: 0, IsBuy: false, Price: "49950", Size: "0.02", Tif: TifGtc})
	require.NoError(t, err)
	assert.True(t, result.Filled)
	assert.Equal(t, "0.02", result.FilledSize)
	assert.Equal(t, "50012.5", result.AvgPrice)
}

func TestPlaceOrderSurfacesRejection(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	require.NoError(t, err)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin"}]}}}`)
	}, WithSigner(signer))

	_, err = client.PlaceOrder(context.Background(), OrderRequest{AssetID: 0, IsBuy: true, Price: "1", Size: "1", Tif: TifGtc})
	assert.ErrorContains(t, err, "Insufficient margin")
}

func TestPlaceOrderRequiresSigner(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("read-only client must not reach the exchange endpoint")
	})

	_, err := client.PlaceOrder(context.Background(), OrderRequest{AssetID: 0, IsBuy: true, Price: "1", Size: "1", Tif: TifGtc})
	assert.ErrorContains(t, err, "no signer")
}

func TestDryRunNeverCallsExchange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("dry run must not reach the exchange endpoint")
	}, WithDryRun())

	result, err := client.PlaceOrder(context.Background(), OrderRequest{AssetID: 3, IsBuy: true, Price: "50050", Size: "0.02", Tif: TifGtc})
	require.NoError(t, err)
	assert.True(t, result.Filled)
	assert.Equal(t, "0.02", result.FilledSize)

	require.NoError(t, client.CancelOrder(context.Background(), 3, result.Cloid))
}

func TestCancelOrder(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	require.NoError(t, err)

	var action map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var envelope map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		require.NoError(t, json.Unmarshal(envelope["action"], &action))
		io.WriteString(w, `{"status":"ok","response":{"type":"cancel","data":{"statuses":[]}}}`)
	}, WithSigner(signer))

	require.NoError(t, client.CancelOrder(context.Background(), 3, "0xabc"))
	assert.Equal(t, "cancelByCloid", action["type"])
}

func TestNewCloidFormat(t *testing.T) {
	cloid := NewCloid()
	assert.Len(t, cloid, 34)
	assert.True(t, strings.HasPrefix(cloid, "0x"))
	assert.NotEqual(t, cloid, NewCloid())
}
