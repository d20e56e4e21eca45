package http_client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TradingPlatform/internal/config"
	"TradingPlatform/internal/domain/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "test-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string) *BinanceHTTPClient {
	t.Helper()
	c := New(config.BinanceConfig{
		BaseURL:        baseURL,
		RecvWindowMs:   5000,
		TimeoutSeconds: 5,
	}, discardLogger())
	// Pin the clock one second after the expected request timestamp so the
	// skew margin lands on a known value.
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestSign(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		secret string
		want   string
	}{
		{
			name:   "limit order query",
			query:  "price=50000&quantity=0.01&recvWindow=5000&side=BUY&symbol=BTCUSDT&timeInForce=GTC&timestamp=1699999999000&type=LIMIT",
			secret: testSecretKey,
			want:   "e7a9132f2c4745f74cb21834abf82013f6b083a6893d077caf4ad281881142e7",
		},
		{
			name:   "account query",
			query:  "recvWindow=5000&timestamp=1699999999000",
			secret: testSecretKey,
			want:   "7b5a702bd892eb5db6fae627b3fb3d34bdad2cbdfda6b0cb65a6cf7d2c55319a",
		},
		{
			// Published example from the exchange API documentation.
			name:   "documentation example",
			query:  "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559",
			secret: "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j",
			want:   "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sign(tt.query, tt.secret))
		})
	}
}

func TestSubmitOrder_LimitFilled(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAPIKey string
		gotQuery  string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-MBX-APIKEY")
		gotQuery = r.URL.RawQuery

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"symbol": "BTCUSDT",
			"status": "FILLED",
			"price": "0.00000000",
			"executedQty": "0.01000000",
			"fills": [{"price": "50000.00000000", "qty": "0.01000000"}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	price := decimal.NewFromInt(50000)
	cmd := models.OrderCommand{
		OrderId:  uuid.New(),
		UserId:   "user-1",
		Symbol:   "BTCUSDT",
		Side:     models.Buy,
		Type:     models.Limit,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    &price,
	}

	ack, err := c.SubmitOrder(context.Background(), Credentials{APIKey: "test-api-key", SecretKey: testSecretKey}, cmd)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/v3/order", gotPath)
	assert.Equal(t, "test-api-key", gotAPIKey)

	base, signature, found := strings.Cut(gotQuery, "&signature=")
	require.True(t, found, "query must carry a signature parameter: %s", gotQuery)
	assert.Equal(t,
		"price=50000&quantity=0.01&recvWindow=5000&side=BUY&symbol=BTCUSDT&timeInForce=GTC&timestamp=1699999999000&type=LIMIT",
		base)
	assert.Equal(t, Sign(base, testSecretKey), signature)

	assert.Equal(t, AckFilled, ack.Kind)
	assert.Equal(t, "FILLED", ack.RawStatus)
	assert.True(t, ack.Price.IsZero())
	assert.True(t, ack.ExecutedQty.Equal(decimal.RequireFromString("0.01")))
	require.Len(t, ack.Fills, 1)
	assert.True(t, ack.Fills[0].Price.Equal(decimal.NewFromInt(50000)))
}

func TestSubmitOrder_MarketOmitsPrice(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"status": "FILLED", "executedQty": "1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	cmd := models.OrderCommand{
		OrderId:  uuid.New(),
		Symbol:   "ETHUSDT",
		Side:     models.Sell,
		Type:     models.Market,
		Quantity: decimal.NewFromInt(1),
	}

	_, err := c.SubmitOrder(context.Background(), Credentials{SecretKey: testSecretKey}, cmd)
	require.NoError(t, err)

	assert.NotContains(t, gotQuery, "price=")
	assert.NotContains(t, gotQuery, "timeInForce=")
}

func TestSubmitOrder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": -1013, "msg": "Filter failure: LOT_SIZE"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	cmd := models.OrderCommand{
		OrderId:  uuid.New(),
		Symbol:   "BTCUSDT",
		Side:     models.Buy,
		Type:     models.Market,
		Quantity: decimal.NewFromInt(1),
	}

	_, err := c.SubmitOrder(context.Background(), Credentials{SecretKey: testSecretKey}, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

func TestOrderResponseValidate(t *testing.T) {
	t.Run("status classification", func(t *testing.T) {
		tests := []struct {
			status string
			want   AckKind
		}{
			{"FILLED", AckFilled},
			{"PARTIALLY_FILLED", AckPartiallyFilled},
			{"REJECTED", AckRejected},
			{"CANCELED", AckRejected},
			{"NEW", AckUnknown},
			{"", AckUnknown},
		}
		for _, tt := range tests {
			ack, err := orderResponse{Status: tt.status}.validate()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ack.Kind, "status %q", tt.status)
		}
	})

	t.Run("empty decimals default to zero", func(t *testing.T) {
		ack, err := orderResponse{Status: "FILLED"}.validate()
		require.NoError(t, err)
		assert.True(t, ack.Price.IsZero())
		assert.True(t, ack.ExecutedQty.IsZero())
	})

	t.Run("malformed decimal is rejected", func(t *testing.T) {
		_, err := orderResponse{Status: "FILLED", Price: "not-a-number"}.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "price")
	})
}

func TestGetAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v3/account", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-MBX-APIKEY"))
		assert.Equal(t, "1699999999000", r.URL.Query().Get("timestamp"))
		assert.NotEmpty(t, r.URL.Query().Get("signature"))

		w.Write([]byte(`{
			"canTrade": true,
			"balances": [
				{"asset": "BTC", "free": "0.50000000", "locked": "0.00000000"},
				{"asset": "USDT", "free": "1000.00000000", "locked": "250.00000000"}
			]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	info, err := c.GetAccount(context.Background(), Credentials{APIKey: "test-api-key", SecretKey: testSecretKey})
	require.NoError(t, err)

	assert.True(t, info.CanTrade)
	require.Len(t, info.Balances, 2)
	assert.Equal(t, "BTC", info.Balances[0].Asset)
	assert.True(t, info.Balances[0].Free.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, info.Balances[1].Locked.Equal(decimal.NewFromInt(250)))
}
