package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"TradingPlatform/internal/domain/models"
	"TradingPlatform/internal/domain/models/transport"
	"TradingPlatform/internal/http_client"
	"TradingPlatform/internal/services/intake"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIntake struct {
	submitted models.OrderCommand
	submitErr error
	cancelErr error
}

func (s *stubIntake) Submit(_ context.Context, userId string, draft models.OrderDraft) (models.OrderCommand, error) {
	if s.submitErr != nil {
		return models.OrderCommand{}, s.submitErr
	}
	s.submitted = models.OrderCommand{
		OrderId:  uuid.New(),
		UserId:   userId,
		Symbol:   draft.Symbol,
		Side:     draft.Side,
		Type:     draft.Type,
		Quantity: draft.Quantity,
		Price:    draft.Price,
		Status:   models.Pending,
	}
	return s.submitted, nil
}

func (s *stubIntake) Cancel(_ context.Context, _ uuid.UUID, _ string) error {
	return s.cancelErr
}

type stubOrders struct {
	orders []models.OrderCommand
}

func (s *stubOrders) ListUserOrders(_ context.Context, _ string) ([]models.OrderCommand, error) {
	return s.orders, nil
}

type stubPositions struct {
	positions []models.Position
	err       error
}

func (s *stubPositions) Positions(_ context.Context, _ string) ([]models.Position, error) {
	return s.positions, s.err
}

type stubAccount struct {
	info http_client.AccountInfo
	err  error
}

func (s *stubAccount) Balance(_ context.Context, _ string) (http_client.AccountInfo, error) {
	return s.info, s.err
}

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if token != "valid-token" {
		return "", errors.New("invalid token")
	}
	return "user-1", nil
}

type deps struct {
	intake    *stubIntake
	orders    *stubOrders
	positions *stubPositions
	account   *stubAccount
}

func newTestHandler(t *testing.T) (*deps, http.Handler) {
	t.Helper()
	d := &deps{
		intake:    &stubIntake{},
		orders:    &stubOrders{},
		positions: &stubPositions{},
		account:   &stubAccount{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewTradeHandler(log, d.intake, d.orders, d.positions, d.account, stubVerifier{}, validator.New())
	return d, h.Routes()
}

func doRequest(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuth_MissingToken(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/trade/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Authentication required", resp.Error)
}

func TestAuth_InvalidToken(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodGet, "/api/trade/orders", "bad-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostSubmitOrder(t *testing.T) {
	d, router := newTestHandler(t)

	body := `{"symbol":"BTCUSDT","side":"BUY","type":"LIMIT","quantity":"0.01","price":"50000"}`
	rec := doRequest(t, router, http.MethodPost, "/api/trade/orders", "valid-token", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp transport.SubmitOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, d.intake.submitted.OrderId, resp.OrderId)
	assert.Equal(t, models.Pending, resp.Status)
	assert.Equal(t, "user-1", d.intake.submitted.UserId)
}

func TestPostSubmitOrder_MalformedBody(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodPost, "/api/trade/orders", "valid-token", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostSubmitOrder_RejectedByValidator(t *testing.T) {
	_, router := newTestHandler(t)

	body := `{"symbol":"BTCUSDT","side":"HOLD","type":"LIMIT","quantity":"0.01","price":"50000"}`
	rec := doRequest(t, router, http.MethodPost, "/api/trade/orders", "valid-token", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostSubmitOrder_RejectedByIntake(t *testing.T) {
	d, router := newTestHandler(t)
	d.intake.submitErr = intake.ErrPriceRequired

	body := `{"symbol":"BTCUSDT","side":"BUY","type":"LIMIT","quantity":"0.01"}`
	rec := doRequest(t, router, http.MethodPost, "/api/trade/orders", "valid-token", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp transport.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, intake.ErrPriceRequired.Error(), resp.Error)
}

func TestPostSubmitOrder_InternalError(t *testing.T) {
	d, router := newTestHandler(t)
	d.intake.submitErr = errors.New("bus unavailable")

	body := `{"symbol":"BTCUSDT","side":"BUY","type":"MARKET","quantity":"1"}`
	rec := doRequest(t, router, http.MethodPost, "/api/trade/orders", "valid-token", body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDeleteOrder(t *testing.T) {
	_, router := newTestHandler(t)

	orderId := uuid.New()
	rec := doRequest(t, router, http.MethodDelete, "/api/trade/orders/"+orderId.String(), "valid-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transport.CancelOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orderId, resp.OrderId)
}

func TestDeleteOrder_InvalidId(t *testing.T) {
	_, router := newTestHandler(t)

	rec := doRequest(t, router, http.MethodDelete, "/api/trade/orders/not-a-uuid", "valid-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOrder_NotFound(t *testing.T) {
	d, router := newTestHandler(t)
	d.intake.cancelErr = intake.ErrOrderNotFound

	rec := doRequest(t, router, http.MethodDelete, "/api/trade/orders/"+uuid.NewString(), "valid-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOrder_NotCancellable(t *testing.T) {
	d, router := newTestHandler(t)
	d.intake.cancelErr = intake.ErrOrderNotCancellable

	rec := doRequest(t, router, http.MethodDelete, "/api/trade/orders/"+uuid.NewString(), "valid-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrders(t *testing.T) {
	d, router := newTestHandler(t)
	price := decimal.NewFromInt(50000)
	d.orders.orders = []models.OrderCommand{{
		OrderId:  uuid.New(),
		UserId:   "user-1",
		Symbol:   "BTCUSDT",
		Side:     models.Buy,
		Type:     models.Limit,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    &price,
		Status:   models.Filled,
	}}

	rec := doRequest(t, router, http.MethodGet, "/api/trade/orders", "valid-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []transport.OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "BTCUSDT", views[0].Symbol)
	assert.Equal(t, models.Filled, views[0].Status)
}

func TestGetPositions(t *testing.T) {
	d, router := newTestHandler(t)
	d.positions.positions = []models.Position{{
		Symbol:     "BTCUSDT",
		Side:       models.Buy,
		Quantity:   decimal.RequireFromString("0.01"),
		EntryPrice: decimal.NewFromInt(50000),
		TotalCost:  decimal.NewFromInt(500),
	}}

	rec := doRequest(t, router, http.MethodGet, "/api/trade/positions", "valid-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var positions []models.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "BTCUSDT", positions[0].Symbol)
}

func TestGetBalance(t *testing.T) {
	d, router := newTestHandler(t)
	d.account.info = http_client.AccountInfo{
		CanTrade: true,
		Balances: []http_client.AssetBalance{{
			Asset:  "USDT",
			Free:   decimal.NewFromInt(1000),
			Locked: decimal.NewFromInt(250),
		}},
	}

	rec := doRequest(t, router, http.MethodGet, "/api/trade/balance", "valid-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transport.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.CanTrade)
	require.Len(t, resp.Balances, 1)
	assert.True(t, resp.Balances[0].Total.Equal(decimal.NewFromInt(1250)))
}
