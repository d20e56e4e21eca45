package http_client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"TradingPlatform/internal/config"
	"TradingPlatform/internal/domain/models"

	"github.com/shopspring/decimal"
)

// clockSkewMargin is subtracted from the request timestamp so a locally
// fast clock never lands ahead of the exchange.
const clockSkewMargin = time.Second

// Credentials are decrypted exchange API credentials.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// AckKind tags the validated shape of an exchange order response.
type AckKind int

const (
	AckFilled AckKind = iota
	AckPartiallyFilled
	AckRejected
	AckUnknown
)

type Fill struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderAck is an exchange order response validated at the boundary:
// decimals parsed, status classified, fill line items typed.
type OrderAck struct {
	Kind        AckKind
	RawStatus   string
	Price       decimal.Decimal
	ExecutedQty decimal.Decimal
	Fills       []Fill
}

type AssetBalance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

type AccountInfo struct {
	CanTrade bool
	Balances []AssetBalance
}

type BinanceHTTPClient struct {
	baseURL    string
	recvWindow int64
	log        *slog.Logger
	client     *http.Client
	now        func() time.Time
}

func New(cfg config.BinanceConfig, log *slog.Logger) *BinanceHTTPClient {
	return &BinanceHTTPClient{
		baseURL:    cfg.BaseURL,
		recvWindow: cfg.RecvWindowMs,
		log:        log,
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		now:        time.Now,
	}
}

// Sign computes the hex HMAC-SHA256 signature over a canonical query string.
func Sign(queryString, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedQuery canonicalizes params into a sorted query string, stamps it
// with timestamp and recvWindow, and appends the signature parameter.
func (c *BinanceHTTPClient) signedQuery(params url.Values, secretKey string) string {
	timestamp := c.now().Add(-clockSkewMargin).UnixMilli()
	params.Set("timestamp", strconv.FormatInt(timestamp, 10))
	params.Set("recvWindow", strconv.FormatInt(c.recvWindow, 10))

	queryString := params.Encode()
	return queryString + "&signature=" + Sign(queryString, secretKey)
}

// SubmitOrder places the order on the exchange and returns the validated
// acknowledgement.
func (c *BinanceHTTPClient) SubmitOrder(ctx context.Context, creds Credentials, cmd models.OrderCommand) (OrderAck, error) {
	const op = "http_client.SubmitOrder"
	log := c.log.With("op", op, "order_id", cmd.OrderId)

	params := url.Values{}
	params.Set("symbol", cmd.Symbol)
	params.Set("side", string(cmd.Side))
	params.Set("type", string(cmd.Type))
	params.Set("quantity", cmd.Quantity.String())
	if cmd.Type == models.Limit && cmd.Price != nil {
		params.Set("price", cmd.Price.String())
		params.Set("timeInForce", "GTC")
	}

	reqUrl := c.baseURL + "/api/v3/order?" + c.signedQuery(params, creds.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqUrl, nil)
	if err != nil {
		log.Error("failed to create request", "error", err)
		return OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("X-MBX-APIKEY", creds.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("failed to make request", "error", err)
		return OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("unexpected status code", "status", resp.StatusCode, "response", string(body))
		return OrderAck{}, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var raw orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.Error("failed to decode response", "error", err)
		return OrderAck{}, fmt.Errorf("%s: decode response: %w", op, err)
	}

	ack, err := raw.validate()
	if err != nil {
		log.Error("invalid exchange response", "error", err)
		return OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}
	return ack, nil
}

// GetAccount fetches the signed account snapshot.
func (c *BinanceHTTPClient) GetAccount(ctx context.Context, creds Credentials) (AccountInfo, error) {
	const op = "http_client.GetAccount"
	log := c.log.With("op", op)

	reqUrl := c.baseURL + "/api/v3/account?" + c.signedQuery(url.Values{}, creds.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		log.Error("failed to create request", "error", err)
		return AccountInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("X-MBX-APIKEY", creds.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("failed to make request", "error", err)
		return AccountInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("unexpected status code", "status", resp.StatusCode, "response", string(body))
		return AccountInfo{}, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var raw accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.Error("failed to decode response", "error", err)
		return AccountInfo{}, fmt.Errorf("%s: decode response: %w", op, err)
	}

	return raw.validate()
}

type orderResponse struct {
	Status      string `json:"status"`
	Price       string `json:"price"`
	ExecutedQty string `json:"executedQty"`
	Fills       []struct {
		Price string `json:"price"`
		Qty   string `json:"qty"`
	} `json:"fills"`
}

func (r orderResponse) validate() (OrderAck, error) {
	ack := OrderAck{RawStatus: r.Status}

	switch r.Status {
	case "FILLED":
		ack.Kind = AckFilled
	case "PARTIALLY_FILLED":
		ack.Kind = AckPartiallyFilled
	case "REJECTED", "CANCELED":
		ack.Kind = AckRejected
	default:
		ack.Kind = AckUnknown
	}

	var err error
	if ack.Price, err = parseDecimal(r.Price); err != nil {
		return OrderAck{}, fmt.Errorf("price: %w", err)
	}
	if ack.ExecutedQty, err = parseDecimal(r.ExecutedQty); err != nil {
		return OrderAck{}, fmt.Errorf("executedQty: %w", err)
	}
	for i, f := range r.Fills {
		fill := Fill{}
		if fill.Price, err = parseDecimal(f.Price); err != nil {
			return OrderAck{}, fmt.Errorf("fills[%d].price: %w", i, err)
		}
		if fill.Quantity, err = parseDecimal(f.Qty); err != nil {
			return OrderAck{}, fmt.Errorf("fills[%d].qty: %w", i, err)
		}
		ack.Fills = append(ack.Fills, fill)
	}

	return ack, nil
}

type accountResponse struct {
	CanTrade bool `json:"canTrade"`
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func (r accountResponse) validate() (AccountInfo, error) {
	info := AccountInfo{CanTrade: r.CanTrade}
	for i, b := range r.Balances {
		bal := AssetBalance{Asset: b.Asset}
		var err error
		if bal.Free, err = parseDecimal(b.Free); err != nil {
			return AccountInfo{}, fmt.Errorf("balances[%d].free: %w", i, err)
		}
		if bal.Locked, err = parseDecimal(b.Locked); err != nil {
			return AccountInfo{}, fmt.Errorf("balances[%d].locked: %w", i, err)
		}
		info.Balances = append(info.Balances, bal)
	}
	return info, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
