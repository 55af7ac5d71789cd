// Package rest implements exchange.Account over a retrying, rate-
// limited REST client.
package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/logger"
	"github.com/evdnx/brooksfutures/types"
)

// RequestsPerSecond bounds outbound REST calls to a conservative
// per-account ceiling, well under the exchange's own per-minute cap.
const RequestsPerSecond = 8

// Client is one exchange account's authenticated REST surface.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	secret     string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
}

// NewClient returns an authenticated account client. name identifies
// the user for logs and metrics.
func NewClient(name, baseURL, apiKey, secret string, log logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 5
	rc.Logger = nil // structured logging happens at the call sites below

	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		secret:     secret,
		httpClient: rc,
		limiter:    rate.NewLimiter(rate.Limit(RequestsPerSecond), RequestsPerSecond),
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) sign(params url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(params.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params))

	full := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := retryablehttp.NewRequestWithContext(ctx, method, full, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.httpClient.Do(req)
}

func decode(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("exchange error %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, v)
}

type orderResponse struct {
	OrderID  int64  `json:"orderId"`
	Status   string `json:"status"`
	AvgPrice string `json:"avgPrice"`
	Price    string `json:"price"`
	OrigQty  string `json:"origQty"`
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func (c *Client) orderParams(o types.Order) url.Values {
	p := url.Values{}
	p.Set("symbol", o.Symbol)
	p.Set("side", string(o.Side))
	p.Set("type", string(o.Type))
	p.Set("quantity", strconv.FormatFloat(o.Qty, 'f', -1, 64))
	if o.Price > 0 {
		p.Set("price", strconv.FormatFloat(o.Price, 'f', -1, 64))
	}
	if o.StopPrice > 0 {
		p.Set("stopPrice", strconv.FormatFloat(o.StopPrice, 'f', -1, 64))
	}
	if o.TimeInForce != "" {
		p.Set("timeInForce", string(o.TimeInForce))
	}
	if o.ReduceOnly {
		p.Set("reduceOnly", "true")
	}
	return p
}

func (c *Client) submitOrder(ctx context.Context, o types.Order) (types.OrderAck, error) {
	resp, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", c.orderParams(o))
	if err != nil {
		return types.OrderAck{}, err
	}
	var out orderResponse
	if err := decode(resp, &out); err != nil {
		return types.OrderAck{}, err
	}
	price := parseF(out.AvgPrice)
	if price <= 0 {
		price = parseF(out.Price)
	}
	return types.OrderAck{
		OrderID: strconv.FormatInt(out.OrderID, 10),
		Status:  types.OrderStatus(out.Status),
		Price:   price,
		Qty:     parseF(out.OrigQty),
	}, nil
}

// CreateMarketOrder submits a market entry (Spike signals, unconditional closes).
func (c *Client) CreateMarketOrder(ctx context.Context, o types.Order) (types.OrderAck, error) {
	o.Type = types.OrderMarket
	return c.submitOrder(ctx, o)
}

// CreateLimitOrder submits a GTC limit entry at the signal bar's extremum.
func (c *Client) CreateLimitOrder(ctx context.Context, o types.Order) (types.OrderAck, error) {
	o.Type = types.OrderLimit
	if o.TimeInForce == "" {
		o.TimeInForce = types.GTC
	}
	return c.submitOrder(ctx, o)
}

// CreateReduceOnlyOrder submits a reduce-only stop/TP order (o.Type must
// already be set by the caller to the desired reduce-only order type).
func (c *Client) CreateReduceOnlyOrder(ctx context.Context, o types.Order) (types.OrderAck, error) {
	o.ReduceOnly = true
	return c.submitOrder(ctx, o)
}

// OrderStatus polls one order's current fill state (used by the 60 s
// limit-entry wait loop at a 2 s poll interval).
func (c *Client) OrderStatus(ctx context.Context, symbol, orderID string) (types.OrderAck, error) {
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	resp, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v1/order", params)
	if err != nil {
		return types.OrderAck{}, err
	}
	var out orderResponse
	if err := decode(resp, &out); err != nil {
		return types.OrderAck{}, err
	}
	return types.OrderAck{
		OrderID: strconv.FormatInt(out.OrderID, 10),
		Status:  types.OrderStatus(out.Status),
		Price:   parseF(out.AvgPrice),
		Qty:     parseF(out.OrigQty),
	}, nil
}

// CancelOrder cancels a single resting order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{"symbol": {symbol}, "orderId": {orderID}}
	resp, err := c.signedRequest(ctx, http.MethodDelete, "/fapi/v1/order", params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel order failed %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// CancelAllOrders cancels every open order for a symbol (used before a
// close's market order).
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{"symbol": {symbol}}
	resp, err := c.signedRequest(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel all orders failed %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// FetchKlines retrieves closed klines starting at startMs, used by the
// bar producer to repair a gap left by a dropped websocket message.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, startMs int64, limit int) ([]exchange.KlineEvent, error) {
	params := url.Values{
		"symbol":    {symbol},
		"interval":  {interval},
		"startTime": {strconv.FormatInt(startMs, 10)},
		"limit":     {strconv.Itoa(limit)},
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	full := fmt.Sprintf("%s/fapi/v1/klines?%s", c.baseURL, params.Encode())
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch klines failed %d: %s", resp.StatusCode, string(body))
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make([]exchange.KlineEvent, 0, len(raw))
	for _, row := range raw {
		if len(row) < 5 {
			continue
		}
		openTime, _ := row[0].(float64)
		out = append(out, exchange.KlineEvent{
			OpenTimeMs: int64(openTime),
			Open:       parseAny(row[1]),
			High:       parseAny(row[2]),
			Low:        parseAny(row[3]),
			Close:      parseAny(row[4]),
			Closed:     true,
		})
	}
	return out, nil
}

func parseAny(v interface{}) float64 {
	switch t := v.(type) {
	case string:
		return parseF(t)
	case float64:
		return t
	default:
		return 0
	}
}

type balanceResponse struct {
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

// Balance returns the account's available USDT balance, used by the
// per-user position sizing step.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	resp, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/balance", nil)
	if err != nil {
		return 0, err
	}
	var out []balanceResponse
	if err := decode(resp, &out); err != nil {
		return 0, err
	}
	for _, b := range out {
		if b.Asset == "USDT" {
			return parseF(b.Balance), nil
		}
	}
	return 0, nil
}

type positionResponse struct {
	Symbol       string `json:"symbol"`
	PositionAmt  string `json:"positionAmt"`
	EntryPrice   string `json:"entryPrice"`
}

// Position returns the exchange's authoritative view of one symbol's
// position, used by the lifecycle reconciliation pass.
func (c *Client) Position(ctx context.Context, symbol string) (types.Position, error) {
	params := url.Values{"symbol": {symbol}}
	resp, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return types.Position{}, err
	}
	var out []positionResponse
	if err := decode(resp, &out); err != nil {
		return types.Position{}, err
	}
	for _, p := range out {
		if p.Symbol == symbol {
			return types.Position{
				Symbol:     symbol,
				Qty:        parseF(p.PositionAmt),
				EntryPrice: parseF(p.EntryPrice),
			}, nil
		}
	}
	return types.Position{Symbol: symbol}, nil
}
