// Package ws implements exchange.MarketStream over a combined-streams
// WebSocket endpoint (kline/aggTrade/depth), with exponential-backoff
// reconnect.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evdnx/brooksfutures/exchange"
	"github.com/evdnx/brooksfutures/logger"
)

// QueueDepth bounds each event channel to a fixed number of buffered
// messages.
const QueueDepth = 10_000

// Client is a reconnecting combined-streams WebSocket market feed.
type Client struct {
	baseURL string
	log     logger.Logger
	dialer  *websocket.Dialer
}

// NewClient returns a client pointed at baseURL (e.g.
// "wss://fstream.binance.com/stream").
func NewClient(baseURL string, log logger.Logger) *Client {
	return &Client{baseURL: baseURL, log: log, dialer: websocket.DefaultDialer}
}

type rawEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type rawKline struct {
	K struct {
		T int64  `json:"t"`
		O string `json:"o"`
		H string `json:"h"`
		L string `json:"l"`
		C string `json:"c"`
		X bool   `json:"x"`
	} `json:"k"`
}

type rawAggTrade struct {
	P string `json:"p"`
	Q string `json:"q"`
	M bool   `json:"m"`
	T int64  `json:"T"`
}

type rawDepth struct {
	Bids [][2]string `json:"b"`
	Asks [][2]string `json:"a"`
}

func parseF(s string) float64 {
	var f float64
	fmt.Sscanf(s, "%f", &f)
	return f
}

// Klines streams closed+open kline events for one symbol/interval.
func (c *Client) Klines(ctx context.Context, symbol, interval string) (<-chan exchange.KlineEvent, error) {
	out := make(chan exchange.KlineEvent, QueueDepth)
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval)
	go c.run(ctx, stream, func(data json.RawMessage) {
		var k rawKline
		if err := json.Unmarshal(data, &k); err != nil {
			return
		}
		out <- exchange.KlineEvent{
			OpenTimeMs: k.K.T,
			Open:       parseF(k.K.O),
			High:       parseF(k.K.H),
			Low:        parseF(k.K.L),
			Close:      parseF(k.K.C),
			Closed:     k.K.X,
		}
	})
	return out, nil
}

// AggTrades streams aggregate-trade prints for one symbol.
func (c *Client) AggTrades(ctx context.Context, symbol string) (<-chan exchange.AggTradeEvent, error) {
	out := make(chan exchange.AggTradeEvent, QueueDepth)
	stream := fmt.Sprintf("%s@aggTrade", strings.ToLower(symbol))
	go c.run(ctx, stream, func(data json.RawMessage) {
		var t rawAggTrade
		if err := json.Unmarshal(data, &t); err != nil {
			return
		}
		out <- exchange.AggTradeEvent{
			Price:        parseF(t.P),
			Qty:          parseF(t.Q),
			BuyerIsMaker: t.M,
			TradeTimeMs:  t.T,
		}
	})
	return out, nil
}

// Depth streams order-book depth snapshots for one symbol.
func (c *Client) Depth(ctx context.Context, symbol string) (<-chan exchange.DepthEvent, error) {
	out := make(chan exchange.DepthEvent, QueueDepth)
	stream := fmt.Sprintf("%s@depth20@100ms", strings.ToLower(symbol))
	go c.run(ctx, stream, func(data json.RawMessage) {
		var d rawDepth
		if err := json.Unmarshal(data, &d); err != nil {
			return
		}
		var bidQty, askQty float64
		for _, b := range d.Bids {
			bidQty += parseF(b[1])
		}
		for _, a := range d.Asks {
			askQty += parseF(a[1])
		}
		out <- exchange.DepthEvent{TotalBidQty: bidQty, TotalAskQty: askQty}
	})
	return out, nil
}

// run dials one stream and dispatches decoded payloads to handle,
// reconnecting with exponential backoff until ctx is cancelled.
func (c *Client) run(ctx context.Context, stream string, handle func(json.RawMessage)) {
	backoff := NewBackoff()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		url := fmt.Sprintf("%s?streams=%s", c.baseURL, stream)
		conn, _, err := c.dialer.DialContext(ctx, url, nil)
		if err != nil {
			if c.log != nil {
				c.log.Warn("websocket dial failed", logger.String("stream", stream), logger.Err(err))
			}
			if !backoff.Sleep(ctx) {
				return
			}
			continue
		}
		backoff.Reset()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if c.log != nil {
					c.log.Warn("websocket read failed, reconnecting", logger.String("stream", stream), logger.Err(err))
				}
				conn.Close()
				break
			}
			var env rawEnvelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			handle(env.Data)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		if !backoff.Sleep(ctx) {
			return
		}
	}
}

// Backoff implements an exponential reconnect schedule: 1→2→4→...→60s,
// capped at 10 attempts.
type Backoff struct {
	attempt int
}

// NewBackoff returns a fresh backoff counter.
func NewBackoff() *Backoff { return &Backoff{} }

// MaxAttempts is the hard cap before the caller should give up.
const MaxAttempts = 10

// Next returns the delay for the current attempt and advances it.
func (b *Backoff) Next() time.Duration {
	d := time.Duration(1<<uint(b.attempt)) * time.Second
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	b.attempt++
	return d
}

// Sleep waits out Next(), returning false once MaxAttempts is exceeded
// or ctx is cancelled first.
func (b *Backoff) Sleep(ctx context.Context) bool {
	if b.attempt >= MaxAttempts {
		return false
	}
	d := b.Next()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Reset zeroes the attempt counter after a successful connection.
func (b *Backoff) Reset() { b.attempt = 0 }
