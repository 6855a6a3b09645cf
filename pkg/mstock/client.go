// Package mstock is a minimal client for the M.Stock trading API. It covers
// session login (TOTP), NIFTY quotes, 5-minute candles, and GTT order
// placement.
//
// Usage:
//
//	mc := mstock.New(mstock.Config{APIKey: key, ClientCode: cc, Password: pw, TOTPSecret: secret})
//	if err := mc.GenerateSession(ctx); err != nil { log.Fatal(err) }
//	q, err := mc.Quote(ctx, "NIFTY 50")
package mstock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

type Config struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string

	RootURL string        // default: https://api.mstock.trade
	Timeout time.Duration // default: 7s
	Debug   bool
}

const defaultRoot = "https://api.mstock.trade"

var routes = map[string]string{
	"api.login":      "/v1/session",
	"api.quote":      "/v1/quote",
	"api.ltp":        "/v1/ltp",
	"api.candles":    "/v1/candles",
	"api.gtt.create": "/v1/gtt",
}

// Client is a session-holding M.Stock API client. Not safe for concurrent
// use during GenerateSession; steady-state reads are.
type Client struct {
	cfg         Config
	accessToken string
	httpClient  *http.Client

	// Optional callback invoked on a 401 so the owner can re-login.
	SessionExpiryHook func()
}

func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	cfg.RootURL = strings.TrimRight(cfg.RootURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// GenerateSession logs in with the client code, password, and a fresh TOTP,
// then stores the returned access token for subsequent calls.
func (c *Client) GenerateSession(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("generate totp: %w", err)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	params := map[string]any{
		"clientcode": c.cfg.ClientCode,
		"password":   c.cfg.Password,
		"totp":       code,
	}
	if err := c.do(ctx, http.MethodPost, "api.login", nil, params, &out); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("login: empty access token in response")
	}
	c.accessToken = out.AccessToken
	log.Printf("[mstock] session established for %s", c.cfg.ClientCode)
	return nil
}

// Quote is a spot quote for an index or instrument.
type Quote struct {
	LTP float64 `json:"ltp"`
}

// Quote fetches the last traded price for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var out Quote
	q := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, "api.quote", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LTP fetches just the last traded price for a symbol.
func (c *Client) LTP(ctx context.Context, symbol string) (float64, error) {
	var out Quote
	q := url.Values{"symbol": {symbol}}
	if err := c.do(ctx, http.MethodGet, "api.ltp", q, nil, &out); err != nil {
		return 0, err
	}
	return out.LTP, nil
}

// Candle is one interval bar as returned by the candles endpoint.
type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// LatestCandle fetches the most recently closed bar for the symbol at the
// given interval in minutes.
func (c *Client) LatestCandle(ctx context.Context, symbol string, interval int) (*Candle, error) {
	var out Candle
	q := url.Values{
		"symbol":   {symbol},
		"interval": {fmt.Sprint(interval)},
	}
	if err := c.do(ctx, http.MethodGet, "api.candles", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Time == "" {
		return nil, nil
	}
	return &out, nil
}

// GTTOrder is a buy order with a trigger level and an attached stop leg.
type GTTOrder struct {
	Symbol       string  `json:"symbol"`
	Quantity     int64   `json:"quantity"`
	Price        float64 `json:"price"`
	TriggerPrice float64 `json:"trigger_price"`
	OrderType    string  `json:"order_type"`
	StopLoss     float64 `json:"sl"`
}

// PlaceGTT submits a GTT order. A non-2xx response is an error.
func (c *Client) PlaceGTT(ctx context.Context, order GTTOrder) error {
	if order.OrderType == "" {
		order.OrderType = "BUY"
	}
	params := map[string]any{
		"symbol":        order.Symbol,
		"quantity":      order.Quantity,
		"price":         order.Price,
		"trigger_price": order.TriggerPrice,
		"order_type":    order.OrderType,
		"sl":            order.StopLoss,
	}
	return c.do(ctx, http.MethodPost, "api.gtt.create", nil, params, nil)
}

func (c *Client) buildURL(route string, query url.Values) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	u := c.cfg.RootURL + uri
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// do issues a request and decodes the standard {"status","message","data"}
// envelope, unmarshalling data into out when non-nil.
func (c *Client) do(ctx context.Context, method, route string, query url.Values, params map[string]any, out any) error {
	reqURL, err := c.buildURL(route, query)
	if err != nil {
		return err
	}

	var body io.Reader
	if params != nil {
		b, _ := json.Marshal(params)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-PrivateKey", c.cfg.APIKey)
	token := c.accessToken
	if token == "" {
		token = c.cfg.APIKey
	}
	req.Header.Set("Authorization", "Bearer "+token)

	if c.cfg.Debug {
		log.Printf("[mstock] %s %s params=%v", method, reqURL, params)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if c.cfg.Debug {
		log.Printf("[mstock] response code=%d body=%s", resp.StatusCode, raw)
	}

	if resp.StatusCode == http.StatusUnauthorized && c.SessionExpiryHook != nil {
		c.SessionExpiryHook()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: http %d: %s", route, resp.StatusCode, truncate(raw, 200))
	}

	var env struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s: parse response: %w", route, err)
	}
	if env.Status != "" && env.Status != "success" {
		return fmt.Errorf("%s: %s: %s", route, env.Status, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: parse data: %w", route, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
