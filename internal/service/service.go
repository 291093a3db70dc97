// Package service implements the trading service contract over its REST API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"botview/internal/api"
	"botview/internal/interfaces"
	"botview/internal/types"
)

// Client talks to the service under /api.
type Client struct {
	http *api.Client
}

var _ interfaces.Service = (*Client)(nil)

// New builds a client for baseURL (scheme and host, without /api).
func New(baseURL string, timeout time.Duration, opts ...api.ClientOption) *Client {
	all := append([]api.ClientOption{
		api.WithBaseURL(strings.TrimRight(baseURL, "/") + "/api"),
		api.WithTimeout(timeout),
		api.WithHeader("Accept", "application/json"),
	}, opts...)
	return &Client{http: api.NewClient(all...)}
}

func accountQuery(accountID int64) url.Values {
	return url.Values{"accountId": {strconv.FormatInt(accountID, 10)}}
}

// fail folds transport, status and decode errors into the single service
// error shape.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	se := &types.ServiceError{Op: op, Message: err.Error(), Err: err}
	var st *api.StatusError
	if errors.As(err, &st) {
		se.Status = st.StatusCode
		se.Message = strings.TrimSpace(st.Body)
	}
	return se
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	resp, err := c.http.GET(ctx, path, q)
	if err != nil {
		return fail(op, err)
	}
	return fail(op, resp.ParseJSON(out))
}

func (c *Client) GetAccount(ctx context.Context, accountID int64) (types.Account, error) {
	var w wireAccount
	if err := c.getJSON(ctx, "getAccount", "/account", accountQuery(accountID), &w); err != nil {
		return types.Account{}, err
	}
	return account(w), nil
}

func (c *Client) GetPortfolio(ctx context.Context, accountID int64) ([]types.Position, error) {
	var w []wirePosition
	if err := c.getJSON(ctx, "getPortfolio", "/portfolio", accountQuery(accountID), &w); err != nil {
		return nil, err
	}
	return positions(w), nil
}

func (c *Client) GetTrades(ctx context.Context, accountID int64) ([]types.Trade, error) {
	var w []wireTrade
	if err := c.getJSON(ctx, "getTrades", "/trades", accountQuery(accountID), &w); err != nil {
		return nil, err
	}
	return trades(w), nil
}

func (c *Client) GetCandles(ctx context.Context, symbol string, limit int, interval string, offset int) ([]types.Candle, error) {
	q := url.Values{
		"symbol":   {symbol},
		"limit":    {strconv.Itoa(limit)},
		"interval": {interval},
		"offset":   {strconv.Itoa(offset)},
	}
	var w []wireCandle
	if err := c.getJSON(ctx, "getCandles", "/market/candles", q, &w); err != nil {
		return nil, err
	}
	return candles(ctx, w), nil
}

func (c *Client) GetSymbols(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, "getSymbols", "/market/symbols", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RunLiveStep(ctx context.Context, accountID int64, symbol string) (string, error) {
	q := accountQuery(accountID)
	q.Set("symbol", symbol)
	resp, err := c.http.POST(ctx, "/trade/step", q, nil)
	if err != nil {
		return "", fail("runLiveStep", err)
	}
	return strings.TrimSpace(resp.String()), nil
}

func (c *Client) RunReplayStep(ctx context.Context, accountID int64, symbol string, limit, index, offset int, cs []types.Candle) (types.ReplayStepResult, error) {
	q := accountQuery(accountID)
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("index", strconv.Itoa(index))
	q.Set("offset", strconv.Itoa(offset))

	var body any
	if len(cs) > 0 {
		body = candlesOut(cs)
	}
	resp, err := c.http.POST(ctx, "/train/step", q, body)
	if err != nil {
		return types.ReplayStepResult{}, fail("runReplayStep", err)
	}
	var res types.ReplayStepResult
	if err := json.Unmarshal(resp.Body, &res); err != nil {
		return types.ReplayStepResult{}, fail("runReplayStep", err)
	}
	return res, nil
}

func (c *Client) ResetAccount(ctx context.Context, accountID int64) error {
	_, err := c.http.POST(ctx, "/reset", accountQuery(accountID), nil)
	return fail("resetAccount", err)
}

func (c *Client) CreateEquitySnapshot(ctx context.Context, accountID int64, mode types.Mode) error {
	q := accountQuery(accountID)
	q.Set("mode", string(mode))
	_, err := c.http.POST(ctx, "/equity/snapshot", q, nil)
	return fail("createEquitySnapshot", err)
}

func (c *Client) GetEquitySnapshots(ctx context.Context, accountID int64, mode types.Mode, limit int) ([]types.EquitySnapshot, error) {
	q := accountQuery(accountID)
	q.Set("mode", string(mode))
	q.Set("limit", strconv.Itoa(limit))
	var w []wireSnapshot
	if err := c.getJSON(ctx, "getEquitySnapshots", "/equity/snapshots", q, &w); err != nil {
		return nil, err
	}
	return snapshots(w), nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.http.GET(ctx, "/ping", nil)
	return fail("ping", err)
}
