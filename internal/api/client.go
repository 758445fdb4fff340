// Package api is a Go client for the battle HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/narasim-teja/Sorobon-Battles/internal/game"
	"github.com/narasim-teja/Sorobon-Battles/internal/models"
	"github.com/narasim-teja/Sorobon-Battles/internal/server"
	"github.com/narasim-teja/Sorobon-Battles/internal/stats"
)

var httpClient = &http.Client{Timeout: 8 * time.Second}

// Config holds API configuration
type Config struct {
	BaseURL string
	// Address is sent as the caller identity on every request.
	Address models.Address
}

type Client struct {
	config Config
	http   *http.Client

	// Token URIs never change for a kind, so they are cached for the client's lifetime.
	uriMu    sync.RWMutex
	uriCache map[models.TokenKind]string
}

func NewClient(baseURL string, addr models.Address) *Client {
	return &Client{
		config:   Config{BaseURL: baseURL, Address: addr},
		http:     httpClient,
		uriCache: make(map[models.TokenKind]string),
	}
}

// WithHTTPClient swaps the underlying HTTP client. Intended for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Error is a non-2xx API response. It matches the game error sentinels by code,
// so errors.Is(err, game.ErrSelfJoin) works across the wire.
type Error struct {
	Status  int       `json:"status"`
	Code    game.Code `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*game.Error)
	return ok && e.Code != "" && t.Code == e.Code
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	base := strings.TrimRight(c.config.BaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Address != "" {
		req.Header.Set(server.AddressHeader, string(c.config.Address))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) apiGet(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) apiPost(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func esc(s string) string { return url.PathEscape(s) }

// ========================= Players & tokens =========================

func (c *Client) Register(ctx context.Context, name string) (models.Player, error) {
	var p models.Player
	err := c.apiPost(ctx, "/api/players", server.NameRequest{Name: name}, &p)
	return p, err
}

func (c *Client) Player(ctx context.Context, addr models.Address) (server.PlayerView, error) {
	var p server.PlayerView
	err := c.apiGet(ctx, "/api/players/"+esc(string(addr)), &p)
	return p, err
}

func (c *Client) Players(ctx context.Context) ([]models.Player, error) {
	var ps []models.Player
	err := c.apiGet(ctx, "/api/players", &ps)
	return ps, err
}

func (c *Client) Mint(ctx context.Context, name string) (server.TokenView, error) {
	var t server.TokenView
	err := c.apiPost(ctx, "/api/tokens", server.NameRequest{Name: name}, &t)
	return t, err
}

func (c *Client) Token(ctx context.Context, owner models.Address) (server.TokenView, error) {
	var t server.TokenView
	err := c.apiGet(ctx, "/api/tokens/"+esc(string(owner)), &t)
	return t, err
}

func (c *Client) Supply(ctx context.Context) (server.SupplyView, error) {
	var s server.SupplyView
	err := c.apiGet(ctx, "/api/tokens/supply", &s)
	return s, err
}

func (c *Client) Ledger(ctx context.Context, owner models.Address) (server.LedgerView, error) {
	var l server.LedgerView
	err := c.apiGet(ctx, "/api/ledger/"+esc(string(owner)), &l)
	return l, err
}

// TokenURI returns the metadata URI of kind, served from cache after the first call.
func (c *Client) TokenURI(ctx context.Context, kind models.TokenKind) (string, error) {
	c.uriMu.RLock()
	uri, ok := c.uriCache[kind]
	c.uriMu.RUnlock()
	if ok {
		return uri, nil
	}
	var res struct {
		URI string `json:"uri"`
	}
	if err := c.apiGet(ctx, "/api/tokens/kinds/"+strconv.Itoa(int(kind))+"/uri", &res); err != nil {
		return "", err
	}
	c.uriMu.Lock()
	c.uriCache[kind] = res.URI
	c.uriMu.Unlock()
	return res.URI, nil
}

// Transfer moves amounts[i] of kinds[i] from the caller, or from `from` when the
// caller is its approved operator, to `to`. It returns the sender's holdings.
func (c *Client) Transfer(ctx context.Context, from, to models.Address, kinds []models.TokenKind, amounts []uint64) (server.LedgerView, error) {
	var l server.LedgerView
	err := c.apiPost(ctx, "/api/ledger/transfer", server.TransferRequest{From: from, To: to, Kinds: server.KindList(kinds...), Amounts: amounts}, &l)
	return l, err
}

func (c *Client) Burn(ctx context.Context, from models.Address, kind models.TokenKind, amount uint64) (server.LedgerView, error) {
	var l server.LedgerView
	err := c.apiPost(ctx, "/api/ledger/burn", server.BurnRequest{From: from, Kind: kind, Amount: amount}, &l)
	return l, err
}

// SetApproval grants or revokes operator's right to move the caller's units.
func (c *Client) SetApproval(ctx context.Context, operator models.Address, approved bool) (server.ApprovalView, error) {
	var v server.ApprovalView
	err := c.apiPost(ctx, "/api/ledger/approvals", server.ApprovalRequest{Operator: operator, Approved: approved}, &v)
	return v, err
}

func (c *Client) Approved(ctx context.Context, owner, operator models.Address) (bool, error) {
	var v server.ApprovalView
	err := c.apiGet(ctx, "/api/ledger/approvals/"+esc(string(owner))+"/"+esc(string(operator)), &v)
	return v.Approved, err
}

// Balances returns the balance of owners[i] in kinds[i].
func (c *Client) Balances(ctx context.Context, owners []models.Address, kinds []models.TokenKind) ([]uint64, error) {
	q := url.Values{}
	for _, o := range owners {
		q.Add("owner", string(o))
	}
	for _, k := range kinds {
		q.Add("kind", strconv.Itoa(int(k)))
	}
	var v server.BatchBalanceView
	err := c.apiGet(ctx, "/api/ledger/balances?"+q.Encode(), &v)
	return v.Balances, err
}

// ========================= Battles =========================

func (c *Client) CreateBattle(ctx context.Context, name string) (server.BattleView, error) {
	var b server.BattleView
	err := c.apiPost(ctx, "/api/battles", server.NameRequest{Name: name}, &b)
	return b, err
}

func (c *Client) JoinBattle(ctx context.Context, name string) (server.BattleView, error) {
	var b server.BattleView
	err := c.apiPost(ctx, "/api/battles/"+esc(name)+"/join", nil, &b)
	return b, err
}

func (c *Client) SubmitMove(ctx context.Context, name string, move models.Move) (server.MoveResponse, error) {
	var r server.MoveResponse
	err := c.apiPost(ctx, "/api/battles/"+esc(name)+"/moves", server.MoveRequest{Choice: move.String()}, &r)
	return r, err
}

func (c *Client) QuitBattle(ctx context.Context, name string) (server.BattleView, error) {
	var b server.BattleView
	err := c.apiPost(ctx, "/api/battles/"+esc(name)+"/quit", nil, &b)
	return b, err
}

func (c *Client) Battle(ctx context.Context, name string) (server.BattleView, error) {
	var b server.BattleView
	err := c.apiGet(ctx, "/api/battles/"+esc(name), &b)
	return b, err
}

// Battles lists battles, optionally only those with the given status.
func (c *Client) Battles(ctx context.Context, status string) ([]server.BattleView, error) {
	path := "/api/battles"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var bs []server.BattleView
	err := c.apiGet(ctx, path, &bs)
	return bs, err
}

// ========================= Stats =========================

func (c *Client) Stats(ctx context.Context, addr models.Address) (stats.PlayerStats, error) {
	var s stats.PlayerStats
	err := c.apiGet(ctx, "/api/stats/"+esc(string(addr)), &s)
	return s, err
}

// MaxHitToday returns the day's biggest hit; ok is false when there is none yet.
func (c *Client) MaxHitToday(ctx context.Context) (stats.Hit, bool, error) {
	var h stats.Hit
	if err := c.apiGet(ctx, "/api/stats/today", &h); err != nil {
		return stats.Hit{}, false, err
	}
	return h, h.Damage > 0, nil
}

// ========================= Events =========================

// Watch streams engine events matching battle and player (either may be empty)
// to fn until ctx is cancelled, the connection drops, or fn returns an error.
func (c *Client) Watch(ctx context.Context, battle string, player models.Address, fn func(game.Event) error) error {
	u, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/") + "/ws")
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	if battle != "" {
		q.Set("battle", battle)
	}
	if player != "" {
		q.Set("player", string(player))
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if msg.Type == "you" {
			continue
		}
		var ev game.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			if errors.Is(err, ErrStopWatching) {
				return nil
			}
			return err
		}
	}
}

// ErrStopWatching ends Watch without an error when returned by its callback.
var ErrStopWatching = errors.New("stop watching")
