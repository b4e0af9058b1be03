package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"lexchat/internal/history"
	"lexchat/internal/identity"
	"lexchat/internal/logging"
	"lexchat/internal/types"
)

const defaultTimeout = 60 * time.Second

type Client struct {
	baseURL  string
	identity identity.Provider
	http     *http.Client
	logger   logging.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout, Transport: c.http.Transport}
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, id identity.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		identity: id,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) CreateSession(ctx context.Context, title string) (*types.ChatSession, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/chat/sessions", CreateSessionRequest{Title: strings.TrimSpace(title)})
	if err != nil {
		return nil, err
	}
	session := decodeSession(gjson.ParseBytes(body))
	if session.ID == "" {
		return nil, errors.New("create session: response has no session id")
	}
	return session, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]*types.ChatSession, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/chat/sessions", nil)
	if err != nil {
		return nil, err
	}
	list := unwrapList(gjson.ParseBytes(body), "sessions")
	out := make([]*types.ChatSession, 0, len(list))
	for _, item := range list {
		if session := decodeSession(item); session.ID != "" {
			out = append(out, session)
		}
	}
	return out, nil
}

func (c *Client) GetHistory(ctx context.Context, sessionID string) ([]types.HistoryRecord, error) {
	body, err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID)+"/history", nil)
	if err != nil {
		return nil, err
	}
	return history.Decode(body)
}

func (c *Client) SendMessage(ctx context.Context, sessionID, query, userType string) (*types.Reply, error) {
	req := SendMessageRequest{
		Query:     query,
		SessionID: strings.TrimSpace(sessionID),
		UserType:  strings.TrimSpace(userType),
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/chat/query", req)
	if err != nil {
		return nil, err
	}
	var resp SendMessageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &types.Reply{Response: resp.Response, Sources: resp.Sources}, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, sessionPath(sessionID), nil)
	return err
}

func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, sessionPath(sessionID)+"/history", nil)
	return err
}

func (c *Client) RenameSession(ctx context.Context, sessionID, title string) (string, error) {
	body, err := c.doJSON(ctx, http.MethodPatch, sessionPath(sessionID), RenameSessionRequest{Title: title})
	if err != nil {
		return "", err
	}
	if renamed := gjson.GetBytes(body, "title").String(); renamed != "" {
		return renamed, nil
	}
	return title, nil
}

func sessionPath(id string) string {
	return "/chat/sessions/" + url.PathEscape(strings.TrimSpace(id))
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.authorize(req); err != nil {
		return nil, err
	}
	requestID := logging.NewRequestID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Info("chat api request failed",
			logging.F("method", req.Method),
			logging.F("path", req.URL.Path),
			logging.F("request_id", requestID),
			logging.F("error", err),
		)
		return nil, err
	}
	defer resp.Body.Close()
	c.logger.Debug("chat api request",
		logging.F("method", req.Method),
		logging.F("path", req.URL.Path),
		logging.F("status", resp.StatusCode),
		logging.F("request_id", requestID),
		logging.F("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) authorize(req *http.Request) error {
	if c.identity == nil {
		return identity.ErrNoCredential
	}
	token, err := c.identity.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func decodeSession(raw gjson.Result) *types.ChatSession {
	return &types.ChatSession{
		ID:        strings.TrimSpace(raw.Get("id").String()),
		Title:     raw.Get("title").String(),
		CreatedAt: types.ParseTimestamp(raw.Get("created_at").String()),
		UpdatedAt: types.ParseTimestamp(raw.Get("updated_at").String()),
	}
}

func unwrapList(root gjson.Result, key string) []gjson.Result {
	if root.IsArray() {
		return root.Array()
	}
	return root.Get(key).Array()
}
