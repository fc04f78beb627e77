// Package client talks to a running luacrypt server over its JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Script struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type AccessLog struct {
	ID        int64     `json:"id"`
	ScriptID  int64     `json:"scriptId"`
	IP        *string   `json:"ip"`
	UserAgent *string   `json:"userAgent"`
	Timestamp time.Time `json:"timestamp"`
}

type Stats struct {
	Scripts  int64 `json:"scripts"`
	Accesses int64 `json:"accesses"`
}

type Loader struct {
	URL    string `json:"url"`
	Loader string `json:"loader"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("luacrypt: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login verifies the dashboard password. When the server enforces
// sessions the returned token is kept and sent on later calls.
func (c *Client) Login(ctx context.Context, password string) error {
	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}

	if err := c.do(ctx, http.MethodPost, "/api/auth/verify", map[string]string{"password": password}, &resp); err != nil {
		return err
	}

	c.token = resp.Token
	return nil
}

func (c *Client) CreateScript(ctx context.Context, name, content string) (*Script, error) {
	var s Script
	body := map[string]string{"name": name, "content": content}
	if err := c.do(ctx, http.MethodPost, "/api/scripts", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListScripts(ctx context.Context, search string) ([]Script, error) {
	path := "/api/scripts"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	var scripts []Script
	if err := c.do(ctx, http.MethodGet, path, nil, &scripts); err != nil {
		return nil, err
	}
	return scripts, nil
}

func (c *Client) GetScript(ctx context.Context, id int64) (*Script, error) {
	var s Script
	if err := c.do(ctx, http.MethodGet, scriptPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateScript changes the non-nil fields.
func (c *Client) UpdateScript(ctx context.Context, id int64, name, content *string) (*Script, error) {
	body := map[string]*string{}
	if name != nil {
		body["name"] = name
	}
	if content != nil {
		body["content"] = content
	}

	var s Script
	if err := c.do(ctx, http.MethodPatch, scriptPath(id), body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DeleteScript(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, scriptPath(id), nil, nil)
}

func (c *Client) Loader(ctx context.Context, id int64) (*Loader, error) {
	var l Loader
	if err := c.do(ctx, http.MethodGet, scriptPath(id)+"/loader", nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) Obfuscate(ctx context.Context, code string) (string, error) {
	var resp struct {
		Code string `json:"code"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/obfuscate", map[string]string{"code": code}, &resp); err != nil {
		return "", err
	}
	return resp.Code, nil
}

// Logs lists access logs, newest first. scriptID and limit are ignored
// when zero.
func (c *Client) Logs(ctx context.Context, scriptID int64, limit int) ([]AccessLog, error) {
	q := url.Values{}
	if scriptID != 0 {
		q.Set("scriptId", strconv.FormatInt(scriptID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var logs []AccessLog
	if err := c.do(ctx, http.MethodGet, path, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FetchRaw requests /raw/{id} the way a game client would, with the
// given User-Agent. An empty userAgent sends none.
func (c *Client) FetchRaw(ctx context.Context, id int64, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/raw/%d", c.baseURL, id), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	return string(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func scriptPath(id int64) string {
	return "/api/scripts/" + strconv.FormatInt(id, 10)
}
