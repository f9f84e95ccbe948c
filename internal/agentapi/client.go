package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a single running Agent instance over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the Agent listening at baseURL (e.g. http://127.0.0.1:41007).
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthy reports whether the Agent's health endpoint responds with 200.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// RegisterProviderKey registers an API key for provider with the Agent's auth store.
func (c *Client) RegisterProviderKey(ctx context.Context, provider, key string) error {
	body := map[string]string{"key": key}
	_, err := c.do(ctx, http.MethodPut, "/auth/"+url.PathEscape(provider), body, nil)
	return err
}

// Providers lists the model providers the Agent knows about.
func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	var out struct {
		Providers []Provider `json:"providers"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/config/providers", nil, &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

// Projects lists the directories the Agent knows about, most recently
// created first.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	if _, err := c.do(ctx, http.MethodGet, "/project", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession starts a new session with the given title, optionally as a
// child of parentID.
func (c *Client) CreateSession(ctx context.Context, title, parentID string) (*Session, error) {
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	if parentID != "" {
		body["parentID"] = parentID
	}
	var s Session
	if _, err := c.do(ctx, http.MethodPost, "/session", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Sessions lists all sessions the Agent knows about, most recently updated first.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if _, err := c.do(ctx, http.MethodGet, "/session", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session fetches a single session by ID.
func (c *Client) Session(ctx context.Context, id string) (*Session, error) {
	var s Session
	if _, err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Messages returns the full message history of a session.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	var out []Message
	if _, err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionID)+"/message", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PromptOptions carries the model/agent selection for a prompt submission.
type PromptOptions struct {
	ProviderID string
	ModelID    string
	AgentMode  string // "build" | "plan" | custom subagent name
}

// Prompt submits a user turn to a session. The Agent replies asynchronously
// over the event stream; this call returns once the request is accepted.
func (c *Client) Prompt(ctx context.Context, sessionID string, parts []InputPart, opts PromptOptions) error {
	body := map[string]any{"parts": parts}
	if opts.ProviderID != "" {
		body["providerID"] = opts.ProviderID
	}
	if opts.ModelID != "" {
		body["modelID"] = opts.ModelID
	}
	if opts.AgentMode != "" {
		body["mode"] = opts.AgentMode
	}
	_, err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/message", body, nil)
	return err
}

// Command submits a slash-style command (e.g. "/compact") to a session.
func (c *Client) Command(ctx context.Context, sessionID, command string) error {
	body := map[string]string{"command": command}
	_, err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/command", body, nil)
	return err
}

// Abort cancels the session's in-flight turn, if any.
func (c *Client) Abort(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/abort", nil, nil)
	return err
}

// Share publishes the session and returns its share URL.
func (c *Client) Share(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/share", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// ReplyPermission answers a pending permission request.
func (c *Client) ReplyPermission(ctx context.Context, sessionID, permissionID, response string) error {
	body := map[string]string{"response": response} // "once" | "always" | "reject"
	_, err := c.do(ctx, http.MethodPost,
		"/session/"+url.PathEscape(sessionID)+"/permission/"+url.PathEscape(permissionID), body, nil)
	return err
}

// SearchFiles asks the Agent to search the project tree by fuzzy filename or content query.
func (c *Client) SearchFiles(ctx context.Context, query string) ([]string, error) {
	var out struct {
		Files []string `json:"files"`
	}
	q := url.Values{"query": {query}}
	if _, err := c.do(ctx, http.MethodGet, "/find/file?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, into any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("agentapi: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("agentapi: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp, fmt.Errorf("agentapi: %s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}

	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil && err != io.EOF {
			return resp, fmt.Errorf("agentapi: decode response: %w", err)
		}
	}
	return resp, nil
}
