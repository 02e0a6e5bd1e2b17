// Package api is the HTTP client for the transcript analysis service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/verte-zerg/gainview/internal/model"
)

// DefaultTimeout bounds every request made by the client.
const DefaultTimeout = 60 * time.Second

// Endpoint paths relative to the base URL.
const (
	PathLogin    = "/auth/login"
	PathSignup   = "/auth/signup"
	PathUpload   = "/transcript/upload"
	PathGain     = "/sequential_analysis/initial_preprocessing"
	PathTitles   = "/transcript/titles"
	PathProgress = "/transcript/predict"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// TokenSource supplies the bearer token for authenticated requests.
type TokenSource interface {
	Token() string
}

// Client talks to the remote service rooted at a single base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// AuthResult is the payload returned by login and signup.
type AuthResult struct {
	Token string
	User  model.User
}

type wireUser struct {
	ID       string `json:"_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  wireUser `json:"user"`
}

type progressResponse struct {
	Progress *float64 `json:"progress"`
}

// New returns a client for baseURL. tokens may be nil.
func New(baseURL string, timeout time.Duration, tokens TokenSource) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Jar: jar},
		tokens:  tokens,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token and user profile.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, PathLogin, body)
}

// Signup creates an account and returns its token and profile.
func (c *Client) Signup(ctx context.Context, name, email, password string) (AuthResult, error) {
	body := map[string]string{"username": name, "email": email, "password": password}
	return c.authenticate(ctx, PathSignup, body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (AuthResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return AuthResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp authResponse
	if err := c.doJSON(req, &resp); err != nil {
		return AuthResult{}, err
	}
	if resp.Token == "" {
		return AuthResult{}, fmt.Errorf("missing token in %s response", path)
	}
	return AuthResult{
		Token: resp.Token,
		User: model.User{
			ID:    resp.User.ID,
			Email: resp.User.Email,
			Name:  resp.User.Username,
		},
	}, nil
}

// Upload sends file as the multipart form field "file" and returns the raw acknowledgement.
func (c *Client) Upload(ctx context.Context, file model.TranscriptFile) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, PathUpload, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.doRaw(req)
}

// GainSeries fetches the filename -> gain series mapping.
func (c *Client) GainSeries(ctx context.Context) (model.GainData, error) {
	req, err := c.newRequest(ctx, http.MethodGet, PathGain, http.NoBody)
	if err != nil {
		return model.GainData{}, err
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.doRaw(req)
	if err != nil {
		return model.GainData{}, err
	}
	data, err := DecodeGainData(bytes.NewReader(body))
	if err != nil {
		return model.GainData{}, fmt.Errorf("failed to decode gain series: %w", err)
	}
	return data, nil
}

// Titles fetches the raw topic table.
func (c *Client) Titles(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, PathTitles, http.NoBody)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	body, err := c.doRaw(req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Topics fetches and parses the topic table.
func (c *Client) Topics(ctx context.Context) ([]model.Topic, error) {
	text, err := c.Titles(ctx)
	if err != nil {
		return nil, err
	}
	return ParseTopics(text), nil
}

// Progress fetches the completion fraction in [0,1].
func (c *Client) Progress(ctx context.Context) (float64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, PathProgress, http.NoBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	var resp progressResponse
	if err := c.doJSON(req, &resp); err != nil {
		return 0, err
	}
	if resp.Progress == nil {
		return 0, fmt.Errorf("missing progress in response")
	}
	return *resp.Progress, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	body, err := c.doRaw(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newError(resp, raw)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.URL.Path, err)
	}
	return body, nil
}
