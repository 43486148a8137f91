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
	"time"

	"github.com/snapsight/client/internal/models"
	"github.com/snapsight/client/internal/session"
)

// DefaultAnalyzeTimeout bounds the analysis call, which is the
// longest-running step of the workflow and gets its own deadline distinct
// from the transport default.
const DefaultAnalyzeTimeout = 120 * time.Second

// Client talks to the Snapsight backend REST API. The session store is
// the sole source of the bearer credential; the client never caches it.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	sessions       session.Store
	analyzeTimeout time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAnalyzeTimeout overrides the dedicated analysis deadline.
func WithAnalyzeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.analyzeTimeout = d
		}
	}
}

// New constructs a Client rooted at baseURL, reading credentials from the
// provided session store.
func New(baseURL string, sessions session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		sessions:       sessions,
		analyzeTimeout: DefaultAnalyzeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignInParams are the credentials for an email sign-in.
type SignInParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	RememberMe  bool   `json:"rememberMe,omitempty"`
	CallbackURL string `json:"callbackURL,omitempty"`
}

// SignInResult is either an issued session (Token, User) or a redirect
// instruction when the sign-in request carried a callback URL.
type SignInResult struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	Redirect bool         `json:"redirect"`
	URL      string       `json:"url"`
}

// SignInEmail signs in with email and password. On success the issued
// token is written to the session store with the persistence implied by
// RememberMe.
func (c *Client) SignInEmail(ctx context.Context, params SignInParams) (SignInResult, error) {
	var result SignInResult
	if err := c.do(ctx, http.MethodPost, "/auth/sign-in/email", params, &result, false); err != nil {
		return SignInResult{}, err
	}

	if result.Redirect {
		return result, nil
	}

	if result.Token != "" {
		opts := session.Options{}
		if params.RememberMe {
			opts.PersistDays = 7
		}
		if err := c.sessions.Set(result.Token, opts); err != nil {
			return SignInResult{}, fmt.Errorf("store session token: %w", err)
		}
	}
	return result, nil
}

// SignUpParams describe a new account registration.
type SignUpParams struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// SignUpResult is the session issued for a freshly created account.
type SignUpResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// SignUpEmail registers a new account. The issued token, if any, is
// stored like a sign-in token.
func (c *Client) SignUpEmail(ctx context.Context, params SignUpParams) (SignUpResult, error) {
	var result SignUpResult
	if err := c.do(ctx, http.MethodPost, "/auth/sign-up/email", params, &result, false); err != nil {
		return SignUpResult{}, err
	}

	if result.Token != "" {
		opts := session.Options{}
		if params.RememberMe {
			opts.PersistDays = 7
		}
		if err := c.sessions.Set(result.Token, opts); err != nil {
			return SignUpResult{}, fmt.Errorf("store session token: %w", err)
		}
	}
	return result, nil
}

// SignOut revokes the server-side session and clears the local token.
// The local token is cleared even when the server call fails: the caller
// is signed out on this machine regardless.
func (c *Client) SignOut(ctx context.Context) error {
	var resp struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/sign-out", struct{}{}, &resp, true)

	if clearErr := c.sessions.Clear(); clearErr != nil && err == nil {
		err = fmt.Errorf("clear session token: %w", clearErr)
	}
	return err
}

// SocialSignIn starts a social sign-in and returns the provider redirect
// URL the caller should open.
func (c *Client) SocialSignIn(ctx context.Context, provider string) (string, error) {
	req := struct {
		Provider string `json:"provider"`
	}{Provider: provider}

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/sign-in/social", req, &resp, false); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", errors.New("api: social sign-in response missing redirect url")
	}
	return resp.URL, nil
}

// GoogleCallback exchanges the OAuth authorization code for a session.
// The issued token is stored session-scoped.
func (c *Client) GoogleCallback(ctx context.Context, code string) (SignUpResult, error) {
	req := struct {
		Code string `json:"code"`
	}{Code: code}

	var result SignUpResult
	if err := c.do(ctx, http.MethodPost, "/auth/callback/google", req, &result, false); err != nil {
		return SignUpResult{}, err
	}

	if result.Token != "" {
		if err := c.sessions.Set(result.Token, session.Options{}); err != nil {
			return SignUpResult{}, fmt.Errorf("store session token: %w", err)
		}
	}
	return result, nil
}

// RequestUploadSlot asks the backend for a single-use presigned upload
// credential for the named file.
func (c *Client) RequestUploadSlot(ctx context.Context, fileName, contentType string) (models.UploadSlot, error) {
	req := struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
	}{FileName: fileName, ContentType: contentType}

	var slot models.UploadSlot
	if err := c.do(ctx, http.MethodPost, "/image/get-presign-url", req, &slot, true); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return models.UploadSlot{}, apiErr.withSentinel(ErrUnsupportedMediaType)
		}
		return models.UploadSlot{}, err
	}
	return slot, nil
}

// Analyze triggers the analysis job for an uploaded object and waits for
// the synchronous result under the dedicated analysis deadline.
func (c *Client) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	var result models.AnalysisResult
	if err := c.do(ctx, http.MethodPost, "/generate/from-image", req, &result, true); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.AnalysisResult{}, fmt.Errorf("%w after %s", ErrAnalysisTimeout, c.analyzeTimeout)
		}
		return models.AnalysisResult{}, err
	}
	return result, nil
}

// History fetches one page of the generation history. An empty cursor
// requests the first page.
func (c *Client) History(ctx context.Context, limit int, cursor string) (models.HistoryPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page models.HistoryPage
	if err := c.do(ctx, http.MethodGet, "/generate/history?"+query.Encode(), nil, &page, true); err != nil {
		return models.HistoryPage{}, err
	}
	return page, nil
}

// HistoryDetail fetches the full analysis payload for a single history
// entry.
func (c *Client) HistoryDetail(ctx context.Context, id string) (models.DetailedHistoryItem, error) {
	var resp struct {
		Item models.DetailedHistoryItem `json:"item"`
	}
	if err := c.do(ctx, http.MethodGet, "/generate/history/"+url.PathEscape(id), nil, &resp, true); err != nil {
		return models.DetailedHistoryItem{}, err
	}
	return resp.Item, nil
}

// do performs one JSON round trip. When authed is set, the request is
// rejected locally with ErrUnauthenticated if no credential is stored.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var token string
	if authed {
		var ok bool
		token, ok = c.sessions.Get()
		if !ok {
			return ErrUnauthenticated
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// decodeError reads a non-success response into the error taxonomy. The
// backend usually sends {"message","code"} bodies, but plain-text bodies
// occur too (bare 401s), so both are tolerated.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var body struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
	}

	return classify(resp.StatusCode, body.Code, body.Message)
}
