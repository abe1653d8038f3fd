// Package admin is the HTTP client for the admin API: the SSO login flow,
// company lookup and purchase removal.
//
// The admin service serializes requests on its side. Callers should keep the
// number of concurrent RemovePurchase calls in the single digits.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/cashier/internal/remote"
)

// Config locates the admin API and its SSO login page.
type Config struct {
	Site        string // API base URL, with trailing slash
	LoginURL    string // absolute URL of the SSO login form
	TokenPath   string // SSO token exchange, relative to Site
	CompanyPath string // current company lookup, relative to Site
	RemovePath  string // fmt pattern taking company id and purchase id

	Timeout time.Duration
}

// Client talks to the admin API with a fixed bearer token.
// Redirects are never followed; the login flow inspects them itself.
type Client struct {
	cfg    Config
	token  string
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its CheckRedirect is
// overridden so redirects stay visible to the login flow.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		clone := *hc
		clone.CheckRedirect = noRedirect
		c.http = &clone
	}
}

// New creates a client. token may be empty for Login.
func New(cfg Config, token string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, _ := cookiejar.New(nil) // never fails without options
	c := &Client{
		cfg:   cfg,
		token: token,
		http: &http.Client{
			Timeout:       cfg.Timeout,
			Jar:           jar,
			CheckRedirect: noRedirect,
		},
		logger: logger.Named("admin"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Login runs the three-hop SSO flow and returns the final bearer token:
//
//  1. POST credentials to the login form, expecting 302 to a step-2 URL
//  2. GET the step-2 URL, expecting 302 to a page carrying ?token=<intermediate>
//  3. POST the intermediate token to the exchange endpoint, expecting 200 {"token": ...}
//
// Any other status or a missing Location/token is an AUTH_FAILED error.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	const op = "admin login"

	form := url.Values{"email": {email}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", c.authErr(op, 0, "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	step2, err := c.expectRedirect(op, req)
	if err != nil {
		return "", err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, step2.String(), nil)
	if err != nil {
		return "", c.authErr(op, 0, "build request", err)
	}
	helloPage, err := c.expectRedirect(op, req)
	if err != nil {
		return "", err
	}
	c.logger.Debug("hello page", zap.String("url", helloPage.String()))

	intermediate := helloPage.Query().Get("token")
	if intermediate == "" {
		return "", remote.NewAuthError(op, http.StatusFound, "intermediate token missing from redirect")
	}

	status, body, err := c.doJSON(ctx, http.MethodPost, c.cfg.TokenPath, map[string]string{"token": intermediate}, false)
	if err != nil {
		return "", c.authErr(op, 0, "token exchange", err)
	}
	if status != http.StatusOK {
		return "", remote.NewAuthError(op, status, "200 expected from token exchange")
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		return "", remote.NewAuthError(op, status, "token missing from exchange response")
	}
	return resp.Token, nil
}

// expectRedirect sends req and requires a 302 with a Location header.
func (c *Client) expectRedirect(op string, req *http.Request) (*url.URL, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.authErr(op, 0, req.URL.Path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusFound {
		return nil, remote.NewAuthError(op, resp.StatusCode, fmt.Sprintf("302 expected from %s", req.URL.Path))
	}
	loc, err := resp.Location()
	if err != nil {
		return nil, c.authErr(op, resp.StatusCode, "redirect without location", err)
	}
	return loc, nil
}

// ResolveCompanyID asks the admin API which company the token belongs to.
// A 401/403 is an AUTH_FAILED error, anything else unexpected is REMOTE.
func (c *Client) ResolveCompanyID(ctx context.Context) (int64, error) {
	const op = "resolve company"

	status, body, err := c.doJSON(ctx, http.MethodGet, c.cfg.CompanyPath, nil, true)
	if err != nil {
		return 0, remote.NewRemoteError(op, 0, "", err)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return 0, remote.NewAuthError(op, status, "token rejected")
	case status != http.StatusOK:
		return 0, remote.NewRemoteError(op, status, "unexpected status", nil)
	}

	var resp struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == nil {
		return 0, remote.NewRemoteError(op, status, "company id missing from response", err)
	}
	return *resp.ID, nil
}

// RemovePurchase deletes a purchase of the given company.
// 204 means Removed and 404 means NotFound (already gone). 401/403 is
// AUTH_FAILED, any other status a REMOTE error.
func (c *Client) RemovePurchase(ctx context.Context, companyID, purchaseID int64) (remote.RemovalStatus, error) {
	const op = "remove purchase"

	c.logger.Debug("removal started", zap.Int64("purchase_id", purchaseID))
	path := fmt.Sprintf(c.cfg.RemovePath, companyID, purchaseID)
	status, _, err := c.doJSON(ctx, http.MethodDelete, path, nil, true)
	if err != nil {
		return 0, remote.NewRemoteError(op, 0, "", err)
	}

	switch status {
	case http.StatusNoContent, http.StatusOK:
		return remote.Removed, nil
	case http.StatusNotFound:
		return remote.NotFound, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return 0, remote.NewAuthError(op, status, "token rejected")
	}
	return 0, remote.NewRemoteError(op, status, fmt.Sprintf("expected 204, got %d instead", status), nil)
}

func (c *Client) authErr(op string, status int, msg string, err error) error {
	e := remote.NewAuthError(op, status, msg)
	e.Err = err
	return e
}

// doJSON sends a request to a path under Site and returns status and body.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, withToken bool) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Site+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withToken && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", body))
	return resp.StatusCode, body, nil
}
