// Package cashier is the HTTP client for the cashier API: login, phone
// existence checks and purchase registration.
//
// The cashier endpoint tolerates parallel requests; one Client is shared by
// all upload workers.
package cashier

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

	"go.uber.org/zap"

	"github.com/roach88/cashier/internal/remote"
)

// Config locates the cashier API.
type Config struct {
	Site         string // base URL, with trailing slash
	LoginPath    string
	UserInfoPath string
	PurchasePath string

	// InvalidPhoneCodes lists errorCode values meaning "invalid phone number".
	InvalidPhoneCodes []string

	Timeout time.Duration
}

// Client talks to the cashier API with a fixed bearer token.
type Client struct {
	cfg    Config
	token  string
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client. token may be empty for Login.
func New(cfg Config, token string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:    cfg,
		token:  token,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("cashier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	const op = "cashier login"

	status, body, err := c.do(ctx, http.MethodPost, c.cfg.LoginPath, nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		authErr := remote.NewAuthError(op, 0, "request failed")
		authErr.Err = err
		return "", authErr
	}
	c.logger.Info("login response", zap.Int("status", status))
	if status < 200 || status > 299 {
		return "", remote.NewAuthError(op, status, "unexpected status")
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		return "", remote.NewAuthError(op, status, "token missing from response")
	}
	return resp.Token, nil
}

// CheckExists reports whether the phone already participates in the promotion.
// Returns AUTH_FAILED on 401/403, INVALID_PHONE when the remote rejects the
// number and REMOTE for any other failure.
func (c *Client) CheckExists(ctx context.Context, phone string) (bool, error) {
	const op = "check exists"

	query := url.Values{"promoCode": {phone}}
	status, body, err := c.do(ctx, http.MethodGet, c.cfg.UserInfoPath, query, nil)
	if err != nil {
		return false, remote.NewRemoteError(op, 0, "", err)
	}

	if isAuthStatus(status) {
		return false, remote.NewAuthError(op, status, "token rejected")
	}

	var resp struct {
		ErrorCode *string `json:"errorCode"`
		Message   string  `json:"message"`
		Data      *struct {
			Participant *bool `json:"participant"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, remote.NewRemoteError(op, status, "malformed response", err)
	}

	if resp.ErrorCode != nil {
		msg := resp.Message
		if msg == "" {
			msg = *resp.ErrorCode
		}
		if c.isInvalidPhoneCode(*resp.ErrorCode) {
			return false, remote.NewInvalidPhoneError(op, msg)
		}
		return false, remote.NewRemoteError(op, status, msg, nil)
	}
	if status < 200 || status > 299 {
		return false, remote.NewRemoteError(op, status, "unexpected status", nil)
	}
	if resp.Data == nil || resp.Data.Participant == nil {
		return false, remote.NewRemoteError(op, status, "participant flag missing", nil)
	}
	return *resp.Data.Participant, nil
}

// RegisterPurchase registers a purchase of amount for phone and returns the
// purchase id. 401/403 is AUTH_FAILED; a response without both a string
// dateCreated and an integer id is a REMOTE error.
func (c *Client) RegisterPurchase(ctx context.Context, phone, amount string) (int64, error) {
	const op = "register purchase"

	status, body, err := c.do(ctx, http.MethodPost, c.cfg.PurchasePath, nil, map[string]string{
		"cash":  amount,
		"phone": phone,
		"total": amount,
	})
	if err != nil {
		return 0, remote.NewRemoteError(op, 0, "", err)
	}
	if isAuthStatus(status) {
		return 0, remote.NewAuthError(op, status, "token rejected")
	}
	if status < 200 || status > 299 {
		return 0, remote.NewRemoteError(op, status, "unexpected status", nil)
	}

	var resp struct {
		DateCreated any             `json:"dateCreated"`
		ID          json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, remote.NewRemoteError(op, status, "malformed response", err)
	}

	_, hasDate := resp.DateCreated.(string)
	id, idErr := strconv.ParseInt(string(resp.ID), 10, 64)
	if !hasDate || idErr != nil {
		return 0, remote.NewRemoteError(op, status,
			fmt.Sprintf("problem while registering payment for %s", phone), nil)
	}
	return id, nil
}

// isAuthStatus reports whether status means the bearer token was refused.
func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func (c *Client) isInvalidPhoneCode(code string) bool {
	for _, known := range c.cfg.InvalidPhoneCodes {
		if strings.EqualFold(known, code) {
			return true
		}
	}
	return false
}

// do sends a JSON request and returns the status and raw body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) (int, []byte, error) {
	target := c.cfg.Site + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
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
