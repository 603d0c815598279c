// Package commerce talks to the Ticto API: client-credentials tokens and
// order history for the configured products.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/punchamoorthee/nobreverify/internal/domain"
)

var ErrNoAccessToken = errors.New("token response carried no access_token")

const (
	tokenCacheKey = "access_token"
	// Tokens are dropped this long before the issuer says they expire.
	tokenExpiryMargin  = 30 * time.Second
	defaultTokenExpiry = 10 * time.Minute
	maxErrorBody       = 512
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.Status, e.Body)
}

type Config struct {
	ClientID     string
	ClientSecret string
	OAuthURL     string
	OrdersURL    string
	ProductIDs   []string
	Timeout      time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	tokens *cache.Cache
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: cache.New(defaultTokenExpiry, time.Minute),
		logger: logger,
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Scope        string `json:"scope"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type ordersResponse struct {
	Data []domain.Order `json:"data"`
}

// GetAccessToken returns a bearer token, reusing a cached one while it is
// still valid.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(tokenCacheKey); ok {
		return tok.(string), nil
	}

	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		Scope:        "*",
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	var tr tokenResponse
	if err := c.do(req, "oauth/token", &tr); err != nil {
		c.logger.Error("commerce token request failed", "error", err)
		return "", err
	}
	if tr.AccessToken == "" {
		c.logger.Error("commerce token request failed", "error", ErrNoAccessToken)
		return "", ErrNoAccessToken
	}

	ttl := defaultTokenExpiry
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}
	if ttl > tokenExpiryMargin {
		c.tokens.Set(tokenCacheKey, tr.AccessToken, ttl-tokenExpiryMargin)
	}
	return tr.AccessToken, nil
}

// InvalidateToken drops the cached token so the next call requests a new one.
func (c *Client) InvalidateToken() {
	c.tokens.Delete(tokenCacheKey)
}

// FetchOrders lists orders for the configured product set.
func (c *Client) FetchOrders(ctx context.Context, token string) ([]domain.Order, error) {
	u, err := url.Parse(c.cfg.OrdersURL)
	if err != nil {
		return nil, fmt.Errorf("parsing orders url: %w", err)
	}
	q := u.Query()
	q.Set("filter[products]", strings.Join(c.cfg.ProductIDs, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building orders request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var or ordersResponse
	if err := c.do(req, "orders", &or); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.InvalidateToken()
		}
		c.logger.Error("commerce orders request failed", "error", err)
		return nil, err
	}
	c.logger.Debug("commerce orders fetched", "count", len(or.Data))
	return or.Data, nil
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(excerpt)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s response: %w", endpoint, err)
	}
	return nil
}

// ExtractEmails returns the distinct normalized purchaser emails, skipping
// orders without a customer or an email.
func ExtractEmails(orders []domain.Order) map[string]struct{} {
	emails := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o.Customer == nil {
			continue
		}
		email := domain.NormalizeIdentity(o.Customer.Email)
		if email == "" {
			continue
		}
		emails[email] = struct{}{}
	}
	return emails
}
