// Package shopify wraps the Shopify Admin REST API surface used for order syncs.
package shopify

import (
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

	"github.com/angelmondragon/channelsync-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/logger"
)

const (
	defaultAPIVersion = "2024-07"
	defaultPageSize   = 250
	maxPageSize       = 250

	callLimitHeader  = "X-Shopify-Shop-Api-Call-Limit"
	retryAfterHeader = "Retry-After"

	errorBodyReadLimit int64 = 2048
)

var (
	errShopDomainRequired  = errors.New("shopify shop domain is required")
	errAccessTokenRequired = errors.New("shopify access token is required")
)

// Credentials carries the per-integration shop identity and token.
type Credentials struct {
	ShopDomain  string
	AccessToken string
}

// CallLimit is the parsed X-Shopify-Shop-Api-Call-Limit bucket state.
type CallLimit struct {
	Used int
	Cap  int
}

// RateLimitedError is the cause attached when Shopify answers 429.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("shopify rate limited, retry after %s", e.RetryAfter)
}

// Order is the subset of the Admin order payload the sync consumes.
type Order struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Currency        string     `json:"currency"`
	FinancialStatus string     `json:"financial_status"`
	TotalPrice      string     `json:"total_price"`
	SubtotalPrice   string     `json:"subtotal_price"`
	TotalDiscounts  string     `json:"total_discounts"`
	Test            bool       `json:"test"`
	ProcessedAt     time.Time  `json:"processed_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CancelledAt     *time.Time `json:"cancelled_at"`
	Customer        *Customer  `json:"customer"`
	Refunds         []Refund   `json:"refunds"`

	// Raw is the verbatim order object for the raw mirror.
	Raw json.RawMessage `json:"-"`
}

type Customer struct {
	ID int64 `json:"id"`
}

type Refund struct {
	Transactions []RefundTransaction `json:"transactions"`
}

type RefundTransaction struct {
	Amount string `json:"amount"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// OrdersQuery selects one page of orders. When PageInfo is set the window
// parameters must not be re-sent; Shopify rejects them alongside a relative
// cursor.
type OrdersQuery struct {
	UpdatedAtMin time.Time
	UpdatedAtMax time.Time
	PageInfo     string
}

// OrdersPage is one fetched page plus the pagination and throttle state
// needed to drive the next call.
type OrdersPage struct {
	Orders       []Order
	NextPageInfo string
	CallLimit    CallLimit
}

// Client calls the Shopify Admin REST API for a single API version.
type Client struct {
	httpClient *http.Client
	apiVersion string
	pageSize   int
	baseURL    string
	logger     *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the per-shop https://<domain> base, for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Shopify client from config.
func NewClient(cfg config.ShopifyConfig, timeout time.Duration, logg *logger.Logger, opts ...Option) *Client {
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiVersion: apiVersion,
		pageSize:   pageSize,
		logger:     logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// FetchOrdersPage retrieves one page of orders for the shop.
func (c *Client) FetchOrdersPage(ctx context.Context, creds Credentials, query OrdersQuery) (*OrdersPage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shopify client not configured")
	}
	domain := strings.TrimSpace(creds.ShopDomain)
	if domain == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCredentialMissing, errShopDomainRequired, "shopify credentials incomplete")
	}
	token := strings.TrimSpace(creds.AccessToken)
	if token == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCredentialMissing, errAccessTokenRequired, "shopify credentials incomplete")
	}

	reqURL := c.ordersURL(domain, query)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build shopify orders request")
	}
	httpReq.Header.Set("X-Shopify-Access-Token", token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "execute shopify orders request")
	}
	defer func() { _ = resp.Body.Close() }()

	limit := parseCallLimit(resp.Header.Get(callLimitHeader))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		cause := &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get(retryAfterHeader))}
		return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimited, cause, "shopify orders request throttled")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, statusError(resp), "shopify rejected the access token")
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, statusError(resp), "shopify orders request failed")
	}

	var envelope struct {
		Orders []json.RawMessage `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "decode shopify orders response")
	}

	orders := make([]Order, 0, len(envelope.Orders))
	for _, raw := range envelope.Orders {
		var order Order
		if err := json.Unmarshal(raw, &order); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "decode shopify order")
		}
		order.Raw = raw
		orders = append(orders, order)
	}

	page := &OrdersPage{
		Orders:       orders,
		NextPageInfo: nextPageInfo(resp.Header.Values("Link")),
		CallLimit:    limit,
	}

	if c.logger != nil {
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"orders":          len(page.Orders),
			"has_next":        page.NextPageInfo != "",
			"call_limit_used": limit.Used,
			"call_limit_cap":  limit.Cap,
		})
		c.logger.Info(logCtx, "shopify orders page fetched")
	}

	return page, nil
}

func (c *Client) ordersURL(domain string, query OrdersQuery) string {
	base := c.baseURL
	if base == "" {
		base = "https://" + domain
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/orders.json", strings.TrimRight(base, "/"), c.apiVersion)

	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.pageSize))
	if pageInfo := strings.TrimSpace(query.PageInfo); pageInfo != "" {
		params.Set("page_info", pageInfo)
		return endpoint + "?" + params.Encode()
	}

	params.Set("status", "any")
	if !query.UpdatedAtMin.IsZero() {
		params.Set("updated_at_min", query.UpdatedAtMin.UTC().Format(time.RFC3339))
	}
	if !query.UpdatedAtMax.IsZero() {
		params.Set("updated_at_max", query.UpdatedAtMax.UTC().Format(time.RFC3339))
	}
	return endpoint + "?" + params.Encode()
}

// IsRateLimited reports whether err carries a Shopify 429, and its Retry-After.
func IsRateLimited(err error) (time.Duration, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func parseCallLimit(raw string) CallLimit {
	parts := strings.SplitN(strings.TrimSpace(raw), "/", 2)
	if len(parts) != 2 {
		return CallLimit{}
	}
	used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return CallLimit{}
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || capacity <= 0 {
		return CallLimit{}
	}
	return CallLimit{Used: used, Cap: capacity}
}

func parseRetryAfter(raw string) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(trimmed, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

// nextPageInfo extracts the relative cursor from the rel="next" Link entry.
func nextPageInfo(links []string) string {
	for _, header := range links {
		for _, entry := range strings.Split(header, ",") {
			parts := strings.Split(entry, ";")
			if len(parts) < 2 {
				continue
			}
			target := strings.Trim(strings.TrimSpace(parts[0]), "<>")
			isNext := false
			for _, attr := range parts[1:] {
				if strings.EqualFold(strings.TrimSpace(attr), `rel="next"`) {
					isNext = true
					break
				}
			}
			if !isNext {
				continue
			}
			parsed, err := url.Parse(target)
			if err != nil {
				continue
			}
			if pageInfo := parsed.Query().Get("page_info"); pageInfo != "" {
				return pageInfo
			}
		}
	}
	return ""
}
