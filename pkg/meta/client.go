// Package meta wraps the Meta Graph insights API surface used for ad syncs.
package meta

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
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v19.0"
	defaultPageSize   = 500

	usageHeader = "X-Ad-Account-Usage"

	errorBodyReadLimit int64 = 4096

	insightsFields = "ad_id,ad_name,adset_id,adset_name,campaign_id,campaign_name," +
		"impressions,clicks,spend,actions,action_values,date_start,date_stop"
)

// Graph error codes that signal application-level throttling.
const (
	graphCodeTooManyCalls      = 17
	graphCodePageRequestLimit  = 32
	graphCodeAppRequestLimit   = 4
	graphCodeInvalidOAuthToken = 190
)

var errAccessTokenRequired = errors.New("meta access token is required")

// Credentials carries the per-integration ad account identity and token.
type Credentials struct {
	AdAccountID string
	AccessToken string
}

// AccountUsage is the parsed X-Ad-Account-Usage header state.
type AccountUsage struct {
	UtilPct float64
	Known   bool
}

// RateLimitedError is the cause attached when the Graph API throttles a call.
type RateLimitedError struct {
	GraphCode int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("meta graph rate limited (code %d)", e.GraphCode)
}

// ActionMetric is one entry of the actions / action_values arrays.
type ActionMetric struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// Insight is one (ad, day) row from the insights API. Numeric metrics arrive
// as strings.
type Insight struct {
	AdID         string         `json:"ad_id"`
	AdName       string         `json:"ad_name"`
	AdsetID      string         `json:"adset_id"`
	AdsetName    string         `json:"adset_name"`
	CampaignID   string         `json:"campaign_id"`
	CampaignName string         `json:"campaign_name"`
	DateStart    string         `json:"date_start"`
	DateStop     string         `json:"date_stop"`
	Impressions  string         `json:"impressions"`
	Clicks       string         `json:"clicks"`
	Spend        string         `json:"spend"`
	Actions      []ActionMetric `json:"actions"`
	ActionValues []ActionMetric `json:"action_values"`

	// Raw is the verbatim insight object for the raw mirror.
	Raw json.RawMessage `json:"-"`
}

// InsightsQuery selects one page of day-grain ad insights.
type InsightsQuery struct {
	Since string // ISO date, inclusive
	Until string // ISO date, inclusive
	After string // opaque paging cursor
}

// InsightsPage is one fetched page plus pagination and throttle state.
type InsightsPage struct {
	Insights  []Insight
	NextAfter string
	Usage     AccountUsage
}

// Client calls the Meta Graph insights API for a single API version.
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

// WithBaseURL overrides the Graph base URL, for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Graph client from config.
func NewClient(cfg config.MetaConfig, timeout time.Duration, logg *logger.Logger, opts ...Option) *Client {
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiVersion: apiVersion,
		pageSize:   pageSize,
		baseURL:    defaultBaseURL,
		logger:     logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// FetchInsightsPage retrieves one page of ad-level day-grain insights.
func (c *Client) FetchInsightsPage(ctx context.Context, creds Credentials, query InsightsQuery) (*InsightsPage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "meta client not configured")
	}
	accountID := normalizeAccountID(creds.AdAccountID)
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCredentialMissing, "meta ad account id is required")
	}
	token := strings.TrimSpace(creds.AccessToken)
	if token == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCredentialMissing, errAccessTokenRequired, "meta credentials incomplete")
	}

	reqURL, err := c.insightsURL(accountID, token, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build meta insights url")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build meta insights request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "execute meta insights request")
	}
	defer func() { _ = resp.Body.Close() }()

	usage := parseAccountUsage(resp.Header.Get(usageHeader))

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapGraphError(resp)
	}

	var envelope struct {
		Data   []json.RawMessage `json:"data"`
		Paging struct {
			Cursors struct {
				After string `json:"after"`
			} `json:"cursors"`
			Next string `json:"next"`
		} `json:"paging"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "decode meta insights response")
	}

	insights := make([]Insight, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		var insight Insight
		if err := json.Unmarshal(raw, &insight); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "decode meta insight")
		}
		insight.Raw = raw
		insights = append(insights, insight)
	}

	// has-more = presence of paging.next; the after cursor alone is echoed
	// even on the terminal page.
	nextAfter := ""
	if strings.TrimSpace(envelope.Paging.Next) != "" {
		nextAfter = envelope.Paging.Cursors.After
	}

	page := &InsightsPage{
		Insights:  insights,
		NextAfter: nextAfter,
		Usage:     usage,
	}

	if c.logger != nil {
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"insights": len(page.Insights),
			"has_next": page.NextAfter != "",
			"util_pct": usage.UtilPct,
		})
		c.logger.Info(logCtx, "meta insights page fetched")
	}

	return page, nil
}

func (c *Client) insightsURL(accountID, token string, query InsightsQuery) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/insights", strings.TrimRight(c.baseURL, "/"), c.apiVersion, accountID)

	timeRange, err := json.Marshal(map[string]string{"since": query.Since, "until": query.Until})
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("access_token", token)
	params.Set("level", "ad")
	params.Set("time_increment", "1")
	params.Set("time_range", string(timeRange))
	params.Set("fields", insightsFields)
	params.Set("limit", strconv.Itoa(c.pageSize))
	if after := strings.TrimSpace(query.After); after != "" {
		params.Set("after", after)
	}
	return endpoint + "?" + params.Encode(), nil
}

func (c *Client) mapGraphError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)

	graphCode := envelope.Error.Code
	switch {
	case resp.StatusCode == http.StatusTooManyRequests ||
		graphCode == graphCodeTooManyCalls ||
		graphCode == graphCodePageRequestLimit ||
		graphCode == graphCodeAppRequestLimit:
		cause := &RateLimitedError{GraphCode: graphCode}
		return pkgerrors.Wrap(pkgerrors.CodeRateLimited, cause, "meta insights request throttled")
	case graphCode == graphCodeInvalidOAuthToken ||
		resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI,
			fmt.Errorf("status %d code %d: %s", resp.StatusCode, graphCode, envelope.Error.Message),
			"meta rejected the access token")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI,
			fmt.Errorf("status %d code %d: %s", resp.StatusCode, graphCode, strings.TrimSpace(firstNonEmpty(envelope.Error.Message, string(body)))),
			"meta insights request failed")
	}
}

// IsRateLimited reports whether err carries a Graph throttle response.
func IsRateLimited(err error) (int, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle.GraphCode, true
	}
	return 0, false
}

// parseAccountUsage reads the acc_id_util_pct field from the usage header.
func parseAccountUsage(raw string) AccountUsage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountUsage{}
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return AccountUsage{}
	}
	value, ok := payload["acc_id_util_pct"]
	if !ok {
		return AccountUsage{}
	}
	switch v := value.(type) {
	case float64:
		return AccountUsage{UtilPct: v, Known: true}
	case string:
		if pct, err := strconv.ParseFloat(v, 64); err == nil {
			return AccountUsage{UtilPct: pct, Known: true}
		}
	}
	return AccountUsage{}
}

func normalizeAccountID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "act_") {
		return trimmed
	}
	return "act_" + trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
