// Package square wraps the Square Orders API surface used for order syncs.
package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/channelsync-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	"github.com/angelmondragon/channelsync-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultPageSize = 500
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// Credentials carries the per-integration Square token.
type Credentials struct {
	AccessToken string
}

// RateLimitedError is the cause attached when Square answers 429.
type RateLimitedError struct{}

func (e *RateLimitedError) Error() string {
	return "square rate limited"
}

// Client exposes Square order search with centralized auth, logging, and error mapping.
// Tokens are per integration, so the SDK handle is built per call.
type Client struct {
	environment string
	baseURL     string
	pageSize    int
	logger      *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithBaseURL overrides the environment base URL, for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient initializes the Square wrapper and validates the environment.
func NewClient(cfg config.SquareConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	c := &Client{
		environment: env,
		baseURL:     baseURLs[env],
		pageSize:    pageSize,
		logger:      logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) sdkFor(creds Credentials) (*sqclient.Client, error) {
	token := strings.TrimSpace(creds.AccessToken)
	if token == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCredentialMissing, errAccessTokenRequired, "square credentials incomplete")
	}
	return sqclient.NewClient(
		sqoption.WithBaseURL(c.baseURL),
		sqoption.WithToken(token),
	), nil
}

// ListLocationIDs returns the location IDs visible to the token. Orders.Search
// requires an explicit location scope.
func (c *Client) ListLocationIDs(ctx context.Context, creds Credentials) ([]string, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square client not configured")
	}
	sdk, err := c.sdkFor(creds)
	if err != nil {
		return nil, err
	}

	c.log(ctx, "request", "list_locations", nil)
	resp, err := sdk.Locations.List(ctx)
	if err != nil {
		c.log(ctx, "error", "list_locations", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "list locations")
	}

	locations := resp.GetLocations()
	ids := make([]string, 0, len(locations))
	for _, location := range locations {
		if location == nil {
			continue
		}
		if id := stringValue(location.GetID()); id != "" {
			ids = append(ids, id)
		}
	}
	c.log(ctx, "response", "list_locations", map[string]any{"locations": len(ids)})
	return ids, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || hasRateLimitCode(c.extractSquareErrors(apiErr)) {
			return pkgerrors.Wrap(pkgerrors.CodeRateLimited, &RateLimitedError{}, fmt.Sprintf("square %s throttled", op))
		}
		if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
			return pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "square rejected the access token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, fmt.Sprintf("square %s failed", op))
}

func hasRateLimitCode(sqErrs []*sq.Error) bool {
	for _, sqErr := range sqErrs {
		if sqErr == nil {
			continue
		}
		if sqErr.Code == sq.ErrorCodeRateLimited {
			return true
		}
	}
	return false
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

// IsRateLimited reports whether err carries a Square 429.
func IsRateLimited(err error) bool {
	var rle *RateLimitedError
	return errors.As(err, &rle)
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
