package square

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqcore "github.com/square/square-go-sdk/core"

	"github.com/angelmondragon/channelsync-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(config.SquareConfig{Env: "sandbox", PageSize: 2}, nil, WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(" Sandbox "); err != nil || env != sandboxEnv {
		t.Fatalf("expected sandbox, got %q %v", env, err)
	}
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("expected sandbox default, got %q %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "rate limited status",
			status:   http.StatusTooManyRequests,
			payload:  `{"errors":[{"category":"RATE_LIMIT_ERROR","code":"RATE_LIMITED"}]}`,
			wantCode: pkgerrors.CodeRateLimited,
		},
		{
			name:     "rate limited code only",
			status:   http.StatusServiceUnavailable,
			payload:  `{"errors":[{"category":"RATE_LIMIT_ERROR","code":"RATE_LIMITED"}]}`,
			wantCode: pkgerrors.CodeRateLimited,
		},
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUpstreamAPI,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			payload:  `{"errors":[{"category":"API_ERROR","code":"INTERNAL_SERVER_ERROR"}]}`,
			wantCode: pkgerrors.CodeUpstreamAPI,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapSquareError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}

	throttled := c.mapSquareError(sqcore.NewAPIError(http.StatusTooManyRequests, errors.New(`{}`)), "search orders")
	if !IsRateLimited(throttled) {
		t.Fatal("expected rate limited cause")
	}
}

func TestSearchOrdersPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/orders/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sq-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		fmt.Fprint(w, `{
			"orders":[
				{"id":"o1","location_id":"L1","state":"COMPLETED","created_at":"2026-08-20T10:00:00Z","updated_at":"2026-08-20T11:00:00Z","closed_at":"2026-08-20T10:30:00Z","total_money":{"amount":2550,"currency":"USD"}}
			],
			"cursor":"cursor-2"
		}`)
	}))
	defer server.Close()

	page, err := testClient(t, server.URL).SearchOrdersPage(context.Background(), Credentials{AccessToken: "sq-test"}, OrdersQuery{
		LocationIDs:  []string{"L1"},
		UpdatedAtMin: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("search orders: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(page.Orders))
	}
	if got := stringValue(page.Orders[0].GetID()); got != "o1" {
		t.Fatalf("unexpected order id %q", got)
	}
	if page.NextCursor != "cursor-2" {
		t.Fatalf("expected cursor-2, got %q", page.NextCursor)
	}
}

func TestSearchOrdersPageRequiresLocations(t *testing.T) {
	client := testClient(t, "http://unused")
	_, err := client.SearchOrdersPage(context.Background(), Credentials{AccessToken: "sq-test"}, OrdersQuery{})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeValidation, err)
	}
}

func TestSearchOrdersPageRequiresToken(t *testing.T) {
	client := testClient(t, "http://unused")
	_, err := client.SearchOrdersPage(context.Background(), Credentials{}, OrdersQuery{LocationIDs: []string{"L1"}})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeCredentialMissing {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeCredentialMissing, err)
	}
}

func TestTimeRange(t *testing.T) {
	start := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	tr := timeRange(start, time.Time{})
	if tr.StartAt == nil || *tr.StartAt != "2026-08-14T00:00:00Z" {
		t.Fatalf("unexpected start %v", tr.StartAt)
	}
	if tr.EndAt != nil {
		t.Fatalf("expected no end, got %v", tr.EndAt)
	}
}
