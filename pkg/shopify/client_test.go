package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/channelsync-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

func testClient(baseURL string) *Client {
	cfg := config.ShopifyConfig{APIVersion: "2024-07", PageSize: 2}
	return NewClient(cfg, time.Second, nil, WithBaseURL(baseURL))
}

func testCreds() Credentials {
	return Credentials{ShopDomain: "example.myshopify.com", AccessToken: "shpat_test"}
}

func TestFetchOrdersPageParsesOrdersAndLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Errorf("missing access token header, got %q", got)
		}
		if got := r.URL.Query().Get("status"); got != "any" {
			t.Errorf("expected status=any, got %q", got)
		}
		w.Header().Set("X-Shopify-Shop-Api-Call-Limit", "32/40")
		w.Header().Set("Link", fmt.Sprintf(`<https://example.myshopify.com/admin/api/2024-07/orders.json?limit=2&page_info=abc123>; rel="next"`))
		fmt.Fprint(w, `{"orders":[
			{"id":1001,"name":"#1001","currency":"USD","financial_status":"paid","total_price":"25.50","subtotal_price":"24.00","total_discounts":"1.00","processed_at":"2026-08-20T10:00:00Z","updated_at":"2026-08-20T11:00:00Z","customer":{"id":7}},
			{"id":1002,"name":"#1002","currency":"USD","financial_status":"refunded","total_price":"10.00","processed_at":"2026-08-20T12:00:00Z","updated_at":"2026-08-21T09:00:00Z","refunds":[{"transactions":[{"amount":"10.00","kind":"refund","status":"success"}]}]}
		]}`)
	}))
	defer server.Close()

	page, err := testClient(server.URL).FetchOrdersPage(context.Background(), testCreds(), OrdersQuery{
		UpdatedAtMin: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("fetch orders page: %v", err)
	}

	if len(page.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(page.Orders))
	}
	if page.Orders[0].ID != 1001 || page.Orders[0].FinancialStatus != "paid" {
		t.Fatalf("unexpected first order: %+v", page.Orders[0])
	}
	if len(page.Orders[0].Raw) == 0 {
		t.Fatal("expected raw payload to be retained")
	}
	if page.NextPageInfo != "abc123" {
		t.Fatalf("expected next page_info abc123, got %q", page.NextPageInfo)
	}
	if page.CallLimit.Used != 32 || page.CallLimit.Cap != 40 {
		t.Fatalf("unexpected call limit %+v", page.CallLimit)
	}
}

func TestFetchOrdersPageSendsOnlyPageInfoOnFollowup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if got := query.Get("page_info"); got != "abc123" {
			t.Errorf("expected page_info=abc123, got %q", got)
		}
		if query.Get("updated_at_min") != "" || query.Get("status") != "" {
			t.Errorf("window params must not accompany a relative cursor: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"orders":[]}`)
	}))
	defer server.Close()

	page, err := testClient(server.URL).FetchOrdersPage(context.Background(), testCreds(), OrdersQuery{
		UpdatedAtMin: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		PageInfo:     "abc123",
	})
	if err != nil {
		t.Fatalf("fetch orders page: %v", err)
	}
	if len(page.Orders) != 0 || page.NextPageInfo != "" {
		t.Fatalf("expected empty terminal page, got %+v", page)
	}
}

func TestFetchOrdersPageMapsThrottle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2.0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchOrdersPage(context.Background(), testCreds(), OrdersQuery{})
	if err == nil {
		t.Fatal("expected throttle error")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeRateLimited {
		t.Fatalf("expected %s, got %s", pkgerrors.CodeRateLimited, code)
	}
	retryAfter, ok := IsRateLimited(err)
	if !ok {
		t.Fatal("expected rate limited cause")
	}
	if retryAfter != 2*time.Second {
		t.Fatalf("expected 2s retry-after, got %s", retryAfter)
	}
}

func TestFetchOrdersPageMapsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errors":"Invalid API key or access token"}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchOrdersPage(context.Background(), testCreds(), OrdersQuery{})
	if err == nil {
		t.Fatal("expected auth error")
	}
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeUpstreamAPI {
		t.Fatalf("expected %s, got %s", pkgerrors.CodeUpstreamAPI, code)
	}
}

func TestFetchOrdersPageRequiresCredentials(t *testing.T) {
	client := testClient("http://unused")
	if _, err := client.FetchOrdersPage(context.Background(), Credentials{}, OrdersQuery{}); pkgerrors.CodeOf(err) != pkgerrors.CodeCredentialMissing {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeCredentialMissing, err)
	}
	if _, err := client.FetchOrdersPage(context.Background(), Credentials{ShopDomain: "x.myshopify.com"}, OrdersQuery{}); pkgerrors.CodeOf(err) != pkgerrors.CodeCredentialMissing {
		t.Fatalf("expected %s, got %v", pkgerrors.CodeCredentialMissing, err)
	}
}

func TestParseCallLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want CallLimit
	}{
		{"32/40", CallLimit{Used: 32, Cap: 40}},
		{" 1/40 ", CallLimit{Used: 1, Cap: 40}},
		{"", CallLimit{}},
		{"garbage", CallLimit{}},
		{"10/0", CallLimit{}},
	}
	for _, tt := range tests {
		if got := parseCallLimit(tt.raw); got != tt.want {
			t.Fatalf("parseCallLimit(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestNextPageInfo(t *testing.T) {
	links := []string{
		`<https://x.myshopify.com/admin/api/2024-07/orders.json?page_info=prev1>; rel="previous", <https://x.myshopify.com/admin/api/2024-07/orders.json?page_info=next1>; rel="next"`,
	}
	if got := nextPageInfo(links); got != "next1" {
		t.Fatalf("expected next1, got %q", got)
	}
	if got := nextPageInfo([]string{`<https://x/orders.json?page_info=p>; rel="previous"`}); got != "" {
		t.Fatalf("expected no next cursor, got %q", got)
	}
}
