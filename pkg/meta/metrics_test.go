package meta

import "testing"

func TestMetricCount(t *testing.T) {
	if got, err := MetricCount("1200"); err != nil || got != 1200 {
		t.Fatalf("MetricCount(1200) = %d, %v", got, err)
	}
	if got, err := MetricCount(""); err != nil || got != 0 {
		t.Fatalf("MetricCount(empty) = %d, %v", got, err)
	}
	if _, err := MetricCount("12.5"); err == nil {
		t.Fatal("expected error for non-integer count")
	}
}

func TestMetricCents(t *testing.T) {
	if got, err := MetricCents("18.42"); err != nil || got != 1842 {
		t.Fatalf("MetricCents(18.42) = %d, %v", got, err)
	}
	if got, err := MetricCents(""); err != nil || got != 0 {
		t.Fatalf("MetricCents(empty) = %d, %v", got, err)
	}
	if _, err := MetricCents("abc"); err == nil {
		t.Fatal("expected error for garbage money metric")
	}
}

func TestActionValue(t *testing.T) {
	metrics := []ActionMetric{
		{ActionType: "link_click", Value: "10"},
		{ActionType: "offsite_conversion.fb_pixel_purchase", Value: "4"},
		{ActionType: "purchase", Value: "3"},
	}

	if got := ActionValue(metrics, "purchase", "offsite_conversion.fb_pixel_purchase"); got != "3" {
		t.Fatalf("expected first matching type to win, got %q", got)
	}
	if got := ActionValue(metrics, "missing", "link_click"); got != "10" {
		t.Fatalf("expected fallback type, got %q", got)
	}
	if got := ActionValue(metrics, "absent"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
