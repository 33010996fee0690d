package shopify

import "testing"

func TestMoneyCents(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"25.50", 2550},
		{"0.00", 0},
		{"", 0},
		{"1234.567", 123457},
		{"-3.25", -325},
	}
	for _, tt := range tests {
		got, err := MoneyCents(tt.value)
		if err != nil {
			t.Fatalf("MoneyCents(%q): %v", tt.value, err)
		}
		if got != tt.want {
			t.Fatalf("MoneyCents(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}

	if _, err := MoneyCents("not-money"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRefundedCentsOnlyCountsSuccessfulRefunds(t *testing.T) {
	order := Order{
		Refunds: []Refund{
			{Transactions: []RefundTransaction{
				{Amount: "10.00", Kind: "refund", Status: "success"},
				{Amount: "5.00", Kind: "refund", Status: "pending"},
				{Amount: "2.00", Kind: "void", Status: "success"},
			}},
			{Transactions: []RefundTransaction{
				{Amount: "1.50", Kind: "refund", Status: "success"},
			}},
		},
	}

	got, err := RefundedCents(order)
	if err != nil {
		t.Fatalf("refunded cents: %v", err)
	}
	if got != 1150 {
		t.Fatalf("expected 1150, got %d", got)
	}
}
