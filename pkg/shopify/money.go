package shopify

import (
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

// MoneyCents converts an Admin API decimal money string into integer cents.
// Empty strings are treated as zero; the Admin API omits some money fields on
// older orders.
func MoneyCents(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "parse shopify money value")
	}
	return dec.Shift(2).Round(0).IntPart(), nil
}

// RefundedCents sums the successful refund transactions on an order.
func RefundedCents(order Order) (int64, error) {
	var total int64
	for _, refund := range order.Refunds {
		for _, txn := range refund.Transactions {
			if txn.Kind != "refund" || txn.Status != "success" {
				continue
			}
			cents, err := MoneyCents(txn.Amount)
			if err != nil {
				return 0, err
			}
			total += cents
		}
	}
	return total, nil
}
