package shopify

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/channelsync-backend/internal/sync/window"
	shopifyapi "github.com/angelmondragon/channelsync-backend/pkg/shopify"
)

// stubOrders generates synthetic orders for environments without live
// credentials. Deterministic per (integration, date) so repeated runs of the
// same window replace facts with identical rows.
func stubOrders(integrationID uuid.UUID, win window.Window) []shopifyapi.Order {
	var orders []shopifyapi.Order
	for _, date := range win.Dates {
		seed := stubSeed(integrationID, date)
		count := int(seed%3) + 1
		for i := 0; i < count; i++ {
			id := int64(seed%1_000_000_000)*100 + int64(i)
			grossCents := 1500 + (seed/uint64(i+1))%8500
			processedAt := date.Add(time.Duration(9+3*i) * time.Hour)
			order := shopifyapi.Order{
				ID:              id,
				Name:            fmt.Sprintf("#STUB%d", id),
				Currency:        "USD",
				FinancialStatus: "paid",
				TotalPrice:      centsToPrice(int64(grossCents)),
				SubtotalPrice:   centsToPrice(int64(grossCents)),
				TotalDiscounts:  "0.00",
				ProcessedAt:     processedAt,
				UpdatedAt:       processedAt,
			}
			payload, err := json.Marshal(order)
			if err == nil {
				order.Raw = payload
			}
			orders = append(orders, order)
		}
	}
	return orders
}

func stubSeed(integrationID uuid.UUID, date time.Time) uint64 {
	h := fnv.New64a()
	h.Write(integrationID[:])
	var day [8]byte
	binary.BigEndian.PutUint64(day[:], uint64(date.Unix()))
	h.Write(day[:])
	return h.Sum64()
}

func centsToPrice(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}
