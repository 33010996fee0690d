package square

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/channelsync-backend/internal/sync/window"
)

// stubOrders generates synthetic orders for environments without live
// credentials. Deterministic per (integration, date).
func stubOrders(integrationID uuid.UUID, win window.Window) []*sq.Order {
	var orders []*sq.Order
	for _, date := range win.Dates {
		seed := stubSeed(integrationID, date)
		count := int(seed%3) + 1
		for i := 0; i < count; i++ {
			orderSeed := seed / uint64(i+1)
			id := fmt.Sprintf("stub-sq-%d-%d", seed%1_000_000, i)
			amount := int64(800 + orderSeed%9200)
			closedAt := date.Add(time.Duration(10+2*i) * time.Hour).Format(time.RFC3339)
			state := sq.OrderStateCompleted
			currency := sq.CurrencyUsd
			tender := sq.TenderTypeCard
			orders = append(orders, &sq.Order{
				ID:         &id,
				LocationID: "stub-location",
				State:      &state,
				UpdatedAt:  &closedAt,
				ClosedAt:   &closedAt,
				TotalMoney: &sq.Money{
					Amount:   &amount,
					Currency: &currency,
				},
				Tenders: []*sq.Tender{{Type: tender}},
			})
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
