package meta

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/internal/sync/window"
	metaapi "github.com/angelmondragon/channelsync-backend/pkg/meta"
)

// stubInsights generates synthetic ad/day rows for environments without live
// credentials. Deterministic per (integration, date).
func stubInsights(integrationID uuid.UUID, adAccountRef string, win window.Window) []metaapi.Insight {
	var insights []metaapi.Insight
	for _, date := range win.Dates {
		seed := stubSeed(integrationID, date)
		adCount := int(seed%2) + 1
		for i := 0; i < adCount; i++ {
			adSeed := seed / uint64(i+1)
			impressions := 2000 + adSeed%18000
			clicks := impressions / (20 + adSeed%30)
			spendCents := 500 + adSeed%9500
			conversions := clicks / (8 + adSeed%10)
			insight := metaapi.Insight{
				AdID:         fmt.Sprintf("stub-ad-%d-%d", seed%100000, i),
				AdName:       fmt.Sprintf("Stub Ad %d", i+1),
				AdsetID:      fmt.Sprintf("stub-adset-%d", seed%1000),
				AdsetName:    "Stub Adset",
				CampaignID:   fmt.Sprintf("stub-campaign-%s", adAccountRef),
				CampaignName: "Stub Campaign",
				DateStart:    window.FormatDate(date),
				DateStop:     window.FormatDate(date),
				Impressions:  strconv.FormatUint(impressions, 10),
				Clicks:       strconv.FormatUint(clicks, 10),
				Spend:        centsToSpend(int64(spendCents)),
				Actions: []metaapi.ActionMetric{{
					ActionType: "omni_purchase",
					Value:      strconv.FormatUint(conversions, 10),
				}},
				ActionValues: []metaapi.ActionMetric{{
					ActionType: "omni_purchase",
					Value:      centsToSpend(int64(spendCents * 3)),
				}},
			}
			payload, err := json.Marshal(insight)
			if err == nil {
				insight.Raw = payload
			}
			insights = append(insights, insight)
		}
	}
	return insights
}

func stubSeed(integrationID uuid.UUID, date time.Time) uint64 {
	h := fnv.New64a()
	h.Write(integrationID[:])
	var day [8]byte
	binary.BigEndian.PutUint64(day[:], uint64(date.Unix()))
	h.Write(day[:])
	return h.Sum64()
}

func centsToSpend(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
