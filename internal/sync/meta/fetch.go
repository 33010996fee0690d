package meta

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/internal/sync/backoff"
	"github.com/angelmondragon/channelsync-backend/internal/sync/registry"
	"github.com/angelmondragon/channelsync-backend/internal/sync/resolver"
	"github.com/angelmondragon/channelsync-backend/internal/sync/window"
	"github.com/angelmondragon/channelsync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
	metaapi "github.com/angelmondragon/channelsync-backend/pkg/meta"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// purchaseActionTypes, in priority order, are the action types counted as
// conversions. The Graph API reports overlapping attribution rows; the first
// match wins to avoid double counting.
var purchaseActionTypes = []string{
	"omni_purchase",
	"purchase",
	"offsite_conversion.fb_pixel_purchase",
}

// fetch pulls every insight page for the window, throttling cooperatively on
// the account usage header and backing off on hard throttle codes.
func (j *job) fetch(ctx context.Context, resolved *resolver.Context, win window.Window, stats *registry.RunStats) ([]metaapi.Insight, error) {
	if resolved.StubMode {
		return stubInsights(resolved.Integration.ID, resolved.AccountRef, win), nil
	}

	creds := metaapi.Credentials{
		AdAccountID: resolved.AccountRef,
		AccessToken: resolved.AccessToken,
	}
	bo := backoff.New(j.sync.BackoffInitial, j.sync.BackoffMax, j.sync.BackoffMaxAttempts)
	query := metaapi.InsightsQuery{
		Since: window.FormatDate(win.Start),
		Until: window.FormatDate(win.End),
	}

	var insights []metaapi.Insight
	for {
		page, err := j.fetcher.FetchInsightsPage(ctx, creds, query)
		stats.APICalls++
		if err != nil {
			if _, throttled := metaapi.IsRateLimited(err); !throttled {
				stats.RateLimitEvents = bo.ThrottleEvents()
				return nil, err
			}
			proceed, werr := bo.WaitAfterThrottle(ctx, 0)
			if werr != nil {
				return nil, werr
			}
			if !proceed {
				stats.RateLimitEvents = bo.ThrottleEvents()
				return nil, pkgerrors.Wrap(pkgerrors.CodeRateLimitExhausted, err, "meta throttle retries exhausted")
			}
			continue
		}

		insights = append(insights, page.Insights...)
		if page.NextAfter == "" {
			break
		}
		query.After = page.NextAfter
		if page.Usage.Known {
			if err := bo.CooperativeWaitPct(ctx, page.Usage.UtilPct, j.meta.UsageThresholdPct, j.meta.RestorePctPerSec); err != nil {
				return nil, err
			}
		}
	}
	stats.RateLimitEvents = bo.ThrottleEvents()
	return insights, nil
}

// normalizeInsights projects insight rows into raw mirror and fact rows at
// (ad, day) grain.
func normalizeInsights(integrationID, tenantID uuid.UUID, adAccountRef string, insights []metaapi.Insight) ([]models.MetaInsightRaw, []models.MetaAdFact, error) {
	var (
		raw   []models.MetaInsightRaw
		facts []models.MetaAdFact
	)
	for _, insight := range insights {
		date, err := time.Parse("2006-01-02", insight.DateStart)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "parse insight date "+insight.DateStart)
		}
		date = window.Day(date)

		raw = append(raw, models.MetaInsightRaw{
			IntegrationID:     integrationID,
			ExternalID:        insight.AdID + ":" + insight.DateStart,
			Payload:           types.JSONText(insight.Raw),
			ExternalUpdatedAt: date,
		})

		impressions, err := metaapi.MetricCount(insight.Impressions)
		if err != nil {
			return nil, nil, err
		}
		clicks, err := metaapi.MetricCount(insight.Clicks)
		if err != nil {
			return nil, nil, err
		}
		spend, err := metaapi.MetricCents(insight.Spend)
		if err != nil {
			return nil, nil, err
		}
		conversions, err := metaapi.MetricCount(metaapi.ActionValue(insight.Actions, purchaseActionTypes...))
		if err != nil {
			return nil, nil, err
		}
		conversionValue, err := metaapi.MetricCents(metaapi.ActionValue(insight.ActionValues, purchaseActionTypes...))
		if err != nil {
			return nil, nil, err
		}

		facts = append(facts, models.MetaAdFact{
			IntegrationID:        integrationID,
			TenantID:             tenantID,
			AdAccountRef:         adAccountRef,
			Date:                 date,
			CampaignID:           insight.CampaignID,
			CampaignName:         insight.CampaignName,
			AdsetID:              insight.AdsetID,
			AdsetName:            insight.AdsetName,
			AdID:                 insight.AdID,
			AdName:               insight.AdName,
			Impressions:          impressions,
			Clicks:               clicks,
			SpendCents:           spend,
			Conversions:          conversions,
			ConversionValueCents: conversionValue,
		})
	}
	return raw, facts, nil
}
