package models

import (
	"time"

	"github.com/google/uuid"
)

// MetaAdFact is one normalized (ad, date) performance row scoped to
// (integration, tenant, ad account, date). Replaced wholesale per touched
// date on every run.
type MetaAdFact struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntegrationID        uuid.UUID `gorm:"column:integration_id;type:uuid;not null;index:idx_meta_ad_facts_scope"`
	TenantID             uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	AdAccountRef         string    `gorm:"column:ad_account_ref;not null"`
	Date                 time.Time `gorm:"column:date;type:date;not null;index:idx_meta_ad_facts_scope"`
	CampaignID           string    `gorm:"column:campaign_id;not null"`
	CampaignName         string    `gorm:"column:campaign_name"`
	AdsetID              string    `gorm:"column:adset_id"`
	AdsetName            string    `gorm:"column:adset_name"`
	AdID                 string    `gorm:"column:ad_id;not null"`
	AdName               string    `gorm:"column:ad_name"`
	Impressions          int64     `gorm:"column:impressions;not null;default:0"`
	Clicks               int64     `gorm:"column:clicks;not null;default:0"`
	SpendCents           int64     `gorm:"column:spend_cents;not null;default:0"`
	Conversions          int64     `gorm:"column:conversions;not null;default:0"`
	ConversionValueCents int64     `gorm:"column:conversion_value_cents;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides GORM's default pluralization.
func (MetaAdFact) TableName() string { return "meta_ad_facts" }
