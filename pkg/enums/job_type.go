package enums

import "fmt"

// JobType names one sync job variant for one platform.
type JobType string

const (
	JobShopifyFill  JobType = "shopify_7d_fill"
	JobShopifyFresh JobType = "shopify_fresh"
	JobMetaFill     JobType = "meta_7d_fill"
	JobMetaFresh    JobType = "meta_fresh"
	JobSquareFill   JobType = "square_7d_fill"
	JobSquareFresh  JobType = "square_fresh"
)

var validJobTypes = []JobType{
	JobShopifyFill,
	JobShopifyFresh,
	JobMetaFill,
	JobMetaFresh,
	JobSquareFill,
	JobSquareFresh,
}

var jobTypePlatforms = map[JobType]Platform{
	JobShopifyFill:  PlatformShopify,
	JobShopifyFresh: PlatformShopify,
	JobMetaFill:     PlatformMeta,
	JobMetaFresh:    PlatformMeta,
	JobSquareFill:   PlatformSquare,
	JobSquareFresh:  PlatformSquare,
}

// String implements fmt.Stringer.
func (j JobType) String() string {
	return string(j)
}

// IsValid reports whether the job type is recognized.
func (j JobType) IsValid() bool {
	for _, candidate := range validJobTypes {
		if candidate == j {
			return true
		}
	}
	return false
}

// Platform returns the platform the job type syncs.
func (j JobType) Platform() Platform {
	return jobTypePlatforms[j]
}

// IsFill reports whether the job is a fixed-window backfill.
func (j JobType) IsFill() bool {
	switch j {
	case JobShopifyFill, JobMetaFill, JobSquareFill:
		return true
	}
	return false
}

// ParseJobType converts a raw string into a JobType.
func ParseJobType(value string) (JobType, error) {
	for _, candidate := range validJobTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job type %q", value)
}
