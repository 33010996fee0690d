package enums

import "fmt"

// Platform identifies an external commerce or advertising provider.
type Platform string

const (
	PlatformShopify Platform = "shopify"
	PlatformMeta    Platform = "meta"
	PlatformSquare  Platform = "square"
)

var validPlatforms = []Platform{
	PlatformShopify,
	PlatformMeta,
	PlatformSquare,
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// IsValid reports whether the platform is recognized.
func (p Platform) IsValid() bool {
	for _, candidate := range validPlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlatform converts a raw string into a Platform.
func ParsePlatform(value string) (Platform, error) {
	for _, candidate := range validPlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform %q", value)
}
