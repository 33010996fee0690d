package meta

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

// MetricCount parses a numeric-string count metric (impressions, clicks).
// Missing metrics come back as empty strings and count as zero.
func MetricCount(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "parse meta count metric")
	}
	return n, nil
}

// MetricCents parses a decimal-string money metric (spend, action values)
// into integer cents.
func MetricCents(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeUpstreamAPI, err, "parse meta money metric")
	}
	return dec.Shift(2).Round(0).IntPart(), nil
}

// ActionValue returns the value string of the first action entry matching
// any of the given action types.
func ActionValue(metrics []ActionMetric, actionTypes ...string) string {
	for _, actionType := range actionTypes {
		for _, metric := range metrics {
			if metric.ActionType == actionType {
				return metric.Value
			}
		}
	}
	return ""
}
