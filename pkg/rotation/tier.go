package rotation

import (
	"fmt"
	"time"
)

// TierName is an age bracket of archived files
type TierName string

const (
	TierHourly    TierName = "hourly"
	TierDaily     TierName = "daily"
	TierWeekly    TierName = "weekly"
	TierMonthly   TierName = "monthly"
	TierQuarterly TierName = "quarterly"
	TierYearly    TierName = "yearly"
)

// tierOrder lists tiers from youngest to oldest
var tierOrder = []TierName{TierHourly, TierDaily, TierWeekly, TierMonthly, TierQuarterly, TierYearly}

// ParseTier validates a tier name from configuration
func ParseTier(s string) (TierName, error) {
	for _, t := range tierOrder {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown retention tier %q", s)
}

// CategorizeTier puts a file processed at ts into the bracket matching its age
func CategorizeTier(ts time.Time, now time.Time) TierName {
	age := now.Sub(ts)

	switch {
	case age <= 24*time.Hour:
		return TierHourly
	case age <= 7*24*time.Hour:
		return TierDaily
	case age <= 30*24*time.Hour:
		return TierWeekly
	case age <= 90*24*time.Hour:
		return TierMonthly
	case age <= 365*24*time.Hour:
		return TierQuarterly
	default:
		return TierYearly
	}
}
