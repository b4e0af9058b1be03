package types

type RateLimitKind string

const (
	RateLimitDailyLimitExceeded   RateLimitKind = "DAILY_LIMIT_EXCEEDED"
	RateLimitSubscriptionExpired  RateLimitKind = "SUBSCRIPTION_EXPIRED"
	RateLimitSubscriptionInactive RateLimitKind = "SUBSCRIPTION_INACTIVE"
)

func ParseRateLimitKind(raw string) (RateLimitKind, bool) {
	switch RateLimitKind(raw) {
	case RateLimitDailyLimitExceeded, RateLimitSubscriptionExpired, RateLimitSubscriptionInactive:
		return RateLimitKind(raw), true
	default:
		return "", false
	}
}

// RateLimitInfo describes a quota or subscription failure of a send.
type RateLimitInfo struct {
	Kind            RateLimitKind `json:"kind"`
	Message         string        `json:"message"`
	CurrentUsage    int           `json:"current_usage"`
	DailyLimit      int           `json:"daily_limit"`
	PlanDisplayName string        `json:"plan_display_name"`
	PlanName        string        `json:"plan_name"`
}
