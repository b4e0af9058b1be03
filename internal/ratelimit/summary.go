package ratelimit

import (
	"fmt"
	"strings"

	"lexchat/internal/types"
)

// Summary renders info as the one-line upgrade prompt shown to the user.
func Summary(info *types.RateLimitInfo) string {
	if info == nil {
		return ""
	}
	var head string
	switch info.Kind {
	case types.RateLimitSubscriptionExpired:
		head = "Your subscription has expired."
	case types.RateLimitSubscriptionInactive:
		head = "Your subscription is inactive."
	default:
		head = "Daily message limit reached."
	}
	if msg := strings.TrimSpace(info.Message); msg != "" && info.Kind == "" {
		head = msg
	}
	var usage []string
	if info.DailyLimit > 0 {
		usage = append(usage, fmt.Sprintf("%d/%d messages used today", info.CurrentUsage, info.DailyLimit))
	}
	plan := strings.TrimSpace(info.PlanDisplayName)
	if plan == "" {
		plan = strings.TrimSpace(info.PlanName)
	}
	if plan != "" {
		usage = append(usage, "plan: "+plan)
	}
	out := head
	if len(usage) > 0 {
		out += " (" + strings.Join(usage, ", ") + ")"
	}
	return out + " Upgrade your plan to keep chatting."
}
