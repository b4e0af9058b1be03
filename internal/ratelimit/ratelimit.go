// Package ratelimit decides whether a failed send was refused for quota or
// subscription reasons, and extracts the usage details when it was.
//
// The backend has signalled this condition through a typed error payload, a
// bare HTTP 429, and free-form message text. Classify treats all three alike.
package ratelimit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"lexchat/internal/types"
)

// InfoCarrier is implemented by errors that already carry structured quota data.
type InfoCarrier interface {
	RateLimitInfo() types.RateLimitInfo
}

// StatusCarrier is implemented by errors that know their HTTP status.
type StatusCarrier interface {
	HTTPStatus() int
}

// DetailCarrier is implemented by errors that kept the raw JSON `detail`
// payload of the failed response.
type DetailCarrier interface {
	DetailJSON() []byte
}

const rateLimitPhrase = "rate limit"

// Classify returns the quota details of err, or false for an ordinary failure.
func Classify(err error) (*types.RateLimitInfo, bool) {
	if err == nil {
		return nil, false
	}

	var carrier InfoCarrier
	if errors.As(err, &carrier) {
		info := carrier.RateLimitInfo()
		if info.Kind == "" {
			info.Kind = types.RateLimitDailyLimitExceeded
		}
		if strings.TrimSpace(info.Message) == "" {
			info.Message = err.Error()
		}
		return &info, true
	}

	var detail gjson.Result
	var dc DetailCarrier
	if errors.As(err, &dc) {
		if raw := dc.DetailJSON(); gjson.ValidBytes(raw) {
			detail = gjson.ParseBytes(raw)
		}
	}
	status := 0
	var sc StatusCarrier
	if errors.As(err, &sc) {
		status = sc.HTTPStatus()
	}
	_, codeMatches := types.ParseRateLimitKind(detail.Get("error").String())
	mentionsRateLimit := strings.Contains(strings.ToLower(err.Error()), rateLimitPhrase)

	if status != http.StatusTooManyRequests && !codeMatches && !mentionsRateLimit {
		return nil, false
	}
	info := InfoFromDetail(detail)
	if strings.TrimSpace(info.Message) == "" {
		info.Message = err.Error()
	}
	return &info, true
}

// InfoFromDetail builds RateLimitInfo from a `detail` object. Missing numeric
// fields default to 0 and an unrecognized code defaults to the daily limit.
func InfoFromDetail(detail gjson.Result) types.RateLimitInfo {
	kind, ok := types.ParseRateLimitKind(detail.Get("error").String())
	if !ok {
		kind = types.RateLimitDailyLimitExceeded
	}
	info := types.RateLimitInfo{
		Kind:            kind,
		Message:         detail.Get("message").String(),
		CurrentUsage:    int(detail.Get("current_usage").Int()),
		DailyLimit:      int(detail.Get("daily_limit").Int()),
		PlanName:        firstString(detail, "plan_name", "subscription.plan_name", "subscription.name"),
		PlanDisplayName: firstString(detail, "plan_display_name", "subscription.plan_display_name", "subscription.display_name"),
	}
	if info.DailyLimit == 0 {
		info.DailyLimit = int(detail.Get("subscription.daily_limit").Int())
	}
	return info
}

// IsQuotaDetail reports whether a `detail` object names a known quota code.
func IsQuotaDetail(detail gjson.Result) bool {
	if !detail.IsObject() {
		return false
	}
	_, ok := types.ParseRateLimitKind(detail.Get("error").String())
	return ok
}

func firstString(result gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := strings.TrimSpace(result.Get(path).String()); value != "" {
			return value
		}
	}
	return ""
}
