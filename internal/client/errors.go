package client

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"lexchat/internal/identity"
	"lexchat/internal/ratelimit"
	"lexchat/internal/types"
)

const maxErrorBody = 64 << 10

// ErrMissingToken is returned before any request is made when the identity
// provider has no credential.
var ErrMissingToken = identity.ErrNoCredential

// APIError is a non-2xx response from the Chat API.
type APIError struct {
	StatusCode int
	Message    string
	Detail     []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (e *APIError) DetailJSON() []byte {
	if e == nil {
		return nil
	}
	return e.Detail
}

// RateLimitError is a response whose detail names a quota or subscription
// condition.
type RateLimitError struct {
	StatusCode int
	Info       types.RateLimitInfo
}

func (e *RateLimitError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Info.Message)
	if msg == "" {
		msg = string(e.Info.Kind)
	}
	return fmt.Sprintf("rate limited (%d): %s", e.StatusCode, msg)
}

func (e *RateLimitError) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (e *RateLimitError) RateLimitInfo() types.RateLimitInfo {
	if e == nil {
		return types.RateLimitInfo{}
	}
	return e.Info
}

// decodeAPIError understands FastAPI bodies ({"detail": ...}) as well as
// {"error": "..."} bodies.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	if !gjson.ValidBytes(body) {
		if text := strings.TrimSpace(string(body)); text != "" {
			apiErr.Message = text
		}
		return apiErr
	}
	root := gjson.ParseBytes(body)
	detail := root.Get("detail")
	switch {
	case ratelimit.IsQuotaDetail(detail):
		return &RateLimitError{StatusCode: resp.StatusCode, Info: ratelimit.InfoFromDetail(detail)}
	case detail.IsObject():
		apiErr.Detail = []byte(detail.Raw)
		if msg := firstNonEmpty(detail.Get("message").String(), detail.Get("error").String()); msg != "" {
			apiErr.Message = msg
		}
	case detail.IsArray():
		apiErr.Detail = []byte(detail.Raw)
		var parts []string
		detail.ForEach(func(_, item gjson.Result) bool {
			if msg := strings.TrimSpace(item.Get("msg").String()); msg != "" {
				parts = append(parts, msg)
			}
			return true
		})
		if len(parts) > 0 {
			apiErr.Message = strings.Join(parts, "; ")
		}
	case detail.Type == gjson.String:
		if msg := strings.TrimSpace(detail.String()); msg != "" {
			apiErr.Message = msg
		}
	default:
		if msg := strings.TrimSpace(root.Get("error").String()); msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
