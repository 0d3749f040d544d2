package gemini

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

// classifyErr maps a raw genai SDK error onto the inference error taxonomy.
// Quota and network problems become transient; everything else permanent.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	// Pass through errors that are already classified.
	var te *inference.TransientError
	var pe *inference.PermanentError
	if errors.As(err, &te) || errors.As(err, &pe) {
		return err
	}
	switch {
	case isQuotaErr(err):
		return &inference.TransientError{Kind: inference.KindQuota, Err: err}
	case isNetworkErr(err):
		return &inference.TransientError{Kind: inference.KindNetwork, Err: err}
	default:
		return &inference.PermanentError{Err: err}
	}
}

// isQuotaErr reports whether err is a rate-limit or quota-exhaustion
// response from the Gemini API.
func isQuotaErr(err error) bool {
	var pe *inference.PermanentError
	if errors.As(err, &pe) {
		return false
	}
	if inference.IsQuota(err) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}

// isNetworkErr reports whether err is a connection-level failure (DNS,
// reset, timeout) rather than a response from the service.
func isNetworkErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "getaddrinfo")
}
