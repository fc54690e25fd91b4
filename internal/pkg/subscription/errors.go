package subscription

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlan means the client supplied a plan key outside the
	// server-side allow-list.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrPlanNotConfigured means the plan key is allowed but has no
	// provider plan id configured for this deployment.
	ErrPlanNotConfigured = errors.New("plan not configured")

	// ErrInvalidSignature means a payment confirmation failed HMAC
	// verification. No state is mutated when this is returned.
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrUpstreamRejected means the payment provider rejected the request
	// (4xx class). ErrUpstream covers transport failures and 5xx answers.
	ErrUpstreamRejected = errors.New("provider rejected request")
	ErrUpstream         = errors.New("provider request failed")

	// ErrNotFound means no subscriber exists for the given email.
	ErrNotFound = errors.New("subscriber not found")
)

// GatewayError is returned by ProviderGateway implementations for non-2xx
// provider responses, so callers can distinguish rejections from outages.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// IsRejection reports whether the provider refused the request as opposed to
// failing to serve it.
func (e *GatewayError) IsRejection() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
