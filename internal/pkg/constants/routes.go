package constants

// Static route constants
const (
	APIPrefix = "/api"

	HealthRoute             = "/health"
	CreateSubscriptionRoute = "/create-subscription"
	PaymentSuccessRoute     = "/payment-success"
	CancelSubscriptionRoute = "/cancel-subscription"
	SubscriptionStatusRoute = "/subscription-status"

	// Full path for the provider webhook; registered outside the API group.
	WebhookRoute = "/api/webhook/razorpay"
)
