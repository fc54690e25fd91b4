package config

import (
	"strings"

	"github.com/alphadominico/subscription-backend/internal/pkg/env"
)

// Config holds all process-wide settings read once at startup. It is passed
// explicitly into constructors instead of being read from the environment at
// call sites, so components stay testable with plain struct literals.
type Config struct {
	// Razorpay API credentials. KeyID is public (handed to the frontend
	// checkout), KeySecret signs payment confirmations.
	KeyID     string
	KeySecret string

	// WebhookSecret is a separate secret used only for webhook bodies.
	WebhookSecret string

	// PlanIDs maps the server-side plan keys (standard, pro) to the
	// provider plan identifiers. The keys of this map are the only plan
	// keys accepted from clients.
	PlanIDs map[string]string

	FrontendURL    string
	AllowedOrigins []string
}

// Load builds the immutable configuration from the environment.
func Load() Config {
	frontend := strings.TrimSpace(env.GetEnv("FRONTEND_URL", "http://localhost:3000"))

	origins := splitOrigins(env.GetEnv("ALLOWED_ORIGINS", frontend))
	if len(origins) == 0 {
		origins = []string{frontend}
	}

	return Config{
		KeyID:         strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_ID", "")),
		KeySecret:     strings.TrimSpace(env.GetEnv("RAZORPAY_KEY_SECRET", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("RAZORPAY_WEBHOOK_SECRET", "")),
		PlanIDs: map[string]string{
			"standard": strings.TrimSpace(env.GetEnv("RAZORPAY_STANDARD_PLAN_ID", "")),
			"pro":      strings.TrimSpace(env.GetEnv("RAZORPAY_PRO_PLAN_ID", "")),
		},
		FrontendURL:    frontend,
		AllowedOrigins: origins,
	}
}

// PlanID resolves a plan key against the server-side allow-list. The second
// return reports whether the key is allowed at all; an allowed key may still
// map to an empty provider id when the plan is not configured.
func (c Config) PlanID(planKey string) (string, bool) {
	id, ok := c.PlanIDs[strings.ToLower(strings.TrimSpace(planKey))]
	return id, ok
}

func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
