package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alphadominico/subscription-backend/internal/pkg/config"
	"github.com/alphadominico/subscription-backend/internal/pkg/subscription"
)

const defaultAPIBaseURL = "https://api.razorpay.com/v1"

// Client talks to the Razorpay REST API. It implements
// subscription.ProviderGateway. Requests carry the caller's context and the
// HTTP client has a hard timeout; the client never retries — that is the
// caller's decision.
type Client struct {
	KeyID     string
	KeySecret string

	APIBaseURL string

	HTTPClient *http.Client
}

// NewClient builds a Razorpay client from the process configuration.
func NewClient(cfg config.Config) *Client {
	return &Client{
		KeyID:      cfg.KeyID,
		KeySecret:  cfg.KeySecret,
		APIBaseURL: defaultAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type subscriptionResponse struct {
	ID string `json:"id"`
}

// CreateSubscription creates an upstream subscription and returns its id.
func (c *Client) CreateSubscription(ctx context.Context, params subscription.CreateParams) (string, error) {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return "", errors.New("RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET are not configured")
	}
	if strings.TrimSpace(params.PlanID) == "" {
		return "", errors.New("plan id is required")
	}

	notify := 0
	if params.CustomerNotify {
		notify = 1
	}
	body := map[string]interface{}{
		"plan_id":         params.PlanID,
		"total_count":     params.TotalCount,
		"quantity":        params.Quantity,
		"customer_notify": notify,
	}
	if len(params.Notes) > 0 {
		body["notes"] = params.Notes
	}

	var out subscriptionResponse
	if err := c.post(ctx, "/subscriptions", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("subscription create returned empty id")
	}
	return out.ID, nil
}

// CancelAtCycleEnd schedules the subscription to end at the current cycle
// boundary instead of immediately.
func (c *Client) CancelAtCycleEnd(ctx context.Context, subscriptionID string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id is required")
	}

	body := map[string]interface{}{"cancel_at_cycle_end": 1}
	var out subscriptionResponse
	return c.post(ctx, "/subscriptions/"+id+"/cancel", body, &out)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	base := strings.TrimRight(c.APIBaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.KeyID, c.KeySecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &subscription.GatewayError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("razorpay response decode failed: %w", err)
		}
	}
	return nil
}
