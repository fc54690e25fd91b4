package subscription

import (
	"encoding/json"
	"testing"
)

func TestParseWebhookEvent_Charged(t *testing.T) {
	raw := []byte(`{
		"event": "subscription.charged",
		"payload": {
			"subscription": {
				"entity": {
					"id": "sub_1",
					"notes": { "email": "a@x.com", "name": "A", "plan_key": "PRO" }
				}
			},
			"payment": {
				"entity": {
					"id": "pay_1",
					"amount": 19900,
					"currency": "INR",
					"contact": "+10000000000",
					"order_id": "order_1",
					"subscription_id": "sub_1"
				}
			}
		}
	}`)

	ev, err := parseWebhookEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Name != EventSubscriptionCharged {
		t.Fatalf("unexpected event name: %q", ev.Name)
	}
	if ev.Subscription == nil || ev.Subscription.Email != "a@x.com" {
		t.Fatalf("expected subscription entity with email, got %+v", ev.Subscription)
	}
	if ev.Subscription.PlanKey != "pro" {
		t.Fatalf("expected plan key normalized to pro, got %q", ev.Subscription.PlanKey)
	}
	if ev.Payment == nil || ev.Payment.ID != "pay_1" || ev.Payment.Amount != 19900 {
		t.Fatalf("unexpected payment entity: %+v", ev.Payment)
	}
	if ev.EntityID != "sub_1" {
		t.Fatalf("expected subscription id to win entity-id priority, got %q", ev.EntityID)
	}
}

func TestParseWebhookEvent_MissingFields(t *testing.T) {
	ev, err := parseWebhookEvent([]byte(`{"event":"subscription.activated","payload":{}}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Subscription != nil || ev.Payment != nil {
		t.Fatalf("expected absent entities to stay nil, got %+v / %+v", ev.Subscription, ev.Payment)
	}
	if ev.EntityID != "" {
		t.Fatalf("expected empty entity id, got %q", ev.EntityID)
	}
}

func TestParseWebhookEvent_InvalidJSON(t *testing.T) {
	if _, err := parseWebhookEvent([]byte("{not json")); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestExtractEntityID_Priority(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "payment id when no subscription",
			body: `{"payload":{"payment":{"entity":{"id":"pay_9"}},"order":{"entity":{"id":"order_9"}}}}`,
			want: "pay_9",
		},
		{
			name: "order id as last resort",
			body: `{"payload":{"order":{"entity":{"id":"order_9"}}}}`,
			want: "order_9",
		},
		{
			name: "empty when nothing carries an id",
			body: `{"payload":{}}`,
			want: "",
		},
	}

	for _, tt := range tests {
		var raw rawWebhookPayload
		if err := json.Unmarshal([]byte(tt.body), &raw); err != nil {
			t.Fatalf("%s: unmarshal: %v", tt.name, err)
		}
		if got := extractEntityID(&raw); got != tt.want {
			t.Fatalf("%s: extractEntityID = %q, want %q", tt.name, got, tt.want)
		}
	}
}
