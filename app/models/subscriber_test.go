package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriberIsActive(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{SubscriberStatusTrial, true},
		{SubscriberStatusActive, true},
		{SubscriberStatusCancelled, false},
		{SubscriberStatusExpired, false},
		{SubscriberStatusPaymentFailed, false},
	}

	for _, tt := range tests {
		s := &Subscriber{Status: tt.status}
		assert.Equal(t, tt.want, s.IsActive(), "status %q", tt.status)
	}
}

func TestSubscriberIsTerminal(t *testing.T) {
	assert.True(t, (&Subscriber{Status: SubscriberStatusCancelled}).IsTerminal())
	assert.True(t, (&Subscriber{Status: SubscriberStatusExpired}).IsTerminal())
	assert.False(t, (&Subscriber{Status: SubscriberStatusActive}).IsTerminal())
	assert.False(t, (&Subscriber{Status: SubscriberStatusPaymentFailed}).IsTerminal())
}

func TestValidPlanKey(t *testing.T) {
	assert.True(t, ValidPlanKey(PlanStandard))
	assert.True(t, ValidPlanKey(PlanPro))
	assert.False(t, ValidPlanKey("enterprise"))
	assert.False(t, ValidPlanKey(""))
}
