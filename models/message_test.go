package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatusValid(t *testing.T) {
	valid := []MessageStatus{
		MessageStatusPending,
		MessageStatusSent,
		MessageStatusDelivered,
		MessageStatusFailed,
		MessageStatusBounced,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), "expected %s to be valid", s)
	}

	assert.False(t, MessageStatus("queued").Valid())
	assert.False(t, MessageStatus("").Valid())
}

func TestDeliveryMethodOther(t *testing.T) {
	assert.Equal(t, DeliveryMethodFallback, DeliveryMethodPrimary.Other())
	assert.Equal(t, DeliveryMethodPrimary, DeliveryMethodFallback.Other())
}

func TestDeliveryMethodScan(t *testing.T) {
	var m DeliveryMethod

	assert.NoError(t, m.Scan("fallback"))
	assert.Equal(t, DeliveryMethodFallback, m)

	assert.NoError(t, m.Scan([]byte("primary")))
	assert.Equal(t, DeliveryMethodPrimary, m)

	assert.NoError(t, m.Scan(nil))
	assert.Equal(t, DeliveryMethod(""), m)

	assert.Error(t, m.Scan(42))
}

func TestCampaignIsSchedulable(t *testing.T) {
	tests := []struct {
		status      CampaignStatus
		schedulable bool
	}{
		{CampaignStatusDraft, true},
		{CampaignStatusScheduled, true},
		{CampaignStatusSending, false},
		{CampaignStatusSent, false},
		{CampaignStatusFailed, false},
	}

	for _, tt := range tests {
		c := &Campaign{Status: tt.status}
		assert.Equal(t, tt.schedulable, c.IsSchedulable(), "status %s", tt.status)
	}
}

func TestPacingPolicyValue(t *testing.T) {
	v, err := PacingSafe.Value()
	assert.NoError(t, err)
	assert.Equal(t, "safe", v)

	_, err = PacingPolicy("turbo").Value()
	assert.Error(t, err)
}
