package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want DeliveryErrorCode
	}{
		{
			name: "classified error",
			err:  NewDeliveryError(DeliveryErrNotConnected, "primary", nil),
			want: DeliveryErrNotConnected,
		},
		{
			name: "classified error deep in a chain",
			err:  fmt.Errorf("send failed: %w", NewDeliveryError(DeliveryErrTimeout, "fallback", nil)),
			want: DeliveryErrTimeout,
		},
		{
			name: "unclassified error counts as transient",
			err:  errors.New("connection reset"),
			want: DeliveryErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestFailoverEligible(t *testing.T) {
	tests := []struct {
		code DeliveryErrorCode
		want bool
	}{
		{DeliveryErrNotConnected, true},
		{DeliveryErrTimeout, true},
		{DeliveryErrTransient, true},
		{DeliveryErrInvalidRecipient, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewDeliveryError(tt.code, "primary", nil)
			assert.Equal(t, tt.want, FailoverEligible(err))
		})
	}

	t.Run("unclassified errors fail over", func(t *testing.T) {
		assert.True(t, FailoverEligible(errors.New("boom")))
	})
}

func TestIsInvalidRecipient(t *testing.T) {
	assert.True(t, IsInvalidRecipient(NewDeliveryError(DeliveryErrInvalidRecipient, "primary", nil)))
	assert.False(t, IsInvalidRecipient(NewDeliveryError(DeliveryErrTimeout, "primary", nil)))
	assert.False(t, IsInvalidRecipient(errors.New("boom")))
}

func TestDeliveryErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewDeliveryError(DeliveryErrTransient, "fallback", cause)

	assert.Equal(t, "TRANSIENT via fallback: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewDeliveryError(DeliveryErrNotConnected, "primary", nil)
	assert.Equal(t, "NOT_CONNECTED via primary", bare.Error())
}
