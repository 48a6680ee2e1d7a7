package utils

import (
	"time"
)

// Delivery timing constants
const (
	// SendTimeout bounds one backend send call; exceeding it counts as a
	// Timeout failure for retry purposes
	SendTimeout = 15 * time.Second

	// SessionReadyTimeout bounds the wait for a backend session to become
	// ready before a send is attempted
	SessionReadyTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for one queue job
	DefaultMaxRetries = 3

	// RetryBaseDelay is the base for exponential retry backoff
	// (RetryBaseDelay * 2^attemptsMade)
	RetryBaseDelay = 2 * time.Second
)

// Phone normalization constants
const (
	// MinPhoneDigits is the minimum number of digits a recipient phone may
	// have after stripping formatting
	MinPhoneDigits = 10

	// DefaultCountryCode is prepended to bare 10-digit numbers
	DefaultCountryCode = "91"
)

// HTTP constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// ContextKey is the type for request-scoped context values
type ContextKey string

// Request-scoped context keys for observability
const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	CancelFuncKey ContextKey = "cancel_func"
)

// Poller constants
const (
	// DeliveryPollInterval is how often the polling fallback scans sent messages
	DeliveryPollInterval = 30 * time.Second

	// DeliveryPollWindow bounds the scan to recently sent messages
	DeliveryPollWindow = 24 * time.Hour

	// DeliveryGracePeriod is how long a sent message must sit unconfirmed
	// before the polling fallback optimistically marks it delivered
	DeliveryGracePeriod = time.Hour
)
