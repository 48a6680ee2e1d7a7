package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
)

// GatewayClient talks to one WhatsApp delivery gateway over HTTP. The actual
// WhatsApp protocol lives behind the gateway; this client only frames send
// and status calls and classifies failures.
type GatewayClient struct {
	method models.DeliveryMethod
	cfg    config.GatewayConfig
	client *http.Client
}

// NewPrimaryClient creates the client for the primary delivery gateway
func NewPrimaryClient(cfg config.GatewayConfig) *GatewayClient {
	return newGatewayClient(models.DeliveryMethodPrimary, cfg)
}

// NewFallbackClient creates the client for the fallback delivery gateway
func NewFallbackClient(cfg config.GatewayConfig) *GatewayClient {
	return newGatewayClient(models.DeliveryMethodFallback, cfg)
}

func newGatewayClient(method models.DeliveryMethod, cfg config.GatewayConfig) *GatewayClient {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = utils.SendTimeout
	}
	return &GatewayClient{
		method: method,
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Method returns which delivery method this client represents
func (g *GatewayClient) Method() models.DeliveryMethod {
	return g.method
}

type gatewaySendRequest struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

type gatewaySendResponse struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Send delivers one message through the gateway. Failures are classified:
// gateway-reported missing session -> NotConnected, recipient rejection ->
// InvalidRecipient, exceeded acknowledgment wait -> Timeout, everything
// else -> Transient.
func (g *GatewayClient) Send(ctx context.Context, customerID uint, recipientPhone, body string) (*SendResult, error) {
	payload, err := json.Marshal(gatewaySendRequest{
		Recipient: recipientPhone,
		Body:      body,
	})
	if err != nil {
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), err)
	}

	sendTimeout := g.cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = utils.SendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/v1/accounts/%d/messages", g.cfg.BaseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewDeliveryError(DeliveryErrTimeout, string(g.method), err)
		}
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), err)
	}
	defer resp.Body.Close()

	var out gatewaySendResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil && resp.StatusCode < 300 {
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), decodeErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		ts := utils.UTCNow()
		if out.Timestamp > 0 {
			ts = time.Unix(out.Timestamp, 0).UTC()
		}
		if out.MessageID == "" {
			return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), fmt.Errorf("gateway accepted send without message id"))
		}
		return &SendResult{MessageID: out.MessageID, Timestamp: ts}, nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnauthorized:
		return nil, NewDeliveryError(DeliveryErrNotConnected, string(g.method), fmt.Errorf("gateway session not connected: %s", out.Error))
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, NewDeliveryError(DeliveryErrInvalidRecipient, string(g.method), fmt.Errorf("gateway rejected recipient: %s", out.Error))
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, NewDeliveryError(DeliveryErrTimeout, string(g.method), fmt.Errorf("gateway timeout: %s", out.Error))
	default:
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), fmt.Errorf("gateway http status %d: %s", resp.StatusCode, out.Error))
	}
}

// Status reports whether the gateway holds an authenticated session for the account
func (g *GatewayClient) Status(ctx context.Context, customerID uint) (*SessionStatus, error) {
	url := fmt.Sprintf("%s/api/v1/accounts/%d/status", g.cfg.BaseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), err)
	}
	req.Header.Set("x-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), fmt.Errorf("gateway status http status: %d", resp.StatusCode))
	}

	var out SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewDeliveryError(DeliveryErrTransient, string(g.method), err)
	}
	return &out, nil
}
