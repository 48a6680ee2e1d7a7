package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
)

// ErrSessionNotReady is returned when a backend session does not become
// ready within the bounded wait.
var ErrSessionNotReady = errors.New("backend session not ready")

// sessionReadyPollInterval is how often AwaitReady re-checks the backend
const sessionReadyPollInterval = 500 * time.Millisecond

// SessionRegistry owns the lifecycle of delivery-backend sessions. Callers
// always go through the registry with an explicit customer id; there is no
// ambient global session state.
type SessionRegistry struct {
	sessionRepo repository.WhatsAppSessionRepository
	clients     map[models.DeliveryMethod]WhatsAppClient
}

// NewSessionRegistry creates a session registry over the given clients
func NewSessionRegistry(sessionRepo repository.WhatsAppSessionRepository, clients ...WhatsAppClient) *SessionRegistry {
	byMethod := make(map[models.DeliveryMethod]WhatsAppClient, len(clients))
	for _, c := range clients {
		byMethod[c.Method()] = c
	}
	return &SessionRegistry{
		sessionRepo: sessionRepo,
		clients:     byMethod,
	}
}

// Create registers an active session for the customer on the given backend
func (r *SessionRegistry) Create(ctx context.Context, customerID uint, backend models.DeliveryMethod) (*models.WhatsAppSession, error) {
	if _, ok := r.clients[backend]; !ok {
		return nil, fmt.Errorf("no client configured for backend %s", backend)
	}
	sessionName := fmt.Sprintf("account_%d_%s", customerID, backend)
	return r.sessionRepo.Activate(ctx, customerID, backend, sessionName)
}

// Get returns the customer's session for the backend, or nil when absent
func (r *SessionRegistry) Get(ctx context.Context, customerID uint, backend models.DeliveryMethod) (*models.WhatsAppSession, error) {
	return r.sessionRepo.ByCustomerAndBackend(ctx, customerID, backend)
}

// Invalidate deactivates the customer's session for the backend
func (r *SessionRegistry) Invalidate(ctx context.Context, customerID uint, backend models.DeliveryMethod) error {
	return r.sessionRepo.Invalidate(ctx, customerID, backend)
}

// Status reports the live backend connectivity for the customer
func (r *SessionRegistry) Status(ctx context.Context, customerID uint, backend models.DeliveryMethod) (*SessionStatus, error) {
	client, ok := r.clients[backend]
	if !ok {
		return nil, fmt.Errorf("no client configured for backend %s", backend)
	}
	return client.Status(ctx, customerID)
}

// AwaitReady blocks until the backend reports a connected session for the
// customer or the timeout elapses. It replaces callback-style readiness
// events with a single suspension point.
func (r *SessionRegistry) AwaitReady(ctx context.Context, customerID uint, backend models.DeliveryMethod, timeout time.Duration) error {
	client, ok := r.clients[backend]
	if !ok {
		return fmt.Errorf("no client configured for backend %s", backend)
	}
	if timeout <= 0 {
		timeout = utils.SessionReadyTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(sessionReadyPollInterval)
	defer ticker.Stop()

	for {
		status, err := client.Status(ctx, customerID)
		if err == nil && status.Connected {
			if session, sErr := r.Get(ctx, customerID, backend); sErr == nil && session != nil {
				_ = r.sessionRepo.Touch(ctx, session.ID)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: backend %s for customer %d", ErrSessionNotReady, backend, customerID)
		case <-ticker.C:
		}
	}
}
