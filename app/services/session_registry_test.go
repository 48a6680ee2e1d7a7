package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessionRepo is an in-memory WhatsAppSessionRepository
type fakeSessionRepo struct {
	sessions map[string]*models.WhatsAppSession
	nextID   uint
	touched  []uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.WhatsAppSession), nextID: 1}
}

func sessionKey(customerID uint, backend models.DeliveryMethod) string {
	return fmt.Sprintf("%d/%s", customerID, backend)
}

func (r *fakeSessionRepo) ByCustomerAndBackend(ctx context.Context, customerID uint, backend models.DeliveryMethod) (*models.WhatsAppSession, error) {
	s := r.sessions[sessionKey(customerID, backend)]
	if s == nil || !s.IsActive {
		return nil, nil
	}
	return s, nil
}

func (r *fakeSessionRepo) Activate(ctx context.Context, customerID uint, backend models.DeliveryMethod, sessionName string) (*models.WhatsAppSession, error) {
	s := &models.WhatsAppSession{
		ID:          r.nextID,
		CustomerID:  customerID,
		Backend:     backend,
		SessionName: sessionName,
		IsActive:    true,
	}
	r.nextID++
	r.sessions[sessionKey(customerID, backend)] = s
	return s, nil
}

func (r *fakeSessionRepo) Invalidate(ctx context.Context, customerID uint, backend models.DeliveryMethod) error {
	if s := r.sessions[sessionKey(customerID, backend)]; s != nil {
		s.IsActive = false
	}
	return nil
}

func (r *fakeSessionRepo) Touch(ctx context.Context, id uint) error {
	r.touched = append(r.touched, id)
	return nil
}

func TestSessionRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newFakeSessionRepo()
	primary := NewMockWhatsAppClient(models.DeliveryMethodPrimary)
	fallback := NewMockWhatsAppClient(models.DeliveryMethodFallback)
	registry := NewSessionRegistry(repo, primary, fallback)

	t.Run("create registers an active session", func(t *testing.T) {
		session, err := registry.Create(ctx, 7, models.DeliveryMethodPrimary)
		require.NoError(t, err)
		assert.Equal(t, "account_7_primary", session.SessionName)
		assert.True(t, session.IsActive)

		got, err := registry.Get(ctx, 7, models.DeliveryMethodPrimary)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, session.ID, got.ID)
	})

	t.Run("create rejects an unconfigured backend", func(t *testing.T) {
		_, err := registry.Create(ctx, 7, models.DeliveryMethod("carrier-pigeon"))
		assert.Error(t, err)
	})

	t.Run("invalidate retires the session", func(t *testing.T) {
		require.NoError(t, registry.Invalidate(ctx, 7, models.DeliveryMethodPrimary))

		got, err := registry.Get(ctx, 7, models.DeliveryMethodPrimary)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("status reflects live connectivity", func(t *testing.T) {
		status, err := registry.Status(ctx, 7, models.DeliveryMethodFallback)
		require.NoError(t, err)
		assert.True(t, status.Connected)

		fallback.SetConnected(false)
		status, err = registry.Status(ctx, 7, models.DeliveryMethodFallback)
		require.NoError(t, err)
		assert.False(t, status.Connected)
		fallback.SetConnected(true)
	})
}

func TestAwaitReady(t *testing.T) {
	ctx := context.Background()

	t.Run("returns immediately when connected", func(t *testing.T) {
		repo := newFakeSessionRepo()
		primary := NewMockWhatsAppClient(models.DeliveryMethodPrimary)
		registry := NewSessionRegistry(repo, primary)

		session, err := registry.Create(ctx, 3, models.DeliveryMethodPrimary)
		require.NoError(t, err)

		require.NoError(t, registry.AwaitReady(ctx, 3, models.DeliveryMethodPrimary, time.Second))
		assert.Equal(t, []uint{session.ID}, repo.touched)
	})

	t.Run("times out on a disconnected backend", func(t *testing.T) {
		primary := NewMockWhatsAppClient(models.DeliveryMethodPrimary)
		primary.SetConnected(false)
		registry := NewSessionRegistry(newFakeSessionRepo(), primary)

		err := registry.AwaitReady(ctx, 3, models.DeliveryMethodPrimary, 50*time.Millisecond)
		assert.ErrorIs(t, err, ErrSessionNotReady)
	})

	t.Run("unconfigured backend", func(t *testing.T) {
		registry := NewSessionRegistry(newFakeSessionRepo())
		err := registry.AwaitReady(ctx, 3, models.DeliveryMethodPrimary, utils.SessionReadyTimeout)
		assert.Error(t, err)
	})
}
