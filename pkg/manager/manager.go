package manager

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/storefront/pkg/auth"
	"github.com/cuemby/storefront/pkg/config"
	"github.com/cuemby/storefront/pkg/events"
	"github.com/cuemby/storefront/pkg/inventory"
	"github.com/cuemby/storefront/pkg/lifecycle"
	"github.com/cuemby/storefront/pkg/log"
	"github.com/cuemby/storefront/pkg/metrics"
	"github.com/cuemby/storefront/pkg/security"
	"github.com/cuemby/storefront/pkg/storage"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager is the storefront application context. It owns the store handle
// and every component built on it; all actions go through it.
type Manager struct {
	cfg       *config.Config
	store     storage.Store
	ownsStore bool

	users    *storage.Repo[types.User]
	products *storage.Repo[types.Product]
	orders   *storage.Repo[types.Order]

	hasher      *security.PasswordHasher
	issuer      *security.TokenIssuer
	revocations *auth.Revocations
	resolver    *auth.Resolver
	inventory   *inventory.Manager
	eventBroker *events.Broker

	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewManager opens the database in cfg.DataDir and creates a Manager on it.
// Shutdown closes the database.
func NewManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	m, err := New(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	m.ownsStore = true
	return m, nil
}

// New creates a Manager on an open store. The caller keeps ownership of store.
func New(ctx context.Context, cfg *config.Config, store storage.Store) (*Manager, error) {
	hasher, err := security.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	issuer, err := security.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	revocations := auth.NewRevocations(store)
	if err := revocations.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load revoked tokens: %w", err)
	}

	machine := lifecycle.Machine{Strict: cfg.Orders.StrictTransitions}

	eventBroker := events.NewBroker()
	eventBroker.Start()

	return &Manager{
		cfg:         cfg,
		store:       store,
		users:       storage.NewRepo(store, storage.Users),
		products:    storage.NewRepo(store, storage.Products),
		orders:      storage.NewRepo(store, storage.Orders),
		hasher:      hasher,
		issuer:      issuer,
		revocations: revocations,
		resolver:    auth.NewResolver(store, issuer, revocations),
		inventory:   inventory.NewManager(store, machine),
		eventBroker: eventBroker,
		logger:      log.WithComponent("manager"),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}, nil
}

// Config returns the configuration the manager was built with
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Store returns the underlying document store
func (m *Manager) Store() storage.Store {
	return m.store
}

// Revocations returns the revoked token list
func (m *Manager) Revocations() *auth.Revocations {
	return m.revocations
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// PublishEvent publishes an event to all subscribers
func (m *Manager) PublishEvent(event *events.Event) {
	if m.eventBroker != nil {
		m.eventBroker.Publish(event)
	}
}

// Ping checks that the store answers a read transaction
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.View(ctx, func(tx *storage.Tx) error { return nil })
}

// Shutdown stops the event broker and closes the store if the manager opened it
func (m *Manager) Shutdown() error {
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}

	if m.ownsStore && m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}
	return nil
}

// observe records the duration and outcome of an action
func observe(action string, timer *metrics.Timer, err *error) {
	timer.ObserveDurationVec(metrics.ActionDuration, action)
	metrics.ActionsTotal.WithLabelValues(action, metrics.Result(*err)).Inc()
}
