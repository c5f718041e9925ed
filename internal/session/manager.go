package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/congo-pay/custody/internal/registry"
	"github.com/congo-pay/custody/internal/store"
)

const (
	activeKey = "active"
	roleKey   = "role"
)

// Manager owns the single active session of the process. The session is
// persisted to a collection so the next process can pick it up, and is
// reconciled against the registry once, when the manager is built.
type Manager struct {
	registry *registry.Registry
	pointer  store.Collection
	logger   *slog.Logger

	mu      sync.RWMutex
	current Session
}

// NewManager restores the persisted session and subscribes to registry
// deletions so removing the active account logs it out.
func NewManager(ctx context.Context, reg *registry.Registry, pointer store.Collection, logger *slog.Logger) (*Manager, error) {
	m := &Manager{registry: reg, pointer: pointer, logger: logger, current: noSession()}
	if err := m.reconcile(ctx); err != nil {
		return nil, fmt.Errorf("reconcile session: %w", err)
	}
	reg.OnDelete(m.forget)
	return m, nil
}

func (m *Manager) reconcile(ctx context.Context) error {
	id, err := m.pointer.Get(ctx, activeKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return m.restoreRole(ctx)
	case err != nil:
		return err
	}

	profile, err := m.registry.FindByIdentifier(ctx, id)
	if errors.Is(err, registry.ErrUserNotFound) {
		m.logger.Info("discarding stale session", slog.String("id", id))
		return m.clear(ctx)
	}
	if err != nil {
		return err
	}
	m.current = Session{Kind: AuthenticatedAccount, Role: roleFor(profile), AccountID: id}
	return nil
}

func (m *Manager) restoreRole(ctx context.Context) error {
	role, err := m.pointer.Get(ctx, roleKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !IsAnonymousRole(role) {
		m.logger.Warn("discarding unknown persisted role", slog.String("role", role))
		return m.pointer.Delete(ctx, roleKey)
	}
	m.current = Session{Kind: AnonymousRole, Role: role}
	return nil
}

// Current returns the active session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Login activates an account session for id.
func (m *Manager) Login(ctx context.Context, id string) (registry.Profile, error) {
	profile, err := m.registry.FindByIdentifier(ctx, id)
	if err != nil {
		return registry.Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pointer.Put(ctx, activeKey, id); err != nil {
		return registry.Profile{}, err
	}
	if err := m.pointer.Delete(ctx, roleKey); err != nil {
		return registry.Profile{}, err
	}
	m.current = Session{Kind: AuthenticatedAccount, Role: roleFor(profile), AccountID: id}
	return profile, nil
}

// AssumeRole activates an anonymous session. It never consults the registry.
func (m *Manager) AssumeRole(ctx context.Context, role string) error {
	if !IsAnonymousRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pointer.Delete(ctx, activeKey); err != nil {
		return err
	}
	if err := m.pointer.Put(ctx, roleKey, role); err != nil {
		return err
	}
	m.current = Session{Kind: AnonymousRole, Role: role}
	return nil
}

// Logout clears the session and resets the role to DefaultRole.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clear(ctx)
}

// clear must be called with the lock held or before the manager is shared.
func (m *Manager) clear(ctx context.Context) error {
	if err := m.pointer.Delete(ctx, activeKey); err != nil {
		return err
	}
	if err := m.pointer.Delete(ctx, roleKey); err != nil {
		return err
	}
	m.current = noSession()
	return nil
}

func (m *Manager) forget(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Kind != AuthenticatedAccount || m.current.AccountID != id {
		return nil
	}
	m.logger.Info("active account deleted, logging out", slog.String("id", id))
	return m.clear(ctx)
}
