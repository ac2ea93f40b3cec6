// Package secrets defines the versioned secret-store collaborator that org
// auth configs are mirrored into, plus a best-effort sync helper. The store
// itself is an external system; only the contract and an in-memory
// implementation live here.
package secrets

import (
	"context"
	"fmt"
	"sync"

	"go.pilab.hu/toolbridge/errors"
)

// Store is durable, versioned secret storage keyed by a name string.
type Store interface {
	Create(ctx context.Context, name string, value map[string]any) error
	Update(ctx context.Context, name string, value map[string]any) error
	Get(ctx context.Context, name string) (map[string]any, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}

// ConfigName builds the canonical secret name for an org's tool auth config.
func ConfigName(prefix, orgID, toolID string) string {
	return fmt.Sprintf("%s/%s/tools/%s/config", prefix, orgID, toolID)
}

// Memory is an in-memory Store for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string][]map[string]any
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string][]map[string]any)}
}

func (m *Memory) Create(_ context.Context, name string, value map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[name]; ok {
		return errors.NewBadRequest("secret already exists: " + name)
	}
	m.secrets[name] = []map[string]any{value}
	return nil
}

func (m *Memory) Update(_ context.Context, name string, value map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.secrets[name]
	if !ok {
		return errors.NewNotFound("secret not found: " + name)
	}
	m.secrets[name] = append(versions, value)
	return nil
}

// Get returns the latest version of the named secret.
func (m *Memory) Get(_ context.Context, name string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.secrets[name]
	if !ok || len(versions) == 0 {
		return nil, errors.NewNotFound("secret not found: " + name)
	}
	return versions[len(versions)-1], nil
}

func (m *Memory) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.secrets[name]
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[name]; !ok {
		return errors.NewNotFound("secret not found: " + name)
	}
	delete(m.secrets, name)
	return nil
}

var _ Store = (*Memory)(nil)
