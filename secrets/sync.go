package secrets

import (
	"context"
	"fmt"

	"go.pilab.hu/toolbridge/domain"
)

// Syncer mirrors org auth configs into the secret store. All of its methods
// are called through besteffort.Attempt: a sync failure is logged by the
// caller and never aborts the request that triggered it.
type Syncer struct {
	store  Store
	prefix string
}

// NewSyncer creates a Syncer writing under the given name prefix.
func NewSyncer(store Store, prefix string) *Syncer {
	return &Syncer{store: store, prefix: prefix}
}

// MirrorConfig writes the config into the secret store, creating the secret
// when absent and appending a new version otherwise.
func (s *Syncer) MirrorConfig(ctx context.Context, cfg *domain.OrgAuthConfig) error {
	name := ConfigName(s.prefix, cfg.OrgID, cfg.ToolID)

	value := map[string]any{
		"type":   string(cfg.Type),
		"config": cfg.Config,
	}

	exists, err := s.store.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("secret existence check failed for %s: %w", name, err)
	}
	if exists {
		if err := s.store.Update(ctx, name, value); err != nil {
			return fmt.Errorf("secret update failed for %s: %w", name, err)
		}
		return nil
	}
	if err := s.store.Create(ctx, name, value); err != nil {
		return fmt.Errorf("secret create failed for %s: %w", name, err)
	}
	return nil
}

// RemoveConfig deletes the mirrored secret for the (org, tool) pair.
func (s *Syncer) RemoveConfig(ctx context.Context, orgID, toolID string) error {
	name := ConfigName(s.prefix, orgID, toolID)
	if err := s.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("secret delete failed for %s: %w", name, err)
	}
	return nil
}
