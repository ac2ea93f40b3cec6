package domain

import "context"

// ToolRepository provides read access to registered tools.
type ToolRepository interface {
	// GetToolByID returns the tool or a not_found error.
	GetToolByID(ctx context.Context, id string) (*Tool, error)
}

// AuthConfigRepository stores org-level tool auth configs.
type AuthConfigRepository interface {
	// GetAuthConfig returns the config for the (org, tool) pair or a
	// not_found error.
	GetAuthConfig(ctx context.Context, orgID, toolID string) (*OrgAuthConfig, error)
	// UpsertAuthConfig creates or replaces the config for its (org, tool)
	// pair, assigning an ID and timestamps when absent.
	UpsertAuthConfig(ctx context.Context, cfg *OrgAuthConfig) error
	// DeleteAuthConfig removes the config; not_found when absent.
	DeleteAuthConfig(ctx context.Context, orgID, toolID string) error
}

// CredentialRepository stores user-level OAuth2 credentials.
type CredentialRepository interface {
	// GetCredential returns the credential for (org, user, tool) or a
	// not_found error.
	GetCredential(ctx context.Context, orgID, userID, toolID string) (*UserCredential, error)
	// UpsertCredential creates or replaces the credential for its
	// (org, user, tool) triple, assigning an ID and timestamps when absent.
	// The credential's ID is populated on return.
	UpsertCredential(ctx context.Context, cred *UserCredential) error
	// DeleteCredential removes the credential; not_found when absent.
	DeleteCredential(ctx context.Context, orgID, userID, toolID string) error
}

// ActionRepository provides read access to action definitions.
type ActionRepository interface {
	// GetActionByKey returns the action for (org, key) or a not_found error.
	GetActionByKey(ctx context.Context, orgID, key string) (*ActionDefinition, error)
}
