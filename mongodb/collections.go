package mongodb

const (
	ToolsCollection       = "tools"             // Registered third-party tools
	AuthConfigsCollection = "tool_auth_configs" // Org-level tool auth configs
	CredentialsCollection = "user_credentials"  // User OAuth2 token pairs
	ActionsCollection     = "actions"           // Action definitions
)
