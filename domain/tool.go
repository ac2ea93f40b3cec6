package domain

import "time"

// Tool is a registered third-party API that actions can be defined against.
// Every tool belongs to exactly one organization; the OrgID binding is the
// tenant-isolation anchor checked before any auth or dispatch operation.
type Tool struct {
	ID        string    `bson:"_id" json:"id"`
	OrgID     string    `bson:"org_id" json:"orgId"`
	Name      string    `bson:"name" json:"name"`
	BaseURL   string    `bson:"base_url" json:"baseUrl"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// ActionDefinition is a named, parameterized HTTP call against a tool.
// Endpoint may be an absolute URL or a path relative to the tool's BaseURL,
// and may contain {{name}} placeholders resolved from validated inputs.
type ActionDefinition struct {
	ID          string            `bson:"_id" json:"id"`
	OrgID       string            `bson:"org_id" json:"orgId"`
	ToolID      string            `bson:"tool_id" json:"toolId"`
	Key         string            `bson:"key" json:"key"`
	Method      string            `bson:"method" json:"method"`
	Endpoint    string            `bson:"endpoint" json:"endpoint"`
	Headers     map[string]string `bson:"headers,omitempty" json:"headers,omitempty"`
	InputSchema map[string]any    `bson:"input_schema,omitempty" json:"inputSchema,omitempty"`
	CreatedAt   time.Time         `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time         `bson:"updated_at" json:"updatedAt"`
}
