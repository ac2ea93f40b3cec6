package domain

import "time"

// UserCredential is a user's OAuth2 token pair for a tool within an
// organization. One per (org, user, tool); created on the first successful
// OAuth callback, mutated on refresh, deleted explicitly.
type UserCredential struct {
	ID           string    `bson:"_id" json:"id"`
	OrgID        string    `bson:"org_id" json:"orgId"`
	UserID       string    `bson:"user_id" json:"userId"`
	ToolID       string    `bson:"tool_id" json:"toolId"`
	AccessToken  string    `bson:"access_token" json:"-"`
	RefreshToken string    `bson:"refresh_token" json:"-"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expiresAt"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// ExpiresWithin reports whether the access token expires within d from now.
// A zero ExpiresAt counts as expired.
func (c *UserCredential) ExpiresWithin(d time.Duration) bool {
	return !c.ExpiresAt.After(time.Now().Add(d))
}
