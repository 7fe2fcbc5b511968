package models

import "time"

// MaxContextContentLength is the maximum content length in characters
const MaxContextContentLength = 100000

// Context is a piece of conversational memory scoped to a session. Contexts
// with an ExpiresAt in the past are unreachable.
type Context struct {
	ContextID string     `json:"contextId" bson:"contextId" validate:"required"`
	UserID    string     `json:"userId" bson:"userId" validate:"required"`
	SessionID string     `json:"sessionId" bson:"sessionId" validate:"required"`
	Content   string     `json:"content" bson:"content" validate:"required,max=100000"`
	Metadata  Map        `json:"metadata" bson:"metadata"`
	Tags      []string   `json:"tags" bson:"tags"`
	ExpiresAt *time.Time `json:"expiresAt" bson:"expiresAt"`
	Timestamps `bson:",inline"`
}

func (c *Context) Key() string      { return c.ContextID }
func (c *Context) Owner() string    { return c.UserID }
func (c *Context) TagSet() []string { return c.Tags }

func (c *Context) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

func (c *Context) Attr(field string) (string, bool) {
	switch field {
	case "contextId":
		return c.ContextID, true
	case "userId":
		return c.UserID, true
	case "sessionId":
		return c.SessionID, true
	}
	return "", false
}

// CreateContextRequest is the request body for POST /contexts
type CreateContextRequest struct {
	SessionID string     `json:"sessionId,omitempty" validate:"omitempty,max=256"`
	Content   string     `json:"content" validate:"required,max=100000"`
	Metadata  Map        `json:"metadata,omitempty"`
	Tags      []string   `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// UpdateContextRequest is the request body for PUT /contexts/:contextId
type UpdateContextRequest struct {
	Content  *string   `json:"content,omitempty" validate:"omitempty,min=1,max=100000"`
	Metadata Map       `json:"metadata,omitempty"`
	Tags     *[]string `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
}
