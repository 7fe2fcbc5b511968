package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"assistantmemory/internal/models"
	"assistantmemory/internal/storage"
)

// ContextFilter narrows a context listing
type ContextFilter struct {
	SessionID string
	Tags      []string
	Limit     int
	Skip      int
}

// ContextService manages conversational memory records
type ContextService struct {
	contexts storage.Collection[*models.Context]
	now      func() time.Time
}

// NewContextService creates a new context service
func NewContextService(store storage.Store) *ContextService {
	return &ContextService{contexts: store.Contexts(), now: time.Now}
}

// Create stores a new context. A missing sessionId starts a new session.
func (s *ContextService) Create(ctx context.Context, userID string, req *models.CreateContextRequest) (*models.Context, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, storage.Invalidf("expiresAt must be in the future")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = models.Map{}
	}
	tags := normalizeTags(req.Tags)
	if tags == nil {
		tags = []string{}
	}

	rec := &models.Context{
		ContextID: uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Content:   req.Content,
		Metadata:  metadata,
		Tags:      tags,
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.contexts.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns one of the user's contexts
func (s *ContextService) Get(ctx context.Context, userID, contextID string) (*models.Context, error) {
	return s.contexts.GetByID(ctx, userID, contextID)
}

// List returns the user's contexts, newest first
func (s *ContextService) List(ctx context.Context, userID string, f ContextFilter) (*storage.Page[*models.Context], error) {
	q := storage.Query{
		Owner: userID,
		Tags:  f.Tags,
		Limit: f.Limit,
		Skip:  f.Skip,
	}
	if f.SessionID != "" {
		q.Equals = map[string]string{"sessionId": f.SessionID}
	}
	return s.contexts.Query(ctx, q)
}

// Update applies the provided fields to a context
func (s *ContextService) Update(ctx context.Context, userID, contextID string, req *models.UpdateContextRequest) (*models.Context, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	patch := storage.Patch{}
	if req.Content != nil {
		patch["content"] = *req.Content
	}
	if req.Metadata != nil {
		patch["metadata"] = req.Metadata
	}
	if req.Tags != nil {
		patch["tags"] = nonNilTags(*req.Tags)
	}
	return s.contexts.UpdateByID(ctx, userID, contextID, patch)
}

// Delete removes one of the user's contexts
func (s *ContextService) Delete(ctx context.Context, userID, contextID string) error {
	return s.contexts.DeleteByID(ctx, userID, contextID)
}

// PurgeExpired removes contexts whose expiry has passed
func (s *ContextService) PurgeExpired(ctx context.Context) (int, error) {
	return s.contexts.PurgeExpired(ctx, s.now())
}

func nonNilTags(tags []string) []string {
	out := normalizeTags(tags)
	if out == nil {
		return []string{}
	}
	return out
}
