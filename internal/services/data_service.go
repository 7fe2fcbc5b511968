package services

import (
	"context"

	"github.com/google/uuid"

	"assistantmemory/internal/models"
	"assistantmemory/internal/storage"
)

// DataFilter narrows a structured data listing
type DataFilter struct {
	Collection string
	Tags       []string
	Limit      int
	Skip       int
}

// DataService manages arbitrary structured payloads
type DataService struct {
	data storage.Collection[*models.StructuredData]
}

// NewDataService creates a new structured data service
func NewDataService(store storage.Store) *DataService {
	return &DataService{data: store.StructuredData()}
}

// Create stores a payload under a collection label
func (s *DataService) Create(ctx context.Context, userID string, req *models.CreateDataRequest) (*models.StructuredData, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Data.IsNull() {
		return nil, storage.Invalidf("data is required")
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = models.Map{}
	}

	rec := &models.StructuredData{
		DataID:     uuid.NewString(),
		UserID:     userID,
		Collection: req.Collection,
		Data:       req.Data,
		Schema:     req.Schema,
		Tags:       nonNilTags(req.Tags),
		Metadata:   metadata,
	}
	if err := s.data.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns one of the user's payloads
func (s *DataService) Get(ctx context.Context, userID, dataID string) (*models.StructuredData, error) {
	return s.data.GetByID(ctx, userID, dataID)
}

// List returns the user's payloads, newest first
func (s *DataService) List(ctx context.Context, userID string, f DataFilter) (*storage.Page[*models.StructuredData], error) {
	q := storage.Query{
		Owner: userID,
		Tags:  f.Tags,
		Limit: f.Limit,
		Skip:  f.Skip,
	}
	if f.Collection != "" {
		q.Equals = map[string]string{"collection": f.Collection}
	}
	return s.data.Query(ctx, q)
}

// Update applies the provided fields to a payload
func (s *DataService) Update(ctx context.Context, userID, dataID string, req *models.UpdateDataRequest) (*models.StructuredData, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	patch := storage.Patch{}
	if req.Data.Set {
		if req.Data.Value.IsNull() {
			return nil, storage.Invalidf("data cannot be null")
		}
		patch["data"] = req.Data.Value
	}
	if req.Schema != nil {
		patch["schema"] = *req.Schema
	}
	if req.Tags != nil {
		patch["tags"] = nonNilTags(*req.Tags)
	}
	if req.Metadata != nil {
		patch["metadata"] = req.Metadata
	}
	return s.data.UpdateByID(ctx, userID, dataID, patch)
}

// Delete removes one of the user's payloads
func (s *DataService) Delete(ctx context.Context, userID, dataID string) error {
	return s.data.DeleteByID(ctx, userID, dataID)
}
