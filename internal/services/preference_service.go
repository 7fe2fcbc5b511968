package services

import (
	"context"
	"errors"
	"fmt"

	"assistantmemory/internal/models"
	"assistantmemory/internal/storage"
)

// PreferenceService manages the single preference record of each user.
// Records are created with defaults the first time they are needed.
type PreferenceService struct {
	preferences storage.Collection[*models.Preference]
}

// NewPreferenceService creates a new preference service
func NewPreferenceService(store storage.Store) *PreferenceService {
	return &PreferenceService{preferences: store.Preferences()}
}

// Get returns the user's preferences, creating the defaults if absent
func (s *PreferenceService) Get(ctx context.Context, userID string) (*models.Preference, error) {
	pref, err := s.preferences.GetByID(ctx, userID, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	pref = models.DefaultPreference(userID)
	err = s.preferences.Create(ctx, pref)
	if errors.Is(err, storage.ErrConflict) {
		// Lost a race with a concurrent first read
		return s.preferences.GetByID(ctx, userID, userID)
	}
	if err != nil {
		return nil, err
	}
	return pref, nil
}

// Update merges the provided settings into the user's preferences. Keys in
// the free-form map are merged individually; a null value removes a key.
func (s *PreferenceService) Update(ctx context.Context, userID string, req *models.UpdatePreferenceRequest) (*models.Preference, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	// Ensure the record exists; the merge itself runs inside the store
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	patch := storage.Patch{}
	if len(req.Preferences) > 0 {
		merge := make(storage.MergeFields, len(req.Preferences))
		for k, v := range req.Preferences {
			if v.IsNull() {
				merge[k] = nil
				continue
			}
			merge[k] = v
		}
		patch["preferences"] = merge
	}
	if req.Theme != nil {
		patch["theme"] = *req.Theme
	}
	if req.Language != nil {
		patch["language"] = *req.Language
	}
	if req.Timezone != nil {
		patch["timezone"] = *req.Timezone
	}
	if req.NotificationSettings != nil {
		patch["notificationSettings"] = *req.NotificationSettings
	}
	return s.preferences.UpdateByID(ctx, userID, userID, patch)
}

// Lookup returns a single preference value by key
func (s *PreferenceService) Lookup(ctx context.Context, userID, key string) (any, error) {
	pref, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	value, ok := pref.Lookup(key)
	if !ok {
		return nil, &storage.Error{
			Kind:       storage.KindNotFound,
			Op:         "lookup",
			Collection: storage.CollectionPreferences,
			Err:        fmt.Errorf("preference key %q not found", key),
		}
	}
	return value, nil
}
