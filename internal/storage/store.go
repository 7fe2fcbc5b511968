// Package storage provides the persistence layer for memory records. A Store
// is backed either by JSON files on local disk or by MongoDB; the two are
// interchangeable to callers, which can only tell them apart through Mode.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"assistantmemory/internal/models"
)

// Mode identifies a storage backend. ModeAuto is only meaningful as a
// selection request; an open Store always reports ModeJSON or ModeDatabase.
type Mode string

const (
	ModeJSON     Mode = "json"
	ModeDatabase Mode = "database"
	ModeAuto     Mode = "auto"
)

// ParseMode parses a configured storage mode. "mongodb" is accepted as an
// alias for "database"; empty means auto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "json", "file":
		return ModeJSON, nil
	case "database", "mongodb", "mongo":
		return ModeDatabase, nil
	}
	return "", fmt.Errorf("unknown storage mode %q (want json, database or auto)", s)
}

// Store is the single handle through which all records are persisted.
type Store interface {
	Mode() Mode
	Users() Collection[*models.User]
	Contexts() Collection[*models.Context]
	Tasks() Collection[*models.Task]
	Preferences() Collection[*models.Preference]
	StructuredData() Collection[*models.StructuredData]
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Collection is the CRUD and query contract shared by both backends.
// Every operation that takes an owner only sees records belonging to that
// owner; collections without an owner field ignore it.
type Collection[T models.Record] interface {
	Name() string
	// Create stamps and inserts rec. Duplicate unique fields yield ErrConflict.
	Create(ctx context.Context, rec T) error
	// GetByID returns the record with the given key and owner.
	GetByID(ctx context.Context, owner, id string) (T, error)
	// FindOne returns the first record whose field equals value, across owners.
	FindOne(ctx context.Context, field, value string) (T, error)
	// Query filters, sorts newest first and paginates.
	Query(ctx context.Context, q Query) (*Page[T], error)
	// UpdateByID merges patch into the record and returns the result.
	// A missing record yields ErrNotFound and nothing is written.
	UpdateByID(ctx context.Context, owner, id string, patch Patch) (T, error)
	// DeleteByID removes the record with the given key and owner.
	DeleteByID(ctx context.Context, owner, id string) error
	// PurgeExpired removes records whose expiry has passed and returns how
	// many were removed. Collections without an expiry field remove nothing.
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// DefaultLimit is the page size used when a query does not set one
const DefaultLimit = 50

// Query describes a filtered page of records
type Query struct {
	// Owner restricts results to one user. Always set by callers.
	Owner string
	// Equals holds exact-match filters keyed by field name.
	Equals map[string]string
	// Tags matches records sharing at least one tag.
	Tags  []string
	Limit int
	Skip  int
}

func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	return q
}

// Page is one page of query results. Count is the number of items in the
// page, not the total number of matches.
type Page[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// Patch is a partial update keyed by stored field name. Values must encode
// to both JSON and BSON.
type Patch map[string]any

// MergeFields is a Patch value that merges keys into a map-valued field
// instead of replacing it. A nil value removes the key. Backends apply the
// merge atomically with the rest of the patch.
type MergeFields map[string]any

// Schema describes how a collection is keyed and constrained
type Schema struct {
	Name string
	// Key is the unique identifier field.
	Key string
	// Owner is the owning-user field, or "" for unowned collections.
	Owner string
	// Unique lists further fields that must be unique across the collection.
	Unique []string
	// Expiry names the TTL field, or "".
	Expiry string
}

// Collection names, shared by the file and database backends
const (
	CollectionUsers          = "users"
	CollectionContexts       = "contexts"
	CollectionTasks          = "tasks"
	CollectionPreferences    = "preferences"
	CollectionStructuredData = "structured_data"
)

var (
	UsersSchema = Schema{
		Name:   CollectionUsers,
		Key:    "id",
		Unique: []string{"username", "email", "apiKey"},
	}
	ContextsSchema = Schema{
		Name:   CollectionContexts,
		Key:    "contextId",
		Owner:  "userId",
		Expiry: "expiresAt",
	}
	TasksSchema = Schema{
		Name:  CollectionTasks,
		Key:   "taskId",
		Owner: "userId",
	}
	PreferencesSchema = Schema{
		Name:  CollectionPreferences,
		Key:   "userId",
		Owner: "userId",
	}
	StructuredDataSchema = Schema{
		Name:  CollectionStructuredData,
		Key:   "dataId",
		Owner: "userId",
	}
)

// checkPatch rejects patches that would rewrite identity fields
func (s Schema) checkPatch(patch Patch) error {
	for field, value := range patch {
		switch field {
		case s.Key, s.Owner, "createdAt", "_id":
			if field != "" {
				return newError(KindValidation, "update", s.Name, fmt.Errorf("field %q cannot be updated", field))
			}
		}
		if merge, ok := value.(MergeFields); ok {
			for key := range merge {
				if err := checkMergeKey(key); err != nil {
					return newError(KindValidation, "update", s.Name, fmt.Errorf("field %q: %w", field, err))
				}
			}
		}
	}
	return nil
}

// checkMergeKey rejects keys the database would read as a path or operator
func checkMergeKey(key string) error {
	switch {
	case key == "":
		return errors.New("key cannot be empty")
	case strings.Contains(key, "."):
		return fmt.Errorf("key %q cannot contain '.'", key)
	case strings.HasPrefix(key, "$"):
		return fmt.Errorf("key %q cannot start with '$'", key)
	}
	return nil
}

// withUpdatedAt returns a copy of patch that refreshes updatedAt
func (p Patch) withUpdatedAt(now time.Time) Patch {
	out := make(Patch, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out["updatedAt"] = now
	return out
}
