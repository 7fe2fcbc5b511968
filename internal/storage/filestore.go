package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"assistantmemory/internal/models"
)

// DefaultRoot is where the file backend keeps its collections
const DefaultRoot = "./data"

// FileStore persists each collection as one pretty-printed JSON array in
// <root>/<collection>.json. Writes to a collection are serialized by a
// per-collection lock held for the whole read-modify-write, and replace the
// file atomically, so a crash leaves either the old or the new content.
type FileStore struct {
	root string
	now  func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	users          *fileCollection[*models.User]
	contexts       *fileCollection[*models.Context]
	tasks          *fileCollection[*models.Task]
	preferences    *fileCollection[*models.Preference]
	structuredData *fileCollection[*models.StructuredData]
}

// NewFileStore creates the root directory if needed and returns a store over it.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, newError(KindUnavailable, "init", "", fmt.Errorf("create data directory %s: %w", root, err))
	}

	s := &FileStore{
		root:  root,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	s.users = newFileCollection[*models.User](s, UsersSchema)
	s.contexts = newFileCollection[*models.Context](s, ContextsSchema)
	s.tasks = newFileCollection[*models.Task](s, TasksSchema)
	s.preferences = newFileCollection[*models.Preference](s, PreferencesSchema)
	s.structuredData = newFileCollection[*models.StructuredData](s, StructuredDataSchema)
	return s, nil
}

func (s *FileStore) Mode() Mode   { return ModeJSON }
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) Users() Collection[*models.User]             { return s.users }
func (s *FileStore) Contexts() Collection[*models.Context]       { return s.contexts }
func (s *FileStore) Tasks() Collection[*models.Task]             { return s.tasks }
func (s *FileStore) Preferences() Collection[*models.Preference] { return s.preferences }
func (s *FileStore) StructuredData() Collection[*models.StructuredData] {
	return s.structuredData
}

// Ping checks that the data directory is still usable
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return newError(KindUnavailable, "ping", "", err)
	}
	if !info.IsDir() {
		return newError(KindUnavailable, "ping", "", fmt.Errorf("%s is not a directory", s.root))
	}
	return nil
}

func (s *FileStore) Close(ctx context.Context) error { return nil }

// Read returns the records of a collection. ok is false when the collection
// has never been written; a file that does not parse is ErrCorrupt.
func (s *FileStore) Read(collection string) (records []json.RawMessage, ok bool, err error) {
	data, ok, err := s.readFile(collection)
	if err != nil || !ok {
		return nil, ok, err
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, true, newError(KindCorrupt, "read", collection, err)
	}
	return records, true, nil
}

// Write atomically replaces a collection's contents
func (s *FileStore) Write(collection string, records []json.RawMessage) error {
	mu := s.lockFor(collection)
	mu.Lock()
	defer mu.Unlock()

	if records == nil {
		records = []json.RawMessage{}
	}
	return s.writeFile(collection, records)
}

// Delete removes a collection. Deleting a missing collection succeeds.
func (s *FileStore) Delete(collection string) error {
	path, err := s.path(collection)
	if err != nil {
		return err
	}

	mu := s.lockFor(collection)
	mu.Lock()
	defer mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return newError(KindInternal, "delete", collection, err)
	}
	return nil
}

func (s *FileStore) path(collection string) (string, error) {
	if collection == "" || strings.ContainsAny(collection, `/\`) || strings.HasPrefix(collection, ".") {
		return "", newError(KindValidation, "resolve", collection, errors.New("invalid collection name"))
	}
	return filepath.Join(s.root, collection+".json"), nil
}

// lockFor returns the mutex guarding one collection. Locks are never
// released, there is one per collection name.
func (s *FileStore) lockFor(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.locks[collection]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[collection] = mu
	}
	return mu
}

func (s *FileStore) readFile(collection string) ([]byte, bool, error) {
	path, err := s.path(collection)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newError(KindInternal, "read", collection, err)
	}
	return data, true, nil
}

// writeFile marshals v and swaps it into place. Callers hold the collection lock.
func (s *FileStore) writeFile(collection string, v any) error {
	path, err := s.path(collection)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return newError(KindInternal, "write", collection, fmt.Errorf("encode: %w", err))
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.root, "."+collection+".*.tmp")
	if err != nil {
		return newError(KindInternal, "write", collection, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return newError(KindInternal, "write", collection, fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return newError(KindInternal, "write", collection, fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return newError(KindInternal, "write", collection, fmt.Errorf("close temp file: %w", err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return newError(KindInternal, "write", collection, fmt.Errorf("atomic rename: %w", err))
	}
	return nil
}

// fileCollection implements Collection over one JSON file
type fileCollection[T models.Record] struct {
	store  *FileStore
	schema Schema
}

func newFileCollection[T models.Record](store *FileStore, schema Schema) *fileCollection[T] {
	return &fileCollection[T]{store: store, schema: schema}
}

func (c *fileCollection[T]) Name() string { return c.schema.Name }

func (c *fileCollection[T]) load(op string) ([]T, error) {
	data, ok, err := c.store.readFile(c.schema.Name)
	if err != nil || !ok {
		return nil, err
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, newError(KindCorrupt, op, c.schema.Name, err)
	}
	for i, rec := range records {
		if isNil(rec) || rec.Key() == "" {
			return nil, newError(KindCorrupt, op, c.schema.Name, fmt.Errorf("record %d has no %s", i, c.schema.Key))
		}
	}
	return records, nil
}

// mutate runs fn under the collection lock and persists its result when it
// reports a change. Nothing is written when fn fails.
func (c *fileCollection[T]) mutate(op string, fn func(records []T) ([]T, bool, error)) error {
	mu := c.store.lockFor(c.schema.Name)
	mu.Lock()
	defer mu.Unlock()

	records, err := c.load(op)
	if err != nil {
		return err
	}
	next, changed, err := fn(records)
	if err != nil || !changed {
		return err
	}
	if next == nil {
		next = []T{}
	}
	return c.store.writeFile(c.schema.Name, next)
}

func (c *fileCollection[T]) visible(rec T, owner string, now time.Time) bool {
	if rec.Expired(now) {
		return false
	}
	return owner == "" || c.schema.Owner == "" || rec.Owner() == owner
}

func (c *fileCollection[T]) indexOf(records []T, owner, id string, now time.Time) int {
	for i, rec := range records {
		if rec.Key() == id && c.visible(rec, owner, now) {
			return i
		}
	}
	return -1
}

// checkUnique fails when rec collides with any other record on the key or a
// unique field. skip excludes the record's own slot during updates.
func (c *fileCollection[T]) checkUnique(op string, records []T, rec T, skip int) error {
	for i, other := range records {
		if i == skip {
			continue
		}
		if other.Key() == rec.Key() {
			return newError(KindConflict, op, c.schema.Name, fmt.Errorf("duplicate %s %q", c.schema.Key, rec.Key()))
		}
		for _, field := range c.schema.Unique {
			want, ok := rec.Attr(field)
			if !ok || want == "" {
				continue
			}
			if got, _ := other.Attr(field); got == want {
				return newError(KindConflict, op, c.schema.Name, fmt.Errorf("duplicate %s %q", field, want))
			}
		}
	}
	return nil
}

func (c *fileCollection[T]) Create(ctx context.Context, rec T) error {
	if err := ctx.Err(); err != nil {
		return newError(KindUnavailable, "create", c.schema.Name, err)
	}
	if isNil(rec) || rec.Key() == "" {
		return newError(KindValidation, "create", c.schema.Name, fmt.Errorf("missing %s", c.schema.Key))
	}
	rec.Touch(c.store.now())

	return c.mutate("create", func(records []T) ([]T, bool, error) {
		if err := c.checkUnique("create", records, rec, -1); err != nil {
			return nil, false, err
		}
		return append(records, rec), true, nil
	})
}

func (c *fileCollection[T]) GetByID(ctx context.Context, owner, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, newError(KindUnavailable, "get", c.schema.Name, err)
	}
	records, err := c.load("get")
	if err != nil {
		return zero, err
	}
	if i := c.indexOf(records, owner, id, c.store.now()); i >= 0 {
		return records[i], nil
	}
	return zero, newError(KindNotFound, "get", c.schema.Name, nil)
}

func (c *fileCollection[T]) FindOne(ctx context.Context, field, value string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, newError(KindUnavailable, "find", c.schema.Name, err)
	}
	records, err := c.load("find")
	if err != nil {
		return zero, err
	}
	now := c.store.now()
	for _, rec := range records {
		if rec.Expired(now) {
			continue
		}
		if got, ok := rec.Attr(field); ok && got == value {
			return rec, nil
		}
	}
	return zero, newError(KindNotFound, "find", c.schema.Name, nil)
}

func (c *fileCollection[T]) Query(ctx context.Context, q Query) (*Page[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindUnavailable, "query", c.schema.Name, err)
	}
	records, err := c.load("query")
	if err != nil {
		return nil, err
	}
	if c.schema.Owner == "" {
		q.Owner = ""
	}
	return Apply(records, q, c.store.now()), nil
}

func (c *fileCollection[T]) UpdateByID(ctx context.Context, owner, id string, patch Patch) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, newError(KindUnavailable, "update", c.schema.Name, err)
	}
	if err := c.schema.checkPatch(patch); err != nil {
		return zero, err
	}

	var updated T
	err := c.mutate("update", func(records []T) ([]T, bool, error) {
		now := c.store.now()
		i := c.indexOf(records, owner, id, now)
		if i < 0 {
			return nil, false, newError(KindNotFound, "update", c.schema.Name, nil)
		}
		merged, err := mergePatch(records[i], patch)
		if err != nil {
			return nil, false, newError(KindValidation, "update", c.schema.Name, err)
		}
		merged.Touch(now)
		if err := c.checkUnique("update", records, merged, i); err != nil {
			return nil, false, err
		}
		records[i] = merged
		updated = merged
		return records, true, nil
	})
	if err != nil {
		return zero, err
	}
	return updated, nil
}

func (c *fileCollection[T]) DeleteByID(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return newError(KindUnavailable, "delete", c.schema.Name, err)
	}
	return c.mutate("delete", func(records []T) ([]T, bool, error) {
		i := c.indexOf(records, owner, id, c.store.now())
		if i < 0 {
			return nil, false, newError(KindNotFound, "delete", c.schema.Name, nil)
		}
		return append(records[:i], records[i+1:]...), true, nil
	})
}

func (c *fileCollection[T]) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if c.schema.Expiry == "" {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, newError(KindUnavailable, "purge", c.schema.Name, err)
	}

	removed := 0
	err := c.mutate("purge", func(records []T) ([]T, bool, error) {
		kept := records[:0]
		for _, rec := range records {
			if rec.Expired(now) {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		return kept, removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func isNil[T any](v T) bool {
	var zero T
	return any(v) == any(zero)
}

// mergePatch overlays patch onto rec through its JSON form and decodes the
// result into a fresh record, leaving rec untouched.
func mergePatch[T any](rec T, patch Patch) (T, error) {
	var zero T

	raw, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode record: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return zero, fmt.Errorf("decode record: %w", err)
	}

	for field, value := range patch {
		if merge, ok := value.(MergeFields); ok {
			value, err = mergeFields(doc[field], merge)
			if err != nil {
				return zero, fmt.Errorf("field %q: %w", field, err)
			}
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return zero, fmt.Errorf("field %q: %w", field, err)
		}
		doc[field] = encoded
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("encode merged record: %w", err)
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return zero, fmt.Errorf("decode merged record: %w", err)
	}
	return out, nil
}

// mergeFields applies merge to the stored JSON object current, which may be
// absent or null.
func mergeFields(current json.RawMessage, merge MergeFields) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(current) > 0 && string(current) != "null" {
		if err := json.Unmarshal(current, &fields); err != nil {
			return nil, fmt.Errorf("not an object: %w", err)
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	for key, value := range merge {
		if value == nil {
			delete(fields, key)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		fields[key] = encoded
	}
	return fields, nil
}
