package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"assistantmemory/internal/database"
	"assistantmemory/internal/models"
)

// MongoStore keeps each collection in a MongoDB collection of the same name.
// Filtering, sorting and pagination run server-side.
type MongoStore struct {
	db  *database.MongoDB
	now func() time.Time

	users          *mongoCollection[*models.User]
	contexts       *mongoCollection[*models.Context]
	tasks          *mongoCollection[*models.Task]
	preferences    *mongoCollection[*models.Preference]
	structuredData *mongoCollection[*models.StructuredData]
}

// NewMongoStore wraps an established connection. Call EnsureIndexes before
// serving traffic so unique constraints are enforced.
func NewMongoStore(db *database.MongoDB) *MongoStore {
	s := &MongoStore{db: db, now: time.Now}
	s.users = newMongoCollection[*models.User](s, UsersSchema)
	s.contexts = newMongoCollection[*models.Context](s, ContextsSchema)
	s.tasks = newMongoCollection[*models.Task](s, TasksSchema)
	s.preferences = newMongoCollection[*models.Preference](s, PreferencesSchema)
	s.structuredData = newMongoCollection[*models.StructuredData](s, StructuredDataSchema)
	return s
}

// EnsureIndexes creates the unique, TTL and listing indexes for every collection
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := make(map[string][]mongo.IndexModel)
	for _, schema := range Schemas() {
		indexes[schema.Name] = IndexModels(schema)
	}
	if err := s.db.Initialize(ctx, indexes); err != nil {
		return classify("init", "", err)
	}
	return nil
}

func (s *MongoStore) Mode() Mode { return ModeDatabase }

func (s *MongoStore) Users() Collection[*models.User]             { return s.users }
func (s *MongoStore) Contexts() Collection[*models.Context]       { return s.contexts }
func (s *MongoStore) Tasks() Collection[*models.Task]             { return s.tasks }
func (s *MongoStore) Preferences() Collection[*models.Preference] { return s.preferences }
func (s *MongoStore) StructuredData() Collection[*models.StructuredData] {
	return s.structuredData
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return classify("ping", "", s.db.Ping(ctx))
}

func (s *MongoStore) Close(ctx context.Context) error {
	return classify("close", "", s.db.Close(ctx))
}

// clock returns the current time at the precision MongoDB stores, so a
// record returned from Create equals the one read back later.
func (s *MongoStore) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Schemas lists every collection schema
func Schemas() []Schema {
	return []Schema{UsersSchema, ContextsSchema, TasksSchema, PreferencesSchema, StructuredDataSchema}
}

// IndexModels derives the MongoDB indexes backing a schema: a unique index on
// the key and each unique field, a TTL index on the expiry field and an
// (owner, createdAt) index for listings.
func IndexModels(schema Schema) []mongo.IndexModel {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: schema.Key, Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	for _, field := range schema.Unique {
		idx = append(idx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	}
	if schema.Owner != "" {
		idx = append(idx, mongo.IndexModel{
			Keys: bson.D{{Key: schema.Owner, Value: 1}, {Key: "createdAt", Value: -1}},
		})
	}
	if schema.Expiry != "" {
		idx = append(idx, mongo.IndexModel{
			Keys:    bson.D{{Key: schema.Expiry, Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		})
	}
	if schema.Name == CollectionStructuredData {
		idx = append(idx, mongo.IndexModel{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "collection", Value: 1}},
		})
	}
	return idx
}

type mongoCollection[T models.Record] struct {
	store  *MongoStore
	coll   *mongo.Collection
	schema Schema
}

func newMongoCollection[T models.Record](store *MongoStore, schema Schema) *mongoCollection[T] {
	return &mongoCollection[T]{
		store:  store,
		coll:   store.db.Collection(schema.Name),
		schema: schema,
	}
}

func (c *mongoCollection[T]) Name() string { return c.schema.Name }

// liveFilter appends the expiry guard. The TTL monitor only runs about once a
// minute, so expired documents can still be present.
func (c *mongoCollection[T]) liveFilter(filter bson.D, now time.Time) bson.D {
	if c.schema.Expiry == "" {
		return filter
	}
	return append(filter, bson.E{Key: "$or", Value: bson.A{
		bson.D{{Key: c.schema.Expiry, Value: nil}},
		bson.D{{Key: c.schema.Expiry, Value: bson.D{{Key: "$gt", Value: now}}}},
	}})
}

func (c *mongoCollection[T]) identity(owner, id string, now time.Time) bson.D {
	filter := bson.D{{Key: c.schema.Key, Value: id}}
	if owner != "" && c.schema.Owner != "" && c.schema.Owner != c.schema.Key {
		filter = append(filter, bson.E{Key: c.schema.Owner, Value: owner})
	}
	if owner != "" && c.schema.Owner == c.schema.Key && owner != id {
		// Keyed by owner: any other owner cannot see it
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}})
	}
	return c.liveFilter(filter, now)
}

// buildFilter translates q into a MongoDB filter. Keys are emitted in a fixed
// order so identical queries produce identical filters.
func (c *mongoCollection[T]) buildFilter(q Query, now time.Time) bson.D {
	filter := bson.D{}
	if q.Owner != "" && c.schema.Owner != "" {
		filter = append(filter, bson.E{Key: c.schema.Owner, Value: q.Owner})
	}

	fields := make([]string, 0, len(q.Equals))
	for field := range q.Equals {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		filter = append(filter, bson.E{Key: field, Value: q.Equals[field]})
	}

	if len(q.Tags) > 0 {
		filter = append(filter, bson.E{Key: "tags", Value: bson.D{{Key: "$in", Value: q.Tags}}})
	}
	return c.liveFilter(filter, now)
}

func (c *mongoCollection[T]) Create(ctx context.Context, rec T) error {
	if isNil(rec) || rec.Key() == "" {
		return newError(KindValidation, "create", c.schema.Name, errors.New("missing "+c.schema.Key))
	}
	rec.Touch(c.store.clock())

	_, err := c.coll.InsertOne(ctx, rec)
	return classify("create", c.schema.Name, err)
}

func (c *mongoCollection[T]) decodeOne(op string, res *mongo.SingleResult) (T, error) {
	var rec T
	if err := res.Err(); err != nil {
		return rec, classify(op, c.schema.Name, err)
	}
	if err := res.Decode(&rec); err != nil {
		return rec, newError(KindCorrupt, op, c.schema.Name, err)
	}
	return rec, nil
}

func (c *mongoCollection[T]) GetByID(ctx context.Context, owner, id string) (T, error) {
	filter := c.identity(owner, id, c.store.clock())
	return c.decodeOne("get", c.coll.FindOne(ctx, filter))
}

func (c *mongoCollection[T]) FindOne(ctx context.Context, field, value string) (T, error) {
	filter := c.liveFilter(bson.D{{Key: field, Value: value}}, c.store.clock())
	return c.decodeOne("find", c.coll.FindOne(ctx, filter))
}

func (c *mongoCollection[T]) Query(ctx context.Context, q Query) (*Page[T], error) {
	q = q.normalized()
	filter := c.buildFilter(q, c.store.clock())

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("query", c.schema.Name, err)
	}

	items := []T{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, classify("query", c.schema.Name, err)
	}
	return &Page[T]{Items: items, Count: len(items)}, nil
}

func (c *mongoCollection[T]) UpdateByID(ctx context.Context, owner, id string, patch Patch) (T, error) {
	var zero T
	if err := c.schema.checkPatch(patch); err != nil {
		return zero, err
	}

	now := c.store.clock()
	update := updateDocument(patch.withUpdatedAt(now))

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := c.coll.FindOneAndUpdate(ctx, c.identity(owner, id, now), update, opts)
	return c.decodeOne("update", res)
}

// updateDocument translates patch into $set and $unset operators. MergeFields
// values become dotted paths so the server merges keys atomically.
func updateDocument(patch Patch) bson.D {
	fields := make([]string, 0, len(patch))
	for field := range patch {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	set := make(bson.D, 0, len(fields))
	var unset bson.D
	for _, field := range fields {
		merge, ok := patch[field].(MergeFields)
		if !ok {
			set = append(set, bson.E{Key: field, Value: patch[field]})
			continue
		}
		keys := make([]string, 0, len(merge))
		for key := range merge {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			path := field + "." + key
			if merge[key] == nil {
				unset = append(unset, bson.E{Key: path, Value: ""})
				continue
			}
			set = append(set, bson.E{Key: path, Value: merge[key]})
		}
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

func (c *mongoCollection[T]) DeleteByID(ctx context.Context, owner, id string) error {
	res, err := c.coll.DeleteOne(ctx, c.identity(owner, id, c.store.clock()))
	if err != nil {
		return classify("delete", c.schema.Name, err)
	}
	if res.DeletedCount == 0 {
		return newError(KindNotFound, "delete", c.schema.Name, nil)
	}
	return nil
}

func (c *mongoCollection[T]) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if c.schema.Expiry == "" {
		return 0, nil
	}
	filter := bson.D{{Key: c.schema.Expiry, Value: bson.D{{Key: "$lte", Value: now}}}}
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, classify("purge", c.schema.Name, err)
	}
	return int(res.DeletedCount), nil
}

// classify maps driver errors onto storage kinds
func classify(op, collection string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return newError(KindNotFound, op, collection, nil)
	case mongo.IsDuplicateKeyError(err):
		return newError(KindConflict, op, collection, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, topology.ErrServerSelectionTimeout),
		errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err):
		return newError(KindUnavailable, op, collection, err)
	}
	return newError(KindInternal, op, collection, err)
}
