package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"assistantmemory/internal/models"
)

func TestBuildFilter(t *testing.T) {
	tasks := &mongoCollection[*models.Task]{schema: TasksSchema}

	got := tasks.buildFilter(Query{
		Owner:  "u1",
		Equals: map[string]string{"status": "pending", "priority": "high"},
		Tags:   []string{"a", "b"},
	}, base)

	want := bson.D{
		{Key: "userId", Value: "u1"},
		{Key: "priority", Value: "high"},
		{Key: "status", Value: "pending"},
		{Key: "tags", Value: bson.D{{Key: "$in", Value: []string{"a", "b"}}}},
	}
	assert.Equal(t, want, got)
}

func TestBuildFilter_ExpiryGuard(t *testing.T) {
	contexts := &mongoCollection[*models.Context]{schema: ContextsSchema}

	got := contexts.buildFilter(Query{Owner: "u1"}, base)

	want := bson.D{
		{Key: "userId", Value: "u1"},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "expiresAt", Value: nil}},
			bson.D{{Key: "expiresAt", Value: bson.D{{Key: "$gt", Value: base}}}},
		}},
	}
	assert.Equal(t, want, got)
}

func TestBuildFilter_UnownedCollectionIgnoresOwner(t *testing.T) {
	users := &mongoCollection[*models.User]{schema: UsersSchema}

	got := users.buildFilter(Query{Owner: "u1", Equals: map[string]string{"role": "admin"}}, base)
	assert.Equal(t, bson.D{{Key: "role", Value: "admin"}}, got)
}

func TestUpdateDocument(t *testing.T) {
	got := updateDocument(Patch{
		"theme":       "dark",
		"preferences": MergeFields{"shell": "zsh", "editor": nil, "font": 12},
	})

	want := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "preferences.font", Value: 12},
			{Key: "preferences.shell", Value: "zsh"},
			{Key: "theme", Value: "dark"},
		}},
		{Key: "$unset", Value: bson.D{{Key: "preferences.editor", Value: ""}}},
	}
	assert.Equal(t, want, got)
}

func TestUpdateDocument_PlainPatchHasNoUnset(t *testing.T) {
	got := updateDocument(Patch{"title": "x"})
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{{Key: "title", Value: "x"}}}}, got)
}

func TestIdentityFilter(t *testing.T) {
	tasks := &mongoCollection[*models.Task]{schema: TasksSchema}
	assert.Equal(t,
		bson.D{{Key: "taskId", Value: "t1"}, {Key: "userId", Value: "u1"}},
		tasks.identity("u1", "t1", base))

	prefs := &mongoCollection[*models.Preference]{schema: PreferencesSchema}
	assert.Equal(t, bson.D{{Key: "userId", Value: "u1"}}, prefs.identity("u1", "u1", base))
	assert.Len(t, prefs.identity("u2", "u1", base), 2, "another owner must match nothing")
}

func TestIndexModels(t *testing.T) {
	users := IndexModels(UsersSchema)
	assert.Len(t, users, 4) // id, username, email, apiKey

	contexts := IndexModels(ContextsSchema)
	var ttl bool
	for _, idx := range contexts {
		if idx.Options != nil && idx.Options.ExpireAfterSeconds != nil {
			assert.Equal(t, int32(0), *idx.Options.ExpireAfterSeconds)
			assert.Equal(t, bson.D{{Key: "expiresAt", Value: 1}}, idx.Keys)
			ttl = true
		}
	}
	assert.True(t, ttl, "contexts need a TTL index")

	data := IndexModels(StructuredDataSchema)
	assert.Contains(t, data, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "collection", Value: 1}}})
}

func TestClassify(t *testing.T) {
	duplicate := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no documents", mongo.ErrNoDocuments, KindNotFound},
		{"duplicate key", duplicate, KindConflict},
		{"wrapped duplicate key", fmt.Errorf("insert: %w", duplicate), KindConflict},
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"cancelled", context.Canceled, KindUnavailable},
		{"disconnected", mongo.ErrClientDisconnected, KindUnavailable},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", "tasks", tt.err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}

	assert.NoError(t, classify("op", "tasks", nil))
}

func TestMongoStoreClockTruncatesToMillis(t *testing.T) {
	s := &MongoStore{now: func() time.Time { return base.Add(1234567 * time.Nanosecond) }}
	assert.Equal(t, base.Add(time.Millisecond), s.clock())
}
