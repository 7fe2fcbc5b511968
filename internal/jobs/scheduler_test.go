package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistantmemory/internal/models"
	"assistantmemory/internal/services"
	"assistantmemory/internal/storage"
)

type countingPurger struct {
	calls   atomic.Int32
	removed int
	err     error
}

func (p *countingPurger) PurgeExpired(context.Context) (int, error) {
	p.calls.Add(1)
	return p.removed, p.err
}

func TestContextSweepJob_Run(t *testing.T) {
	p := &countingPurger{removed: 3}
	job := NewContextSweepJob(p, time.Minute)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, time.Minute, job.Interval())

	p.err = errors.New("disk full")
	assert.Error(t, job.Run(context.Background()))
}

func TestContextSweepJob_DefaultInterval(t *testing.T) {
	job := NewContextSweepJob(&countingPurger{}, 0)
	assert.Equal(t, 5*time.Minute, job.Interval())
}

func TestContextSweepJob_PurgesFileStore(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Contexts().Create(ctx, &models.Context{
		ContextID: "expired", UserID: "u1", SessionID: "s1", Content: "old", ExpiresAt: &past,
	}))
	require.NoError(t, store.Contexts().Create(ctx, &models.Context{
		ContextID: "kept", UserID: "u1", SessionID: "s1", Content: "new",
	}))

	job := NewContextSweepJob(services.NewContextService(store), time.Minute)
	require.NoError(t, job.Run(ctx))

	raw, _, err := store.Read(storage.CollectionContexts)
	require.NoError(t, err)
	assert.Len(t, raw, 1)
}

func TestJobScheduler_RunsRegisteredJobs(t *testing.T) {
	s, err := NewJobScheduler()
	require.NoError(t, err)

	p := &countingPurger{}
	require.NoError(t, s.Register(ContextSweepJobName, NewContextSweepJob(p, 20*time.Millisecond)))
	assert.Error(t, s.Register(ContextSweepJobName, NewContextSweepJob(p, time.Minute)))

	s.Start()
	defer func() { assert.NoError(t, s.Stop()) }()

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestJobScheduler_RunNow(t *testing.T) {
	s, err := NewJobScheduler()
	require.NoError(t, err)

	p := &countingPurger{}
	require.NoError(t, s.Register(ContextSweepJobName, NewContextSweepJob(p, time.Hour)))

	require.NoError(t, s.RunNow(ContextSweepJobName))
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Error(t, s.RunNow("missing"))

	// Stop before Start is a no-op
	assert.NoError(t, s.Stop())
}
