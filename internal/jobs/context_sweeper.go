package jobs

import (
	"context"
	"log"
	"time"
)

// ContextSweepJobName is the scheduler name of the expired-context sweeper
const ContextSweepJobName = "context_sweeper"

// ExpiredPurger removes records whose expiry has passed
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// ContextSweepJob deletes expired contexts. MongoDB's TTL monitor already
// does this for the database backend; on the file backend this job is what
// keeps expired records from accumulating on disk.
type ContextSweepJob struct {
	contexts ExpiredPurger
	interval time.Duration
}

// NewContextSweepJob creates a sweeper running every interval
func NewContextSweepJob(contexts ExpiredPurger, interval time.Duration) *ContextSweepJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ContextSweepJob{contexts: contexts, interval: interval}
}

// Run purges expired contexts once
func (j *ContextSweepJob) Run(ctx context.Context) error {
	removed, err := j.contexts.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Printf("🧹 [CONTEXT-SWEEP] Removed %d expired contexts", removed)
	}
	return nil
}

// Interval returns how often the sweeper runs
func (j *ContextSweepJob) Interval() time.Duration {
	return j.interval
}
