package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/pkg/progression"
	"github.com/pathwise-labs/progress_api/shared"
)

// ==================== FAKES ====================

type fakeQueue struct {
	entries    []DirtyEntry
	popErr     error
	snapshots  map[string]progression.Snapshot
	snapErr    error
	requeueErr error
	backlog    int64
	leaseHeld  bool
	leaseErr   error

	pops     int
	requeued []DirtyEntry
	acquired int
	released int
}

func (f *fakeQueue) PopDirty(_ context.Context, _ int64) ([]DirtyEntry, error) {
	f.pops++
	if f.popErr != nil {
		return nil, f.popErr
	}
	out := f.entries
	f.entries = nil
	return out, nil
}

func (f *fakeQueue) RequeueDirty(_ context.Context, entries []DirtyEntry) error {
	if f.requeueErr != nil {
		return f.requeueErr
	}
	f.requeued = append(f.requeued, entries...)
	return nil
}

func (f *fakeQueue) CacheSnapshot(_ context.Context, learnerID, subjectID string) (progression.Snapshot, bool, error) {
	if f.snapErr != nil {
		return progression.Snapshot{}, false, f.snapErr
	}
	snap, ok := f.snapshots[learnerID+"|"+subjectID]
	return snap, ok, nil
}

func (f *fakeQueue) DirtyBacklog(_ context.Context) (int64, error) {
	return f.backlog, nil
}

func (f *fakeQueue) AcquireSyncLease(_ context.Context, _ string, _ time.Duration) (bool, error) {
	if f.leaseErr != nil {
		return false, f.leaseErr
	}
	f.acquired++
	return !f.leaseHeld, nil
}

func (f *fakeQueue) ReleaseSyncLease(_ context.Context, _ string) error {
	f.released++
	return nil
}

type fakeSyncStore struct {
	failFor  map[string]error
	onUpsert func()

	upserts []*model.ProgressSnapshot
}

func (f *fakeSyncStore) UpsertProgressSnapshot(snap *model.ProgressSnapshot) error {
	if err := f.failFor[snap.LearnerID+"|"+snap.SubjectID]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, snap)
	if f.onUpsert != nil {
		f.onUpsert()
	}
	return nil
}

func newSyncService(queue *fakeQueue, store *fakeSyncStore) *SyncService {
	return &SyncService{
		queue:     queue,
		store:     store,
		batchSize: 64,
		leaseTTL:  time.Second,
		token:     "test-1",
		closed:    make(chan struct{}),
	}
}

func warmSnapshot(score int, bits ...int) progression.Snapshot {
	snap := progression.EmptySnapshot()
	for _, b := range bits {
		snap.Completion.Set(b)
		snap.Rewarded.Set(b)
	}
	snap.BestScores["lesson-fractions-01"] = score
	return snap
}

// ==================== RUN NOW ====================

func TestRunNowFlushesDirtyEntries(t *testing.T) {
	queue := &fakeQueue{
		entries: []DirtyEntry{
			{LearnerID: "learner-1", SubjectID: "math-7"},
			{LearnerID: "learner-2", SubjectID: "math-7"},
		},
		snapshots: map[string]progression.Snapshot{
			"learner-1|math-7": warmSnapshot(4, 0, 1),
			"learner-2|math-7": warmSnapshot(3, 0),
		},
		backlog: 5,
	}
	store := &fakeSyncStore{}
	svc := newSyncService(queue, store)

	resp, err := svc.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Synced)
	assert.Equal(t, 0, resp.Failed)
	assert.Equal(t, 0, resp.Requeued)
	assert.Equal(t, 1, queue.acquired)
	assert.Equal(t, 1, queue.released, "the lease is released after the run")

	require.Len(t, store.upserts, 2)
	first := store.upserts[0]
	assert.Equal(t, "learner-1", first.LearnerID)
	assert.Equal(t, "math-7", first.SubjectID)

	bm, err := progression.DecodeBitmap(first.CompletionBitmap)
	require.NoError(t, err)
	assert.True(t, bm.Check(0))
	assert.True(t, bm.Check(1))

	scores, err := progression.DecodeBestScores(first.BestScores)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"lesson-fractions-01": 4}, scores)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.DirtyBacklog)
	assert.Equal(t, 2, status.LastRunSynced)
	assert.Equal(t, int64(2), status.TotalSynced)
	require.NotNil(t, status.LastRunAt)
}

func TestRunNowLeaseHeldElsewhere(t *testing.T) {
	queue := &fakeQueue{leaseHeld: true}
	svc := newSyncService(queue, &fakeSyncStore{})

	_, err := svc.RunNow(context.Background())
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 409, appErr.StatusCode)
	assert.Equal(t, 0, queue.pops, "a losing instance never touches the dirty set")
	assert.Equal(t, 0, queue.released)
}

func TestRunNowLeaseError(t *testing.T) {
	queue := &fakeQueue{leaseErr: errors.New("redis down")}
	svc := newSyncService(queue, &fakeSyncStore{})

	_, err := svc.RunNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, queue.pops)
}

func TestRunNowRequeuesFailedEntries(t *testing.T) {
	queue := &fakeQueue{
		entries: []DirtyEntry{
			{LearnerID: "learner-1", SubjectID: "math-7"},
			{LearnerID: "learner-2", SubjectID: "math-7"},
		},
		snapshots: map[string]progression.Snapshot{
			"learner-1|math-7": warmSnapshot(4, 0),
			"learner-2|math-7": warmSnapshot(3, 0),
		},
	}
	store := &fakeSyncStore{failFor: map[string]error{
		"learner-2|math-7": errors.New("deadlock detected"),
	}}
	svc := newSyncService(queue, store)

	resp, err := svc.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Synced)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 1, resp.Requeued)
	require.Len(t, queue.requeued, 1)
	assert.Equal(t, "learner-2", queue.requeued[0].LearnerID, "the failed entry goes back on the dirty set")
}

func TestRunNowSkipsColdEntries(t *testing.T) {
	queue := &fakeQueue{
		entries: []DirtyEntry{{LearnerID: "learner-1", SubjectID: "math-7"}},
	}
	store := &fakeSyncStore{}
	svc := newSyncService(queue, store)

	resp, err := svc.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Synced, "an evicted entry has nothing to flush")
	assert.Equal(t, 0, resp.Failed)
	assert.Empty(t, store.upserts)
	assert.Empty(t, queue.requeued)
}

func TestRunNowRequeueFailure(t *testing.T) {
	queue := &fakeQueue{
		entries:    []DirtyEntry{{LearnerID: "learner-1", SubjectID: "math-7"}},
		snapshots:  map[string]progression.Snapshot{},
		requeueErr: errors.New("redis down"),
	}
	queue.snapshots["learner-1|math-7"] = warmSnapshot(4, 0)
	store := &fakeSyncStore{failFor: map[string]error{
		"learner-1|math-7": errors.New("deadlock detected"),
	}}
	svc := newSyncService(queue, store)

	resp, err := svc.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 0, resp.Requeued, "the requeue itself failed")
}

func TestRunNowAfterShutdown(t *testing.T) {
	svc := newSyncService(&fakeQueue{}, &fakeSyncStore{})
	svc.Shutdown()

	_, err := svc.RunNow(context.Background())
	require.Error(t, err)
}

func TestShutdownMidBatchRequeuesRemainder(t *testing.T) {
	queue := &fakeQueue{
		entries: []DirtyEntry{
			{LearnerID: "learner-1", SubjectID: "math-7"},
			{LearnerID: "learner-2", SubjectID: "math-7"},
		},
		snapshots: map[string]progression.Snapshot{
			"learner-1|math-7": warmSnapshot(4, 0),
			"learner-2|math-7": warmSnapshot(3, 0),
		},
	}
	store := &fakeSyncStore{}
	svc := newSyncService(queue, store)
	store.onUpsert = func() { close(svc.closed) }

	resp, err := svc.RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Synced)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, 1, resp.Requeued)
	require.Len(t, queue.requeued, 1)
	assert.Equal(t, "learner-2", queue.requeued[0].LearnerID, "the unflushed remainder survives the shutdown")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	queue := &fakeQueue{backlog: 3}
	svc := newSyncService(queue, &fakeSyncStore{})

	status, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), status.DirtyBacklog)
	assert.Nil(t, status.LastRunAt)
	assert.Equal(t, 0, status.LastRunSynced)
	assert.Equal(t, int64(0), status.TotalSynced)
}
