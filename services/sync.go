package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/pkg/progression"
	"github.com/pathwise-labs/progress_api/shared"
)

// dirtyQueue is what the syncer needs from the progress cache.
type dirtyQueue interface {
	PopDirty(ctx context.Context, n int64) ([]DirtyEntry, error)
	RequeueDirty(ctx context.Context, entries []DirtyEntry) error
	CacheSnapshot(ctx context.Context, learnerID, subjectID string) (progression.Snapshot, bool, error)
	DirtyBacklog(ctx context.Context) (int64, error)
	AcquireSyncLease(ctx context.Context, token string, ttl time.Duration) (bool, error)
	ReleaseSyncLease(ctx context.Context, token string) error
}

// syncStore is the durable side of the flush.
type syncStore interface {
	UpsertProgressSnapshot(snap *model.ProgressSnapshot) error
}

// SyncService flushes dirty cache entries to postgres on a schedule.
// Entries are claimed in bounded batches; anything that fails to flush goes
// back on the dirty set, so delivery is at-least-once and upserts keep it
// harmless. A short redis lease keeps concurrent instances from flushing
// the same batch twice.
type SyncService struct {
	appContext.DefaultService

	queue   dirtyQueue
	store   syncStore
	metrics *MonitoringService

	scheduler *gocron.Scheduler
	interval  time.Duration
	batchSize int64
	leaseTTL  time.Duration
	token     string

	closed chan struct{}

	mu            sync.Mutex
	lastRunAt     time.Time
	lastRunSynced int
	lastRunFailed int
	totalSynced   int64
	totalFailed   int64
}

const SYNC_SVC = "sync_svc"

func (svc SyncService) Id() string {
	return SYNC_SVC
}

func (svc *SyncService) Configure(ctx *appContext.Context) error {
	svc.interval = 30 * time.Second
	if v := os.Getenv("SYNC_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			svc.interval = time.Duration(n) * time.Second
		}
	}

	svc.batchSize = 256
	if v := os.Getenv("SYNC_BATCH_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			svc.batchSize = n
		}
	}

	// The lease only has to outlive one run; it expires on its own if the
	// holder dies mid-flush.
	svc.leaseTTL = svc.interval
	if v := os.Getenv("SYNC_LEASE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			svc.leaseTTL = time.Duration(n) * time.Second
		}
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *SyncService) Start() error {
	svc.queue = svc.Service(PROGRESS_CACHE_SVC).(*ProgressCacheService)
	svc.store = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.metrics = svc.Service(MONITORING_SVC).(*MonitoringService)

	hostname, _ := os.Hostname()
	svc.token = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	svc.closed = make(chan struct{})

	svc.scheduler = gocron.NewScheduler(time.UTC)
	if _, err := svc.scheduler.Every(int(svc.interval.Seconds())).Seconds().Do(svc.runScheduled); err != nil {
		return err
	}
	svc.scheduler.StartAsync()

	log.Printf("Snapshot sync running every %v, batch size %d", svc.interval, svc.batchSize)
	return nil
}

func (svc *SyncService) Shutdown() {
	close(svc.closed)
	if svc.scheduler != nil {
		svc.scheduler.Stop()
	}
}

func (svc *SyncService) runScheduled() {
	if _, err := svc.RunNow(context.Background()); err != nil {
		if appErr, ok := shared.GetAppError(err); ok && appErr.StatusCode == 409 {
			log.Debug("Skipping sync run, lease held elsewhere")
			return
		}
		log.WithError(err).Error("Snapshot sync run failed")
	}
}

// RunNow executes one sync batch immediately. It returns a conflict when
// another run holds the lease.
func (svc *SyncService) RunNow(ctx context.Context) (*dto.SyncRunResponse, error) {
	select {
	case <-svc.closed:
		return nil, fmt.Errorf("sync service stopped")
	default:
	}

	won, err := svc.queue.AcquireSyncLease(ctx, svc.token, svc.leaseTTL)
	if err != nil {
		if svc.metrics != nil {
			svc.metrics.RecordSyncRun("error")
		}
		return nil, err
	}
	if !won {
		if svc.metrics != nil {
			svc.metrics.RecordSyncRun("skipped")
		}
		return nil, shared.NewConflictError(nil, "Sync run already in progress")
	}
	defer func() {
		if err := svc.queue.ReleaseSyncLease(ctx, svc.token); err != nil {
			log.WithError(err).Warn("Failed to release sync lease")
		}
	}()

	start := time.Now()
	resp, err := svc.flushBatch(ctx)
	if err != nil {
		if svc.metrics != nil {
			svc.metrics.RecordSyncRun("error")
		}
		return nil, err
	}

	svc.mu.Lock()
	svc.lastRunAt = start
	svc.lastRunSynced = resp.Synced
	svc.lastRunFailed = resp.Failed
	svc.mu.Unlock()
	atomic.AddInt64(&svc.totalSynced, int64(resp.Synced))
	atomic.AddInt64(&svc.totalFailed, int64(resp.Failed))

	if svc.metrics != nil {
		svc.metrics.RecordSyncRun("ok")
		svc.metrics.RecordSyncEntries("synced", resp.Synced)
		svc.metrics.RecordSyncEntries("failed", resp.Failed)
		svc.metrics.ObserveSyncBatch(time.Since(start))
		if backlog, err := svc.queue.DirtyBacklog(ctx); err == nil {
			svc.metrics.SetDirtyBacklog(backlog)
		}
	}

	if resp.Synced > 0 || resp.Failed > 0 {
		log.WithFields(log.Fields{
			"synced":   resp.Synced,
			"failed":   resp.Failed,
			"duration": time.Since(start).String(),
		}).Info("Snapshot sync batch complete")
	}
	return resp, nil
}

func (svc *SyncService) flushBatch(ctx context.Context) (*dto.SyncRunResponse, error) {
	entries, err := svc.queue.PopDirty(ctx, svc.batchSize)
	if err != nil {
		return nil, err
	}

	resp := &dto.SyncRunResponse{}
	var failed []DirtyEntry

	for i, entry := range entries {
		select {
		case <-svc.closed:
			// Shutting down mid-batch: put the unflushed remainder back.
			failed = append(failed, entries[i:]...)
			resp.Failed = len(failed)
			svc.requeue(ctx, failed, resp)
			return resp, nil
		default:
		}

		written, err := svc.flushEntry(ctx, entry)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"learner_id": entry.LearnerID,
				"subject_id": entry.SubjectID,
			}).Error("Failed to sync progress snapshot")
			failed = append(failed, entry)
			continue
		}
		if written {
			resp.Synced++
		}
	}

	resp.Failed = len(failed)
	svc.requeue(ctx, failed, resp)
	return resp, nil
}

func (svc *SyncService) requeue(ctx context.Context, failed []DirtyEntry, resp *dto.SyncRunResponse) {
	if len(failed) == 0 {
		return
	}
	if err := svc.queue.RequeueDirty(ctx, failed); err != nil {
		// The entries stay unsynced until their next write dirties them
		// again; loud log so it does not pass unnoticed.
		log.WithError(err).WithField("count", len(failed)).
			Error("Failed to requeue dirty entries after sync failure")
		return
	}
	resp.Requeued = len(failed)
}

// flushEntry writes one entry's cache state to postgres. It reports false
// without error when the entry went cold between the mark and the flush.
func (svc *SyncService) flushEntry(ctx context.Context, entry DirtyEntry) (bool, error) {
	snapshot, found, err := svc.queue.CacheSnapshot(ctx, entry.LearnerID, entry.SubjectID)
	if err != nil {
		return false, err
	}
	if !found {
		log.WithFields(log.Fields{
			"learner_id": entry.LearnerID,
			"subject_id": entry.SubjectID,
		}).Debug("Skipping cold dirty entry")
		return false, nil
	}

	scores, err := progression.EncodeBestScores(snapshot.BestScores)
	if err != nil {
		return false, err
	}

	err = svc.store.UpsertProgressSnapshot(&model.ProgressSnapshot{
		LearnerID:        entry.LearnerID,
		SubjectID:        entry.SubjectID,
		CompletionBitmap: snapshot.Completion.EncodeBase64(),
		RewardedBitmap:   snapshot.Rewarded.EncodeBase64(),
		BestScores:       scores,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Status reports the sync backlog and run counters for the admin surface.
func (svc *SyncService) Status(ctx context.Context) (*dto.SyncStatusResponse, error) {
	backlog, err := svc.queue.DirtyBacklog(ctx)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	resp := &dto.SyncStatusResponse{
		DirtyBacklog:  backlog,
		LastRunSynced: svc.lastRunSynced,
		LastRunFailed: svc.lastRunFailed,
		TotalSynced:   atomic.LoadInt64(&svc.totalSynced),
		TotalFailed:   atomic.LoadInt64(&svc.totalFailed),
	}
	if !svc.lastRunAt.IsZero() {
		t := svc.lastRunAt
		resp.LastRunAt = &t
	}
	return resp, nil
}
