package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/pkg/progression"
	"github.com/pathwise-labs/progress_api/shared"
)

// ProgressCacheService is the hot progress store. Redis holds, per
// (learner, subject): the completion bitmap, the lifetime rewarded bitmap,
// and the best-score hash. Writes land here first and are flushed to
// postgres by the sync service; a cold entry is rebuilt from the durable
// snapshot on first touch.
//
// Keys carry no TTL. The redis instance is expected to run with a
// noeviction policy; the dirty set is the only thing standing between a
// write and the durable store.
type ProgressCacheService struct {
	appContext.DefaultService

	redisSvc *RedisService
	durable  durableSnapshots
	metrics  *MonitoringService
}

// durableSnapshots is what the cache needs from postgres to warm a cold
// entry.
type durableSnapshots interface {
	GetProgressSnapshot(learnerID, subjectID string) (*model.ProgressSnapshot, error)
}

const PROGRESS_CACHE_SVC = "progress_cache_svc"

func (svc ProgressCacheService) Id() string {
	return PROGRESS_CACHE_SVC
}

func (svc *ProgressCacheService) Configure(ctx *appContext.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *ProgressCacheService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.durable = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.metrics = svc.Service(MONITORING_SVC).(*MonitoringService)
	return nil
}

func bitmapKey(learnerID, subjectID string) string {
	return fmt.Sprintf("progress:bm:%s:%s", learnerID, subjectID)
}

func rewardedKey(learnerID, subjectID string) string {
	return fmt.Sprintf("progress:rw:%s:%s", learnerID, subjectID)
}

func bestScoreKey(learnerID, subjectID string) string {
	return fmt.Sprintf("progress:bs:%s:%s", learnerID, subjectID)
}

const (
	dirtySetKey  = "progress:dirty"
	syncLeaseKey = "progress:sync:lease"
)

// DirtyEntry identifies one cache entry awaiting durable sync.
type DirtyEntry struct {
	LearnerID string
	SubjectID string
}

func (e DirtyEntry) member() string {
	return e.LearnerID + "|" + e.SubjectID
}

func parseDirtyMember(member string) (DirtyEntry, bool) {
	learnerID, subjectID, ok := strings.Cut(member, "|")
	if !ok || learnerID == "" || subjectID == "" {
		return DirtyEntry{}, false
	}
	return DirtyEntry{LearnerID: learnerID, SubjectID: subjectID}, true
}

// completionScript records a completion in one server round trip: set the
// completion bit, set the lifetime rewarded bit, raise the best score if
// beaten, mark the entry dirty. Returns the prior bit, the prior rewarded
// bit, the previous best (-1 when none) and whether the score improved.
const completionScript = `
local was = redis.call("SETBIT", KEYS[1], ARGV[1], 1)
local base = redis.call("SETBIT", KEYS[2], ARGV[1], 1)
local prev = redis.call("HGET", KEYS[3], ARGV[2])
local improved = 0
if (not prev) or (tonumber(ARGV[3]) > tonumber(prev)) then
    redis.call("HSET", KEYS[3], ARGV[2], ARGV[3])
    improved = 1
end
redis.call("SADD", KEYS[4], ARGV[4])
local prevBest = -1
if prev then
    prevBest = tonumber(prev)
end
return {was, base, prevBest, improved}
`

// releaseLeaseScript drops the sync lease only for its current holder.
const releaseLeaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

// CompletionOutcome is what the cache knew at the moment the completion
// landed.
type CompletionOutcome struct {
	WasAlreadySet bool
	// BaseGranted reports whether the base reward had already been paid
	// out before this completion, ever, resets included.
	BaseGranted bool
	PrevBest    int
	HasPrevBest bool
	Improved    bool
}

// RecordCompletion warms the entry if needed, then applies the completion
// atomically. Cache trouble surfaces as a retryable error; a completion
// must never silently succeed.
func (svc *ProgressCacheService) RecordCompletion(ctx context.Context, learnerID, subjectID, lessonID string, pos, score int) (*CompletionOutcome, error) {
	if err := svc.EnsureWarm(ctx, learnerID, subjectID); err != nil {
		return nil, err
	}

	entry := DirtyEntry{LearnerID: learnerID, SubjectID: subjectID}
	keys := []string{
		bitmapKey(learnerID, subjectID),
		rewardedKey(learnerID, subjectID),
		bestScoreKey(learnerID, subjectID),
		dirtySetKey,
	}
	res, err := svc.redisSvc.Eval(ctx, completionScript, keys, pos, lessonID, score, entry.member())
	if err != nil {
		return nil, shared.NewCacheUnavailableError(err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 4 {
		return nil, shared.NewCacheUnavailableError(fmt.Errorf("unexpected completion script reply: %v", res))
	}
	was, _ := vals[0].(int64)
	base, _ := vals[1].(int64)
	prev, _ := vals[2].(int64)
	improved, _ := vals[3].(int64)

	outcome := &CompletionOutcome{
		WasAlreadySet: was == 1,
		BaseGranted:   base == 1,
		PrevBest:      int(prev),
		HasPrevBest:   prev >= 0,
		Improved:      improved == 1,
	}
	if !outcome.HasPrevBest {
		outcome.PrevBest = 0
	}
	return outcome, nil
}

// CheckBit reads one completion bit, warming the entry on a cold cache.
func (svc *ProgressCacheService) CheckBit(ctx context.Context, learnerID, subjectID string, pos int) (bool, error) {
	if err := svc.EnsureWarm(ctx, learnerID, subjectID); err != nil {
		return false, err
	}

	v, err := svc.redisSvc.GetBit(ctx, bitmapKey(learnerID, subjectID), pos)
	if err != nil {
		return false, shared.NewCacheUnavailableError(err)
	}
	return v == 1, nil
}

// GetBitmap returns the learner's completion bitmap, warming the entry on
// a cold cache.
func (svc *ProgressCacheService) GetBitmap(ctx context.Context, learnerID, subjectID string) (progression.Bitmap, error) {
	if err := svc.EnsureWarm(ctx, learnerID, subjectID); err != nil {
		return nil, err
	}

	raw, _, err := svc.redisSvc.GetBytes(ctx, bitmapKey(learnerID, subjectID))
	if err != nil {
		return nil, shared.NewCacheUnavailableError(err)
	}
	return progression.Bitmap(raw), nil
}

// CacheSnapshot reads the raw cached state without warming. The second
// return is false when the entry is cold.
func (svc *ProgressCacheService) CacheSnapshot(ctx context.Context, learnerID, subjectID string) (progression.Snapshot, bool, error) {
	bm, found, err := svc.redisSvc.GetBytes(ctx, bitmapKey(learnerID, subjectID))
	if err != nil {
		return progression.Snapshot{}, false, shared.NewCacheUnavailableError(err)
	}
	if !found {
		return progression.Snapshot{}, false, nil
	}

	rw, _, err := svc.redisSvc.GetBytes(ctx, rewardedKey(learnerID, subjectID))
	if err != nil {
		return progression.Snapshot{}, false, shared.NewCacheUnavailableError(err)
	}

	fields, err := svc.redisSvc.HGetAll(ctx, bestScoreKey(learnerID, subjectID))
	if err != nil {
		return progression.Snapshot{}, false, shared.NewCacheUnavailableError(err)
	}
	scores := make(map[string]int, len(fields))
	for lessonID, v := range fields {
		score, err := strconv.Atoi(v)
		if err != nil {
			log.WithFields(log.Fields{
				"learner_id": learnerID,
				"subject_id": subjectID,
				"lesson_id":  lessonID,
				"value":      v,
			}).Warn("Dropping unparseable best score")
			continue
		}
		scores[lessonID] = score
	}

	return progression.Snapshot{
		Completion: progression.Bitmap(bm),
		Rewarded:   progression.Bitmap(rw),
		BestScores: scores,
	}, true, nil
}

// EnsureWarm installs the durable snapshot when the entry is cold. The
// bitmap key is written last with SETNX semantics, so concurrent warms and
// concurrent writes cannot clobber newer state: once the bitmap key
// exists, the entry is authoritative.
func (svc *ProgressCacheService) EnsureWarm(ctx context.Context, learnerID, subjectID string) error {
	exists, err := svc.redisSvc.Exists(ctx, bitmapKey(learnerID, subjectID))
	if err != nil {
		return shared.NewCacheUnavailableError(err)
	}
	if exists {
		return nil
	}
	return svc.warmFromDurable(ctx, learnerID, subjectID)
}

func (svc *ProgressCacheService) warmFromDurable(ctx context.Context, learnerID, subjectID string) error {
	snapshot := progression.EmptySnapshot()
	source := "empty"

	row, err := svc.durable.GetProgressSnapshot(learnerID, subjectID)
	if err != nil {
		if appErr, ok := shared.GetAppError(err); !ok || appErr.StatusCode != 404 {
			// Without the durable state a warm could invent progress; the
			// caller has to retry once the store is back.
			return err
		}
	} else {
		completion, err := progression.DecodeBitmap(row.CompletionBitmap)
		if err != nil {
			return fmt.Errorf("snapshot for %s/%s: %w", learnerID, subjectID, err)
		}
		rewarded, err := progression.DecodeBitmap(row.RewardedBitmap)
		if err != nil {
			return fmt.Errorf("snapshot for %s/%s: %w", learnerID, subjectID, err)
		}
		scores, err := progression.DecodeBestScores(row.BestScores)
		if err != nil {
			return fmt.Errorf("snapshot for %s/%s: %w", learnerID, subjectID, err)
		}
		snapshot = progression.Snapshot{Completion: completion, Rewarded: rewarded, BestScores: scores}
		source = "durable"
	}

	for lessonID, score := range snapshot.BestScores {
		if _, err := svc.redisSvc.HSetNX(ctx, bestScoreKey(learnerID, subjectID), lessonID, score); err != nil {
			return shared.NewCacheUnavailableError(err)
		}
	}
	if len(snapshot.Rewarded) > 0 {
		if _, err := svc.redisSvc.SetNX(ctx, rewardedKey(learnerID, subjectID), []byte(snapshot.Rewarded), 0); err != nil {
			return shared.NewCacheUnavailableError(err)
		}
	}

	// The bitmap key doubles as the warm marker and goes in last.
	won, err := svc.redisSvc.SetNX(ctx, bitmapKey(learnerID, subjectID), []byte(snapshot.Completion), 0)
	if err != nil {
		return shared.NewCacheUnavailableError(err)
	}
	if won {
		if svc.metrics != nil {
			svc.metrics.RecordCacheWarm(source)
		}
		log.WithFields(log.Fields{
			"learner_id": learnerID,
			"subject_id": subjectID,
			"source":     source,
		}).Debug("Warmed progress cache entry")
	}
	return nil
}

// MarkDirty queues an entry for the next durable sync.
func (svc *ProgressCacheService) MarkDirty(ctx context.Context, learnerID, subjectID string) error {
	entry := DirtyEntry{LearnerID: learnerID, SubjectID: subjectID}
	if err := svc.redisSvc.SAdd(ctx, dirtySetKey, entry.member()); err != nil {
		return shared.NewCacheUnavailableError(err)
	}
	return nil
}

// PopDirty atomically claims up to n dirty entries. Claimed entries the
// syncer fails to flush must be requeued.
func (svc *ProgressCacheService) PopDirty(ctx context.Context, n int64) ([]DirtyEntry, error) {
	members, err := svc.redisSvc.SPopN(ctx, dirtySetKey, n)
	if err != nil {
		return nil, shared.NewCacheUnavailableError(err)
	}

	entries := make([]DirtyEntry, 0, len(members))
	for _, member := range members {
		entry, ok := parseDirtyMember(member)
		if !ok {
			log.WithField("member", member).Warn("Dropping malformed dirty entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RequeueDirty puts failed entries back on the dirty set.
func (svc *ProgressCacheService) RequeueDirty(ctx context.Context, entries []DirtyEntry) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		members = append(members, entry.member())
	}
	if err := svc.redisSvc.SAdd(ctx, dirtySetKey, members...); err != nil {
		return shared.NewCacheUnavailableError(err)
	}
	return nil
}

// DirtyBacklog reports how many entries await durable sync.
func (svc *ProgressCacheService) DirtyBacklog(ctx context.Context) (int64, error) {
	n, err := svc.redisSvc.SCard(ctx, dirtySetKey)
	if err != nil {
		return 0, shared.NewCacheUnavailableError(err)
	}
	return n, nil
}

// DropEntry evicts a learner's cached state for one subject. Callers must
// have already reset the durable row: the next touch re-warms from there.
func (svc *ProgressCacheService) DropEntry(ctx context.Context, learnerID, subjectID string) error {
	err := svc.redisSvc.Delete(ctx,
		bitmapKey(learnerID, subjectID),
		rewardedKey(learnerID, subjectID),
		bestScoreKey(learnerID, subjectID),
	)
	if err != nil {
		return shared.NewCacheUnavailableError(err)
	}

	entry := DirtyEntry{LearnerID: learnerID, SubjectID: subjectID}
	if err := svc.redisSvc.SRem(ctx, dirtySetKey, entry.member()); err != nil {
		return shared.NewCacheUnavailableError(err)
	}
	return nil
}

// AcquireSyncLease takes the short exclusive lease a sync run holds so
// overlapping runs (or a second instance) skip instead of double-flushing.
func (svc *ProgressCacheService) AcquireSyncLease(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	won, err := svc.redisSvc.SetNX(ctx, syncLeaseKey, token, ttl)
	if err != nil {
		return false, shared.NewCacheUnavailableError(err)
	}
	return won, nil
}

// ReleaseSyncLease drops the lease if this holder still owns it.
func (svc *ProgressCacheService) ReleaseSyncLease(ctx context.Context, token string) error {
	if _, err := svc.redisSvc.Eval(ctx, releaseLeaseScript, []string{syncLeaseKey}, token); err != nil {
		return shared.NewCacheUnavailableError(err)
	}
	return nil
}
