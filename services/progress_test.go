package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/pkg/progression"
	"github.com/pathwise-labs/progress_api/shared"
)

// progressDoc: sequential fractions chapter (bits 0, 1), parallel geometry
// chapter (bit 2).
const progressDoc = `{
	"id": "math-7", "title": "Mathematics 7",
	"children": [
		{
			"id": "ch-fractions", "sequential": true, "sortOrder": 1,
			"children": [
				{"id": "lesson-fractions-01", "bitPosition": 0, "sortOrder": 1},
				{"id": "lesson-fractions-02", "bitPosition": 1, "sortOrder": 2}
			]
		},
		{
			"id": "ch-geometry", "sortOrder": 2,
			"children": [
				{"id": "lesson-geometry-01", "bitPosition": 2, "sortOrder": 1}
			]
		}
	]
}`

func testStructure(t *testing.T) *SubjectStructure {
	t.Helper()
	tree, dropped, err := progression.ParseTree([]byte(progressDoc))
	require.NoError(t, err)
	require.Empty(t, dropped)
	return &SubjectStructure{SubjectID: "math-7", Version: 3, ETag: "abc123", Tree: tree}
}

// ==================== FAKES ====================

type fakeCache struct {
	outcome   *CompletionOutcome
	recordErr error
	bitmap    progression.Bitmap
	bitmapErr error
	dropErr   error

	recorded  []string
	lastPos   int
	lastScore int
	dropped   []string
	journal   *[]string
}

func (f *fakeCache) RecordCompletion(_ context.Context, _, _, lessonID string, pos, score int) (*CompletionOutcome, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.recorded = append(f.recorded, lessonID)
	f.lastPos = pos
	f.lastScore = score
	return f.outcome, nil
}

func (f *fakeCache) GetBitmap(_ context.Context, _, _ string) (progression.Bitmap, error) {
	if f.bitmapErr != nil {
		return nil, f.bitmapErr
	}
	return f.bitmap, nil
}

func (f *fakeCache) DropEntry(_ context.Context, learnerID, subjectID string) error {
	if f.journal != nil {
		*f.journal = append(*f.journal, "drop")
	}
	if f.dropErr != nil {
		return f.dropErr
	}
	f.dropped = append(f.dropped, learnerID+"|"+subjectID)
	return nil
}

type fakeStructures struct {
	structure    *SubjectStructure
	structureErr error

	lessonSubject string
	lessonPos     int
	resolveErr    error
}

func (f *fakeStructures) GetStructure(_ context.Context, _ string) (*SubjectStructure, error) {
	if f.structureErr != nil {
		return nil, f.structureErr
	}
	return f.structure, nil
}

func (f *fakeStructures) ResolveLesson(_ string) (string, int, error) {
	if f.resolveErr != nil {
		return "", 0, f.resolveErr
	}
	return f.lessonSubject, f.lessonPos, nil
}

type fakeDurable struct {
	snapshot *model.ProgressSnapshot
	getErr   error
	resetErr error

	resets  []string
	journal *[]string
}

func (f *fakeDurable) GetProgressSnapshot(_, _ string) (*model.ProgressSnapshot, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.snapshot, nil
}

func (f *fakeDurable) ResetProgressSnapshot(learnerID, subjectID string) error {
	if f.journal != nil {
		*f.journal = append(*f.journal, "reset")
	}
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets = append(f.resets, learnerID+"|"+subjectID)
	return nil
}

type walletCall struct {
	learnerID string
	amount    int
	reason    string
	key       string
}

type fakeWallet struct {
	total int64
	err   error

	calls []walletCall
}

func (f *fakeWallet) Credit(_ context.Context, learnerID string, amount int, reason, idempotencyKey string) (int64, error) {
	f.calls = append(f.calls, walletCall{learnerID, amount, reason, idempotencyKey})
	if f.err != nil {
		return 0, f.err
	}
	return f.total, nil
}

type fakeAudit struct {
	events []AuditEvent
}

func (f *fakeAudit) Enqueue(event AuditEvent) {
	f.events = append(f.events, event)
}

func (f *fakeAudit) actions() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

func newProgressService(cache *fakeCache, structures *fakeStructures, durable *fakeDurable, wallet *fakeWallet) (*ProgressService, *fakeAudit) {
	audit := &fakeAudit{}
	svc := &ProgressService{
		cache:      cache,
		structures: structures,
		durable:    durable,
		wallet:     wallet,
		audit:      audit,
		policy:     progression.DefaultRewardPolicy,
	}
	return svc, audit
}

// ==================== COMPLETE LESSON ====================

func TestCompleteLessonFirstTime(t *testing.T) {
	cache := &fakeCache{outcome: &CompletionOutcome{}}
	structures := &fakeStructures{lessonSubject: "math-7", lessonPos: 0}
	wallet := &fakeWallet{total: 1240}
	svc, audit := newProgressService(cache, structures, &fakeDurable{}, wallet)

	resp, err := svc.CompleteLesson(context.Background(), "learner-1", &dto.CompleteLessonRequest{
		LessonID: "lesson-fractions-01",
		Score:    4,
	})
	require.NoError(t, err)

	assert.Equal(t, "math-7", resp.SubjectID)
	assert.Equal(t, 90, resp.XPAwarded, "base 50 plus 4 points at 10 each")
	assert.True(t, resp.IsFirstCompletion)
	assert.True(t, resp.IsNewRecord)
	assert.Equal(t, 4, resp.BestScore)
	require.NotNil(t, resp.TotalXP)
	assert.Equal(t, int64(1240), *resp.TotalXP)

	require.Len(t, wallet.calls, 1)
	assert.Equal(t, "learner-1", wallet.calls[0].learnerID)
	assert.Equal(t, 90, wallet.calls[0].amount)
	assert.Equal(t, "completion:learner-1:lesson-fractions-01:4", wallet.calls[0].key)

	require.Len(t, audit.events, 1)
	assert.Equal(t, "lesson_completed", audit.events[0].Action)
	assert.Equal(t, "first", audit.events[0].Detail["result"])
}

func TestCompleteLessonReplayImprovement(t *testing.T) {
	cache := &fakeCache{outcome: &CompletionOutcome{
		WasAlreadySet: true,
		BaseGranted:   true,
		PrevBest:      2,
		HasPrevBest:   true,
		Improved:      true,
	}}
	structures := &fakeStructures{lessonSubject: "math-7", lessonPos: 0}
	wallet := &fakeWallet{total: 1270}
	svc, audit := newProgressService(cache, structures, &fakeDurable{}, wallet)

	resp, err := svc.CompleteLesson(context.Background(), "learner-1", &dto.CompleteLessonRequest{
		LessonID: "lesson-fractions-01",
		Score:    5,
	})
	require.NoError(t, err)

	assert.Equal(t, 30, resp.XPAwarded, "only the three-point improvement pays")
	assert.False(t, resp.IsFirstCompletion)
	assert.True(t, resp.IsNewRecord)
	assert.Equal(t, 5, resp.BestScore)

	require.Len(t, wallet.calls, 1)
	assert.Equal(t, 30, wallet.calls[0].amount)
	assert.Equal(t, "replay", audit.events[0].Detail["result"])
}

func TestCompleteLessonRepeatWithoutImprovement(t *testing.T) {
	cache := &fakeCache{outcome: &CompletionOutcome{
		WasAlreadySet: true,
		BaseGranted:   true,
		PrevBest:      4,
		HasPrevBest:   true,
	}}
	structures := &fakeStructures{lessonSubject: "math-7", lessonPos: 0}
	wallet := &fakeWallet{}
	svc, audit := newProgressService(cache, structures, &fakeDurable{}, wallet)

	resp, err := svc.CompleteLesson(context.Background(), "learner-1", &dto.CompleteLessonRequest{
		LessonID: "lesson-fractions-01",
		Score:    3,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.XPAwarded)
	assert.False(t, resp.IsNewRecord)
	assert.Equal(t, 4, resp.BestScore, "the stored best stands")
	assert.Nil(t, resp.TotalXP)
	assert.Empty(t, wallet.calls, "zero awards never reach the wallet")
	assert.Equal(t, "repeat", audit.events[0].Detail["result"])
}

func TestCompleteLessonWalletFailureKeepsCompletion(t *testing.T) {
	cache := &fakeCache{outcome: &CompletionOutcome{}}
	structures := &fakeStructures{lessonSubject: "math-7", lessonPos: 0}
	wallet := &fakeWallet{err: errors.New("wallet timeout")}
	svc, audit := newProgressService(cache, structures, &fakeDurable{}, wallet)

	resp, err := svc.CompleteLesson(context.Background(), "learner-1", &dto.CompleteLessonRequest{
		LessonID: "lesson-fractions-01",
		Score:    4,
	})
	require.NoError(t, err, "a wallet hiccup does not void the completion")

	assert.Equal(t, 90, resp.XPAwarded)
	assert.Nil(t, resp.TotalXP, "balance unknown when the credit failed")
	assert.Equal(t, []string{"wallet_credit_failed", "lesson_completed"}, audit.actions())
}

func TestCompleteLessonUnknownLesson(t *testing.T) {
	cache := &fakeCache{}
	structures := &fakeStructures{resolveErr: shared.NewLessonNotFoundError("lesson-ghost")}
	svc, _ := newProgressService(cache, structures, &fakeDurable{}, &fakeWallet{})

	_, err := svc.CompleteLesson(context.Background(), "learner-1", &dto.CompleteLessonRequest{
		LessonID: "lesson-ghost",
		Score:    4,
	})
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)
	assert.Empty(t, cache.recorded, "nothing is written for an unknown lesson")
}

func TestCompleteLessonCacheWriteFails(t *testing.T) {
	cache := &fakeCache{recordErr: shared.NewCacheUnavailableError(errors.New("redis down"))}
	structures := &fakeStructures{lessonSubject: "math-7", lessonPos: 0}
	wallet := &fakeWallet{}
	svc, audit := newProgressService(cache, structures, &fakeDurable{}, wallet)

	_, err := svc.CompleteLesson(context.Background(), "learner-1", &dto.CompleteLessonRequest{
		LessonID: "lesson-fractions-01",
		Score:    4,
	})
	require.Error(t, err)
	assert.True(t, shared.IsCacheUnavailable(err))
	assert.Empty(t, wallet.calls)
	assert.Empty(t, audit.events)
}

// ==================== GET PROGRESS ====================

func TestGetProgressFromCache(t *testing.T) {
	var bm progression.Bitmap
	bm.Set(0)

	cache := &fakeCache{bitmap: bm}
	structures := &fakeStructures{structure: testStructure(t)}
	svc, _ := newProgressService(cache, structures, &fakeDurable{}, &fakeWallet{})

	resp, err := svc.GetProgress(context.Background(), "learner-1", "math-7")
	require.NoError(t, err)

	assert.Equal(t, "math-7", resp.SubjectID)
	assert.Equal(t, 3, resp.StructureVersion)
	assert.Equal(t, 1, resp.PassedLessons)
	assert.Equal(t, 3, resp.TotalLessons)
	assert.InDelta(t, 33.33, resp.CompletionPercentage, 0.34)
	require.NotNil(t, resp.SuggestedNextLessonID)
	assert.Equal(t, "lesson-fractions-02", *resp.SuggestedNextLessonID)

	require.NotNil(t, resp.Tree)
	require.Len(t, resp.Tree.Children, 2)
	fractions := resp.Tree.Children[0]
	assert.Equal(t, "passed", fractions.Children[0].Status)
	assert.Equal(t, "unlocked", fractions.Children[1].Status)
}

func TestGetProgressFallsBackToSnapshot(t *testing.T) {
	var bm progression.Bitmap
	bm.Set(0)
	bm.Set(1)

	cache := &fakeCache{bitmapErr: shared.NewCacheUnavailableError(errors.New("redis down"))}
	durable := &fakeDurable{snapshot: &model.ProgressSnapshot{
		LearnerID:        "learner-1",
		SubjectID:        "math-7",
		CompletionBitmap: bm.EncodeBase64(),
	}}
	structures := &fakeStructures{structure: testStructure(t)}
	svc, _ := newProgressService(cache, structures, durable, &fakeWallet{})

	resp, err := svc.GetProgress(context.Background(), "learner-1", "math-7")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PassedLessons, "served from the last synced snapshot")
}

func TestGetProgressFallbackWithoutSnapshot(t *testing.T) {
	cache := &fakeCache{bitmapErr: shared.NewCacheUnavailableError(errors.New("redis down"))}
	durable := &fakeDurable{getErr: shared.NewNotFoundError(nil, "Progress snapshot not found")}
	structures := &fakeStructures{structure: testStructure(t)}
	svc, _ := newProgressService(cache, structures, durable, &fakeWallet{})

	resp, err := svc.GetProgress(context.Background(), "learner-new", "math-7")
	require.NoError(t, err, "a learner with no snapshot reads as fresh")
	assert.Equal(t, 0, resp.PassedLessons)
	require.NotNil(t, resp.SuggestedNextLessonID)
	assert.Equal(t, "lesson-fractions-01", *resp.SuggestedNextLessonID)
}

func TestGetProgressCacheAndSnapshotDown(t *testing.T) {
	cache := &fakeCache{bitmapErr: shared.NewCacheUnavailableError(errors.New("redis down"))}
	durable := &fakeDurable{getErr: errors.New("postgres down too")}
	structures := &fakeStructures{structure: testStructure(t)}
	svc, _ := newProgressService(cache, structures, durable, &fakeWallet{})

	_, err := svc.GetProgress(context.Background(), "learner-1", "math-7")
	require.Error(t, err)
	assert.True(t, shared.IsCacheUnavailable(err))
}

func TestGetProgressUnknownSubject(t *testing.T) {
	structures := &fakeStructures{structureErr: shared.NewSubjectNotFoundError("ghost-9")}
	svc, _ := newProgressService(&fakeCache{}, structures, &fakeDurable{}, &fakeWallet{})

	_, err := svc.GetProgress(context.Background(), "learner-1", "ghost-9")
	require.Error(t, err)

	appErr, ok := shared.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.StatusCode)
}

// ==================== RESET PROGRESS ====================

func TestResetProgressDurableFirstThenCache(t *testing.T) {
	var journal []string
	cache := &fakeCache{journal: &journal}
	durable := &fakeDurable{journal: &journal}
	structures := &fakeStructures{structure: testStructure(t)}
	svc, audit := newProgressService(cache, structures, durable, &fakeWallet{})

	resp, err := svc.ResetProgress(context.Background(), "learner-1", "math-7")
	require.NoError(t, err)

	assert.Equal(t, []string{"reset", "drop"}, journal, "the durable row resets before the cache entry drops")
	assert.Equal(t, "learner-1", resp.LearnerID)
	assert.Equal(t, "math-7", resp.SubjectID)

	_, err = time.Parse(time.RFC3339, resp.ResetAt)
	assert.NoError(t, err)

	require.Len(t, audit.events, 1)
	assert.Equal(t, "progress_reset", audit.events[0].Action)
}

func TestResetProgressCacheDropFails(t *testing.T) {
	cache := &fakeCache{dropErr: errors.New("redis down")}
	durable := &fakeDurable{}
	structures := &fakeStructures{structure: testStructure(t)}
	svc, audit := newProgressService(cache, structures, durable, &fakeWallet{})

	_, err := svc.ResetProgress(context.Background(), "learner-1", "math-7")
	require.Error(t, err, "the admin retries until the cached entry is gone")
	assert.Len(t, durable.resets, 1, "the durable reset already happened")
	assert.Empty(t, audit.events)
}

func TestResetProgressUnknownSubject(t *testing.T) {
	durable := &fakeDurable{}
	structures := &fakeStructures{structureErr: shared.NewSubjectNotFoundError("ghost-9")}
	svc, _ := newProgressService(&fakeCache{}, structures, durable, &fakeWallet{})

	_, err := svc.ResetProgress(context.Background(), "learner-1", "ghost-9")
	require.Error(t, err)
	assert.Empty(t, durable.resets)
}
