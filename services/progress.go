package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/pkg/progression"
	"github.com/pathwise-labs/progress_api/shared"
)

// Seams over the concrete services; the progress flows only need these.
type progressCache interface {
	RecordCompletion(ctx context.Context, learnerID, subjectID, lessonID string, pos, score int) (*CompletionOutcome, error)
	GetBitmap(ctx context.Context, learnerID, subjectID string) (progression.Bitmap, error)
	DropEntry(ctx context.Context, learnerID, subjectID string) error
}

type structureSource interface {
	GetStructure(ctx context.Context, subjectID string) (*SubjectStructure, error)
	ResolveLesson(lessonID string) (string, int, error)
}

type snapshotStore interface {
	GetProgressSnapshot(learnerID, subjectID string) (*model.ProgressSnapshot, error)
	ResetProgressSnapshot(learnerID, subjectID string) error
}

type xpLedger interface {
	Credit(ctx context.Context, learnerID string, amount int, reason, idempotencyKey string) (int64, error)
}

type eventSink interface {
	Enqueue(event AuditEvent)
}

// ProgressService ties the progress flows together: lesson completions with
// their XP awards, subject progress reads with unlock derivation, and admin
// resets.
type ProgressService struct {
	appContext.DefaultService

	cache      progressCache
	structures structureSource
	durable    snapshotStore
	wallet     xpLedger
	audit      eventSink
	metrics    *MonitoringService

	policy progression.RewardPolicy
}

const PROGRESS_SVC = "progress_svc"

func (svc ProgressService) Id() string {
	return PROGRESS_SVC
}

func (svc *ProgressService) Configure(ctx *appContext.Context) error {
	svc.policy = progression.DefaultRewardPolicy
	if v := os.Getenv("REWARD_BASE_XP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			svc.policy.BaseXP = n
		}
	}
	if v := os.Getenv("REWARD_PER_POINT_XP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			svc.policy.PerPointXP = n
		}
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *ProgressService) Start() error {
	svc.cache = svc.Service(PROGRESS_CACHE_SVC).(*ProgressCacheService)
	svc.structures = svc.Service(STRUCTURE_SVC).(*StructureService)
	svc.durable = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.wallet = svc.Service(WALLET_SVC).(*WalletService)
	svc.audit = svc.Service(AUDIT_SVC).(*AuditService)
	svc.metrics = svc.Service(MONITORING_SVC).(*MonitoringService)
	return nil
}

// CompleteLesson records one completion and settles its reward. The cache
// write is the source of truth: if it cannot happen the whole call fails
// retryable. A wallet hiccup, by contrast, never voids the completion; the
// response just omits the balance.
func (svc *ProgressService) CompleteLesson(ctx context.Context, learnerID string, req *dto.CompleteLessonRequest) (*dto.CompleteLessonResponse, error) {
	subjectID, pos, err := svc.structures.ResolveLesson(req.LessonID)
	if err != nil {
		return nil, err
	}

	outcome, err := svc.cache.RecordCompletion(ctx, learnerID, subjectID, req.LessonID, pos, req.Score)
	if err != nil {
		return nil, err
	}

	reward := svc.policy.Evaluate(outcome.BaseGranted, outcome.PrevBest, outcome.HasPrevBest, req.Score)

	result := "repeat"
	switch {
	case !outcome.WasAlreadySet:
		result = "first"
	case reward.XP > 0:
		result = "replay"
	}
	if svc.metrics != nil {
		svc.metrics.RecordCompletion(result)
	}

	var totalXP *int64
	if reward.XP > 0 {
		idempotencyKey := fmt.Sprintf("completion:%s:%s:%d", learnerID, req.LessonID, reward.BestScore)
		total, werr := svc.wallet.Credit(ctx, learnerID, reward.XP, "lesson_completion", idempotencyKey)
		if werr != nil {
			// The completion already stands; the credit is reconciled from
			// the audit trail.
			log.WithError(werr).WithFields(log.Fields{
				"learner_id": learnerID,
				"lesson_id":  req.LessonID,
				"xp":         reward.XP,
			}).Error("Failed to credit XP to wallet")
			if svc.metrics != nil {
				svc.metrics.RecordWalletCreditFailure()
			}
			svc.audit.Enqueue(AuditEvent{
				LearnerID: learnerID,
				SubjectID: subjectID,
				LessonID:  req.LessonID,
				Action:    "wallet_credit_failed",
				Detail:    map[string]interface{}{"xp": reward.XP, "error": werr.Error()},
			})
		} else {
			totalXP = &total
			if svc.metrics != nil {
				svc.metrics.RecordXPAwarded(reward.XP)
			}
		}
	}

	svc.audit.Enqueue(AuditEvent{
		LearnerID: learnerID,
		SubjectID: subjectID,
		LessonID:  req.LessonID,
		Action:    "lesson_completed",
		Detail: map[string]interface{}{
			"score":      req.Score,
			"xp":         reward.XP,
			"result":     result,
			"best_score": reward.BestScore,
		},
	})

	return &dto.CompleteLessonResponse{
		LessonID:          req.LessonID,
		SubjectID:         subjectID,
		XPAwarded:         reward.XP,
		IsFirstCompletion: !outcome.WasAlreadySet,
		IsNewRecord:       reward.IsNewRecord,
		BestScore:         reward.BestScore,
		TotalXP:           totalXP,
	}, nil
}

// GetProgress computes the learner's view of one subject: per-node unlock
// statuses, completion percentage and the suggested next lesson. Reads
// prefer the cache; when it is down they fall back to the durable snapshot
// rather than failing the request.
func (svc *ProgressService) GetProgress(ctx context.Context, learnerID, subjectID string) (*dto.SubjectProgressResponse, error) {
	structure, err := svc.structures.GetStructure(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	bm, err := svc.cache.GetBitmap(ctx, learnerID, subjectID)
	if err != nil {
		if !shared.IsCacheUnavailable(err) {
			return nil, err
		}
		bm, err = svc.durableBitmap(learnerID, subjectID)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"learner_id": learnerID,
			"subject_id": subjectID,
		}).Warn("Serving progress from durable snapshot, cache unavailable")
		if svc.metrics != nil {
			svc.metrics.RecordCacheFallbackRead()
		}
	}

	ev := progression.Evaluate(structure.Tree, bm)

	var next *string
	if id, ok := ev.NextLessonID(); ok {
		next = &id
	}

	return &dto.SubjectProgressResponse{
		SubjectID:             subjectID,
		StructureVersion:      structure.Version,
		CompletionPercentage:  ev.CompletionPercent(),
		PassedLessons:         ev.PassedLessons(),
		TotalLessons:          ev.TotalLessons(),
		SuggestedNextLessonID: next,
		Tree:                  buildNodeProgress(structure.Tree.Root, ev),
	}, nil
}

// durableBitmap is the degraded read path: last synced completion state,
// possibly up to one sync interval stale.
func (svc *ProgressService) durableBitmap(learnerID, subjectID string) (progression.Bitmap, error) {
	row, err := svc.durable.GetProgressSnapshot(learnerID, subjectID)
	if err != nil {
		if appErr, ok := shared.GetAppError(err); ok && appErr.StatusCode == 404 {
			return progression.Bitmap{}, nil
		}
		return nil, shared.NewCacheUnavailableError(err)
	}
	bm, err := progression.DecodeBitmap(row.CompletionBitmap)
	if err != nil {
		return nil, shared.NewInternalError(err, "Stored progress snapshot is corrupt")
	}
	return bm, nil
}

func buildNodeProgress(n *progression.Node, ev *progression.Evaluation) *dto.NodeProgress {
	node := &dto.NodeProgress{
		ID:     n.ID,
		Title:  n.Title,
		Type:   string(n.Kind),
		Status: string(ev.Status(n.ID)),
	}
	for _, c := range n.Children {
		node.Children = append(node.Children, buildNodeProgress(c, ev))
	}
	return node
}

// ResetProgress clears a learner's completion state in one subject. The
// durable row resets first, then the cached entry drops; the next read
// re-warms from the reset row. Base-XP history survives on purpose.
func (svc *ProgressService) ResetProgress(ctx context.Context, learnerID, subjectID string) (*dto.ResetProgressResponse, error) {
	if _, err := svc.structures.GetStructure(ctx, subjectID); err != nil {
		return nil, err
	}

	if err := svc.durable.ResetProgressSnapshot(learnerID, subjectID); err != nil {
		return nil, err
	}
	if err := svc.cache.DropEntry(ctx, learnerID, subjectID); err != nil {
		// Durable state is already reset; the admin retries the drop.
		return nil, err
	}

	svc.audit.Enqueue(AuditEvent{
		LearnerID: learnerID,
		SubjectID: subjectID,
		Action:    "progress_reset",
	})

	log.WithFields(log.Fields{
		"learner_id": learnerID,
		"subject_id": subjectID,
	}).Info("Reset learner progress")

	return &dto.ResetProgressResponse{
		LearnerID: learnerID,
		SubjectID: subjectID,
		ResetAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}
