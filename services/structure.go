package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/pkg/progression"
	"github.com/pathwise-labs/progress_api/shared"
)

// StructureService owns subject structures: publishing new revisions and
// serving parsed trees to the progress flows. Parsed trees sit in a small
// in-process LRU; a per-subject version stamp in redis invalidates every
// instance's copy the moment a new revision lands.
type StructureService struct {
	appContext.DefaultService

	pgSvc    *PostgresService
	minioSvc *MinIOService
	redisSvc *RedisService
	auditSvc *AuditService
	metrics  *MonitoringService

	cache     *lru.Cache[string, *cachedStructure]
	cacheSize int
	staleTTL  time.Duration
}

type cachedStructure struct {
	subjectID string
	version   int
	etag      string
	tree      *progression.Tree
	document  []byte
	loadedAt  time.Time
}

// SubjectStructure is the parsed structure the progress flows consume.
type SubjectStructure struct {
	SubjectID string
	Version   int
	ETag      string
	Tree      *progression.Tree
}

const STRUCTURE_SVC = "structure_svc"

func (svc StructureService) Id() string {
	return STRUCTURE_SVC
}

func (svc *StructureService) Configure(ctx *appContext.Context) error {
	svc.cacheSize = 256
	if size := os.Getenv("STRUCTURE_CACHE_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			svc.cacheSize = n
		}
	}

	svc.staleTTL = 60 * time.Second
	if ttl := os.Getenv("STRUCTURE_TTL"); ttl != "" {
		if n, err := strconv.Atoi(ttl); err == nil && n > 0 {
			svc.staleTTL = time.Duration(n) * time.Second
		}
	}

	cache, err := lru.New[string, *cachedStructure](svc.cacheSize)
	if err != nil {
		return err
	}
	svc.cache = cache

	return svc.DefaultService.Configure(ctx)
}

func (svc *StructureService) Start() error {
	svc.pgSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.minioSvc = svc.Service(MINIO_SVC).(*MinIOService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.auditSvc = svc.Service(AUDIT_SVC).(*AuditService)
	svc.metrics = svc.Service(MONITORING_SVC).(*MonitoringService)
	return nil
}

func structureVersionKey(subjectID string) string {
	return fmt.Sprintf("structure:ver:%s", subjectID)
}

// GetStructure returns the parsed current structure of a subject. Cached
// copies are trusted while the redis version stamp matches; when the stamp
// is unreadable a copy younger than the stale TTL still serves, so a redis
// wobble does not take subject reads down.
func (svc *StructureService) GetStructure(ctx context.Context, subjectID string) (*SubjectStructure, error) {
	if cached, ok := svc.cache.Get(subjectID); ok {
		stamp, stampErr := svc.stampVersion(ctx, subjectID)
		switch {
		case stampErr == nil && stamp == cached.version:
			if svc.metrics != nil {
				svc.metrics.RecordStructureLoad("cache_hit")
			}
			return cached.structure(), nil
		case stampErr != nil && time.Since(cached.loadedAt) < svc.staleTTL:
			log.WithError(stampErr).WithField("subject_id", subjectID).
				Warn("Version stamp unavailable, serving cached structure")
			return cached.structure(), nil
		}
	}

	loaded, err := svc.loadStructure(ctx, subjectID)
	if err != nil {
		// Infrastructure trouble falls back to the stale copy; a genuine
		// not-found surfaces.
		if cached, ok := svc.cache.Get(subjectID); ok {
			if appErr, isApp := shared.GetAppError(err); !isApp || appErr.StatusCode >= 500 {
				log.WithError(err).WithField("subject_id", subjectID).
					Warn("Structure reload failed, serving stale copy")
				return cached.structure(), nil
			}
		}
		return nil, err
	}

	svc.cache.Add(subjectID, loaded)
	if svc.metrics != nil {
		svc.metrics.RecordStructureLoad("loaded")
	}
	return loaded.structure(), nil
}

func (c *cachedStructure) structure() *SubjectStructure {
	return &SubjectStructure{
		SubjectID: c.subjectID,
		Version:   c.version,
		ETag:      c.etag,
		Tree:      c.tree,
	}
}

func (svc *StructureService) stampVersion(ctx context.Context, subjectID string) (int, error) {
	raw, err := svc.redisSvc.Get(ctx, structureVersionKey(subjectID))
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, fmt.Errorf("no version stamp for subject %s", subjectID)
	}
	return strconv.Atoi(raw)
}

func (svc *StructureService) loadStructure(_ context.Context, subjectID string) (*cachedStructure, error) {
	subject, err := svc.pgSvc.GetSubject(subjectID)
	if err != nil {
		if appErr, ok := shared.GetAppError(err); ok && appErr.StatusCode == 404 {
			return nil, shared.NewSubjectNotFoundError(subjectID)
		}
		return nil, err
	}
	if subject.StructureVersion == 0 {
		return nil, shared.NewSubjectNotFoundError(subjectID)
	}

	objectKey := StructureObjectKey(subjectID, subject.StructureVersion)
	doc, err := svc.minioSvc.GetStructureDocument(objectKey)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to load structure document")
	}

	tree, droppedIDs, err := progression.ParseTree(doc)
	if err != nil {
		return nil, shared.NewInternalError(err, "Published structure document is invalid")
	}
	for _, droppedID := range droppedIDs {
		log.WithFields(log.Fields{
			"subject_id": subjectID,
			"node_id":    droppedID,
			"version":    subject.StructureVersion,
		}).Warn("Excluding malformed structure subtree")
	}

	return &cachedStructure{
		subjectID: subjectID,
		version:   subject.StructureVersion,
		etag:      subject.StructureETag,
		tree:      tree,
		document:  doc,
		loadedAt:  time.Now(),
	}, nil
}

// ListSubjects returns the registry row of every known subject.
func (svc *StructureService) ListSubjects() ([]model.Subject, error) {
	return svc.pgSvc.ListSubjects()
}

// GetRevisions returns the publish history of one subject, newest first.
func (svc *StructureService) GetRevisions(subjectID string, limit int) ([]model.StructureRevision, error) {
	return svc.pgSvc.GetStructureRevisions(subjectID, limit)
}

// ResolveLesson maps a lesson id to its subject and permanent bit
// position.
func (svc *StructureService) ResolveLesson(lessonID string) (string, int, error) {
	pos, err := svc.pgSvc.ResolveLesson(lessonID)
	if err != nil {
		if appErr, ok := shared.GetAppError(err); ok && appErr.StatusCode == 404 {
			return "", 0, shared.NewLessonNotFoundError(lessonID)
		}
		return "", 0, err
	}
	return pos.SubjectID, pos.BitPosition, nil
}

// PublishStructure validates an authoring document, assigns bit positions
// to new lessons, uploads the canonical revision and flips the subject's
// current version. Version numbers burned by a failed publish are never
// reused; monotonicity is what matters.
func (svc *StructureService) PublishStructure(ctx context.Context, subjectID string, doc []byte) (*dto.StructureVersionResponse, error) {
	assigned, err := svc.pgSvc.GetLessonPositionMap(subjectID)
	if err != nil {
		return nil, err
	}

	normalized, err := progression.NormalizeDocument(doc, assigned, func(n int) (int, error) {
		return svc.pgSvc.AllocateBitPositions(subjectID, n)
	})
	if err != nil {
		if _, ok := shared.GetAppError(err); ok {
			return nil, err
		}
		return nil, shared.NewBadRequestError(err, "Invalid structure document")
	}
	if normalized.Tree.Root.ID != subjectID {
		return nil, shared.NewBadRequestError(
			fmt.Errorf("document root %q does not match subject %q", normalized.Tree.Root.ID, subjectID),
			"Document root id must match the subject id")
	}

	subject, err := svc.pgSvc.BeginStructurePublish(subjectID, normalized.Tree.Root.Title)
	if err != nil {
		return nil, err
	}

	objectKey, etag, err := svc.minioSvc.PutStructureDocument(subjectID, subject.StructureVersion, normalized.Canonical)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to store structure document")
	}

	subject.StructureETag = etag
	if err := svc.pgSvc.FinishStructurePublish(subject, objectKey, etag, normalized.Tree.LessonCount(), normalized.Assignments); err != nil {
		return nil, err
	}

	// Invalidate readers: bump the shared stamp, drop the local copy.
	if err := svc.redisSvc.Set(ctx, structureVersionKey(subjectID), strconv.Itoa(subject.StructureVersion), 0); err != nil {
		log.WithError(err).WithField("subject_id", subjectID).
			Warn("Failed to bump structure version stamp; caches will age out instead")
	}
	svc.cache.Remove(subjectID)

	if svc.auditSvc != nil {
		svc.auditSvc.Enqueue(AuditEvent{
			SubjectID: subjectID,
			Action:    "structure_published",
			Detail: map[string]interface{}{
				"version":      subject.StructureVersion,
				"lesson_count": normalized.Tree.LessonCount(),
				"new_lessons":  len(normalized.Assignments),
			},
		})
	}
	if svc.metrics != nil {
		svc.metrics.RecordStructurePublish()
	}

	log.WithFields(log.Fields{
		"subject_id":   subjectID,
		"version":      subject.StructureVersion,
		"lesson_count": normalized.Tree.LessonCount(),
		"new_lessons":  len(normalized.Assignments),
	}).Info("Published structure revision")

	assignments := make([]dto.AssignedPosition, 0, len(normalized.Assignments))
	for _, a := range normalized.Assignments {
		assignments = append(assignments, dto.AssignedPosition{
			LessonID:    a.LessonID,
			BitPosition: a.BitPosition,
		})
	}

	return &dto.StructureVersionResponse{
		SubjectID:   subjectID,
		Version:     subject.StructureVersion,
		ETag:        etag,
		LessonCount: normalized.Tree.LessonCount(),
		NewLessons:  assignments,
	}, nil
}

// GetStructureDocument returns the raw current document for admin
// inspection.
func (svc *StructureService) GetStructureDocument(ctx context.Context, subjectID string) (*dto.StructureDocumentResponse, error) {
	structure, err := svc.GetStructure(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if cached, ok := svc.cache.Get(subjectID); ok && cached.version == structure.Version {
		return &dto.StructureDocumentResponse{
			SubjectID: subjectID,
			Version:   cached.version,
			ETag:      cached.etag,
			Document:  cached.document,
		}, nil
	}

	doc, err := svc.minioSvc.GetStructureDocument(StructureObjectKey(subjectID, structure.Version))
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to load structure document")
	}
	return &dto.StructureDocumentResponse{
		SubjectID: subjectID,
		Version:   structure.Version,
		ETag:      structure.ETag,
		Document:  doc,
	}, nil
}
