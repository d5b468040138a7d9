package handlers

import (
	"context"

	"github.com/pathwise-labs/progress_api/dto"
	"github.com/pathwise-labs/progress_api/model"
)

type ProgressServiceInterface interface {
	CompleteLesson(ctx context.Context, learnerID string, req *dto.CompleteLessonRequest) (*dto.CompleteLessonResponse, error)
	GetProgress(ctx context.Context, learnerID, subjectID string) (*dto.SubjectProgressResponse, error)
	ResetProgress(ctx context.Context, learnerID, subjectID string) (*dto.ResetProgressResponse, error)
}

type StructureServiceInterface interface {
	PublishStructure(ctx context.Context, subjectID string, doc []byte) (*dto.StructureVersionResponse, error)
	GetStructureDocument(ctx context.Context, subjectID string) (*dto.StructureDocumentResponse, error)
	ListSubjects() ([]model.Subject, error)
	GetRevisions(subjectID string, limit int) ([]model.StructureRevision, error)
}

type SyncServiceInterface interface {
	Status(ctx context.Context) (*dto.SyncStatusResponse, error)
	RunNow(ctx context.Context) (*dto.SyncRunResponse, error)
}
