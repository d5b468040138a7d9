package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pathwise-labs/progress_api/model"
	"github.com/pathwise-labs/progress_api/pkg/progression"
	"github.com/pathwise-labs/progress_api/shared"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	database           string
	auditRetentionDays int
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "progress_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		timezone := os.Getenv("DB_TIMEZONE")
		if timezone == "" {
			timezone = "UTC"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, user, password, dbname, port, sslmode, timezone)
	}

	ds.auditRetentionDays = 90
	if days := os.Getenv("AUDIT_RETENTION_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil && d > 0 {
			ds.auditRetentionDays = d
		}
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	// Retry connection with exponential backoff
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})

		if err == nil {
			// Test the connection
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				pingErr := sqlDB.Ping()
				if pingErr == nil {
					log.Println("Successfully connected to database")
					break
				}
				err = pingErr
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		// Exponential backoff with max delay of 10 seconds
		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	models := []interface{}{
		// Structure registry
		&model.Subject{},
		&model.StructureRevision{},
		&model.LessonPosition{},

		// Progress
		&model.ProgressSnapshot{},
		&model.ProgressAudit{},
	}

	err = ds.db.AutoMigrate(models...)
	if err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	ticker := time.NewTicker(24 * time.Hour)
	go func() {
		for range ticker.C {
			err := ds.CleanupExpiredData()
			if err != nil {
				log.Printf("Failed to cleanup expired data: %v", err)
			}
		}
	}()

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
	sqlDB, err := ds.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

// CleanupExpiredData prunes audit rows past the retention window.
func (ds *PostgresService) CleanupExpiredData() error {
	cutoff := time.Now().AddDate(0, 0, -ds.auditRetentionDays)
	res := ds.db.Where("created_at < ?", cutoff).Delete(&model.ProgressAudit{})
	if res.Error != nil {
		return ds.HandleError(res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("Pruned %d audit rows older than %d days", res.RowsAffected, ds.auditRetentionDays)
	}
	return nil
}

func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound // 404
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict // 409
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest // 400
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError // 500
		errorType = "TRANSACTION_ERROR"
	default:
		// Check for PostgreSQL-specific errors
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			statusCode = http.StatusConflict // 409
			errorType = "UNIQUE_CONSTRAINT"
		} else if strings.Contains(err.Error(), "relation") && strings.Contains(err.Error(), "does not exist") {
			statusCode = http.StatusInternalServerError // 500
			errorType = "SCHEMA_ERROR"
		} else if strings.Contains(err.Error(), "connection refused") {
			statusCode = http.StatusServiceUnavailable // 503
			errorType = "DATABASE_CONNECTION_ERROR"
		} else {
			statusCode = http.StatusInternalServerError // 500
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return shared.NewAppError(statusCode, errorType, http.StatusText(statusCode), err)
}

// ==================== SUBJECT METHODS ====================

func (ds *PostgresService) GetSubject(id string) (*model.Subject, error) {
	var subject model.Subject
	if err := ds.db.Where("id = ?", id).First(&subject).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &subject, nil
}

func (ds *PostgresService) ListSubjects() ([]model.Subject, error) {
	var subjects []model.Subject
	if err := ds.db.Order("id ASC").Find(&subjects).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return subjects, nil
}

// BeginStructurePublish bumps the subject's structure version under a row
// lock, creating the subject on first publish. The new version number is
// reserved even if the publish later fails; versions are monotonic, not
// contiguous.
func (ds *PostgresService) BeginStructurePublish(subjectID, title string) (*model.Subject, error) {
	var subject model.Subject
	err := ds.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", subjectID).First(&subject).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			subject = model.Subject{ID: subjectID, Title: title}
			if err := tx.Create(&subject).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		subject.StructureVersion++
		if title != "" {
			subject.Title = title
		}
		return tx.Save(&subject).Error
	})
	if err != nil {
		return nil, ds.HandleError(err)
	}
	return &subject, nil
}

// AllocateBitPositions reserves a contiguous block of n positions from the
// subject's counter and returns the first one. The counter never moves
// backwards, so a failed publish just burns its block. A first publish
// allocates before the subject row exists; the row is created here.
func (ds *PostgresService) AllocateBitPositions(subjectID string, n int) (int, error) {
	var first int
	err := ds.db.Transaction(func(tx *gorm.DB) error {
		var subject model.Subject
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", subjectID).First(&subject).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			subject = model.Subject{ID: subjectID, NextBitPosition: n}
			first = 0
			return tx.Create(&subject).Error
		} else if err != nil {
			return err
		}

		first = subject.NextBitPosition
		subject.NextBitPosition += n
		return tx.Save(&subject).Error
	})
	if err != nil {
		return 0, ds.HandleError(err)
	}
	return first, nil
}

// FinishStructurePublish records the uploaded revision: permanent lesson
// positions for any new lessons, the revision row, and the subject's
// current pointers.
func (ds *PostgresService) FinishStructurePublish(subject *model.Subject, objectKey, etag string, lessonCount int, assignments []progression.Assignment) error {
	err := ds.db.Transaction(func(tx *gorm.DB) error {
		for _, a := range assignments {
			pos := model.LessonPosition{
				LessonID:    a.LessonID,
				SubjectID:   subject.ID,
				BitPosition: a.BitPosition,
			}
			if err := tx.Create(&pos).Error; err != nil {
				return err
			}
		}

		id, _ := uuid.NewV7()
		revision := model.StructureRevision{
			ID:          id.String(),
			SubjectID:   subject.ID,
			Version:     subject.StructureVersion,
			ObjectKey:   objectKey,
			ETag:        etag,
			LessonCount: lessonCount,
			NewLessons:  len(assignments),
			PublishedAt: time.Now(),
		}
		if err := tx.Create(&revision).Error; err != nil {
			return err
		}

		return tx.Model(&model.Subject{}).Where("id = ?", subject.ID).
			Updates(map[string]interface{}{
				"structure_etag": etag,
				"lesson_count":   lessonCount,
				"title":          subject.Title,
			}).Error
	})
	if err != nil {
		return ds.HandleError(err)
	}
	return nil
}

func (ds *PostgresService) GetStructureRevisions(subjectID string, limit int) ([]model.StructureRevision, error) {
	if limit <= 0 {
		limit = 20
	}
	var revisions []model.StructureRevision
	if err := ds.db.Where("subject_id = ?", subjectID).
		Order("version DESC").Limit(limit).Find(&revisions).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return revisions, nil
}

// ==================== LESSON POSITION METHODS ====================

func (ds *PostgresService) ResolveLesson(lessonID string) (*model.LessonPosition, error) {
	var pos model.LessonPosition
	if err := ds.db.Where("lesson_id = ?", lessonID).First(&pos).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &pos, nil
}

func (ds *PostgresService) GetLessonPositionMap(subjectID string) (map[string]int, error) {
	var rows []model.LessonPosition
	if err := ds.db.Where("subject_id = ?", subjectID).Find(&rows).Error; err != nil {
		return nil, ds.HandleError(err)
	}

	positions := make(map[string]int, len(rows))
	for _, row := range rows {
		positions[row.LessonID] = row.BitPosition
	}
	return positions, nil
}

// ==================== SNAPSHOT METHODS ====================

func (ds *PostgresService) GetProgressSnapshot(learnerID, subjectID string) (*model.ProgressSnapshot, error) {
	var snap model.ProgressSnapshot
	if err := ds.db.Where("learner_id = ? AND subject_id = ?", learnerID, subjectID).
		First(&snap).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &snap, nil
}

func (ds *PostgresService) UpsertProgressSnapshot(snap *model.ProgressSnapshot) error {
	if snap.ID == "" {
		id, _ := uuid.NewV7()
		snap.ID = id.String()
	}
	snap.SyncedAt = time.Now()

	err := ds.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "learner_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"completion_bitmap", "rewarded_bitmap", "best_scores", "synced_at", "updated_at",
		}),
	}).Create(snap).Error
	if err != nil {
		return ds.HandleError(err)
	}
	return nil
}

// ResetProgressSnapshot zeroes the durable completion state. The rewarded
// bitmap is deliberately left alone: base XP stays spent across resets.
func (ds *PostgresService) ResetProgressSnapshot(learnerID, subjectID string) error {
	res := ds.db.Model(&model.ProgressSnapshot{}).
		Where("learner_id = ? AND subject_id = ?", learnerID, subjectID).
		Updates(map[string]interface{}{
			"completion_bitmap": "",
			"best_scores":       gorm.Expr("'{}'::jsonb"),
			"synced_at":         time.Now(),
		})
	if res.Error != nil {
		return ds.HandleError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	id, _ := uuid.NewV7()
	snap := model.ProgressSnapshot{
		ID:         id.String(),
		LearnerID:  learnerID,
		SubjectID:  subjectID,
		BestScores: []byte("{}"),
		SyncedAt:   time.Now(),
	}
	if err := ds.db.Create(&snap).Error; err != nil {
		return ds.HandleError(err)
	}
	return nil
}

// ==================== AUDIT METHODS ====================

func (ds *PostgresService) CreateAuditRecords(records []model.ProgressAudit) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].ID == "" {
			id, _ := uuid.NewV7()
			records[i].ID = id.String()
		}
	}
	if err := ds.db.CreateInBatches(records, 100).Error; err != nil {
		return ds.HandleError(err)
	}
	return nil
}
