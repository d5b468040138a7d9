package services

import (
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/pathwise-labs/progress_api/model"
)

// AuditEvent is one progress-changing action headed for the audit trail.
type AuditEvent struct {
	LearnerID string
	SubjectID string
	LessonID  string
	Action    string
	Detail    map[string]interface{}
}

// AuditService writes audit rows off the request path. Events land in a
// bounded buffer and a single worker batches them into postgres; when the
// buffer is full the event is dropped and counted rather than blocking a
// completion.
type AuditService struct {
	appContext.DefaultService
	pgSvc   *PostgresService
	metrics *MonitoringService

	bufferSize    int
	batchSize     int
	flushInterval time.Duration

	events  chan AuditEvent
	done    chan struct{}
	stopped chan struct{}
}

const AUDIT_SVC = "audit_svc"

func (svc AuditService) Id() string {
	return AUDIT_SVC
}

func (svc *AuditService) Configure(ctx *appContext.Context) error {
	svc.bufferSize = 256
	if size := os.Getenv("AUDIT_BUFFER_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			svc.bufferSize = n
		}
	}
	svc.batchSize = 32
	svc.flushInterval = 2 * time.Second
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuditService) Start() error {
	svc.pgSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.metrics = svc.Service(MONITORING_SVC).(*MonitoringService)

	svc.events = make(chan AuditEvent, svc.bufferSize)
	svc.done = make(chan struct{})
	svc.stopped = make(chan struct{})

	go svc.worker()
	return nil
}

func (svc *AuditService) Shutdown() {
	close(svc.done)
	select {
	case <-svc.stopped:
	case <-time.After(5 * time.Second):
		log.Warn("Audit worker did not drain in time")
	}
}

// Enqueue hands an event to the background writer. It never blocks; a full
// buffer drops the event.
func (svc *AuditService) Enqueue(event AuditEvent) {
	select {
	case svc.events <- event:
	default:
		log.WithField("action", event.Action).Warn("Audit buffer full, dropping event")
		if svc.metrics != nil {
			svc.metrics.RecordAuditDropped()
		}
	}
}

func (svc *AuditService) worker() {
	defer close(svc.stopped)

	ticker := time.NewTicker(svc.flushInterval)
	defer ticker.Stop()

	batch := make([]model.ProgressAudit, 0, svc.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.pgSvc.CreateAuditRecords(batch); err != nil {
			log.WithError(err).WithField("count", len(batch)).Error("Failed to write audit batch")
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-svc.events:
			batch = append(batch, svc.toRecord(event))
			if len(batch) >= svc.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.done:
			// Drain whatever is already buffered, then stop.
			for {
				select {
				case event := <-svc.events:
					batch = append(batch, svc.toRecord(event))
					if len(batch) >= svc.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (svc *AuditService) toRecord(event AuditEvent) model.ProgressAudit {
	record := model.ProgressAudit{
		LearnerID: event.LearnerID,
		SubjectID: event.SubjectID,
		LessonID:  event.LessonID,
		Action:    event.Action,
		CreatedAt: time.Now(),
	}
	if len(event.Detail) > 0 {
		if detail, err := sonic.Marshal(event.Detail); err == nil {
			record.Detail = detail
		} else {
			log.WithError(err).WithField("action", event.Action).Warn("Failed to encode audit detail")
		}
	}
	return record
}
