package services

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	log "github.com/sirupsen/logrus"

	docs "github.com/pathwise-labs/progress_api/docs"
	"github.com/pathwise-labs/progress_api/services/handlers"
	"github.com/pathwise-labs/progress_api/shared"
)

// authGuard and rateLimiter are the route guards the middleware package
// registers with the kernel. Resolving them by id keeps the dependency
// one-way; the middleware package imports this one.
type authGuard interface {
	RequiredAuth() fiber.Handler
	RequireService() fiber.Handler
}

type rateLimiter interface {
	IPRateLimit() fiber.Handler
	LessonCompletionRateLimit() fiber.Handler
	ProgressReadRateLimit() fiber.Handler
	StructurePublishRateLimit() fiber.Handler
}

type HttpService struct {
	appContext.DefaultService

	progressSvc   *ProgressService
	structureSvc  *StructureService
	syncSvc       *SyncService
	monitoringSvc *MonitoringService
	auth          authGuard
	limits        rateLimiter

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.progressSvc = svc.Service(PROGRESS_SVC).(*ProgressService)
	svc.structureSvc = svc.Service(STRUCTURE_SVC).(*StructureService)
	svc.syncSvc = svc.Service(SYNC_SVC).(*SyncService)
	svc.monitoringSvc = svc.Service(MONITORING_SVC).(*MonitoringService)
	svc.auth = svc.Service("auth").(authGuard)
	svc.limits = svc.Service("rate_limit").(rateLimiter)

	docs.SwaggerInfo.BasePath = ""

	app := fiber.New(fiber.Config{
		AppName:      SERVICE_NAME,
		JSONEncoder:  shared.JSONEncoder,
		JSONDecoder:  shared.JSONDecoder,
		ErrorHandler: svc.HandleError,
	})

	app.Use(recover.New())
	if os.Getenv("LOG_LEVEL") == "TRACE" {
		app.Use(fiberLogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Service-Key",
	}))
	app.Use(MonitoringMiddleware(svc.monitoringSvc))

	progressHandler := handlers.NewProgressHandler(svc.progressSvc)
	structureHandler := handlers.NewStructureHandler(svc.structureSvc)
	adminHandler := handlers.NewAdminHandler(svc.progressSvc, svc.syncSvc)

	//Validation endpoints
	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1", svc.limits.IPRateLimit())

	v1.Get("/ping", svc.ping)

	v1.Get("/subjects/:subjectId/progress",
		svc.auth.RequiredAuth(), svc.limits.ProgressReadRateLimit(), progressHandler.GetSubjectProgress)
	v1.Post("/lessons/complete",
		svc.auth.RequiredAuth(), svc.limits.LessonCompletionRateLimit(), progressHandler.CompleteLesson)

	admin := v1.Group("/admin", svc.auth.RequireService())
	admin.Get("/subjects", structureHandler.ListSubjects)
	admin.Put("/subjects/:subjectId/structure",
		svc.limits.StructurePublishRateLimit(), structureHandler.PublishStructure)
	admin.Get("/subjects/:subjectId/structure", structureHandler.GetStructureDocument)
	admin.Get("/subjects/:subjectId/structure/revisions", structureHandler.GetRevisions)
	admin.Post("/subjects/:subjectId/progress/reset", adminHandler.ResetProgress)
	admin.Get("/sync/status", adminHandler.GetSyncStatus)
	admin.Post("/sync/run", adminHandler.RunSync)

	app.Use(func(c *fiber.Ctx) error {
		return shared.ResponseNotFound(c)
	})

	svc.server = app

	log.Printf("HTTP server listening on :%v", svc.port)
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}

func (svc *HttpService) HandleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).Error("Unhandled request error")
	return shared.ResponseInternalError(c, err)
}
