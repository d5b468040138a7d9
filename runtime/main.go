package main

import (
	"github.com/pathwise-labs/progress_api/middleware"
	"github.com/pathwise-labs/progress_api/services"

	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading .env file")
	}

	ctx, err := context.NewCtx(
		&services.RedisService{},
		&services.PostgresService{},
		&services.MinIOService{},
		&services.JWTService{},
		&services.MonitoringService{},

		&middleware.AuthMiddleware{},
		&middleware.RateLimitMiddleware{},

		&services.ProgressCacheService{},
		&services.StructureService{},
		&services.WalletService{},
		&services.AuditService{},
		&services.ProgressService{},
		&services.SyncService{},

		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build service context")
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err).Msg("Service context exited")
		return
	}
}
