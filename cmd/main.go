package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/inkwellhq/inkwell-backend/internal/clients/redis"
	"github.com/inkwellhq/inkwell-backend/internal/db"
	"github.com/inkwellhq/inkwell-backend/internal/jobs"
	composejob "github.com/inkwellhq/inkwell-backend/internal/jobs/pipeline/compose"
	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/server"
	"github.com/inkwellhq/inkwell-backend/internal/services"
	"github.com/inkwellhq/inkwell-backend/internal/sse"
	"github.com/inkwellhq/inkwell-backend/internal/utils"
)

func main() {
	// Env file is optional; real deployments inject env directly.
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	ledgerEntryRepo := repos.NewLedgerEntryRepo(thePG, log)
	draftSectionRepo := repos.NewDraftSectionRepo(thePG, log)
	draftSectionVersionRepo := repos.NewDraftSectionVersionRepo(thePG, log)
	draftSectionCitationRepo := repos.NewDraftSectionCitationRepo(thePG, log)
	draftSuggestionRepo := repos.NewDraftSuggestionRepo(thePG, log)
	composeJobRepo := repos.NewComposeJobRepo(thePG, log)
	activityEventRepo := repos.NewActivityEventRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)
	if bus, busErr := redis.NewSSEBus(log); busErr != nil {
		log.Warn("Redis SSE bus unavailable, staying single-instance", "error", busErr)
	} else {
		defer bus.Close()
		if err := bus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
			log.Warn("Redis SSE forwarder failed to start", "error", err)
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	txRunner := services.NewGormTxRunner(thePG)
	notifier := services.NewJobNotifier(sseHub)
	activityService := services.NewActivityService(thePG, log, activityEventRepo)
	docGen, suggestionGen := services.NewAIGenerator(log)
	versionStore := services.NewVersionStoreService(thePG, log, txRunner, draftSectionRepo, draftSectionVersionRepo, activityService, notifier)
	composeService := services.NewComposeService(thePG, log, composeJobRepo, services.NewDBJobQueue(), notifier)
	suggestionService := services.NewSuggestionService(
		thePG,
		log,
		txRunner,
		draftSectionRepo,
		draftSectionCitationRepo,
		ledgerEntryRepo,
		draftSuggestionRepo,
		versionStore,
		suggestionGen,
		activityService,
		notifier,
	)
	_ = composeService
	_ = suggestionService

	// Job worker
	log.Info("Setting up job worker from main...")
	registry := jobs.NewRegistry()
	composePipeline := composejob.New(
		thePG,
		log,
		txRunner,
		ledgerEntryRepo,
		draftSectionRepo,
		draftSectionCitationRepo,
		versionStore,
		docGen,
		activityService,
	)
	if err := registry.Register(composePipeline); err != nil {
		log.Error("Failed to register compose pipeline", "error", err)
		os.Exit(1)
	}
	worker := jobs.NewWorker(thePG, log, composeJobRepo, registry, notifier, jobs.DefaultRunnablePolicy())
	worker.Start(ctx)

	// Server
	port := utils.GetEnv("PORT", "8080", log)
	srv := server.NewServer(log, sseHub)
	if err := srv.Run(ctx, ":"+port); err != nil {
		log.Warn("Server stopped", "error", err)
	}
}
