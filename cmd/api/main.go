package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/activity"
	"leadflow_backend/internal/assignment"
	"leadflow_backend/internal/campaigns"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/engagement"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/leads"
	leadrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/scoring"
	"leadflow_backend/internal/sellers"
	"leadflow_backend/migrations"
	"leadflow_backend/platform/ai/classifier"
	"leadflow_backend/platform/ai/gemini"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// leadClassifier is the AI surface shared by scoring, assignment, and the
// insights digest.
type leadClassifier interface {
	ScoreLead(ctx context.Context, req classifier.LeadScoringRequest) (classifier.LeadScoringResult, error)
	RecommendSeller(ctx context.Context, req classifier.AssignmentRequest) (classifier.AssignmentResult, error)
	BatchInsights(ctx context.Context, req classifier.InsightRequest) (classifier.InsightResult, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	cls := newClassifier(ctx, cfg, log)
	sender := newSender(cfg, log)

	jobTrigger, closeTrigger := initJobTrigger(cfg, log)
	if closeTrigger != nil {
		defer closeTrigger()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	activityRepo := activity.New(pool)
	aggregator := engagement.New(activityRepo, cfg.GetEngagementWindowDays())
	leadRepo := leadrepo.New(pool)

	scoringSvc := scoring.NewService(leadRepo, cls, aggregator, activityRepo, eventBus, log)
	sellersModule := sellers.NewModule(pool, leadRepo, eventBus, log)
	assignSvc := assignment.NewService(leadRepo, sellersModule.Repository(), cls, eventBus, log, cfg.GetAssignmentThreshold())

	leadsModule := leads.NewModule(pool, eventBus, aggregator, scoringSvc, assignSvc, val, log)
	campaignsModule := campaigns.NewModule(pool, leadRepo, sender, cfg.GetTrackingBaseURL(), eventBus, val, log)

	// Conversions are attributed back to the last campaign email the lead
	// received (breaks the leads -> campaigns dependency cycle).
	leadsModule.Service().SetAttributor(campaignsModule.Service())

	jobsModule := scheduler.NewJobsModule(jobTrigger, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			sellersModule,
			campaignsModule,
			jobsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newClassifier picks the AI backend: Gemini when an API key is configured,
// otherwise the HTTP classifier service. Classifier failures downstream fall
// back to heuristic scores, so a missing backend is not fatal past startup.
func newClassifier(ctx context.Context, cfg *config.Config, log *logger.Logger) leadClassifier {
	if cfg.GetGeminiAPIKey() != "" {
		cls, err := gemini.New(ctx, gemini.Config{
			APIKey: cfg.GetGeminiAPIKey(),
			Model:  cfg.GetGeminiModel(),
		})
		if err != nil {
			log.Error("failed to initialize gemini classifier", "error", err)
			panic("failed to initialize gemini classifier: " + err.Error())
		}
		log.Info("gemini classifier initialized", "model", cfg.GetGeminiModel())
		return cls
	}

	log.Info("using HTTP classifier service", "baseURL", cfg.GetClassifierBaseURL())
	return classifier.NewClient(classifier.Config{
		BaseURL:           cfg.GetClassifierBaseURL(),
		APIKey:            cfg.GetClassifierAPIKey(),
		Timeout:           cfg.GetClassifierTimeout(),
		RequestsPerSecond: cfg.GetClassifierRateLimit(),
	})
}

func newSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email sending disabled; outbound mail will be logged only")
		return email.NewDisabledSender(log)
	}
	return email.NewSMTPSender(cfg)
}

func initJobTrigger(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.JobTrigger, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; on-demand job runs disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
