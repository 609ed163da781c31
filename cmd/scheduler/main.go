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
	leadrepo "leadflow_backend/internal/leads/repository"
	leadservice "leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/scoring"
	"leadflow_backend/internal/sellers"
	"leadflow_backend/platform/ai/classifier"
	"leadflow_backend/platform/ai/gemini"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"

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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	cls := newClassifier(ctx, cfg, log)
	sender := newSender(cfg, log)

	// ========================================================================
	// Shared services (same wiring as the API binary)
	// ========================================================================

	activityRepo := activity.New(pool)
	aggregator := engagement.New(activityRepo, cfg.GetEngagementWindowDays())
	leadRepo := leadrepo.New(pool)
	sellerRepo := sellers.New(pool)

	scoringSvc := scoring.NewService(leadRepo, cls, aggregator, activityRepo, eventBus, log)
	assignSvc := assignment.NewService(leadRepo, sellerRepo, cls, eventBus, log, cfg.GetAssignmentThreshold())
	leadsSvc := leadservice.NewService(leadRepo, aggregator, scoringSvc, eventBus, log)

	campaignRepo := campaigns.NewRepository(pool)
	tracker := campaigns.NewTracker(cfg.GetTrackingBaseURL())
	dispatcher := campaigns.NewDispatcher(campaignRepo, leadRepo, sender, tracker, log)
	campaignSvc := campaigns.NewService(campaignRepo, dispatcher, eventBus, log)

	// Conversions recorded by the batch jobs still attribute back to the
	// last campaign email the lead received.
	leadsSvc.SetAttributor(campaignSvc)

	// Sellers performance counters track status transitions fired by jobs.
	sellers.NewTracker(sellerRepo, leadRepo, log).Register(eventBus)

	// ========================================================================
	// Job registry and worker
	// ========================================================================

	registry := scheduler.NewRegistry(log)
	scheduler.RegisterJobs(registry, scheduler.Deps{
		Rescorer:     scoringSvc,
		Assigner:     assignSvc,
		FollowUps:    leadsSvc,
		Sellers:      sellerRepo,
		Campaigns:    campaignSvc,
		Carts:        activity.NewCartStore(pool),
		InsightLeads: leadRepo,
		Classifier:   cls,
		Sender:       sender,

		AdminEmail:         cfg.GetAdminEmail(),
		StaleScoreAfter:    cfg.GetAIScoreStaleAfter(),
		StaleLeadDays:      cfg.GetStaleLeadDays(),
		AbandonedCartAfter: cfg.GetAbandonedCartAfter(),

		Log: log,
	})

	worker, err := scheduler.NewWorker(cfg, registry, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	log.Info("scheduler running", "jobs", registry.Names())
	if err := worker.Run(ctx); err != nil {
		log.Error("worker stopped", "error", err)
		panic("worker stopped: " + err.Error())
	}
	log.Info("scheduler shut down")
}

// newClassifier picks the AI backend: Gemini when an API key is configured,
// otherwise the HTTP classifier service.
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
		log.Warn("email sending disabled; digests will be logged only")
		return email.NewDisabledSender(log)
	}
	return email.NewSMTPSender(cfg)
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
