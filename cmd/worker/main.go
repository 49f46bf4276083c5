package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminapress/comms-engine/internal/config"
	"github.com/luminapress/comms-engine/internal/content"
	"github.com/luminapress/comms-engine/internal/dispatch"
	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/backoff"
	"github.com/luminapress/comms-engine/internal/pkg/distlock"
	"github.com/luminapress/comms-engine/internal/pkg/httpretry"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
	"github.com/luminapress/comms-engine/internal/provider"
	"github.com/luminapress/comms-engine/internal/render"
	"github.com/luminapress/comms-engine/internal/repository/postgres"
	"github.com/luminapress/comms-engine/internal/service/analytics"
	"github.com/luminapress/comms-engine/internal/service/campaign"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
)

// The worker polls for scheduled campaigns that have come due and runs
// dispatch for each. A per-campaign distributed lock keeps multiple worker
// replicas from dispatching the same campaign; the unique attempt
// constraint is the second line of defense if a lock expires mid-run.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := postgres.Open(cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	subRepo := postgres.NewSubscriberRepo(db)
	campRepo := postgres.NewCampaignRepo(db)
	templateRepo := postgres.NewTemplateRepo(db)
	attemptRepo := postgres.NewAttemptRepo(db)
	eventRepo := postgres.NewEventRepo(db)

	subs := subscriber.NewService(subRepo)
	camps := campaign.NewService(campRepo, templateRepo)
	stats := analytics.NewService(eventRepo, attemptRepo, subs)

	senders := buildSenders(cfg)
	dispatcher := dispatch.New(camps, subs, templateRepo, attemptRepo, render.New(), senders, dispatch.Config{
		Workers:     cfg.Dispatch.Workers,
		SendTimeout: time.Duration(cfg.Dispatch.SendTimeoutSeconds) * time.Second,
		Retry: backoff.Policy{
			MaxAttempts: cfg.Dispatch.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Dispatch.RetryBaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Dispatch.RetryMaxDelaySecond) * time.Second,
		},
	})
	dispatcher.SetEventSink(stats)
	if cfg.Content.FeedURL != "" {
		feed := content.NewFeedSource(cfg.Content.FeedURL,
			httpretry.NewRetryClient(&http.Client{Timeout: 20 * time.Second}, backoff.Default()),
			time.Duration(cfg.Content.CacheTTLMinutes)*time.Minute)
		dispatcher.SetContentSource(feed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-done
		logger.Info("worker shutting down", "signal", sig.String())
		cancel()
	}()

	pollInterval := time.Duration(cfg.Scheduler.PollIntervalSeconds) * time.Second
	lockTTL := time.Duration(cfg.Scheduler.LockTTLSeconds) * time.Second
	logger.Info("scheduler started", "poll_interval", pollInterval.String())

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		runDue(ctx, camps, dispatcher, redisClient, db, lockTTL)
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func runDue(ctx context.Context, camps *campaign.Service, dispatcher *dispatch.Dispatcher,
	redisClient *redis.Client, db *sql.DB, lockTTL time.Duration) {
	due, err := camps.DueScheduled(ctx, 50)
	if err != nil {
		logger.Error("list due campaigns", "error", err.Error())
		return
	}
	for _, c := range due {
		if ctx.Err() != nil {
			return
		}
		lock := distlock.NewLock(redisClient, db, "dispatch:campaign:"+c.ID, lockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			logger.Error("acquire dispatch lock", "campaign_id", c.ID, "error", err.Error())
			continue
		}
		if !acquired {
			logger.Debug("campaign locked by another worker", "campaign_id", c.ID)
			continue
		}

		report, err := dispatcher.Run(ctx, c.ID)
		if err != nil {
			logger.Error("dispatch scheduled campaign", "campaign_id", c.ID, "error", err.Error())
		} else {
			logger.Info("scheduled campaign dispatched",
				"campaign_id", c.ID,
				"resolved", report.Resolved,
				"sent", report.Sent,
				"failed", report.Failed,
				"skipped", report.Skipped)
		}

		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("release dispatch lock", "campaign_id", c.ID, "error", err.Error())
		}
	}
}

func buildSenders(cfg *config.Config) provider.Registry {
	senders := provider.Registry{}
	if cfg.SES.AccessKey != "" {
		ses, err := provider.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey,
			cfg.SES.Region, cfg.SES.FromName, cfg.SES.FromAddress)
		if err != nil {
			log.Fatalf("configure SES: %v", err)
		}
		senders[domain.ChannelEmail] = ses
	}
	if cfg.WhatsApp.AccessToken != "" {
		wa := provider.NewWhatsAppSender(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID)
		wa.SetBaseURL(cfg.WhatsApp.BaseURL)
		senders[domain.ChannelWhatsApp] = wa
	}
	if cfg.SMS.APIKey != "" {
		senders[domain.ChannelSMS] = provider.NewSMSSender(cfg.SMS.APIKey, cfg.SMS.From, cfg.SMS.BaseURL)
	}
	return senders
}
