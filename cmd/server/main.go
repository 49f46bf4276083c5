package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminapress/comms-engine/internal/api"
	"github.com/luminapress/comms-engine/internal/config"
	"github.com/luminapress/comms-engine/internal/content"
	"github.com/luminapress/comms-engine/internal/dispatch"
	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/backoff"
	"github.com/luminapress/comms-engine/internal/pkg/httpretry"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
	"github.com/luminapress/comms-engine/internal/provider"
	"github.com/luminapress/comms-engine/internal/render"
	"github.com/luminapress/comms-engine/internal/repository/postgres"
	"github.com/luminapress/comms-engine/internal/repository/redissess"
	"github.com/luminapress/comms-engine/internal/service/analytics"
	"github.com/luminapress/comms-engine/internal/service/campaign"
	"github.com/luminapress/comms-engine/internal/service/subscriber"
	"github.com/luminapress/comms-engine/internal/service/verification"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	applyLogging(cfg.Logging)

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
	policy := verificationPolicy(cfg.Verification)
	sessions := redissess.New(redisClient, policy.SessionTTL)
	courier := provider.NewCodeCourier(senders, policy.CodeTTL, backoff.Default())
	verifier := verification.NewManager(sessions, subs, courier, policy)

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

	handlers := api.NewHandlers(verifier, subs, camps, stats, templateRepo, attemptRepo, dispatcher)
	server := api.NewServer(cfg.Server, handlers)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
	case sig := <-done:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func applyLogging(cfg config.LoggingConfig) {
	switch cfg.Level {
	case "debug":
		logger.SetLevel(logger.DEBUG)
	case "warn":
		logger.SetLevel(logger.WARN)
	case "error":
		logger.SetLevel(logger.ERROR)
	default:
		logger.SetLevel(logger.INFO)
	}
	if cfg.RedactPII != nil {
		logger.SetRedactPII(*cfg.RedactPII)
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
	if len(senders) == 0 {
		logger.Warn("no channel senders configured; verification and dispatch will fail")
	}
	return senders
}

func verificationPolicy(cfg config.VerificationConfig) verification.Policy {
	p := verification.DefaultPolicy()
	if cfg.CodeLength > 0 {
		p.CodeLength = cfg.CodeLength
	}
	if cfg.CodeTTLMinutes > 0 {
		p.CodeTTL = time.Duration(cfg.CodeTTLMinutes) * time.Minute
	}
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.ResendCooldownSeconds > 0 {
		p.ResendCooldown = time.Duration(cfg.ResendCooldownSeconds) * time.Second
	}
	if cfg.SessionTTLMinutes > 0 {
		p.SessionTTL = time.Duration(cfg.SessionTTLMinutes) * time.Minute
	}
	if cfg.PhoneChannel != "" {
		p.PhoneOTPChannel = domain.Channel(cfg.PhoneChannel)
	}
	return p
}
