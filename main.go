package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"draft-relay/internal/ai"
	"draft-relay/internal/clock"
	"draft-relay/internal/config"
	"draft-relay/internal/gmail"
	"draft-relay/internal/handler"
	"draft-relay/internal/imap"
	"draft-relay/internal/lease"
	"draft-relay/internal/logger"
	appmw "draft-relay/internal/middleware"
	"draft-relay/internal/model"
	"draft-relay/internal/notify"
	"draft-relay/internal/repository"
	"draft-relay/internal/repository/memory"
	"draft-relay/internal/repository/sqlstore"
	"draft-relay/internal/router"
	"draft-relay/internal/scheduler"
	"draft-relay/internal/service"
	"draft-relay/internal/sse"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("Config validation failed:", err)
	}

	// Initialize logger
	appLogger := logger.New()
	appLogger.Configure(cfg.LogFormat, cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			appLogger.Warn("Sentry disabled:", err)
		} else {
			appLogger.EnableSentry()
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	// Initialize repositories (SQL when DATABASE_URL is set, in-memory otherwise)
	var (
		draftRepo   repository.DraftRepository
		accountRepo repository.AccountRepository
		logRepo     repository.EmailLogRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to open database:", err)
		}
		defer db.Close()

		draftRepo = sqlstore.NewSQLDraftRepository(db, cfg.ClaimTTL)
		accountRepo = sqlstore.NewSQLAccountRepository(db)
		logRepo = sqlstore.NewSQLEmailLogRepository(db)
		appLogger.Info("Using", cfg.DatabaseDriver, "repositories")
	} else {
		draftRepo = memory.NewInMemoryDraftRepository(cfg.ClaimTTL)
		accountRepo = memory.NewInMemoryAccountRepository()
		logRepo = memory.NewInMemoryEmailLogRepository()
		appLogger.Info("Using in-memory repositories")
	}

	// Scan lease (Redis when several replicas share the database)
	scanLease := lease.NewLocal(clk)
	if cfg.RedisURL != "" {
		redisClient, redisLease, err := lease.NewRedisFromURL(cfg.RedisURL, appLogger)
		if err != nil {
			log.Fatal("Failed to configure Redis:", err)
		}
		defer redisClient.Close()
		scanLease = redisLease
		appLogger.Info("Using Redis scan lease")
	}

	// External collaborators
	mailbox := service.NewMailboxRouter(map[string]service.MailboxProvider{
		model.ProviderGmail: gmail.NewGmailClient(gmail.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}, appLogger),
		model.ProviderIMAP: imap.NewClient(appLogger),
	})
	aiClient := ai.NewAIClient(ai.Options{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIKey,
		Model:    cfg.AIModel,
	}, appLogger)
	notifier := newNotifier(cfg, appLogger)
	events := sse.NewManager(appLogger)
	defer events.Close()

	// Initialize services
	credentialService := service.NewCredentialService(accountRepo, mailbox, notifier, events, clk, cfg.TokenExpiryBuffer, cfg.ExternalCallTimeout, appLogger)
	generator := service.NewGenerationGateway(aiClient, clk, cfg.GenerationMinInterval, cfg.ExternalCallTimeout, appLogger)
	scanService := service.NewScanService(accountRepo, draftRepo, logRepo, mailbox, credentialService, generator, notifier, events, clk, cfg.ExternalCallTimeout, appLogger)
	commandService := service.NewCommandService(draftRepo, accountRepo, logRepo, mailbox, credentialService, notifier, events, clk, cfg.ExternalCallTimeout, appLogger)
	draftService := service.NewDraftService(draftRepo, logRepo, clk, time.Local)
	accountService := service.NewAccountService(accountRepo, appLogger)

	if cfg.AccountsFile != "" {
		seedAccounts(ctx, cfg.AccountsFile, accountService, appLogger)
	}

	// Auto-scan scheduler
	autoScan := scheduler.NewScheduler(clk, accountRepo, scanService, scanLease, scheduler.Options{
		Tick:     cfg.ScanTickInterval,
		Lookback: cfg.AutoScanLookback,
		MaxItems: cfg.AutoScanMaxItems,
	}, appLogger)
	if cfg.SchedulerEnabled {
		autoScan.Start(ctx)
		defer autoScan.Stop()
	}

	// Initialize handlers
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	sessionStore := handler.NewSessionStore([]byte(cfg.SessionSecret), cfg.Env == "production")
	authHandler := handler.NewAuthHandler(accountService, sessionStore, cfg, appLogger)
	draftHandler := handler.NewDraftHandler(draftService, commandService, appLogger)
	dashboardHandler := handler.NewDashboardHandler(draftService, scanService, accountService, events, cfg.ManualScanMaxItems, cfg.AutoScanLookback, appLogger)
	webhookHandler := handler.NewWebhookHandler(commandService, appLogger)

	webhookGuards := []echo.MiddlewareFunc{appmw.RateLimiter(cfg.WebhookRatePerMin, time.Minute)}
	if cfg.NotifyChannel == "twilio" {
		webhookGuards = append(webhookGuards, appmw.TwilioSignature(cfg.TwilioAuthToken, cfg.BaseURL))
	}
	router.SetupRoutes(e, authHandler, draftHandler, dashboardHandler, webhookHandler, webhookGuards...)

	// Start server
	go func() {
		appLogger.Info("Starting server on port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Failed to start server:", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown failed:", err)
	}
}

func newNotifier(cfg *config.Config, appLogger *logger.Logger) service.NotificationGateway {
	switch cfg.NotifyChannel {
	case "twilio":
		return notify.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, cfg.TwilioWhatsApp, appLogger)
	case "smtp":
		return notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, appLogger)
	default:
		return notify.NewLogNotifier(appLogger)
	}
}

// seedAccounts registers the IMAP mailboxes listed in the accounts file.
func seedAccounts(ctx context.Context, path string, accountService service.AccountService, appLogger *logger.Logger) {
	seeds, err := config.LoadAccountsFile(path)
	if err != nil {
		log.Fatal("Failed to load accounts file:", err)
	}
	for _, seed := range seeds {
		account, err := accountService.Register(ctx, seed.Account())
		if err != nil {
			appLogger.Error("Failed to register account", seed.Email, err)
			continue
		}
		appLogger.Info("Registered IMAP account:", account.Email)
	}
}
