package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbooking/internal/api"
	"courtbooking/internal/auth"
	"courtbooking/internal/config"
	"courtbooking/internal/db"
	"courtbooking/internal/mq"
	"courtbooking/internal/repository"
	"courtbooking/internal/service"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
)

// stores is the storage wiring for one LEDGER mode.
type stores struct {
	ledger    repository.SlotLedger
	payments  repository.PaymentStore
	catalog   repository.CatalogStore
	lister    repository.ReservationLister
	completer repository.ReservationCompleter
	admins    repository.AdminAuthRepository
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		fatal("invalid VENUE_TIMEZONE", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		fatal("failed to open storage", err)
	}
	defer closeStores()

	if cfg.RedisAddr != "" {
		rdb := repository.NewRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		st.catalog = repository.NewCachedCatalog(st.catalog, rdb, cfg.CourtCacheTTL)
	}

	var events service.EventPublisher = mq.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			fatal("failed to connect to RabbitMQ", err)
		}
		defer pub.Close()
		events = pub
	}

	var email service.EmailSender
	if cfg.SendGridAPIKey != "" {
		email = service.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)
	}
	var sms service.SMSSender
	if cfg.TwilioAccountSID != "" {
		sms = service.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}
	sender := service.NewSenderService(email, sms, cfg.SupportEmail, cfg.SupportPhone, loc)
	defer sender.Wait()

	var (
		cards    service.CardProvider
		webhooks api.WebhookVerifier
		orders   service.OrderProvider
	)
	if cfg.StripeSecretKey != "" {
		stripeSvc := service.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.ProviderTimeout)
		cards, webhooks = stripeSvc, stripeSvc
	}
	if cfg.RazorpayKeyID != "" {
		orders = service.NewRazorpayService(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.ProviderTimeout)
	}

	quotes := service.NewQuoteService(st.catalog, cfg.Currency)
	reservations := service.NewReservationService(st.ledger, st.catalog, quotes, sender, events, loc)
	payments := service.NewPaymentService(reservations, st.payments, cards, orders, cfg.Currency, cfg.ProviderTimeout)
	adminSvc := service.NewAdminService(st.lister, st.payments, cards, orders)

	routes := api.Routes{
		Auth:         auth.NewAuthenticator(cfg.JWTSecret),
		Reservations: api.NewUserReservationHandler(reservations, quotes),
		Payments:     api.NewPaymentHandler(payments, webhooks),
		Admin:        api.NewAdminHandler(adminSvc),
	}
	if st.admins != nil {
		adminAuth := service.NewAdminAuthService(st.admins, cfg.JWTSecret, cfg.AdminJWTExpire)
		if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
			if err := adminAuth.CreateAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
				fatal("failed to seed admin", err)
			}
		}
		routes.AdminAuth = api.NewAdminAuthHandler(adminAuth)
	}

	jobs := service.NewJobService(st.completer, events)
	c := cron.New()
	if err := jobs.Schedule(c, cfg.CompleteCron); err != nil {
		fatal("invalid COMPLETE_CRON", err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	var h http.Handler = api.NewRouter(routes)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = cors(h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("server running", "port", cfg.Port, "ledger", cfg.Ledger)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server failed", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

func openStores(ctx context.Context, cfg config.App) (stores, func(), error) {
	if cfg.Ledger == "memory" {
		courts, err := loadCatalogFile(cfg.CatalogFile)
		if err != nil {
			return stores{}, nil, err
		}
		m := repository.NewMemoryLedger()
		slog.Warn("using in-memory ledger; reservations are lost on restart", "courts", len(courts))
		return stores{
			ledger:    m,
			payments:  m,
			catalog:   repository.NewMemoryCatalog(courts...),
			lister:    m,
			completer: m,
		}, func() {}, nil
	}

	conn, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return stores{}, nil, err
	}
	if err := repository.Migrate(ctx, conn); err != nil {
		conn.Close()
		return stores{}, nil, err
	}
	return stores{
		ledger:    repository.NewReservationRepository(conn),
		payments:  repository.NewPaymentRepository(conn),
		catalog:   repository.NewCatalogRepository(conn),
		lister:    repository.NewAdminRepository(conn),
		completer: repository.NewJobRepository(conn),
		admins:    repository.NewAdminAuthRepository(conn),
	}, func() { conn.Close() }, nil
}

// loadCatalogFile reads a JSON array of courts. An empty path gives an empty
// catalog.
func loadCatalogFile(path string) ([]db.Court, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var courts []db.Court
	if err := json.Unmarshal(raw, &courts); err != nil {
		return nil, err
	}
	return courts, nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
