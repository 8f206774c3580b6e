package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dekaandassociates/booking-relay/internal/config"
	"github.com/dekaandassociates/booking-relay/internal/contact"
	"github.com/dekaandassociates/booking-relay/internal/credentials"
	"github.com/dekaandassociates/booking-relay/internal/firebaseapp"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"github.com/dekaandassociates/booking-relay/internal/metrics"
	"github.com/dekaandassociates/booking-relay/internal/notifications"
	"github.com/dekaandassociates/booking-relay/internal/relay"
	"github.com/dekaandassociates/booking-relay/internal/signin"
	"github.com/dekaandassociates/booking-relay/internal/storage/pg"
	"github.com/dekaandassociates/booking-relay/internal/supabase"
	"github.com/dekaandassociates/booking-relay/internal/tokens"
	"github.com/dekaandassociates/booking-relay/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	log.Info("Setting Gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	policy := upstream.Policy{
		Timeout:    cfg.OutboundTimeout,
		MaxRetries: cfg.OutboundMaxRetries,
		BaseDelay:  upstream.DefaultBaseDelay,
	}
	httpClient := &http.Client{}

	// Initialize database.
	var db *pg.Database
	if cfg.UsesStore(config.StorePostgres) {
		db, err = pg.InitDatabase(ctx, pg.Options{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Minute,
			RunMigrations:   cfg.DBRunMigrations,
		})
		if err != nil {
			log.Error("Failed to initialize database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
	}

	var supabaseClient *supabase.Client
	if cfg.SupabaseURL != "" {
		supabaseClient = supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, httpClient, policy)
	}

	// Service account. A missing one only fails booking webhooks.
	var provider *credentials.Provider
	account, err := credentials.ParseServiceAccount([]byte(cfg.FirebaseServiceAccount))
	switch {
	case err == nil:
		provider = credentials.NewProvider(account, credentials.Options{
			TokenURL:   cfg.GoogleTokenURL,
			Scope:      cfg.FCMScope,
			HTTPClient: httpClient,
			Policy:     policy,
			Metrics:    m,
		}, log)
		log.Info("✅ service account loaded",
			slog.String("project_id", account.ProjectID),
			slog.String("client_email", account.ClientEmail))
	case errors.Is(err, credentials.ErrMissingServiceAccount):
		log.Warn("⚠️  no service account configured, booking webhooks will fail")
	default:
		log.Error("Failed to parse service account", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tokenStore, firestoreClient, err := newTokenStore(ctx, cfg, db, supabaseClient, account, log)
	if err != nil {
		log.Error("Failed to initialize token store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if firestoreClient != nil {
		defer firestoreClient.Close()
	}

	// Initialize services
	var (
		creds      relay.Credentials
		dispatcher *notifications.Dispatcher
	)
	if provider != nil {
		sender, err := newSender(ctx, cfg, provider, httpClient, policy)
		if err != nil {
			log.Error("Failed to initialize push sender", slog.String("error", err.Error()))
			os.Exit(1)
		}
		creds = provider
		dispatcher = notifications.NewDispatcher(sender, m, log)
	}

	relayService := relay.NewService(tokenStore, creds, dispatcher, cfg.Notification, m, log)
	contactService := contact.NewService(newContactStore(cfg, db, supabaseClient))

	var authorizer signin.Authorizer
	if supabaseClient != nil {
		authorizer = supabaseClient
	}

	// Initialize handlers
	router := newRouter(routerDeps{
		logger:   log,
		registry: registry,
		db:       db,
		relay:    relay.NewHandler(relayService, cfg.WebhookSecret, m, log),
		contact:  contact.NewHandler(contactService, m, log),
		signin:   signin.NewHandler(authorizer, cfg.SiteURL, log),
	})

	port := ":" + cfg.Port

	srv := &http.Server{
		Addr:              port,
		Handler:           newCORS(cfg.CORSAllowedOrigins).Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("🔁  booking relay listening on "+port,
		slog.String("token_store", cfg.TokenStore),
		slog.String("contact_store", cfg.ContactStore),
		slog.String("push_transport", cfg.PushTransport))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", slog.String("error", err.Error()))
		return
	}

	log.Info("✅ Server exited")
}

func newTokenStore(
	ctx context.Context,
	cfg *config.Config,
	db *pg.Database,
	supabaseClient *supabase.Client,
	account *credentials.ServiceAccount,
	log *logger.Logger,
) (tokens.Store, *firestore.Client, error) {
	switch cfg.TokenStore {
	case config.StoreSupabase:
		return tokens.NewSupabaseStore(supabaseClient), nil, nil
	case config.StoreFirestore:
		client, err := firebaseapp.NewFirestoreClient(ctx, account.ProjectID, cfg.FirebaseServiceAccount)
		if err != nil {
			return nil, nil, err
		}
		return tokens.NewFirestoreStore(client, log), client, nil
	default:
		return tokens.NewPostgresStore(db.DB), nil, nil
	}
}

func newContactStore(cfg *config.Config, db *pg.Database, supabaseClient *supabase.Client) contact.Store {
	if cfg.ContactStore == config.StoreSupabase {
		return contact.NewSupabaseStore(supabaseClient)
	}
	return contact.NewPostgresStore(db.DB)
}

func newSender(
	ctx context.Context,
	cfg *config.Config,
	provider *credentials.Provider,
	httpClient *http.Client,
	policy upstream.Policy,
) (notifications.Sender, error) {
	if cfg.PushTransport == config.TransportFirebase {
		client, err := firebaseapp.NewMessagingClient(ctx, provider.ProjectID(), provider.TokenSource(ctx))
		if err != nil {
			return nil, err
		}
		return notifications.NewFirebaseSender(client, policy), nil
	}
	return notifications.NewHTTPSender(cfg.FCMBaseURL, provider, httpClient, policy), nil
}
