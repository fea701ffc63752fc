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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mikrogrup/itbot/backend/internal/config"
	"github.com/mikrogrup/itbot/backend/internal/handler"
	"github.com/mikrogrup/itbot/backend/internal/i18n"
	"github.com/mikrogrup/itbot/backend/internal/service/ai"
	"github.com/mikrogrup/itbot/backend/internal/service/chat"
	"github.com/mikrogrup/itbot/backend/internal/service/identity"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Without a completion endpoint every turn answers with the technical-difficulty notice.
	var completer chat.Completer
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check the completion endpoint environment variables")
		} else {
			completer = aiService
			log.Printf("AI service initialized (provider=%s, model=%s)", cfg.AI.Provider, cfg.AI.Model)
		}
	} else {
		log.Printf("completion credentials for provider %q not configured, skipping AI initialization", cfg.AI.Provider)
	}

	if cfg.Auth.ClientSecret == "" {
		log.Println("warning: AZURE_CLIENT_SECRET is empty, the token endpoint will reject confidential-client exchanges")
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	provider := identity.NewAzureProvider(identity.AzureOptions{
		ClientID:              cfg.Auth.ClientID,
		ClientSecret:          cfg.Auth.ClientSecret,
		TenantID:              cfg.Auth.TenantID,
		RedirectURL:           cfg.Auth.RedirectURL,
		AuthorityHost:         cfg.Auth.AuthorityHost,
		PostLogoutRedirectURL: cfg.Auth.PostLogoutRedirectURL,
	}, httpClient)
	resolver := identity.NewResolver(provider, identity.NewGraphClient(cfg.Auth.GraphMeEndpoint, httpClient))

	chatService := chat.NewService(cfg.Session.IdleTTL)

	router, err := handler.NewRouter(handler.Dependencies{
		ChatSvc:        chatService,
		Provider:       provider,
		Resolver:       resolver,
		Completer:      completer,
		HistoryLimit:   cfg.AI.HistoryLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CookieSecure:   cfg.Session.CookieSecure,
		Locale:         i18n.Parse(cfg.Locale.Default),
	})
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return chatService.Run(gctx, cfg.Session.SweepInterval)
	})
	g.Go(func() error {
		return startServer(gctx, cfg.Server, router)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Mikrogrup ITBOT backend listening on %s", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
