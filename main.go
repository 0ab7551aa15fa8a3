package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"storefront-backend/internal/app"
	"storefront-backend/internal/auth"
	"storefront-backend/internal/catalog"
	"storefront-backend/internal/config"
	"storefront-backend/internal/httpapi"
	"storefront-backend/internal/media"
	"storefront-backend/internal/scope"
	"storefront-backend/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	handlerOpts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var logger *slog.Logger
	if cfg.Production() {
		handlerOpts.Level = slog.LevelInfo
		logger = slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}
	slog.SetDefault(logger)

	ctx := context.Background()

	backends, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open backends", "error", err)
		os.Exit(1)
	}

	catalogSvc := catalog.NewService(backends.Products, backends.Publisher)
	if cfg.SeedCatalog {
		n, err := catalogSvc.SeedIfEmpty(ctx)
		if err != nil {
			slog.Warn("Failed to seed catalog", "error", err)
		} else if n > 0 {
			slog.Info("Seeded catalog", "products", n)
		}
	}

	authOpts := auth.Options{
		Secret:             cfg.JWTSecret,
		TokenTTL:           cfg.TokenTTL,
		AdminAccessKey:     cfg.AdminAccessKey,
		ModeratorAccessKey: cfg.ModeratorAccessKey,
	}
	if cfg.FirebaseCredentialsJSON != "" || cfg.FirebaseProjectID != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseCredentialsJSON, cfg.FirebaseProjectID)
		if err != nil {
			slog.Warn("Firebase sign-in disabled", "error", err)
		} else {
			authOpts.Verifier = verifier
		}
	}
	authSvc := auth.NewService(backends.Users, backends.Slots, authOpts)

	templates := web.NewTemplateCache()
	if err := templates.Load(); err != nil {
		slog.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		slog.Error("Failed to create upload directory", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	scopes := &scope.Builder{Auth: authSvc, Slots: backends.Slots, CookieSecure: cfg.CookieSecure}

	r := gin.New()
	r.Use(gin.Recovery(), httpapi.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Static("/uploads", cfg.UploadDir)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.Use(scopes.Middleware())

	api := &httpapi.Handlers{
		Products: &httpapi.ProductHandler{Catalog: catalogSvc, Images: media.NewImageStore(cfg.UploadDir, "/uploads")},
		Auth:     &httpapi.AuthHandler{Auth: authSvc, Scopes: scopes},
		Cart:     &httpapi.CartHandler{Catalog: catalogSvc},
	}
	api.Register(r)

	pages := &web.Pages{
		Catalog:   catalogSvc,
		Auth:      authSvc,
		Scopes:    scopes,
		Sessions:  sessionStore,
		Templates: templates,
	}
	trusted := []string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}
	pages.Routes(r, web.CSRF(cfg.CSRFKey, cfg.CookieSecure, trusted))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	backends.Close(shutdownCtx)
	slog.Info("Server exited properly")
}
