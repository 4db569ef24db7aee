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

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/mirrorstack/mirror_server/internal/access"
	"github.com/mirrorstack/mirror_server/internal/config"
	"github.com/mirrorstack/mirror_server/internal/es"
	"github.com/mirrorstack/mirror_server/internal/handlers"
	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/middleware"
	"github.com/mirrorstack/mirror_server/internal/mykafka"
	"github.com/mirrorstack/mirror_server/internal/repo"
	"github.com/mirrorstack/mirror_server/internal/revocation"
	"github.com/mirrorstack/mirror_server/internal/session"
	"github.com/mirrorstack/mirror_server/internal/token"
	httpserver "github.com/mirrorstack/mirror_server/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LOG_LEVEL)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	r := repo.New(db)
	codec := &token.Codec{Secret: []byte(cfg.JWT_SECRET)}
	revoked := &revocation.GormStore{DB: db}
	validator := &token.Validator{Codec: codec, Revoked: revoked}
	guard := &access.Guard{Store: r}
	issuer := &session.Issuer{Repo: r, Codec: codec, Revoked: revoked, TTL: cfg.TokenTTL()}

	var producer *mykafka.Producer
	if cfg.KAFKA_ADDRESS != "" {
		producer = mykafka.NewProducer([]string{cfg.KAFKA_ADDRESS})
	}
	var pub mykafka.Publisher
	if producer != nil {
		pub = producer
	}

	var esClient *elasticsearch.Client
	if cfg.ES_URL != "" {
		esClient, err = es.NewClient(cfg)
		if err != nil {
			log.Printf("elasticsearch unavailable, search disabled: %v", err)
			esClient = nil
		}
	}

	auth := &middleware.Auth{Validator: validator, AppSentinel: cfg.APP_TOKEN_NAME}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	deps := httpserver.Deps{
		Auth:              auth,
		UserHandler:       &handlers.UserHandler{Repo: r, Issuer: issuer, Producer: pub},
		MirrorHandler:     &handlers.MirrorHandler{Repo: r, Guard: guard, Producer: pub, ES: esClient},
		PermissionHandler: &handlers.PermissionHandler{Repo: r, Guard: guard},
		WidgetHandler:     &handlers.WidgetHandler{Repo: r, Guard: guard, Producer: pub},
		SystemHandler:     &handlers.SystemHandler{Repo: r, Guard: guard, Codec: codec, AppSentinel: cfg.APP_TOKEN_NAME},
		SearchHandler:     &handlers.SearchHandler{ES: esClient, Repo: r},
	}
	httpserver.Register(e, &deps)

	port := cfg.PORT
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
