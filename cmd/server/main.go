package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/intellicog/records/internal/blob"
	"github.com/intellicog/records/internal/config"
	"github.com/intellicog/records/internal/events"
	"github.com/intellicog/records/internal/httpserver"
	"github.com/intellicog/records/internal/mailer"
	"github.com/intellicog/records/internal/models"
	"github.com/intellicog/records/internal/repo"
	"github.com/intellicog/records/internal/search"
	"github.com/intellicog/records/internal/service"
	pkgdb "github.com/intellicog/records/pkg/db"
	"github.com/intellicog/records/pkg/logging"
	"github.com/intellicog/records/pkg/metrics"
	loggingmw "github.com/intellicog/records/pkg/middleware/logging"
	"github.com/intellicog/records/pkg/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "records", "env", cfg.Environment)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	store, blobDir, err := openBlobStore(cfg)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("events_enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	var index search.PatientIndex
	if cfg.ES.URL != "" {
		es, err := search.NewElasticIndex(cfg.ES)
		if err != nil {
			log.Fatalf("search index: %v", err)
		}
		index = es
		logger.Info("search_enabled", "url", cfg.ES.URL, "index", cfg.ES.Index)
	}

	m := metrics.New()
	mail := mailer.New(cfg.Mail)
	codec := tokens.NewCodec(cfg.JWTSecret, cfg.RefreshSecret)
	r := &repo.GormRepo{DB: db}
	authz := &service.Authorizer{Repo: r}

	authSvc := &service.AuthService{
		Repo:         r,
		Sessions:     &repo.RefreshStore{DB: db, TTL: cfg.RefreshTTL},
		Tokens:       codec,
		Mailer:       mail,
		Events:       publisher,
		Metrics:      m,
		AccessTTL:    cfg.AccessTTL,
		RecoveryTTL:  cfg.RecoveryTTL,
		ResetCodeTTL: cfg.ResetCodeTTL,
	}
	users := &service.UserService{Repo: r, Blobs: store, Mailer: mail, Events: publisher, Index: index}
	patients := &service.PatientService{Repo: r, Blobs: store, Events: publisher, Index: index}
	evals := &service.EvaluationService{Repo: r, Blobs: store, Mailer: mail, Events: publisher}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))
	e.Use(m.Middleware())

	httpserver.Register(e, &httpserver.Deps{
		DB:                db,
		Tokens:            codec,
		Metrics:           m,
		TrustedProxies:    cfg.TrustedProxies,
		AuthHandler:       &httpserver.AuthHTTP{Svc: authSvc, SecureCookies: cfg.IsProduction()},
		UserHandler:       &httpserver.UserHTTP{Svc: users, SecureCookies: cfg.IsProduction()},
		PatientHandler:    &httpserver.PatientHTTP{Svc: patients, Authz: authz},
		EvaluationHandler: &httpserver.EvaluationHTTP{Svc: evals, Users: users, Authz: authz},
		BlobDir:           blobDir,
		BlobRoute:         cfg.S3.Bucket,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_failed", "error", err)
	}
	evals.Wait()
	if err := publisher.Close(); err != nil {
		logger.Warn("events_close_failed", "error", err)
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Warn("db_close_failed", "error", err)
	}

	logger.Info("stopped")
}

// openBlobStore serves uploads from disk outside production and from S3 in
// production. The returned directory is empty when nothing is served locally.
func openBlobStore(cfg config.Config) (blob.Store, string, error) {
	if !cfg.IsProduction() {
		dir := filepath.Join(".", cfg.S3.Bucket)
		s, err := blob.NewLocalStore(dir, cfg.PublicBaseURL+"/api/v1/"+cfg.S3.Bucket)
		return s, dir, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := blob.NewS3Store(ctx, cfg.S3)
	return s, "", err
}
