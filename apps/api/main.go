package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	approvalshandler "github.com/arunavo4/turns-management-sub001/domains/approvals/be/handler"
	approvalsrepo "github.com/arunavo4/turns-management-sub001/domains/approvals/be/repo"
	approvalsservice "github.com/arunavo4/turns-management-sub001/domains/approvals/be/service"
	audithandler "github.com/arunavo4/turns-management-sub001/domains/audit/be/handler"
	thresholdshandler "github.com/arunavo4/turns-management-sub001/domains/thresholds/be/handler"
	thresholdsrepo "github.com/arunavo4/turns-management-sub001/domains/thresholds/be/repo"
	thresholdsservice "github.com/arunavo4/turns-management-sub001/domains/thresholds/be/service"
	turnshandler "github.com/arunavo4/turns-management-sub001/domains/turns/be/handler"
	turnsrepo "github.com/arunavo4/turns-management-sub001/domains/turns/be/repo"
	turnsservice "github.com/arunavo4/turns-management-sub001/domains/turns/be/service"
	"github.com/arunavo4/turns-management-sub001/platform/go/audit"
	platformauth "github.com/arunavo4/turns-management-sub001/platform/go/auth"
	platformlogging "github.com/arunavo4/turns-management-sub001/platform/go/logging"
	platformmiddleware "github.com/arunavo4/turns-management-sub001/platform/go/middleware"
	"github.com/arunavo4/turns-management-sub001/platform/go/notify"
	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`

	AuthMode  string `env:"AUTH_MODE" envDefault:"hmac"` // hmac | dev
	JWTSecret string `env:"JWT_SECRET"`                  // required when AUTH_MODE=hmac

	NotifierBackend string `env:"NOTIFIER_BACKEND" envDefault:"log"` // smtp | log
	SMTPHost        string `env:"SMTP_HOST"`
	SMTPPort        int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername    string `env:"SMTP_USERNAME"`
	SMTPPassword    string `env:"SMTP_PASSWORD"`
	SMTPFrom        string `env:"SMTP_FROM"`

	DfoApproverEmail string `env:"DFO_APPROVER_EMAIL"`
	DfoApproverName  string `env:"DFO_APPROVER_NAME" envDefault:"DFO Approver"`
	HoApproverEmail  string `env:"HO_APPROVER_EMAIL"`
	HoApproverName   string `env:"HO_APPROVER_NAME" envDefault:"HO Approver"`
}

func main() {
	ctx := context.Background()

	// Local development convenience; absence of a .env file is not an error.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	turnStore, err := persistence.NewTurnStore(pool)
	if err != nil {
		logger.Fatal("init turn store", zap.Error(err))
	}
	stageStore, err := persistence.NewStageStore(pool)
	if err != nil {
		logger.Fatal("init stage store", zap.Error(err))
	}
	approvalStore, err := persistence.NewApprovalStore(pool)
	if err != nil {
		logger.Fatal("init approval store", zap.Error(err))
	}
	thresholdStore, err := persistence.NewThresholdStore(pool)
	if err != nil {
		logger.Fatal("init threshold store", zap.Error(err))
	}
	auditStore, err := persistence.NewAuditLogStore(pool)
	if err != nil {
		logger.Fatal("init audit log store", zap.Error(err))
	}

	recorder := audit.NewRecorder(auditStore, logger)
	notifier := buildNotifier(cfg, logger)
	directory := buildDirectory(cfg)

	approvalsRepo := approvalsrepo.NewPostgresRepository(approvalStore, thresholdStore, turnStore)
	approvalsSvc := approvalsservice.New(approvalsRepo, recorder, notifier, directory, logger)
	approvalsHTTPHandler := approvalshandler.New(approvalsSvc, logger)

	turnsRepo := turnsrepo.NewPostgresRepository(turnStore, stageStore)
	turnsSvc := turnsservice.New(turnsRepo, approvalsSvc, recorder, logger)
	turnsHTTPHandler := turnshandler.New(turnsSvc, logger)

	thresholdsRepo := thresholdsrepo.NewPostgresRepository(thresholdStore)
	thresholdsSvc := thresholdsservice.New(thresholdsRepo, recorder, logger)
	thresholdsHTTPHandler := thresholdshandler.New(thresholdsSvc, logger)

	auditHTTPHandler := audithandler.New(auditStore, logger)

	authMiddleware := buildAuthMiddleware(cfg, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireAuthenticated)
		turnsHTTPHandler.Register(r)
		approvalsHTTPHandler.Register(r)
		auditHTTPHandler.Register(r)
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformauth.RequireRole("admin"))
		thresholdsHTTPHandler.Register(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildAuthMiddleware(cfg config, logger *zap.Logger) func(http.Handler) http.Handler {
	switch cfg.AuthMode {
	case "hmac":
		if cfg.JWTSecret == "" {
			logger.Fatal("jwt secret required when AUTH_MODE=hmac")
		}
		return platformauth.JWT(platformauth.HMACTokenVerifier([]byte(cfg.JWTSecret)), platformauth.DefaultCredentialExtractor)
	case "dev":
		logger.Warn("auth running in dev mode, tokens are not verified")
		return platformauth.JWT(platformauth.UnsignedTokenVerifier(), platformauth.DefaultCredentialExtractor)
	default:
		logger.Fatal("invalid AUTH_MODE (use hmac or dev)", zap.String("mode", cfg.AuthMode))
		return nil
	}
}

func buildNotifier(cfg config, logger *zap.Logger) notify.Notifier {
	switch cfg.NotifierBackend {
	case "smtp":
		notifier, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			logger.Fatal("init smtp notifier", zap.Error(err))
		}
		return notifier
	case "log":
		return notify.NewLogNotifier(logger)
	default:
		logger.Fatal("invalid NOTIFIER_BACKEND (use smtp or log)", zap.String("backend", cfg.NotifierBackend))
		return nil
	}
}

func buildDirectory(cfg config) notify.Directory {
	approvers := map[string]notify.Recipient{}
	if cfg.DfoApproverEmail != "" {
		approvers[string(persistence.ApprovalTypeDFO)] = notify.Recipient{
			Name:  cfg.DfoApproverName,
			Email: cfg.DfoApproverEmail,
		}
	}
	if cfg.HoApproverEmail != "" {
		approvers[string(persistence.ApprovalTypeHO)] = notify.Recipient{
			Name:  cfg.HoApproverName,
			Email: cfg.HoApproverEmail,
		}
	}
	return notify.NewStaticDirectory(approvers)
}
