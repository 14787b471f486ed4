package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/clinicore/clinic-api/internal/config"
	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/handler"
	authHandler "github.com/clinicore/clinic-api/internal/handler/auth"
	membershipHandler "github.com/clinicore/clinic-api/internal/handler/membership"
	permissionHandler "github.com/clinicore/clinic-api/internal/handler/permission"
	roleHandler "github.com/clinicore/clinic-api/internal/handler/role"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/router"
	"github.com/clinicore/clinic-api/internal/service/access"
	auditService "github.com/clinicore/clinic-api/internal/service/audit"
	authService "github.com/clinicore/clinic-api/internal/service/auth"
	membershipService "github.com/clinicore/clinic-api/internal/service/membership"
	permissionService "github.com/clinicore/clinic-api/internal/service/permission"
	roleService "github.com/clinicore/clinic-api/internal/service/role"
	"github.com/clinicore/clinic-api/pkg/auth"
	"github.com/clinicore/clinic-api/pkg/logger"
	"github.com/clinicore/clinic-api/pkg/metrics"
	"github.com/clinicore/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	permissionRepo := postgres.NewPermissionRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	membershipRepo := postgres.NewMembershipRepository(db)
	userRepo := postgres.NewUserRepository(db)
	clinicRepo := postgres.NewClinicRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.NewMetrics("clinicore", "api")

	var mailer email.Service = email.NoopService{}
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	auditor := auditService.NewService(auditRepo, log)
	catalog := permissionService.NewService(permissionRepo)
	roles := roleService.NewService(roleRepo, catalog, auditor)
	memberships := membershipService.NewService(
		membershipRepo, roleRepo, userRepo, clinicRepo, auditor, mailer, log)
	resolver := access.NewResolver(membershipRepo, roleRepo, roles, log)

	tokens := auth.NewJWTService(auth.Config{
		Secret:             cfg.JWT.Secret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		ExpiryHours:        cfg.JWT.ExpiryHours,
		RefreshExpiryHours: cfg.JWT.RefreshExpiryHours,
	})
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	authSvc := authService.NewService(userRepo, tokens, hasher)

	accessMw := middleware.NewAccessMiddleware(resolver, auditor, m, log)
	emitter := handler.NewEmitter(outboxRepo, log)

	r := router.NewRouter(
		authSvc,
		accessMw,
		authHandler.NewHandler(authSvc),
		roleHandler.NewHandler(roles, emitter),
		permissionHandler.NewHandler(catalog),
		membershipHandler.NewHandler(memberships, resolver, emitter),
		handler.NewHealthHandler(db),
		log,
		router.Config{
			RateLimit:  rate.Limit(cfg.RateLimit.RPS),
			RateBurst:  cfg.RateLimit.Burst,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "forced shutdown")
	}
}
