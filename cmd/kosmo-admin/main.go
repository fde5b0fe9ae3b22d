package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kosmo-admin/common/database"
	"kosmo-admin/common/logger"
	"kosmo-admin/common/mqtt"
	commonredis "kosmo-admin/common/redis"
	"kosmo-admin/internal/config"
	"kosmo-admin/internal/domain"
	httpapi "kosmo-admin/internal/http"
	"kosmo-admin/internal/metrics"
	"kosmo-admin/internal/repository"
	"kosmo-admin/internal/service"
	"kosmo-admin/internal/session"
	"kosmo-admin/internal/store"
	"kosmo-admin/migrations"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "kosmo-admin")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := migrations.Apply(context.Background(), db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	defer commonredis.Close(redisClient)
	if err := commonredis.Ping(context.Background(), redisClient); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	sessions := session.NewManager(store.NewRedisKV(redisClient), session.Options{
		Secret:     cfg.Session.Secret,
		TTL:        cfg.Session.TTL,
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.CookieSecure,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	plans, err := domain.LoadPlanCatalog(cfg.PlansFile)
	if err != nil {
		log.Fatal("Failed to load plan catalog", zap.Error(err))
	}

	// 审计事件：MQTT 可选，连接失败时只写日志
	var publisher service.AuditPublisher
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT.MQTTConfig, log)
		if err != nil {
			log.Warn("MQTT unavailable, audit events will only be logged", zap.Error(err))
		} else {
			defer client.Disconnect()
			publisher = client
		}
	}
	audit := service.NewAuditRecorder(log, publisher, cfg.MQTT.Topic)

	usersRepo := repository.NewPostgresUsersRepository(db)
	tenantsRepo := repository.NewPostgresTenantsRepository(db)
	invitationsRepo := repository.NewPostgresInvitationsRepository(db)
	billingRepo := repository.NewPostgresBillingRepository(db)
	announcementsRepo := repository.NewPostgresAnnouncementsRepository(db)
	dashboardRepo := repository.NewPostgresDashboardRepository(db)

	square := service.NewSquareClient(cfg.Square, m, log)
	mailer := service.NewInviteMailer(cfg.Mail, m, log)

	authSvc := service.NewAuthService(usersRepo, sessions, log)
	impersonationSvc := service.NewImpersonationService(usersRepo, tenantsRepo, sessions, audit, m, log)
	tenantSvc := service.NewTenantService(tenantsRepo, usersRepo, plans, log)
	invitationSvc := service.NewInvitationService(invitationsRepo, mailer, log)
	billingSvc := service.NewBillingService(billingRepo, tenantsRepo, usersRepo, plans, square, log)
	announcementSvc := service.NewAnnouncementService(announcementsRepo, tenantsRepo, usersRepo, plans, log)
	dashboardSvc := service.NewDashboardService(dashboardRepo, plans, log)

	maxBody := cfg.HTTP.MaxBodyBytes
	h := httpapi.Handlers{
		Auth:          httpapi.NewAuthHandler(authSvc, impersonationSvc, log),
		Dashboard:     httpapi.NewDashboardHandler(dashboardSvc, log),
		Tenants:       httpapi.NewTenantsHandler(tenantSvc, maxBody, log),
		Invites:       httpapi.NewInvitesHandler(invitationSvc, maxBody, log),
		Billing:       httpapi.NewBillingHandler(billingSvc, maxBody, log),
		Announcements: httpapi.NewAnnouncementsHandler(announcementSvc, maxBody, log),
		Impersonation: httpapi.NewImpersonationHandler(impersonationSvc, log),
	}
	guard := httpapi.NewGuard(authSvc, sessions, log)

	router := httpapi.NewRouter(m, log)
	router.RegisterAuthRoutes(h.Auth)
	router.RegisterAdminRoutes(guard, h)
	router.RegisterTenantRoutes(guard, h)
	router.RegisterOpsRoutes(
		httpapi.NewHealthHandler(map[string]httpapi.HealthCheck{
			"database": db.PingContext,
			"redis": func(ctx context.Context) error {
				return commonredis.Ping(ctx, redisClient)
			},
		}, log),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)

	handler := httpapi.Chain(
		httpapi.Recoverer(log),
		httpapi.RequestLogger(log),
		httpapi.Sessions(sessions, log),
	)(router)

	srv := service.NewServer(cfg.HTTP.Addr, handler, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop HTTP server", zap.Error(err))
	}
}
