package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tivrox-backend/internal/admins"
	"tivrox-backend/internal/auth"
	"tivrox-backend/internal/bookings"
	"tivrox-backend/internal/cache"
	"tivrox-backend/internal/config"
	"tivrox-backend/internal/db"
	"tivrox-backend/internal/events"
	"tivrox-backend/internal/handlers"
	"tivrox-backend/internal/metrics"
	"tivrox-backend/internal/middleware"
	"tivrox-backend/internal/notifications"
	"tivrox-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= bookings.LevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var cacheStore cache.Cache = cache.NewMemory()
	var windowStore middleware.WindowStore
	var redisCache *cache.RedisCache
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
		windowStore = middleware.NewRedisWindowStore(redisCache.Client())
	} else {
		memStore := middleware.NewMemoryWindowStore()
		go memStore.RunSweeper(bgCtx, cfg.RateLimitWindow, cfg.RateLimitWindow)
		windowStore = memStore
		logger.Info("rate limiting in process memory")
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL, "tivrox-backend")
	val := validation.New()

	adminRepo := admins.NewRepository(cols.Admins)
	adminService := admins.NewService(adminRepo, jwtManager, logger)
	adminHandler := admins.NewHandler(adminService, val, logger)
	if cfg.AdminSeedOnStart {
		created, err := adminService.Seed(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			logger.Error("admin seed failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if created {
			logger.Info("admin user seeded", slog.String("username", cfg.AdminUsername))
		} else {
			logger.Info("admin user already exists", slog.String("username", cfg.AdminUsername))
		}
	}

	var mailer notifications.Mailer
	if brevo := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.SenderEmail, cfg.SenderName, cfg.BrevoSandbox); brevo != nil {
		mailer = brevo
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.SenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	} else {
		logger.Info("brevo mailer disabled")
	}

	var telegram notifications.Telegram
	if cfg.TelegramBotToken != "" {
		tg, err := notifications.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("telegram notifier disabled", slog.String("error", err.Error()))
		} else {
			telegram = tg
			logger.Info("telegram notifier enabled")
		}
	}

	dispatcher := notifications.NewDispatcher(notifications.DispatcherOptions{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}, logger)
	notifier := notifications.NewBookingNotifier(mailer, telegram, dispatcher, notifications.BookingNotifierConfig{
		AdminEmail:          cfg.AdminEmail,
		ClientConfirmations: cfg.ClientConfirmationEnabled,
	}, logger)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaBookingTopic, logger)
		if err != nil {
			logger.Error("kafka publisher failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		publisher = kp
		logger.Info("kafka publisher enabled", slog.String("topic", cfg.KafkaBookingTopic))
	}

	bookingRepo := bookings.NewRepository(cols.Bookings)
	bookingService := bookings.NewService(bookingRepo, notifier, publisher, cacheStore, val, logger, bookings.Options{
		Strict:               cfg.BookingValidation == config.ValidationStrict,
		InsertAttempts:       3,
		InsertAttemptTimeout: 5 * time.Second,
		InsertRetryDelay:     500 * time.Millisecond,
		StatsTTL:             cfg.CacheTTL,
	})
	bookingHandler := bookings.NewHandler(bookingService, logger)

	system := &handlers.Server{
		Log: logger,
		DB: handlers.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}),
	}

	if cfg.MetricsEnabled {
		metrics.Register()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	bookingLimiter := middleware.NewRateLimiter("bookings", cfg.RateLimitMax, cfg.RateLimitWindow, windowStore, logger)
	loginLimiter := middleware.NewRateLimiter("login", cfg.RateLimitMax, cfg.RateLimitWindow, windowStore, logger).
		WithMessage("Too many login attempts")

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/", system.Root)
		api.Get("/health", system.Health)
		api.With(bookingLimiter.Middleware).Post("/bookings", bookingHandler.Create)

		api.Route("/admin", func(admin chi.Router) {
			admin.With(loginLimiter.Middleware).Post("/login", adminHandler.Login)

			admin.Group(func(protected chi.Router) {
				protected.Use(middleware.AdminAuth(jwtManager, logger))
				protected.Get("/bookings", bookingHandler.AdminList)
				// Registered before /bookings/{id} so "export" is never read as an id.
				protected.Get("/bookings/export", bookingHandler.AdminExport)
				protected.Put("/bookings/{id}/status", bookingHandler.AdminUpdateStatus)
				protected.Delete("/bookings/{id}", bookingHandler.AdminDelete)
				protected.Get("/stats", bookingHandler.AdminStats)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification drain incomplete", slog.String("error", err.Error()))
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("kafka close error", slog.String("error", err.Error()))
	}
	bgCancel()
	if redisCache != nil {
		_ = redisCache.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}
}
