package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kidsclub/config"
	"kidsclub/cron"
	"kidsclub/database"
	bookingRepo "kidsclub/database/repository/booking"
	"kidsclub/handlers"
	"kidsclub/metrics"
	"kidsclub/middleware"
	"kidsclub/routes"
	"kidsclub/services/booking"
	"kidsclub/services/booking/pricing"
	"kidsclub/services/notification"
	"kidsclub/services/payment"
	"kidsclub/services/tasks"
	"kidsclub/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	database.InitDB()
	utils.InitRedis()
	metrics.Register()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))

	// repositories.
	repo, err := bookingRepo.NewMongoBookingRepo(database.Database(), logger.Named("repository"))
	if err != nil {
		logger.Fatal("main: failed to initialize booking repository", zap.Error(err))
	}

	// payment gateway.
	gateway, err := payment.NewStripeGateway(config.AppConfig.StripeKey, nil, logger.Named("stripe"))
	if err != nil {
		logger.Fatal("main: failed to initialize payment gateway", zap.Error(err))
	}

	// background queue.
	queueOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	asynqClient := asynq.NewClient(queueOpts)
	defer asynqClient.Close()

	queue, err := tasks.NewQueue(asynqClient, logger.Named("tasks"))
	if err != nil {
		logger.Fatal("main: failed to initialize task queue", zap.Error(err))
	}

	notificationService, err := notification.NewDefaultNotificationService(queue, logger.Named("notification"))
	if err != nil {
		logger.Fatal("main: failed to initialize notification service", zap.Error(err))
	}

	locker, err := utils.NewRedisLocker(utils.GetLockClient(), config.AppConfig.ChildLockTTL, logger.Named("lock"))
	if err != nil {
		logger.Fatal("main: failed to initialize locker", zap.Error(err))
	}

	// services.
	factory := booking.Factory{
		Policy:   pricing.DefaultPolicy(config.AppConfig.HourlyRate, config.AppConfig.MultiChildDiscountPct, config.AppConfig.MaxDiscountPct),
		Currency: config.AppConfig.Currency,
		Catalog:  config.AppConfig.PackagePrices,
	}
	bookingService, err := booking.NewDefaultBookingService(
		repo,
		gateway,
		notificationService,
		queue,
		locker,
		factory,
		booking.ServiceConfig{
			TopUpSuccessURL: config.AppConfig.TopUpSuccessURL,
			TopUpCancelURL:  config.AppConfig.TopUpCancelURL,
			ReminderLead:    config.AppConfig.ReminderLeadTime,
		},
		logger.Named("booking"),
	)
	if err != nil {
		logger.Fatal("main: failed to initialize booking service", zap.Error(err))
	}

	// worker.
	mailer := notification.NewMailer(notification.SMTPConfig{
		Host:     config.AppConfig.SMTPHost,
		Port:     config.AppConfig.SMTPPort,
		Username: config.AppConfig.SMTPUsername,
		Password: config.AppConfig.SMTPPassword,
		From:     config.AppConfig.MailFrom,
	}, logger.Named("mailer"))
	worker, err := cron.NewWorker(mailer, repo, gateway, logger.Named("worker"))
	if err != nil {
		logger.Fatal("main: failed to initialize worker", zap.Error(err))
	}
	workerServer := cron.InitWorker(worker)

	// health.
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	utils.StartHealthMonitor(monitorCtx, map[string]*redis.Client{
		"cache": utils.GetCacheClient(),
		"lock":  utils.GetLockClient(),
	}, database.MongoClient)

	// Assemble the handler bundle.
	handlerBundle := &routes.HandlerBundle{
		Booking: handlers.NewBookingHandler(bookingService),
		Webhook: handlers.NewWebhookHandler(bookingService, utils.GetCacheClient(), config.AppConfig.StripeWebhookSecret),
	}
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	workerServer.Shutdown()
	if err := database.Disconnect(ctx); err != nil {
		logger.Warn("main: mongo disconnect failed", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
