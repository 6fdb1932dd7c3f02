package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-system/internal/auth"
	"order-system/internal/config"
	"order-system/internal/database"
	"order-system/internal/handlers"
	"order-system/internal/kafka"
	"order-system/internal/logger"
	"order-system/internal/models"
	"order-system/internal/redis"
	"order-system/internal/services"
)

// Фабричные функции для подключения внешних сервисов; main_test подменяет их заглушками.
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting order service...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	app.close()
	app.log.Info("Server exited")
}

// close освобождает ресурсы; каждый Close безопасен для nil
func (a *application) close() {
	if a.consumer != nil {
		_ = a.consumer.Stop()
	}
	_ = a.producer.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
}

// buildApplication создает все зависимости.
// Без базы сервис не стартует; Redis и Kafka необязательны.
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)
	app := &application{cfg: cfg, log: log}

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app.db = db

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx, time.Now().UTC())
		cancel()
		if err != nil {
			app.close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		log.Info("Database schema is up to date")
	}

	if cfg.RateLimit.Enabled {
		redisClient, err := redisConnect(&cfg.Redis, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, rate limiting disabled")
		} else {
			app.redis = redisClient
		}
	}

	var publisher services.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := newKafkaProducer(&cfg.Kafka, log)
		if err != nil {
			log.WithError(err).Warn("Kafka producer unavailable, order events will not be published")
		} else {
			app.producer = producer
			publisher = producer
		}

		consumer, err := newKafkaConsumer(&cfg.Kafka, log)
		if err != nil {
			log.WithError(err).Warn("Kafka consumer unavailable")
		} else {
			registerEventHandlers(consumer, log)
			if err := consumer.Start(); err != nil {
				log.WithError(err).Warn("Kafka consumer failed to start")
				_ = consumer.Stop()
			} else {
				app.consumer = consumer
			}
		}
	}

	promoService := services.NewPromoService(db, log)
	cartService := services.NewCartService(db, log)
	orderService := services.NewOrderService(db, log, promoService, publisher, &cfg.Orders)
	rateLimiter := services.NewRateLimiter(app.redis, log, &cfg.RateLimit)

	var redisHealth handlers.RedisHealth
	if app.redis != nil {
		redisHealth = app.redis
	}

	resolver := auth.NewResolver(&cfg.Auth, log)
	if cfg.Auth.SigningKey == "" {
		log.Warn("JWT_SIGNING_KEY is empty, all requests are treated as anonymous")
	}

	router := handlers.NewRouter(handlers.Routes{
		Cart:         handlers.NewCartHandler(cartService, log),
		Orders:       handlers.NewOrderHandler(orderService, log, orderService.MaxPageSize()),
		AdminOrders:  handlers.NewAdminOrderHandler(orderService, log),
		Promo:        handlers.NewPromoHandler(promoService, log),
		AdminPromo:   handlers.NewAdminPromoHandler(promoService, log),
		Health:       handlers.NewHealthHandler(db, redisHealth, cfg.Kafka.Brokers, kafkaHealthCheck),
		RateLimit:    handlers.NewRateLimitHandler(rateLimiter, log, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		Authenticate: resolver.Middleware,
		Limiter:      rateLimiter,
		AdminRole:    cfg.Auth.AdminRole,
	}, log)

	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return app, nil
}

// registerEventHandlers подписывается на собственный топик заказов только для журнала:
// обработчики пишут событие в лог и ничего не доставляют.
func registerEventHandlers(consumer *kafka.Consumer, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeOrderCreated, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing order created event")
		return nil
	})

	consumer.RegisterHandler(models.EventTypeOrderStatusChanged, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing order status changed event")
		return nil
	})
}
