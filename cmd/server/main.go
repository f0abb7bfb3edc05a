package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/config"
	"github.com/iliyamo/canteen-ordering/internal/database"
	"github.com/iliyamo/canteen-ordering/internal/handler"
	"github.com/iliyamo/canteen-ordering/internal/logger"
	"github.com/iliyamo/canteen-ordering/internal/middleware"
	"github.com/iliyamo/canteen-ordering/internal/queue"
	"github.com/iliyamo/canteen-ordering/internal/repository"
	"github.com/iliyamo/canteen-ordering/internal/router"
	"github.com/iliyamo/canteen-ordering/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("connect mysql", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db, log); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis is optional; every Redis-backed middleware passes through when
	// the client is nil.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable; cache, rate limit and idempotency disabled")
	} else {
		defer rdb.Close()
	}

	var publisher service.OrderPublisher
	var wg sync.WaitGroup
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, cfg.OrderQueue, log)
		defer pub.Close()
		publisher = pub

		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.OrderQueue, cfg.OrderLogPath, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("order consumer stopped", zap.Error(err))
			}
		}()
	} else {
		log.Info("RABBITMQ_URL not set; order events disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	menus := repository.NewMenuRepo(db)
	orders := repository.NewOrderRepo(db)
	slotSvc := service.NewSlotService(repository.NewSlotRepo(db), repository.NewSlotTemplateRepo(db), log)
	allocator := service.NewSlotAllocator(repository.NewAllocationRepo(db), publisher, log)

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	idempotency := middleware.NewIdempotency(config.LoadIdempotencyConfig(), rdb, log)

	menuH := handler.NewMenuHandler(menus, cache, cfg.Location, log)
	slotH := handler.NewSlotHandler(slotSvc, cache, cfg.Location, log)

	e := router.New(log, cfg.CORSOrigins)
	router.RegisterRoutes(e, handler.NewHealthHandler(db, rdb))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, log), cfg.JWTSecret, rateLimit)
	router.RegisterPublic(e, menuH, slotH, cache)
	router.RegisterStudent(e,
		handler.NewOrderHandler(allocator, orders, service.PickupQR{}, cache, cfg.Location, log),
		cfg.JWTSecret, rateLimit, idempotency)
	router.RegisterAdmin(e, router.AdminHandlers{
		Menu:  menuH,
		Slots: slotH,
		Admin: handler.NewAdminHandler(orders, repository.NewDuesRepo(db), cfg.Location, log),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("timezone", cfg.Timezone))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	wg.Wait()
	log.Info("stopped")
}
