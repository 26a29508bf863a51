package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweetshop/backend/internal/catalog"
	"github.com/sweetshop/backend/internal/config"
	"github.com/sweetshop/backend/internal/httpx"
	kafkax "github.com/sweetshop/backend/internal/kafka"
	"github.com/sweetshop/backend/internal/logging"
	"github.com/sweetshop/backend/internal/orders"
	"github.com/sweetshop/backend/internal/postgres"
	"github.com/sweetshop/backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prodCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	prodDelivered := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderDelivered, 1024, logger)
	prodDeleted := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderDeleted, 1024, logger)
	// producers outlive ctx so in-flight handlers can still publish during
	// graceful shutdown; Close below ends the flush loops
	prodCreated.Start(context.Background())
	prodDelivered.Start(context.Background())
	prodDeleted.Start(context.Background())

	catalogStore := &catalog.PGStore{DB: db}
	reservations := orders.NewReservationService(&orders.PGStockStore{DB: db}, catalogStore, logger)
	ledger := &orders.PGLedger{DB: db}
	lifecycle := orders.NewLifecycle(ledger, reservations, catalogStore, logger)
	revenue := orders.NewRevenue(ledger)

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{
		Orders:            lifecycle,
		Revenue:           revenue,
		Redis:             rdb,
		Service:           cfg.ServiceName,
		ProducerCreated:   prodCreated,
		ProducerDelivered: prodDelivered,
		ProducerDeleted:   prodDeleted,
	}).Register(router)
	(&httpx.SweetsHandler{
		Catalog:      catalogStore,
		Reservations: reservations,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", zap.Error(err))
	}

	logger.Info("shutting down...")
	prodCreated.Close()
	prodDelivered.Close()
	prodDeleted.Close()
	prodCreated.WaitClosed()
	prodDelivered.WaitClosed()
	prodDeleted.WaitClosed()
}
