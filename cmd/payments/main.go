package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sweetshop/backend/internal/catalog"
	"github.com/sweetshop/backend/internal/config"
	kafkax "github.com/sweetshop/backend/internal/kafka"
	"github.com/sweetshop/backend/internal/logging"
	"github.com/sweetshop/backend/internal/orders"
	"github.com/sweetshop/backend/internal/payments"
	"github.com/sweetshop/backend/internal/postgres"
	"github.com/sweetshop/backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.ServiceName+"-payments")
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

	// the producer outlives ctx so handlers draining the last batch can still
	// publish; Close below ends the flush loop
	prodPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, logger)
	prodPaid.Start(context.Background())

	catalogStore := &catalog.PGStore{DB: db}
	reservations := orders.NewReservationService(&orders.PGStockStore{DB: db}, catalogStore, logger)
	ledger := &orders.PGLedger{DB: db}
	lifecycle := orders.NewLifecycle(ledger, reservations, catalogStore, logger)

	svc := &payments.Service{
		Orders:      lifecycle,
		Redis:       rdb,
		Producer:    prodPaid,
		ServiceName: cfg.ServiceName + "-payments",
		Log:         logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentsGroup, orders.TopicPaymentAuthorized, cfg.PaymentsWorkers, logger)

	logger.Info("payments consumer started",
		zap.String("group", cfg.PaymentsGroup),
		zap.String("topic", orders.TopicPaymentAuthorized),
		zap.Int("workers", cfg.PaymentsWorkers))
	if err := cons.Start(ctx, svc.HandlePaymentAuthorized); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}

	logger.Info("shutting down consumer...")
	stop()
	time.Sleep(500 * time.Millisecond)
	prodPaid.Close()
	prodPaid.WaitClosed()
}
