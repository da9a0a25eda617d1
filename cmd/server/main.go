package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/api"
	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/application/service"
	"github.com/spoonbill/claims-factoring/internal/config"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/infrastructure/events"
	"github.com/spoonbill/claims-factoring/internal/infrastructure/events/kafka"
	"github.com/spoonbill/claims-factoring/internal/infrastructure/persistence/repository"
	"github.com/spoonbill/claims-factoring/internal/infrastructure/persistence/sqlite"
	"github.com/spoonbill/claims-factoring/internal/infrastructure/provider"
	"github.com/spoonbill/claims-factoring/internal/report"
	"github.com/spoonbill/claims-factoring/pkg/database"
	"github.com/spoonbill/claims-factoring/pkg/utils"
)

// sugarLogger adapts zap's sugared logger to the api.Logger interface.
type sugarLogger struct {
	s *zap.SugaredLogger
}

func (l sugarLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l sugarLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting claims factoring service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db.DB, logger)

	claimRepo := repository.NewClaimRepository(db.DB, logger)
	practiceRepo := repository.NewPracticeRepository(db.DB, logger)
	poolRepo := repository.NewCapitalPoolRepository(db.DB, logger)
	accountRepo := repository.NewLedgerAccountRepository(db.DB, logger)
	entryRepo := repository.NewLedgerEntryRepository(db.DB, logger)
	paymentRepo := repository.NewPaymentIntentRepository(db.DB, logger)
	decisionRepo := repository.NewUnderwritingDecisionRepository(db.DB, logger)

	audit := buildAuditSink(cfg, logger)

	paymentProvider := provider.NewSimulatedProvider(provider.SimulatedConfig{
		FailureRate:   cfg.Provider.FailureRate,
		Deterministic: cfg.Provider.Deterministic,
		ForceFail:     cfg.Provider.ForceFail,
	}, logger)

	ledgerService := service.NewLedgerService(accountRepo, entryRepo, logger)
	poolService := service.NewCapitalPoolService(poolRepo, claimRepo, practiceRepo, txManager, audit, logger)
	paymentService := service.NewPaymentOrchestrationService(
		paymentRepo, claimRepo, ledgerService, paymentProvider, txManager, audit, logger)
	claimService := service.NewClaimService(
		claimRepo, practiceRepo, poolRepo, decisionRepo, txManager,
		cfg.Underwriting.ToPolicy(), cfg.Underwriting.ReviewAmountThresholdCents,
		audit, logger)
	practiceService := service.NewPracticeService(practiceRepo, logger)
	exporter := report.NewLedgerExporter(ledgerService, entryRepo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bootstrapCapital(ctx, cfg, poolService, ledgerService, logger); err != nil {
		logger.Fatal("Failed to bootstrap capital", zap.Error(err))
	}

	server := api.NewServer(api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, api.Services{
		Claims:    claimService,
		Practices: practiceService,
		Pool:      poolService,
		Payments:  paymentService,
		Ledger:    ledgerService,
		Exporter:  exporter,
	}, sugarLogger{logger.Sugar()})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// buildAuditSink wires the structured-log sink, plus Kafka when brokers
// are configured.
func buildAuditSink(cfg *config.Config, logger *zap.Logger) port.AuditLogger {
	zapSink := events.NewZapAuditLogger(logger)
	if len(cfg.Kafka.Brokers) == 0 {
		return zapSink
	}

	publisher := kafka.NewAuditPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	logger.Info("Kafka audit publisher enabled",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic))
	return events.NewMultiAuditLogger(zapSink, publisher)
}

// bootstrapCapital seeds the configured pool and the matching ledger
// capital contribution. Both steps are idempotent across restarts.
func bootstrapCapital(
	ctx context.Context,
	cfg *config.Config,
	poolService service.CapitalPoolService,
	ledgerService service.LedgerService,
	logger *zap.Logger,
) error {
	pool, err := poolService.InitPool(ctx, cfg.Pool.ID, cfg.Pool.TotalCapitalCents)
	if err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	logger.Info("Capital pool ready",
		zap.String("pool_id", pool.ID),
		zap.Int64("total_capital_cents", pool.TotalCapitalCents))

	cash, err := ledgerService.GetOrCreateAccount(ctx, entity.AccountCapitalCash, nil, cfg.Pool.Currency)
	if err != nil {
		return fmt.Errorf("create capital cash account: %w", err)
	}
	if _, err := ledgerService.GetOrCreateAccount(ctx, entity.AccountPaymentClearing, nil, cfg.Pool.Currency); err != nil {
		return fmt.Errorf("create payment clearing account: %w", err)
	}

	_, err = ledgerService.CreateEntry(ctx, service.CreateEntryParams{
		Account:        cash,
		Direction:      entity.DirectionCredit,
		AmountCents:    cfg.Pool.TotalCapitalCents,
		RelatedType:    entity.RelatedCapitalContribution,
		RelatedID:      uuid.New(),
		IdempotencyKey: "bootstrap:capital:v1",
		Status:         entity.EntryPosted,
	})
	if err != nil && !errors.Is(err, service.ErrDuplicateEntry) {
		return fmt.Errorf("seed capital contribution: %w", err)
	}
	return nil
}
