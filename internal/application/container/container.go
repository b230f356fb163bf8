// Package container provides dependency injection for all singleton services
package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/cleanup"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/clock"
	schema "github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/database"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/email"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/identity"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/media"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/messaging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/persistence/database"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/persistence/state"
	"github.com/benjarmc/portal-pji-project-sub000/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Wizard
	WizardStateService *services.WizardStateService
	WizardFlowService  *services.WizardFlowService

	// Domain services
	PlanService          *services.PlanService
	QuotationService     *services.QuotationService
	UserService          *services.UserService
	PaymentService       *services.PaymentService
	InvestigationService *services.InvestigationService
	ValidationService    *services.ValidationService
	DocumentService      *services.DocumentService
	ResumeLinkService    *services.ResumeLinkService

	// Infrastructure Dependencies
	Logger        *logging.ChanneledLogger
	PerfTracker   *performance.Tracker
	EventBus      *messaging.EventBus
	Backend       *backend.Client
	StateRepo     wizard.StateRepository
	CleanupWorker *cleanup.Worker

	closers []func() error
}

// Options override what NewContainer would otherwise build from config.
type Options struct {
	Logger    *logging.ChanneledLogger
	StateRepo wizard.StateRepository
	Sessions  services.SessionBackend
	Clock     clock.Clock
}

// NewLogger builds the channeled logger from config.
func NewLogger() (*logging.ChanneledLogger, error) {
	cfg := logging.DefaultLoggerConfig()
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	cfg.JSONFormat = config.LogJSON
	cfg.OutputToFile = config.LogToFile
	cfg.LogDirectory = config.LogDirectory
	return logging.NewChanneledLogger(cfg)
}

// NewContainer creates and wires all singleton services
func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	c := &Container{}

	logger := opts.Logger
	if logger == nil {
		var err error
		if logger, err = NewLogger(); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		c.closers = append(c.closers, logger.Close)
	}
	c.Logger = logger
	c.PerfTracker = performance.NewTracker(performance.DefaultTrackerConfig())

	repo := opts.StateRepo
	if repo == nil {
		var err error
		if repo, err = c.openStateRepository(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	c.StateRepo = repo

	c.Backend = backend.NewClient(backend.Config{
		BaseURL: config.BackendBaseURL,
		APIKey:  config.BackendAPIKey,
		Timeout: config.BackendTimeout,
	}, logger)
	var sessions services.SessionBackend = c.Backend
	if opts.Sessions != nil {
		sessions = opts.Sessions
	}

	c.EventBus = messaging.NewEventBus(logger)
	c.closers = append(c.closers, c.EventBus.Close)

	c.WizardStateService = services.NewWizardStateService(repo, sessions, c.EventBus, opts.Clock, services.WizardStateConfig{
		Timeout: config.StateTimeout,
		Policy: services.SyncPolicy{
			Debounce:       config.SyncDebounce,
			MinInterval:    config.SyncMinInterval,
			DebounceCap:    config.SyncDebounceCap,
			MinIntervalCap: config.SyncMinIntervalCap,
			BackoffFactor:  config.SyncBackoffFactor,
			MaxRetries:     config.SyncMaxRetries,
		},
		IPHashKey: config.SessionSecret,
	}, logger, c.PerfTracker)

	prices, err := loadPriceTable()
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.PlanService = services.NewPlanService(c.Backend, prices, config.PlanCacheTTL, logger, c.PerfTracker)
	c.WizardFlowService = services.NewWizardFlowService(c.WizardStateService, c.PlanService, services.FlowConfig{
		AwaitSync: config.WizardAwaitSync,
		SyncWait:  config.WizardSyncWait,
	}, logger, c.PerfTracker)

	c.UserService = services.NewUserService(c.Backend)
	c.PaymentService = services.NewPaymentService(c.Backend)
	c.QuotationService = services.NewQuotationService(c.Backend, c.UserService, c.PaymentService, logger, c.PerfTracker)
	c.InvestigationService = services.NewInvestigationService(c.Backend)

	var verifier services.IdentityVerifier
	if config.IdentityPublicKey != "" {
		verifier = identity.NewClient(config.IdentityBaseURL, config.IdentityPublicKey, config.BackendTimeout, logger)
	}
	c.ValidationService = services.NewValidationService(c.Backend, verifier, logger)

	c.DocumentService = services.NewDocumentService(c.WizardStateService, media.NewImageProcessor(media.ProcessorConfig{
		BasePath: config.DocumentDirectory,
		MaxWidth: config.DocumentMaxWidth,
		MaxBytes: config.DocumentMaxBytes,
		Quality:  float32(config.DocumentQuality),
	}), logger, c.PerfTracker)

	mailer, err := email.NewService(config.ResendAPIKey, config.EmailFrom, config.EmailFromName, config.PublicBaseURL, logger)
	if err != nil {
		if !errors.Is(err, email.ErrNotConfigured) {
			_ = c.Close()
			return nil, err
		}
		logger.Startup().Warn("Resume-link email disabled: RESEND_API_KEY not set")
		mailer = nil
	}
	c.ResumeLinkService = services.NewResumeLinkService(c.WizardStateService, mailer, config.PublicBaseURL, logger)

	c.CleanupWorker = cleanup.NewWorker(c.WizardStateService, cleanup.NewConfig(), logger)
	return c, nil
}

// openStateRepository opens the configured local state storage.
func (c *Container) openStateRepository(ctx context.Context) (wizard.StateRepository, error) {
	codec, err := state.NewCodec(config.TokenEncryptionKey)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(config.StateStore) {
	case "memory":
		return state.NewMemoryRepository(codec), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.RedisAddr, err)
		}
		c.closers = append(c.closers, client.Close)
		c.Logger.Database().Info("Wizard state storage ready", "store", "redis", "addr", config.RedisAddr)
		return state.NewRedisRepository(client, codec, config.StateTimeout, c.Logger), nil

	case "sqlite", "libsql", "":
		driver, dsn := config.DBDriver, config.DBDataSource
		if strings.EqualFold(config.StateStore, "libsql") {
			driver = "libsql"
			dsn = database.LibsqlDSN(config.DBDataSource, config.DBAuthToken)
		}
		db, err := database.NewConnectionWithLogger(ctx, driver, dsn, database.PoolConfig{
			MaxOpenConns:    config.DBMaxOpenConns,
			MaxIdleConns:    config.DBMaxIdleConns,
			ConnMaxLifetime: config.DBConnMaxLifetime,
		}, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s state storage: %w", driver, err)
		}
		c.closers = append(c.closers, db.Close)
		if err := schema.NewTableCreator().CreateSchema(ctx, db.DB); err != nil {
			return nil, err
		}
		c.Logger.Database().Info("Wizard state storage ready", "store", driver)
		return state.NewSQLRepository(db, codec, c.Logger), nil
	}
	return nil, fmt.Errorf("unknown STATE_STORE %q", config.StateStore)
}

func loadPriceTable() (*quoting.PriceTable, error) {
	if config.PriceTablePath == "" {
		return quoting.DefaultPriceTable()
	}
	data, err := os.ReadFile(config.PriceTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read price table: %w", err)
	}
	return quoting.ParsePriceTable(data)
}

// Close releases storage connections, the event bus and log files in
// reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
