package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/amqp"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/services"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/storage"
)

// amqpConnectTimeout bounds how long startup waits for the broker.
const amqpConnectTimeout = 15 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.openRepository(ctx, config)
	if err != nil {
		return nil, err
	}

	publisher := f.openPublisher(ctx, config)
	service := services.NewExpenseService(repo, publisher,
		services.WithLogger(f.logger.WithComponent(applog.ComponentExpense)))

	f.logger.Info("Initialized expense backend",
		"backend", config.Type.String(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Service: service,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) openRepository(ctx context.Context, config Config) (storage.Repository, error) {
	switch config.Type {
	case MemoryBackend:
		return storage.NewMemoryRepository(), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite storage", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Opened Postgres storage")
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// openPublisher connects to the broker when configured. A broker that cannot
// be reached disables event publishing instead of failing startup.
func (f *DefaultFactory) openPublisher(ctx context.Context, config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, amqpConnectTimeout)
	defer cancel()

	publisher, err := amqp.NewPublisher(connectCtx, config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey,
		f.logger.WithComponent(applog.ComponentAMQP))
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP publisher, continuing without events", applog.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP publisher",
		"exchange", config.AMQPExchange,
		"routing_key", config.AMQPRoutingKey)
	return publisher
}
