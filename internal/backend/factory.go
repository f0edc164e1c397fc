package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finapi/internal/amqp"
	"finapi/internal/core"
	"finapi/internal/services"
	"finapi/internal/store"
	"finapi/internal/store/dynamo"
	"finapi/internal/store/memory"
	"finapi/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend builds the store named by config, attaches the optional AMQP
// notifier and wires both into a TransactionService.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, ready, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	notifier := f.createNotifier(config)

	svc := services.NewTransactionService(st, notifier, services.Options{
		Owner:             core.AnonymousOwner,
		SortKeyTiebreaker: config.SortKeyTiebreaker,
	})

	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", notifier != nil,
		"sort_key_tiebreaker", config.SortKeyTiebreaker)

	return &BackendResult{
		Store:   st,
		Service: svc,
		Ready:   ready,
		Cleanup: svc.Close,
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (store.Store, ReadyFunc, error) {
	switch config.Type {
	case DynamoDBBackend:
		client, err := dynamo.NewFromConfig(ctx, dynamo.Options{
			Table:    config.TableName,
			Region:   config.AWSRegion,
			Endpoint: config.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize DynamoDB store: %w", err)
		}
		f.logger.Info("Initialized DynamoDB store",
			"table", config.TableName,
			"region", config.AWSRegion,
			"endpoint", config.DynamoDBEndpoint)
		return client, nil, nil

	case SQLiteBackend:
		repo, err := sqlite.NewRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, repo.Ping, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory store")
		return memory.New(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createNotifier returns nil when publishing is off or the broker is
// unreachable. Recording never depends on the broker.
func (f *DefaultFactory) createNotifier(config Config) services.Notifier {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
