package backend

import (
	"context"

	"finapi/internal/services"
	"finapi/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ReadyFunc reports whether the store can serve requests.
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the wired service and what the caller needs to
// probe and release it.
type BackendResult struct {
	Store   store.Store
	Service *services.TransactionService
	// Ready is nil when the backend has nothing to probe.
	Ready   ReadyFunc
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// DynamoDB specific
	TableName        string
	AWSRegion        string
	DynamoDBEndpoint string

	// SQLite specific
	SQLiteDBPath string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	SortKeyTiebreaker bool
}

// BackendType represents the type of backend
type BackendType string

const (
	DynamoDBBackend BackendType = "dynamodb"
	SQLiteBackend   BackendType = "sqlite"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case DynamoDBBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
