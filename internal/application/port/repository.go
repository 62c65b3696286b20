package port

import (
	"context"

	"github.com/garyjia/record-pipeline/internal/domain/entity"
)

// RecordService defines the record operations the platform exposes to extensions
type RecordService interface {
	Retrieve(ctx context.Context, logicalName, id string, columns entity.ColumnSet) (*entity.Record, error)
	RetrieveMultiple(ctx context.Context, query *entity.Query) (*entity.RecordSet, error)
	Create(ctx context.Context, record *entity.Record) (string, error)
	Update(ctx context.Context, record *entity.Record) error
}

// Session is a record service bound to one scoped platform resource.
// Close releases the resource; it is called exactly once per session.
type Session interface {
	RecordService
	Close() error
}

// ServiceFactory hands out record services acting on behalf of a principal
type ServiceFactory interface {
	CreateRecordService(userID string) RecordService
	OpenSession(ctx context.Context, userID string) (Session, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
