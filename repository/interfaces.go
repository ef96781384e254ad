// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/Orochi-Audience-Sync/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SyncAuditLogRepository defines operations for sync audit rows
type SyncAuditLogRepository interface {
	Repository[models.SyncAuditLog, models.SyncAuditLogFilter]
	ByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*models.SyncAuditLog, error)
	ListByAdvertiser(ctx context.Context, advertiserID string, limit, offset int) ([]*models.SyncAuditLog, error)
	ListFailed(ctx context.Context, limit, offset int) ([]*models.SyncAuditLog, error)
}
