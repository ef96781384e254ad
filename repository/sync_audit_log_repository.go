package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Orochi-Audience-Sync/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncAuditLogRepositoryImpl implements SyncAuditLogRepository interface
type SyncAuditLogRepositoryImpl struct {
	*BaseRepository[models.SyncAuditLog, models.SyncAuditLogFilter]
}

// NewSyncAuditLogRepository creates a new sync audit log repository
func NewSyncAuditLogRepository(db *gorm.DB) SyncAuditLogRepository {
	return &SyncAuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SyncAuditLog, models.SyncAuditLogFilter](db),
	}
}

// ByCorrelationID retrieves the row written for one sync call
func (r *SyncAuditLogRepositoryImpl) ByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*models.SyncAuditLog, error) {
	row, err := r.first(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("correlation_id = ?", correlationID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find sync audit log by correlation id: %w", err)
	}
	return row, nil
}

// ListByAdvertiser retrieves sync audit rows of an advertiser with pagination
func (r *SyncAuditLogRepositoryImpl) ListByAdvertiser(ctx context.Context, advertiserID string, limit, offset int) ([]*models.SyncAuditLog, error) {
	rows, err := r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("advertiser_id = ?", advertiserID)
	}, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync audit logs by advertiser: %w", err)
	}
	return rows, nil
}

// ListFailed retrieves failed sync calls with pagination
func (r *SyncAuditLogRepositoryImpl) ListFailed(ctx context.Context, limit, offset int) ([]*models.SyncAuditLog, error) {
	rows, err := r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("outcome = ?", models.SyncOutcomeFailed)
	}, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed sync audit logs: %w", err)
	}
	return rows, nil
}

// ByFilter retrieves sync audit rows based on filter criteria
func (r *SyncAuditLogRepositoryImpl) ByFilter(ctx context.Context, filter models.SyncAuditLogFilter, orderBy string, limit, offset int) ([]*models.SyncAuditLog, error) {
	rows, err := r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return applySyncAuditFilter(db, filter)
	}, orderBy, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find sync audit logs by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of sync audit rows matching the filter
func (r *SyncAuditLogRepositoryImpl) Count(ctx context.Context, filter models.SyncAuditLogFilter) (int64, error) {
	n, err := r.count(ctx, func(db *gorm.DB) *gorm.DB {
		return applySyncAuditFilter(db, filter)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count sync audit logs: %w", err)
	}
	return n, nil
}

// Exists checks if any sync audit row matching the filter exists
func (r *SyncAuditLogRepositoryImpl) Exists(ctx context.Context, filter models.SyncAuditLogFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func applySyncAuditFilter(db *gorm.DB, filter models.SyncAuditLogFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.AdvertiserID != nil {
		db = db.Where("advertiser_id = ?", *filter.AdvertiserID)
	}
	if filter.AudienceName != nil {
		db = db.Where("audience_name = ?", *filter.AudienceName)
	}
	if filter.Operation != nil {
		db = db.Where("operation = ?", *filter.Operation)
	}
	if filter.Outcome != nil {
		db = db.Where("outcome = ?", *filter.Outcome)
	}
	if filter.ErrorKind != nil {
		db = db.Where("error_kind = ?", *filter.ErrorKind)
	}
	if filter.RequestID != nil {
		db = db.Where("request_id = ?", *filter.RequestID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
