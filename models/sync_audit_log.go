// Package models contains the persisted entities of the audience sync service
package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// SyncAuditLog records the outcome of one sync call. It never carries identifiers
// and is never read when resolving audiences.
type SyncAuditLog struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	CorrelationID   uuid.UUID    `gorm:"size:36;not null;uniqueIndex:idx_sync_audit_correlation_id" json:"correlation_id"`
	AdvertiserID    string       `gorm:"size:64;not null;index:idx_sync_audit_advertiser_id" json:"advertiser_id"`
	AudienceName    string       `gorm:"size:255;index:idx_sync_audit_audience_name" json:"audience_name"`
	AudienceID      *string      `gorm:"size:64" json:"audience_id,omitempty"`
	Operation       string       `gorm:"size:16;not null" json:"operation"`
	IdentifierCount int          `gorm:"not null;default:0" json:"identifier_count"`
	SkippedEvents   EventIndexes `json:"skipped_events,omitempty"`
	ResolutionPath  *string      `gorm:"size:32" json:"resolution_path,omitempty"`
	Outcome         string       `gorm:"size:16;not null;index:idx_sync_audit_outcome" json:"outcome"`
	ErrorKind       *string      `gorm:"size:16" json:"error_kind,omitempty"`
	ErrorCode       *string      `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage    *string      `gorm:"type:text" json:"error_message,omitempty"`
	RequestID       *string      `gorm:"size:255;index:idx_sync_audit_request_id" json:"request_id,omitempty"`
	DurationMs      int64        `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt       time.Time    `gorm:"default:CURRENT_TIMESTAMP;index:idx_sync_audit_created_at" json:"created_at"`
}

func (SyncAuditLog) TableName() string {
	return "sync_audit_log"
}

// Sync outcome constants
const (
	SyncOutcomeSucceeded = "succeeded"
	SyncOutcomeNoop      = "noop"
	SyncOutcomeFailed    = "failed"
)

// SyncAuditLogFilter represents filter criteria for sync audit queries
type SyncAuditLogFilter struct {
	ID            *uint
	AdvertiserID  *string
	AudienceName  *string
	Operation     *string
	Outcome       *string
	ErrorKind     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (s *SyncAuditLog) IsFailed() bool {
	return s.Outcome == SyncOutcomeFailed
}

// EventIndexes holds positions of events skipped within a batch.
// Stored as bigint[] on postgres and as an array literal elsewhere.
type EventIndexes []int64

func (e EventIndexes) Value() (driver.Value, error) {
	return pq.Int64Array(e).Value()
}

func (e *EventIndexes) Scan(src any) error {
	return (*pq.Int64Array)(e).Scan(src)
}

func (EventIndexes) GormDataType() string {
	return "bigint[]"
}

func (EventIndexes) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "bigint[]"
	}
	return "text"
}
