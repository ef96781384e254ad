package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/models"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestSyncAuditLog inserts one audit row with the given outcome
func (tf *TestFixtures) CreateTestSyncAuditLog(advertiserID, audienceName, outcome string, createdAt time.Time) (*models.SyncAuditLog, error) {
	row := &models.SyncAuditLog{
		CorrelationID:   uuid.New(),
		AdvertiserID:    advertiserID,
		AudienceName:    audienceName,
		Operation:       "add",
		IdentifierCount: 3,
		SkippedEvents:   models.EventIndexes{1},
		Outcome:         outcome,
		DurationMs:      12,
		CreatedAt:       createdAt,
	}

	switch outcome {
	case models.SyncOutcomeSucceeded:
		row.AudienceID = utils.ToPtr("5678")
		row.ResolutionPath = utils.ToPtr("found")
	case models.SyncOutcomeFailed:
		row.ErrorKind = utils.ToPtr("permanent")
		row.ErrorCode = utils.ToPtr("CONTACTLIST_PATCH_REJECTED")
		row.ErrorMessage = utils.ToPtr("contactlist patch http status: 404")
	}

	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create sync audit log: %w", err)
	}
	return row, nil
}
