package utils

import (
	"time"
)

// Platform constants
const (
	// IdentifierTypeEmail is the only identifier type the contact list endpoint accepts from us
	IdentifierTypeEmail = "email"

	// EntityTypeAudience and EntityTypeContactlistAmendment are the JSON:API resource types
	EntityTypeAudience             = "Audience"
	EntityTypeContactlistAmendment = "ContactlistAmendment"

	// PlatformErrorDuplicateName is returned by the create endpoint when the name is already taken
	PlatformErrorDuplicateName = "invalid-audience-name-duplicated"

	// MaxPlatformResponseBytes bounds how much of a platform response body is read
	MaxPlatformResponseBytes = 1 << 20
)

// Sync batch limits
const (
	MaxEventsPerBatch = 50000

	// DefaultRetryAfter is advertised to producers when a sync fails retryably
	DefaultRetryAfter = 30 * time.Second
)

// Admin listing limits
const (
	DefaultPageSize = 50
	MaxPageSize     = 500

	// MaxExportRows caps the audit export size
	MaxExportRows = 100000
)

// Access token roles
const (
	RoleProducer = "producer"
	RoleAdmin    = "admin"
)
