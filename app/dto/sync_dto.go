package dto

// SyncEventRequest is one user event of a batch
type SyncEventRequest struct {
	AudienceName  string `json:"audience_name" validate:"omitempty,max=255"`
	Identifier    string `json:"identifier" validate:"max=512"`
	HashRequested bool   `json:"hash_requested"`
}

// AudienceSyncRequest is a homogeneous batch sharing one audience name
type AudienceSyncRequest struct {
	Operation string             `json:"operation" validate:"omitempty,oneof=add remove"`
	Events    []SyncEventRequest `json:"events" validate:"required,min=1,max=50000,dive"`
}

// AmendmentResponse mirrors the platform's account of the applied amendment
type AmendmentResponse struct {
	Operation          string   `json:"operation"`
	RequestDate        string   `json:"request_date,omitempty"`
	IdentifierType     string   `json:"identifier_type"`
	ValidIdentifiers   int      `json:"valid_identifiers"`
	InvalidIdentifiers int      `json:"invalid_identifiers"`
	SampleInvalid      []string `json:"sample_invalid_identifiers,omitempty"`
}

// AudienceSyncResponse is returned for a processed batch
type AudienceSyncResponse struct {
	CorrelationID   string             `json:"correlation_id"`
	AdvertiserID    string             `json:"advertiser_id"`
	AudienceName    string             `json:"audience_name,omitempty"`
	AudienceID      string             `json:"audience_id,omitempty"`
	Operation       string             `json:"operation"`
	IdentifierCount int                `json:"identifier_count"`
	SkippedEvents   []int              `json:"skipped_events,omitempty"`
	ResolutionPath  string             `json:"resolution_path,omitempty"`
	NoOp            bool               `json:"no_op"`
	Amendment       *AmendmentResponse `json:"amendment,omitempty"`
}

// SyncErrorDetails accompanies a failed sync so producers can apply their retry policy
type SyncErrorDetails struct {
	Kind          string `json:"kind"`
	Field         string `json:"field,omitempty"`
	Value         string `json:"value,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	RetryAfter    int    `json:"retry_after_seconds,omitempty"`
}
