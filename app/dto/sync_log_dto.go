package dto

// ListSyncLogsRequest filters the sync audit log
type ListSyncLogsRequest struct {
	AdvertiserID  string `query:"advertiser_id" validate:"omitempty,numeric"`
	AudienceName  string `query:"audience_name" validate:"omitempty,max=255"`
	Operation     string `query:"operation" validate:"omitempty,oneof=add remove"`
	Outcome       string `query:"outcome" validate:"omitempty,oneof=succeeded noop failed"`
	ErrorKind     string `query:"error_kind" validate:"omitempty,oneof=retryable permanent"`
	CreatedAfter  string `query:"created_after" validate:"omitempty"`
	CreatedBefore string `query:"created_before" validate:"omitempty"`
	Page          int    `query:"page" validate:"omitempty,gte=1"`
	PageSize      int    `query:"page_size" validate:"omitempty,gte=1,lte=500"`
}

// SyncLogItem is one row of the sync audit log
type SyncLogItem struct {
	ID              uint    `json:"id"`
	CorrelationID   string  `json:"correlation_id"`
	AdvertiserID    string  `json:"advertiser_id"`
	AudienceName    string  `json:"audience_name"`
	AudienceID      *string `json:"audience_id,omitempty"`
	Operation       string  `json:"operation"`
	IdentifierCount int     `json:"identifier_count"`
	SkippedEvents   []int64 `json:"skipped_events,omitempty"`
	ResolutionPath  *string `json:"resolution_path,omitempty"`
	Outcome         string  `json:"outcome"`
	ErrorKind       *string `json:"error_kind,omitempty"`
	ErrorCode       *string `json:"error_code,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	RequestID       *string `json:"request_id,omitempty"`
	DurationMs      int64   `json:"duration_ms"`
	CreatedAt       string  `json:"created_at"`
}

// ListSyncLogsResponse is a page of the sync audit log
type ListSyncLogsResponse struct {
	Items    []SyncLogItem `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ReviewQueueItem is a permanently failed batch awaiting an operator
type ReviewQueueItem struct {
	CorrelationID   string `json:"correlation_id"`
	AdvertiserID    string `json:"advertiser_id"`
	AudienceName    string `json:"audience_name"`
	Operation       string `json:"operation"`
	IdentifierCount int    `json:"identifier_count"`
	ErrorCode       string `json:"error_code"`
	ErrorMessage    string `json:"error_message"`
	Field           string `json:"field,omitempty"`
	Value           string `json:"value,omitempty"`
	FailedAt        string `json:"failed_at"`
}

// ReviewQueueResponse lists pending review items, newest first
type ReviewQueueResponse struct {
	Items []ReviewQueueItem `json:"items"`
	Total int64             `json:"total"`
}
