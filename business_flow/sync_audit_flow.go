package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/dto"
	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	"github.com/amirphl/Orochi-Audience-Sync/models"
	"github.com/amirphl/Orochi-Audience-Sync/repository"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
	"github.com/xuri/excelize/v2"
)

const syncLogSheet = "sync_log"

// SyncAuditFlow serves the admin views over the sync audit log and the review queue
type SyncAuditFlow interface {
	ListSyncLogs(ctx context.Context, req dto.ListSyncLogsRequest) (*dto.ListSyncLogsResponse, error)
	ExportSyncLogs(ctx context.Context, req dto.ListSyncLogsRequest) (string, []byte, error)
	ListReviewQueue(ctx context.Context, limit int64) (*dto.ReviewQueueResponse, error)
}

type SyncAuditFlowImpl struct {
	auditRepo   repository.SyncAuditLogRepository
	reviewQueue services.ReviewQueue
}

// NewSyncAuditFlow creates the admin flow. Either dependency may be nil when its backend is disabled.
func NewSyncAuditFlow(auditRepo repository.SyncAuditLogRepository, reviewQueue services.ReviewQueue) SyncAuditFlow {
	return &SyncAuditFlowImpl{
		auditRepo:   auditRepo,
		reviewQueue: reviewQueue,
	}
}

func (f *SyncAuditFlowImpl) ListSyncLogs(ctx context.Context, req dto.ListSyncLogsRequest) (*dto.ListSyncLogsResponse, error) {
	if f.auditRepo == nil {
		return nil, ErrAuditLogDisabled
	}

	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = utils.DefaultPageSize
	}
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		return nil, ErrInvalidPageSize
	}

	filter, err := buildSyncAuditFilter(req)
	if err != nil {
		return nil, err
	}

	total, err := f.auditRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("COUNT_SYNC_LOGS_FAILED", "Failed to count sync logs", err)
	}
	rows, err := f.auditRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_SYNC_LOGS_FAILED", "Failed to list sync logs", err)
	}

	items := make([]dto.SyncLogItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toSyncLogItem(r))
	}
	return &dto.ListSyncLogsResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ExportSyncLogs renders every matching row, newest first, into a single-sheet workbook
func (f *SyncAuditFlowImpl) ExportSyncLogs(ctx context.Context, req dto.ListSyncLogsRequest) (string, []byte, error) {
	if f.auditRepo == nil {
		return "", nil, ErrAuditLogDisabled
	}

	filter, err := buildSyncAuditFilter(req)
	if err != nil {
		return "", nil, err
	}

	total, err := f.auditRepo.Count(ctx, filter)
	if err != nil {
		return "", nil, NewBusinessError("COUNT_SYNC_LOGS_FAILED", "Failed to count sync logs", err)
	}
	if total > utils.MaxExportRows {
		return "", nil, ErrExportTooLarge
	}

	rows, err := f.auditRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("LIST_SYNC_LOGS_FAILED", "Failed to list sync logs", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	xl.SetSheetName(xl.GetSheetName(0), syncLogSheet)

	header := []string{"id", "correlation_id", "created_at", "advertiser_id", "audience_name", "audience_id", "operation", "identifier_count", "skipped_events", "resolution_path", "outcome", "error_kind", "error_code", "error_message", "request_id", "duration_ms"}
	_ = xl.SetSheetRow(syncLogSheet, "A1", &header)

	for ri, r := range rows {
		skipped := make([]string, 0, len(r.SkippedEvents))
		for _, i := range r.SkippedEvents {
			skipped = append(skipped, strconv.FormatInt(i, 10))
		}
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.CorrelationID.String(),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.AdvertiserID,
			r.AudienceName,
			deref(r.AudienceID),
			r.Operation,
			strconv.Itoa(r.IdentifierCount),
			strings.Join(skipped, ","),
			deref(r.ResolutionPath),
			r.Outcome,
			deref(r.ErrorKind),
			deref(r.ErrorCode),
			deref(r.ErrorMessage),
			deref(r.RequestID),
			strconv.FormatInt(r.DurationMs, 10),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(syncLogSheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("sync_log_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

// ListReviewQueue returns pending review items without their identifiers
func (f *SyncAuditFlowImpl) ListReviewQueue(ctx context.Context, limit int64) (*dto.ReviewQueueResponse, error) {
	if f.reviewQueue == nil {
		return nil, ErrReviewQueueDisabled
	}
	n, _ := utils.ClampPage(int(limit), 0)

	total, err := f.reviewQueue.Len(ctx)
	if err != nil {
		return nil, NewBusinessError("REVIEW_QUEUE_READ_FAILED", "Failed to read review queue", err)
	}
	pending, err := f.reviewQueue.Pending(ctx, int64(n))
	if err != nil {
		return nil, NewBusinessError("REVIEW_QUEUE_READ_FAILED", "Failed to read review queue", err)
	}

	items := make([]dto.ReviewQueueItem, 0, len(pending))
	for _, it := range pending {
		items = append(items, dto.ReviewQueueItem{
			CorrelationID:   it.CorrelationID,
			AdvertiserID:    it.AdvertiserID,
			AudienceName:    it.AudienceName,
			Operation:       it.Operation,
			IdentifierCount: len(it.Identifiers),
			ErrorCode:       it.ErrorCode,
			ErrorMessage:    it.ErrorMessage,
			Field:           it.Field,
			Value:           it.Value,
			FailedAt:        utils.FormatTimestamp(it.FailedAt),
		})
	}
	return &dto.ReviewQueueResponse{Items: items, Total: total}, nil
}

func buildSyncAuditFilter(req dto.ListSyncLogsRequest) (models.SyncAuditLogFilter, error) {
	var filter models.SyncAuditLogFilter
	if v := strings.TrimSpace(req.AdvertiserID); v != "" {
		filter.AdvertiserID = &v
	}
	if v := strings.TrimSpace(req.AudienceName); v != "" {
		filter.AudienceName = &v
	}
	if v := strings.TrimSpace(req.Operation); v != "" {
		filter.Operation = &v
	}
	if v := strings.TrimSpace(req.Outcome); v != "" {
		filter.Outcome = &v
	}
	if v := strings.TrimSpace(req.ErrorKind); v != "" {
		filter.ErrorKind = &v
	}

	if req.CreatedAfter != "" {
		t, err := time.Parse(time.RFC3339, req.CreatedAfter)
		if err != nil {
			return filter, ErrInvalidTimeFilter
		}
		filter.CreatedAfter = &t
	}
	if req.CreatedBefore != "" {
		t, err := time.Parse(time.RFC3339, req.CreatedBefore)
		if err != nil {
			return filter, ErrInvalidTimeFilter
		}
		filter.CreatedBefore = &t
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil && filter.CreatedAfter.After(*filter.CreatedBefore) {
		return filter, ErrStartDateAfterEndDate
	}
	return filter, nil
}

func toSyncLogItem(r *models.SyncAuditLog) dto.SyncLogItem {
	return dto.SyncLogItem{
		ID:              r.ID,
		CorrelationID:   r.CorrelationID.String(),
		AdvertiserID:    r.AdvertiserID,
		AudienceName:    r.AudienceName,
		AudienceID:      r.AudienceID,
		Operation:       r.Operation,
		IdentifierCount: r.IdentifierCount,
		SkippedEvents:   []int64(r.SkippedEvents),
		ResolutionPath:  r.ResolutionPath,
		Outcome:         r.Outcome,
		ErrorKind:       r.ErrorKind,
		ErrorCode:       r.ErrorCode,
		ErrorMessage:    r.ErrorMessage,
		RequestID:       r.RequestID,
		DurationMs:      r.DurationMs,
		CreatedAt:       utils.FormatTimestamp(r.CreatedAt),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
