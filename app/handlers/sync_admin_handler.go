package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/dto"
	businessflow "github.com/amirphl/Orochi-Audience-Sync/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SyncAdminHandlerInterface defines admin endpoints over the sync audit log and the review queue
type SyncAdminHandlerInterface interface {
	ListSyncLogs(c fiber.Ctx) error
	ExportSyncLogs(c fiber.Ctx) error
	ListReviewQueue(c fiber.Ctx) error
}

type SyncAdminHandler struct {
	auditFlow businessflow.SyncAuditFlow
	validator *validator.Validate
}

func NewSyncAdminHandler(auditFlow businessflow.SyncAuditFlow) SyncAdminHandlerInterface {
	return &SyncAdminHandler{
		auditFlow: auditFlow,
		validator: validator.New(),
	}
}

// ListSyncLogs returns a page of the sync audit log, newest first
func (h *SyncAdminHandler) ListSyncLogs(c fiber.Ctx) error {
	req, code, details, err := h.bindFilter(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error(), code, details)
	}

	ctx, cancel := requestContext(c, 30*time.Second)
	defer cancel()

	resp, err := h.auditFlow.ListSyncLogs(ctx, req)
	if err != nil {
		return h.flowErrorResponse(c, err, "LIST_SYNC_LOGS_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Sync logs retrieved", resp)
}

// ExportSyncLogs downloads the matching audit rows as an Excel workbook
func (h *SyncAdminHandler) ExportSyncLogs(c fiber.Ctx) error {
	req, code, details, err := h.bindFilter(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error(), code, details)
	}

	ctx, cancel := requestContext(c, 60*time.Second)
	defer cancel()

	filename, data, err := h.auditFlow.ExportSyncLogs(ctx, req)
	if err != nil {
		return h.flowErrorResponse(c, err, "DOWNLOAD_FAILED")
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// ListReviewQueue returns permanently failed batches awaiting an operator
func (h *SyncAdminHandler) ListReviewQueue(c fiber.Ctx) error {
	limit := int64(0)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			return errorResponse(c, fiber.StatusBadRequest, "limit must be a positive integer", "VALIDATION_ERROR", nil)
		}
		limit = n
	}

	ctx, cancel := requestContext(c, 30*time.Second)
	defer cancel()

	resp, err := h.auditFlow.ListReviewQueue(ctx, limit)
	if err != nil {
		return h.flowErrorResponse(c, err, "REVIEW_QUEUE_READ_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Review queue retrieved", resp)
}

func (h *SyncAdminHandler) bindFilter(c fiber.Ctx) (dto.ListSyncLogsRequest, string, any, error) {
	var req dto.ListSyncLogsRequest
	if err := c.Bind().Query(&req); err != nil {
		return req, "INVALID_REQUEST", err.Error(), errors.New("Invalid query parameters")
	}
	if err := h.validator.Struct(&req); err != nil {
		return req, "VALIDATION_ERROR", validationMessages(err), errors.New("Validation failed")
	}
	return req, "", nil, nil
}

func (h *SyncAdminHandler) flowErrorResponse(c fiber.Ctx, err error, fallbackCode string) error {
	switch {
	case businessflow.IsInvalidPage(err), businessflow.IsInvalidPageSize(err),
		businessflow.IsInvalidTimeFilter(err), businessflow.IsStartDateAfterEndDate(err):
		return errorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	case businessflow.IsExportTooLarge(err):
		return errorResponse(c, fiber.StatusRequestEntityTooLarge, err.Error(), "EXPORT_TOO_LARGE", nil)
	case businessflow.IsAuditLogDisabled(err), businessflow.IsReviewQueueDisabled(err):
		return errorResponse(c, fiber.StatusServiceUnavailable, err.Error(), "FEATURE_DISABLED", nil)
	}

	log.Printf("admin: sync log request failed: %v", err)
	return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", fallbackCode, nil)
}
