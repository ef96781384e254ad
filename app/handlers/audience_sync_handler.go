package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/dto"
	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	businessflow "github.com/amirphl/Orochi-Audience-Sync/business_flow"
	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AudienceSyncHandlerInterface defines the producer-facing sync endpoint
type AudienceSyncHandlerInterface interface {
	Sync(c fiber.Ctx) error
}

type AudienceSyncHandler struct {
	syncFlow   businessflow.AudienceSyncFlow
	validator  *validator.Validate
	timeout    time.Duration
	retryAfter time.Duration
}

func NewAudienceSyncHandler(syncFlow businessflow.AudienceSyncFlow, timeout, retryAfter time.Duration) AudienceSyncHandlerInterface {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if retryAfter <= 0 {
		retryAfter = utils.DefaultRetryAfter
	}
	return &AudienceSyncHandler{
		syncFlow:   syncFlow,
		validator:  validator.New(),
		timeout:    timeout,
		retryAfter: retryAfter,
	}
}

// Sync applies one homogeneous batch of user events to the audience they name.
// Permanent failures answer 422 and must not be redelivered; retryable ones answer 503.
func (h *AudienceSyncHandler) Sync(c fiber.Ctx) error {
	advertiserID := c.Params("advertiserId")

	var req dto.AudienceSyncRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	kind, err := services.ParseOperationKind(req.Operation)
	if err != nil {
		return h.syncErrorResponse(c, nil, err)
	}

	events := make([]businessflow.UserEvent, 0, len(req.Events))
	for _, e := range req.Events {
		events = append(events, businessflow.UserEvent{
			AudienceName:  e.AudienceName,
			Identifier:    e.Identifier,
			HashRequested: e.HashRequested,
		})
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.syncFlow.SyncOperation(ctx, advertiserID, kind, events)
	if err != nil {
		return h.syncErrorResponse(c, result, err)
	}

	message := "Audience synchronized"
	if result.NoOp {
		message = "No usable identifiers, nothing to synchronize"
	}
	return successResponse(c, fiber.StatusOK, message, toSyncResponse(result))
}

func (h *AudienceSyncHandler) syncErrorResponse(c fiber.Ctx, result *businessflow.SyncResult, err error) error {
	details := dto.SyncErrorDetails{Kind: syncerror.KindOf(err).String()}
	if se, ok := syncerror.As(err); ok {
		details.Field = se.Field
		details.Value = se.Value
	}
	if result != nil {
		details.CorrelationID = result.CorrelationID.String()
	}

	code := syncerror.CodeOf(err)
	if syncerror.IsPermanent(err) {
		return errorResponse(c, fiber.StatusUnprocessableEntity, err.Error(), code, details)
	}

	if code == "" {
		code = syncerror.CodePlatformUnreachable
	}
	seconds := int(h.retryAfter / time.Second)
	details.RetryAfter = seconds
	log.Printf("audience-sync: retryable failure answered with 503: %v", err)
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
	return errorResponse(c, fiber.StatusServiceUnavailable, "Audience sync temporarily failed, retry later", code, details)
}

func toSyncResponse(r *businessflow.SyncResult) dto.AudienceSyncResponse {
	resp := dto.AudienceSyncResponse{
		CorrelationID:   r.CorrelationID.String(),
		AdvertiserID:    r.AdvertiserID,
		AudienceName:    r.AudienceName,
		AudienceID:      r.AudienceID,
		Operation:       string(r.Operation),
		IdentifierCount: r.IdentifierCount,
		SkippedEvents:   r.SkippedEvents,
		ResolutionPath:  string(r.ResolutionPath),
		NoOp:            r.NoOp,
	}
	if a := r.Amendment; a != nil {
		resp.Amendment = &dto.AmendmentResponse{
			Operation:          a.Operation,
			RequestDate:        a.RequestDate,
			IdentifierType:     a.IdentifierType,
			ValidIdentifiers:   a.ValidIdentifiers,
			InvalidIdentifiers: a.InvalidIdentifiers,
			SampleInvalid:      a.SampleInvalid,
		}
	}
	return resp
}
