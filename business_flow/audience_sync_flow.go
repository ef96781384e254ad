package businessflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	"github.com/amirphl/Orochi-Audience-Sync/config"
	"github.com/amirphl/Orochi-Audience-Sync/models"
	"github.com/amirphl/Orochi-Audience-Sync/repository"
	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
	"github.com/google/uuid"
)

const auditWriteTimeout = 5 * time.Second

// UserEvent is one event of a batch. Events of a batch share one audience name.
type UserEvent struct {
	AudienceName  string
	Identifier    string
	HashRequested bool
}

// SyncResult describes a processed batch. It is returned alongside errors too,
// carrying whatever was known when the call failed.
type SyncResult struct {
	CorrelationID   uuid.UUID
	AdvertiserID    string
	AudienceName    string
	AudienceID      string
	Operation       services.OperationKind
	Identifiers     []string
	IdentifierCount int
	SkippedEvents   []int
	ResolutionPath  services.ResolutionPath
	Amendment       *services.AmendmentResult
	NoOp            bool
}

// AudienceSyncFlow is the entry point used by the batching pipeline
type AudienceSyncFlow interface {
	Sync(ctx context.Context, advertiserID string, events []UserEvent) (*SyncResult, error)
	SyncOperation(ctx context.Context, advertiserID string, kind services.OperationKind, events []UserEvent) (*SyncResult, error)
}

// AudienceSyncFlowImpl resolves the batch's audience and applies one amendment.
// Audit and review queue writes never change the returned outcome.
type AudienceSyncFlowImpl struct {
	platformCfg config.PlatformConfig
	credentials services.CredentialCache
	hasher      services.IdentifierHasher
	resolver    AudienceResolver
	patcher     services.MembershipPatcher
	auditRepo   repository.SyncAuditLogRepository
	reviewQueue services.ReviewQueue
}

// NewAudienceSyncFlow wires the sync flow. auditRepo may be nil; a nil reviewQueue drops items.
func NewAudienceSyncFlow(
	platformCfg config.PlatformConfig,
	credentials services.CredentialCache,
	hasher services.IdentifierHasher,
	resolver AudienceResolver,
	patcher services.MembershipPatcher,
	auditRepo repository.SyncAuditLogRepository,
	reviewQueue services.ReviewQueue,
) AudienceSyncFlow {
	if reviewQueue == nil {
		reviewQueue = services.NoopReviewQueue{}
	}
	return &AudienceSyncFlowImpl{
		platformCfg: platformCfg,
		credentials: credentials,
		hasher:      hasher,
		resolver:    resolver,
		patcher:     patcher,
		auditRepo:   auditRepo,
		reviewQueue: reviewQueue,
	}
}

func (f *AudienceSyncFlowImpl) Sync(ctx context.Context, advertiserID string, events []UserEvent) (*SyncResult, error) {
	return f.SyncOperation(ctx, advertiserID, services.OperationAdd, events)
}

func (f *AudienceSyncFlowImpl) SyncOperation(ctx context.Context, advertiserID string, kind services.OperationKind, events []UserEvent) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{
		CorrelationID: uuid.New(),
		AdvertiserID:  advertiserID,
		Operation:     kind,
	}

	err := f.run(ctx, result, events)
	f.record(ctx, result, err, start)
	return result, err
}

func (f *AudienceSyncFlowImpl) run(ctx context.Context, result *SyncResult, events []UserEvent) error {
	if !result.Operation.Valid() {
		return syncerror.InvalidField(syncerror.CodeInvalidOperation, "operation", string(result.Operation), "must be add or remove")
	}

	result.Identifiers, result.SkippedEvents = f.prepareIdentifiers(events)
	result.IdentifierCount = len(result.Identifiers)
	result.AudienceName = audienceNameOf(events)

	// An empty amendment has no effect on the platform
	if result.IdentifierCount == 0 {
		result.NoOp = true
		return nil
	}

	if result.AudienceName == "" {
		return syncerror.InvalidField(syncerror.CodeAudienceNameRequired, "audienceName", "", "must be carried by at least one event")
	}
	if err := services.ValidateAdvertiserID(result.AdvertiserID); err != nil {
		return err
	}

	creds, err := f.credentials.Authenticate(ctx, services.Credentials{
		ClientID:     f.platformCfg.ClientID,
		ClientSecret: f.platformCfg.ClientSecret,
	})
	if err != nil {
		return err
	}

	resolution, err := f.resolver.Resolve(ctx, creds, result.AdvertiserID, result.AudienceName)
	if err != nil {
		return err
	}
	result.AudienceID = resolution.AudienceID
	result.ResolutionPath = resolution.Path

	op := services.NewMembershipOperation(result.Operation, resolution.AudienceID, result.Identifiers)
	amendment, err := f.patcher.Apply(ctx, creds, op)
	if err != nil {
		return err
	}
	result.Amendment = amendment
	return nil
}

// prepareIdentifiers hashes on request and skips events without an identifier
func (f *AudienceSyncFlowImpl) prepareIdentifiers(events []UserEvent) ([]string, []int) {
	identifiers := make([]string, 0, len(events))
	var skipped []int
	for i, e := range events {
		if strings.TrimSpace(e.Identifier) == "" {
			skipped = append(skipped, i)
			continue
		}
		identifiers = append(identifiers, f.hasher.Prepare(e.Identifier, e.HashRequested))
	}
	return identifiers, skipped
}

func audienceNameOf(events []UserEvent) string {
	for _, e := range events {
		if e.AudienceName != "" {
			return e.AudienceName
		}
	}
	return ""
}

func (f *AudienceSyncFlowImpl) record(ctx context.Context, result *SyncResult, err error, start time.Time) {
	operation := string(result.Operation)
	audienceSyncDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	outcome := outcomeSucceeded
	switch {
	case err != nil && syncerror.IsPermanent(err):
		outcome = outcomePermanent
	case err != nil:
		outcome = outcomeRetryable
	case result.NoOp:
		outcome = outcomeNoop
	}
	audienceSyncsTotal.WithLabelValues(operation, outcome).Inc()

	switch outcome {
	case outcomeSucceeded:
		audienceSyncIdentifiersTotal.WithLabelValues(operation).Add(float64(result.IdentifierCount))
		log.Printf("audience-sync: %s applied %s of %d identifiers to audience %s (%s) advertiser=%s path=%s",
			result.CorrelationID, operation, result.IdentifierCount, result.AudienceID, result.AudienceName, result.AdvertiserID, result.ResolutionPath)
	case outcomeNoop:
		log.Printf("audience-sync: %s no usable identifiers in %d events, skipped advertiser=%s",
			result.CorrelationID, len(result.SkippedEvents), result.AdvertiserID)
	default:
		log.Printf("audience-sync: %s %s failure advertiser=%s audience=%q code=%s: %v",
			result.CorrelationID, outcome, result.AdvertiserID, result.AudienceName, syncerror.CodeOf(err), err)
	}

	// Side effects outlive a cancelled request
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if outcome == outcomePermanent {
		f.enqueueForReview(sideCtx, result, err)
	}
	f.writeAudit(sideCtx, ClientMetadataFrom(ctx), result, outcome, err, utils.MillisSince(start))
}

func (f *AudienceSyncFlowImpl) enqueueForReview(ctx context.Context, result *SyncResult, err error) {
	item := services.ReviewItem{
		CorrelationID: result.CorrelationID.String(),
		AdvertiserID:  result.AdvertiserID,
		AudienceName:  result.AudienceName,
		Operation:     string(result.Operation),
		Identifiers:   result.Identifiers,
		ErrorCode:     syncerror.CodeOf(err),
		ErrorMessage:  err.Error(),
		FailedAt:      utils.UTCNow(),
	}
	if se, ok := syncerror.As(err); ok {
		item.Field = se.Field
		item.Value = se.Value
	}
	if qerr := f.reviewQueue.Enqueue(ctx, item); qerr != nil {
		log.Printf("audience-sync: %s failed to enqueue for review: %v", result.CorrelationID, qerr)
	}
}

func (f *AudienceSyncFlowImpl) writeAudit(ctx context.Context, md *ClientMetadata, result *SyncResult, outcome string, err error, durationMs int64) {
	if f.auditRepo == nil {
		return
	}

	row := &models.SyncAuditLog{
		CorrelationID:   result.CorrelationID,
		AdvertiserID:    result.AdvertiserID,
		AudienceName:    result.AudienceName,
		Operation:       string(result.Operation),
		IdentifierCount: result.IdentifierCount,
		Outcome:         models.SyncOutcomeSucceeded,
		DurationMs:      durationMs,
	}
	for _, i := range result.SkippedEvents {
		row.SkippedEvents = append(row.SkippedEvents, int64(i))
	}
	if result.AudienceID != "" {
		row.AudienceID = utils.ToPtr(result.AudienceID)
	}
	if result.ResolutionPath != "" {
		row.ResolutionPath = utils.ToPtr(string(result.ResolutionPath))
	}
	if md != nil && md.RequestID != "" {
		row.RequestID = utils.ToPtr(md.RequestID)
	}

	switch outcome {
	case outcomeNoop:
		row.Outcome = models.SyncOutcomeNoop
	case outcomeRetryable, outcomePermanent:
		row.Outcome = models.SyncOutcomeFailed
		row.ErrorKind = utils.ToPtr(outcome)
		row.ErrorMessage = utils.ToPtr(err.Error())
		if code := syncerror.CodeOf(err); code != "" {
			row.ErrorCode = utils.ToPtr(code)
		}
	}

	if serr := f.auditRepo.Save(ctx, row); serr != nil {
		log.Printf("audience-sync: %s failed to write audit row: %v", result.CorrelationID, serr)
	}
}
