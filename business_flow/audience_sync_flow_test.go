package businessflow

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	"github.com/amirphl/Orochi-Audience-Sync/config"
	"github.com/amirphl/Orochi-Audience-Sync/models"
	"github.com/amirphl/Orochi-Audience-Sync/repository"
	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	testutil "github.com/amirphl/Orochi-Audience-Sync/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryReviewQueue keeps review items in process for assertions
type memoryReviewQueue struct {
	mu    sync.Mutex
	items []services.ReviewItem
}

func (q *memoryReviewQueue) Enqueue(ctx context.Context, item services.ReviewItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]services.ReviewItem{item}, q.items...)
	return nil
}

func (q *memoryReviewQueue) Pending(ctx context.Context, limit int64) ([]services.ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := int64(len(q.items))
	if limit < n {
		n = limit
	}
	out := make([]services.ReviewItem, n)
	copy(out, q.items[:n])
	return out, nil
}

func (q *memoryReviewQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

type testStack struct {
	fake        *testutil.FakePlatform
	cfg         config.PlatformConfig
	credentials services.CredentialCache
	resolver    *AudienceResolverImpl
	patcher     *services.PlatformMembershipPatcher
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	fake := testutil.NewFakePlatform()
	t.Cleanup(fake.Close)

	cfg := config.PlatformConfig{
		BaseURL:      fake.URL(),
		APIVersion:   testutil.FakeAPIVersion,
		TokenURL:     fake.TokenURL(),
		ClientID:     "client",
		ClientSecret: "secret",
		Timeout:      5 * time.Second,
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	credentials := services.NewOAuth2CredentialCache(cfg.TokenURL, httpClient)
	client := services.NewPlatformClient(cfg, httpClient, credentials)
	catalog := services.NewAudienceCatalog(client)

	return &testStack{
		fake:        fake,
		cfg:         cfg,
		credentials: credentials,
		resolver:    NewAudienceResolver(catalog, services.NewAudienceProvisioner(client, catalog)),
		patcher:     services.NewMembershipPatcher(client),
	}
}

func (s *testStack) flow(repo repository.SyncAuditLogRepository, queue services.ReviewQueue) AudienceSyncFlow {
	return NewAudienceSyncFlow(s.cfg, s.credentials, services.NewIdentifierHasher(), s.resolver, s.patcher, repo, queue)
}

func newAuditRepo(t *testing.T) repository.SyncAuditLogRepository {
	t.Helper()
	db, err := testutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.TeardownTestDB() })
	return repository.NewSyncAuditLogRepository(db.DB)
}

func weeklyActives(identifiers ...string) []UserEvent {
	events := make([]UserEvent, 0, len(identifiers))
	for _, id := range identifiers {
		events = append(events, UserEvent{AudienceName: "weekly_actives", Identifier: id})
	}
	return events
}

func TestAudienceSyncFlow_CreatesAudienceAndPatches(t *testing.T) {
	stack := newTestStack(t)
	repo := newAuditRepo(t)
	flow := stack.flow(repo, &memoryReviewQueue{})

	result, err := flow.Sync(context.Background(), "12345", weeklyActives("test@example.com"))
	require.NoError(t, err)

	assert.Equal(t, "5678", result.AudienceID)
	assert.Equal(t, services.PathCreated, result.ResolutionPath)
	assert.Equal(t, services.OperationAdd, result.Operation)
	assert.Equal(t, 1, result.IdentifierCount)
	assert.False(t, result.NoOp)
	require.NotNil(t, result.Amendment)
	assert.Equal(t, 1, result.Amendment.ValidIdentifiers)

	creates := stack.fake.Creates()
	require.Len(t, creates, 1)
	assert.Equal(t, "weekly_actives", creates[0].Name)
	assert.Equal(t, "weekly_actives", creates[0].Description)

	patches := stack.fake.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, "5678", patches[0].AudienceID)
	assert.Equal(t, []string{"test@example.com"}, patches[0].Identifiers)

	assert.Equal(t, 1, stack.fake.Calls("token"))
	assert.Equal(t, 1, stack.fake.Calls("list"))
	assert.Equal(t, 1, stack.fake.Calls("create"))
	assert.Equal(t, 1, stack.fake.Calls("patch"))

	row, err := repo.ByCorrelationID(context.Background(), result.CorrelationID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, models.SyncOutcomeSucceeded, row.Outcome)
	assert.Equal(t, "5678", *row.AudienceID)
	assert.Equal(t, "created", *row.ResolutionPath)
	assert.Nil(t, row.ErrorKind)
}

func TestAudienceSyncFlow_ExistingAudience(t *testing.T) {
	stack := newTestStack(t)
	stack.fake.Seed("12345", "777", "weekly_actives")
	flow := stack.flow(nil, nil)

	result, err := flow.Sync(context.Background(), "12345", weeklyActives("a@example.com", "b@example.com"))
	require.NoError(t, err)

	assert.Equal(t, "777", result.AudienceID)
	assert.Equal(t, services.PathFound, result.ResolutionPath)
	assert.Equal(t, 0, stack.fake.Calls("create"))
	require.Len(t, stack.fake.Patches(), 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, stack.fake.Patches()[0].Identifiers)
}

func TestAudienceSyncFlow_ConflictRecoversWinnerWithoutRelisting(t *testing.T) {
	stack := newTestStack(t)
	stack.fake.BeforeCreate = func(name string) {
		stack.fake.Seed("12345", "1234", name)
	}
	flow := stack.flow(nil, nil)

	result, err := flow.Sync(context.Background(), "12345", weeklyActives("test@example.com"))
	require.NoError(t, err)

	assert.Equal(t, "1234", result.AudienceID)
	assert.Equal(t, services.PathConflictRecovered, result.ResolutionPath)
	assert.Equal(t, 1, stack.fake.Calls("list"))
	require.Len(t, stack.fake.Patches(), 1)
	assert.Equal(t, "1234", stack.fake.Patches()[0].AudienceID)
}

func TestAudienceSyncFlow_Identifiers(t *testing.T) {
	const digest = "973dfe463ec85785f5f95af5ba3906eedb2d931c24e69824a89ea65dba4e813b"

	t.Run("hash requested per event", func(t *testing.T) {
		stack := newTestStack(t)
		flow := stack.flow(nil, nil)

		events := []UserEvent{
			{AudienceName: "weekly_actives", Identifier: "test@example.com", HashRequested: true},
			{AudienceName: "weekly_actives", Identifier: "raw@example.com"},
			{AudienceName: "weekly_actives", Identifier: digest, HashRequested: true},
		}
		_, err := flow.Sync(context.Background(), "12345", events)
		require.NoError(t, err)

		patches := stack.fake.Patches()
		require.Len(t, patches, 1)
		assert.Equal(t, []string{digest, "raw@example.com", digest}, patches[0].Identifiers)
	})

	t.Run("empty identifiers are skipped", func(t *testing.T) {
		stack := newTestStack(t)
		flow := stack.flow(nil, nil)

		events := []UserEvent{
			{AudienceName: "weekly_actives", Identifier: ""},
			{AudienceName: "weekly_actives", Identifier: "x@example.com"},
			{AudienceName: "weekly_actives", Identifier: "   "},
		}
		result, err := flow.Sync(context.Background(), "12345", events)
		require.NoError(t, err)

		assert.Equal(t, []int{0, 2}, result.SkippedEvents)
		assert.Equal(t, 1, result.IdentifierCount)
		assert.Equal(t, []string{"x@example.com"}, stack.fake.Patches()[0].Identifiers)
	})

	t.Run("audience name comes from the first event carrying one", func(t *testing.T) {
		stack := newTestStack(t)
		flow := stack.flow(nil, nil)

		events := []UserEvent{
			{Identifier: "a@example.com"},
			{AudienceName: "churned", Identifier: "b@example.com"},
			{AudienceName: "ignored", Identifier: "c@example.com"},
		}
		result, err := flow.Sync(context.Background(), "12345", events)
		require.NoError(t, err)

		assert.Equal(t, "churned", result.AudienceName)
		require.Len(t, stack.fake.Creates(), 1)
		assert.Equal(t, "churned", stack.fake.Creates()[0].Name)
		assert.Len(t, stack.fake.Patches()[0].Identifiers, 3)
	})
}

func TestAudienceSyncFlow_RemoveOperation(t *testing.T) {
	stack := newTestStack(t)
	stack.fake.Seed("12345", "777", "weekly_actives")
	flow := stack.flow(nil, nil)

	result, err := flow.SyncOperation(context.Background(), "12345", services.OperationRemove, weeklyActives("gone@example.com"))
	require.NoError(t, err)

	assert.Equal(t, services.OperationRemove, result.Operation)
	require.Len(t, stack.fake.Patches(), 1)
	assert.Equal(t, "remove", stack.fake.Patches()[0].Operation)
	assert.Equal(t, "remove", result.Amendment.Operation)
}

func TestAudienceSyncFlow_NoOp(t *testing.T) {
	stack := newTestStack(t)
	repo := newAuditRepo(t)
	flow := stack.flow(repo, nil)

	events := []UserEvent{
		{AudienceName: "weekly_actives"},
		{AudienceName: "weekly_actives", Identifier: " "},
	}
	result, err := flow.Sync(context.Background(), "12345", events)
	require.NoError(t, err)

	assert.True(t, result.NoOp)
	assert.Equal(t, []int{0, 1}, result.SkippedEvents)
	assert.Nil(t, result.Amendment)
	for _, kind := range []string{"token", "list", "create", "patch"} {
		assert.Zero(t, stack.fake.Calls(kind), kind)
	}

	row, err := repo.ByCorrelationID(context.Background(), result.CorrelationID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, models.SyncOutcomeNoop, row.Outcome)
	assert.Equal(t, models.EventIndexes{0, 1}, row.SkippedEvents)
}

func TestAudienceSyncFlow_PermanentFailures(t *testing.T) {
	tests := []struct {
		name       string
		advertiser string
		kind       services.OperationKind
		events     []UserEvent
		setup      func(*testutil.FakePlatform)
		code       string
		field      string
		network    bool
	}{
		{
			name:       "non-numeric advertiser",
			advertiser: "acme",
			kind:       services.OperationAdd,
			events:     weeklyActives("test@example.com"),
			code:       syncerror.CodeInvalidAdvertiserID,
			field:      "advertiserId",
		},
		{
			name:       "missing audience name",
			advertiser: "12345",
			kind:       services.OperationAdd,
			events:     []UserEvent{{Identifier: "test@example.com"}},
			code:       syncerror.CodeAudienceNameRequired,
			field:      "audienceName",
		},
		{
			name:       "unknown operation",
			advertiser: "12345",
			kind:       services.OperationKind("replace"),
			events:     weeklyActives("test@example.com"),
			code:       syncerror.CodeInvalidOperation,
			field:      "operation",
		},
		{
			name:       "create rejected",
			advertiser: "12345",
			kind:       services.OperationAdd,
			events:     weeklyActives("test@example.com"),
			setup: func(f *testutil.FakePlatform) {
				f.CreateStatus = http.StatusForbidden
				f.CreateErrors = `{"errors":[{"code":"forbidden-advertiser","detail":"advertiser not accessible"}]}`
			},
			code:    syncerror.CodeAudienceCreateRejected,
			network: true,
		},
		{
			name:       "patch rejected",
			advertiser: "12345",
			kind:       services.OperationAdd,
			events:     weeklyActives("test@example.com"),
			setup: func(f *testutil.FakePlatform) {
				f.Seed("12345", "777", "weekly_actives")
				f.PatchStatus = http.StatusNotFound
			},
			code:    syncerror.CodeContactlistPatchRejected,
			network: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := newTestStack(t)
			if tt.setup != nil {
				tt.setup(stack.fake)
			}
			repo := newAuditRepo(t)
			queue := &memoryReviewQueue{}
			flow := stack.flow(repo, queue)

			result, err := flow.SyncOperation(context.Background(), tt.advertiser, tt.kind, tt.events)
			require.Error(t, err)
			assert.True(t, syncerror.IsPermanent(err))
			assert.Equal(t, tt.code, syncerror.CodeOf(err))
			require.NotNil(t, result)

			if tt.field != "" {
				se, ok := syncerror.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.field, se.Field)
			}
			if !tt.network {
				assert.Zero(t, stack.fake.Calls("token"))
				assert.Zero(t, stack.fake.Calls("list"))
			}

			pending, _ := queue.Pending(context.Background(), 10)
			require.Len(t, pending, 1)
			assert.Equal(t, result.CorrelationID.String(), pending[0].CorrelationID)
			assert.Equal(t, tt.code, pending[0].ErrorCode)
			assert.Equal(t, tt.field, pending[0].Field)

			row, err := repo.ByCorrelationID(context.Background(), result.CorrelationID)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, models.SyncOutcomeFailed, row.Outcome)
			assert.Equal(t, "permanent", *row.ErrorKind)
			assert.Equal(t, tt.code, *row.ErrorCode)
		})
	}
}

func TestAudienceSyncFlow_PatchRejectedKeepsResolvedAudience(t *testing.T) {
	stack := newTestStack(t)
	stack.fake.PatchStatus = http.StatusBadRequest
	flow := stack.flow(nil, nil)

	result, err := flow.Sync(context.Background(), "12345", weeklyActives("test@example.com"))
	require.Error(t, err)
	assert.Equal(t, "5678", result.AudienceID)
	assert.Equal(t, services.PathCreated, result.ResolutionPath)
	assert.Nil(t, result.Amendment)
}

func TestAudienceSyncFlow_RetryableFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testutil.FakePlatform)
		code  string
	}{
		{
			name:  "token endpoint down",
			setup: func(f *testutil.FakePlatform) { f.TokenStatus = http.StatusServiceUnavailable },
			code:  syncerror.CodeTokenIssuanceFailed,
		},
		{
			name:  "list rate limited",
			setup: func(f *testutil.FakePlatform) { f.ListStatus = http.StatusTooManyRequests },
			code:  syncerror.CodeAudienceListFailed,
		},
		{
			name: "conflict without a visible winner",
			setup: func(f *testutil.FakePlatform) {
				f.CreateStatus = http.StatusBadRequest
				f.CreateErrors = `{"errors":[{"code":"invalid-audience-name-duplicated","detail":"Audience name weekly_actives already exists"}]}`
			},
			code: syncerror.CodeAudienceConflictUnresolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := newTestStack(t)
			tt.setup(stack.fake)
			repo := newAuditRepo(t)
			queue := &memoryReviewQueue{}
			flow := stack.flow(repo, queue)

			result, err := flow.Sync(context.Background(), "12345", weeklyActives("test@example.com"))
			require.Error(t, err)
			assert.True(t, syncerror.IsRetryable(err))
			assert.Equal(t, tt.code, syncerror.CodeOf(err))
			assert.Zero(t, stack.fake.Calls("patch"))

			n, _ := queue.Len(context.Background())
			assert.Zero(t, n)

			row, err := repo.ByCorrelationID(context.Background(), result.CorrelationID)
			require.NoError(t, err)
			require.NotNil(t, row)
			assert.Equal(t, "retryable", *row.ErrorKind)
		})
	}
}

func TestAudienceSyncFlow_RequestIDRecorded(t *testing.T) {
	stack := newTestStack(t)
	repo := newAuditRepo(t)
	flow := stack.flow(repo, nil)

	md := NewClientMetadata("127.0.0.1", "pipeline/1.0")
	md.SetRequestID("req-42")
	ctx := WithClientMetadata(context.Background(), md)

	result, err := flow.Sync(ctx, "12345", weeklyActives("test@example.com"))
	require.NoError(t, err)

	row, err := repo.ByCorrelationID(context.Background(), result.CorrelationID)
	require.NoError(t, err)
	require.NotNil(t, row.RequestID)
	assert.Equal(t, "req-42", *row.RequestID)
}

func TestAudienceSyncFlow_ConcurrentBatchesConverge(t *testing.T) {
	const workers = 8
	stack := newTestStack(t)
	// every worker misses the audience on its first list and races to create it
	stack.fake.HideFromList = workers
	flow := stack.flow(nil, nil)

	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := flow.Sync(context.Background(), "12345", weeklyActives("test@example.com"))
			errs[i] = err
			if result != nil {
				ids[i] = result.AudienceID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Len(t, stack.fake.Audiences("12345"), 1)
	assert.Equal(t, workers, stack.fake.Calls("create"))
	assert.Len(t, stack.fake.Patches(), workers)
}
