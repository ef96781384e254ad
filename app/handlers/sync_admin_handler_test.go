package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/dto"
	businessflow "github.com/amirphl/Orochi-Audience-Sync/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuditFlow struct {
	req   dto.ListSyncLogsRequest
	limit int64
	err   error
}

func (s *stubAuditFlow) ListSyncLogs(ctx context.Context, req dto.ListSyncLogsRequest) (*dto.ListSyncLogsResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ListSyncLogsResponse{
		Items:    []dto.SyncLogItem{{ID: 7, AdvertiserID: "12345", Outcome: "failed"}},
		Total:    1,
		Page:     1,
		PageSize: 50,
	}, nil
}

func (s *stubAuditFlow) ExportSyncLogs(ctx context.Context, req dto.ListSyncLogsRequest) (string, []byte, error) {
	s.req = req
	if s.err != nil {
		return "", nil, s.err
	}
	return "sync_log_20261014_120000.xlsx", []byte("xlsx"), nil
}

func (s *stubAuditFlow) ListReviewQueue(ctx context.Context, limit int64) (*dto.ReviewQueueResponse, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ReviewQueueResponse{Items: []dto.ReviewQueueItem{}, Total: 0}, nil
}

func newAdminApp(flow businessflow.SyncAuditFlow) *fiber.App {
	app := fiber.New()
	h := NewSyncAdminHandler(flow)
	app.Get("/sync-logs", h.ListSyncLogs)
	app.Get("/sync-logs/export", h.ExportSyncLogs)
	app.Get("/review-queue", h.ListReviewQueue)
	return app
}

func getAdmin(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestSyncAdminHandler_ListSyncLogs(t *testing.T) {
	flow := &stubAuditFlow{}
	app := newAdminApp(flow)

	resp, raw := getAdmin(t, app, "/sync-logs?advertiser_id=12345&outcome=failed&page=2&page_size=10")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "12345", flow.req.AdvertiserID)
	assert.Equal(t, "failed", flow.req.Outcome)
	assert.Equal(t, 2, flow.req.Page)
	assert.Equal(t, 10, flow.req.PageSize)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var data dto.ListSyncLogsResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(1), data.Total)
	require.Len(t, data.Items, 1)
	assert.Equal(t, uint(7), data.Items[0].ID)
}

func TestSyncAdminHandler_ExportSyncLogs(t *testing.T) {
	app := newAdminApp(&stubAuditFlow{})

	resp, raw := getAdmin(t, app, "/sync-logs/export")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=sync_log_20261014_120000.xlsx", resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "xlsx", string(raw))
}

func TestSyncAdminHandler_ListReviewQueue(t *testing.T) {
	flow := &stubAuditFlow{}
	app := newAdminApp(flow)

	resp, _ := getAdmin(t, app, "/review-queue?limit=20")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(20), flow.limit)

	resp, _ = getAdmin(t, app, "/review-queue?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncAdminHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
		code   string
	}{
		{name: "invalid filter value", target: "/sync-logs?operation=replace", status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "bad time filter", target: "/sync-logs", err: businessflow.ErrInvalidTimeFilter, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "export too large", target: "/sync-logs/export", err: businessflow.ErrExportTooLarge, status: http.StatusRequestEntityTooLarge, code: "EXPORT_TOO_LARGE"},
		{name: "audit log disabled", target: "/sync-logs", err: businessflow.ErrAuditLogDisabled, status: http.StatusServiceUnavailable, code: "FEATURE_DISABLED"},
		{name: "review queue disabled", target: "/review-queue", err: businessflow.ErrReviewQueueDisabled, status: http.StatusServiceUnavailable, code: "FEATURE_DISABLED"},
		{name: "backend failure", target: "/sync-logs", err: businessflow.NewBusinessError("LIST_SYNC_LOGS_FAILED", "Failed to list sync logs", context.Canceled), status: http.StatusInternalServerError, code: "LIST_SYNC_LOGS_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAdminApp(&stubAuditFlow{err: tt.err})

			resp, raw := getAdmin(t, app, tt.target)
			assert.Equal(t, tt.status, resp.StatusCode)

			var env envelope
			require.NoError(t, json.Unmarshal(raw, &env), string(raw))
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}
