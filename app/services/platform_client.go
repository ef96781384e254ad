package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/config"
	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
)

// PlatformClient issues authenticated JSON:API requests against the advertising platform.
// Classification of non-success statuses is left to the caller.
type PlatformClient struct {
	BaseURL     string
	APIVersion  string
	HTTPClient  *http.Client
	credentials CredentialCache
}

func NewPlatformClient(cfg config.PlatformConfig, httpClient *http.Client, credentials CredentialCache) *PlatformClient {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &PlatformClient{
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		APIVersion:  strings.Trim(cfg.APIVersion, "/"),
		HTTPClient:  httpClient,
		credentials: credentials,
	}
}

// platformResponse is a fully read platform reply
type platformResponse struct {
	Status int
	Body   []byte
}

func (r *platformResponse) OK() bool {
	return r.Status == http.StatusOK
}

// apiError is one entry of a JSON:API errors array
type apiError struct {
	TraceID string `json:"traceId,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code"`
	Title   string `json:"title,omitempty"`
	Detail  string `json:"detail"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

// do authenticates creds if needed, sends one request and reads the whole response.
// Transport failures and deadlines are retryable.
func (c *PlatformClient) do(ctx context.Context, creds Credentials, operation, method, path string, query url.Values, payload any) (*platformResponse, error) {
	creds, err := c.credentials.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	endpoint := c.BaseURL + "/" + c.APIVersion + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, syncerror.Permanent(syncerror.CodeMalformedResponse, fmt.Sprintf("platform: encode %s payload", operation), err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, syncerror.Retryable(syncerror.CodePlatformUnreachable, fmt.Sprintf("platform: build %s request", operation), err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	platformRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		platformRequestsTotal.WithLabelValues(operation, statusTransportError).Inc()
		log.Printf("platform: %s %s failed: %v", method, path, err)
		return nil, syncerror.Retryable(syncerror.CodePlatformUnreachable, fmt.Sprintf("platform: %s request failed", operation), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, utils.MaxPlatformResponseBytes))
	if err != nil {
		platformRequestsTotal.WithLabelValues(operation, statusTransportError).Inc()
		return nil, syncerror.Retryable(syncerror.CodePlatformUnreachable, fmt.Sprintf("platform: read %s response", operation), err)
	}

	platformRequestsTotal.WithLabelValues(operation, statusLabel(resp.StatusCode)).Inc()
	return &platformResponse{Status: resp.StatusCode, Body: raw}, nil
}

// decodeErrors extracts the JSON:API errors array; an undecodable body yields nil
func decodeErrors(body []byte) []apiError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	return env.Errors
}

// summarizeErrors renders platform errors for logs and error messages
func summarizeErrors(errs []apiError, body []byte) string {
	if len(errs) == 0 {
		s := strings.TrimSpace(string(body))
		if len(s) > 512 {
			s = s[:512]
		}
		return s
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Detail
		if msg == "" {
			msg = e.Title
		}
		parts = append(parts, fmt.Sprintf("%s: %s", e.Code, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateAdvertiserID fails permanently for a non-numeric advertiser scope
func ValidateAdvertiserID(advertiserID string) error {
	if !utils.IsNumeric(advertiserID) {
		return syncerror.InvalidField(syncerror.CodeInvalidAdvertiserID, "advertiserId", advertiserID, "must be numeric")
	}
	return nil
}

func validateAudienceID(audienceID string) error {
	if !utils.IsNumeric(audienceID) {
		return syncerror.InvalidField(syncerror.CodeInvalidAudienceID, "audienceId", audienceID, "must be numeric")
	}
	return nil
}

// flexibleID accepts identifiers encoded either as JSON strings or numbers
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}
