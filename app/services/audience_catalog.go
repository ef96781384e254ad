package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
)

// Audience as known by the platform; Name is the natural key inside an advertiser
type Audience struct {
	ID           string
	Name         string
	AdvertiserID string
}

// AudienceCatalog reads the audiences visible under an advertiser
type AudienceCatalog interface {
	List(ctx context.Context, creds Credentials, advertiserID string) ([]Audience, error)
	FindByName(ctx context.Context, creds Credentials, advertiserID, name string) (*Audience, error)
}

type audienceResource struct {
	ID         flexibleID `json:"id"`
	Type       string     `json:"type"`
	Attributes struct {
		AdvertiserID flexibleID `json:"advertiserId"`
		Name         string     `json:"name"`
	} `json:"attributes"`
}

type audienceListResponse struct {
	Data []audienceResource `json:"data"`
}

type PlatformAudienceCatalog struct {
	client *PlatformClient
}

func NewAudienceCatalog(client *PlatformClient) *PlatformAudienceCatalog {
	return &PlatformAudienceCatalog{client: client}
}

// List returns every audience of the advertiser. Any non-200 status is retryable.
func (c *PlatformAudienceCatalog) List(ctx context.Context, creds Credentials, advertiserID string) ([]Audience, error) {
	if err := ValidateAdvertiserID(advertiserID); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("advertiserId", advertiserID)

	resp, err := c.client.do(ctx, creds, opListAudience, http.MethodGet, "/audiences", query, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, syncerror.FromStatus(syncerror.KindRetryable, syncerror.CodeAudienceListFailed,
			"audience list", resp.Status, summarizeErrors(decodeErrors(resp.Body), resp.Body))
	}

	var out audienceListResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, syncerror.Retryable(syncerror.CodeMalformedResponse, "audience list: decode response", err)
	}

	audiences := make([]Audience, 0, len(out.Data))
	for _, r := range out.Data {
		adv := string(r.Attributes.AdvertiserID)
		if adv == "" {
			adv = advertiserID
		}
		audiences = append(audiences, Audience{
			ID:           string(r.ID),
			Name:         r.Attributes.Name,
			AdvertiserID: adv,
		})
	}
	return audiences, nil
}

// FindByName matches the display name exactly. A nil audience means absent.
func (c *PlatformAudienceCatalog) FindByName(ctx context.Context, creds Credentials, advertiserID, name string) (*Audience, error) {
	audiences, err := c.List(ctx, creds, advertiserID)
	if err != nil {
		return nil, err
	}
	for i := range audiences {
		if audiences[i].Name == name {
			return &audiences[i], nil
		}
	}
	return nil, nil
}
