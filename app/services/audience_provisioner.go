package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
)

// CreateOutcome tags the result of one create attempt
type CreateOutcome int

const (
	CreateFailed CreateOutcome = iota
	CreateCreated
	CreateConflict
)

func (o CreateOutcome) String() string {
	switch o {
	case CreateCreated:
		return "created"
	case CreateConflict:
		return "conflict"
	default:
		return "failed"
	}
}

// CreateResult is Created(id), Conflict(recoveredID) or Failed(err).
// A conflict's AudienceID is empty when the winner could not be read from the error detail.
type CreateResult struct {
	Outcome    CreateOutcome
	AudienceID string
	Err        error
}

func Created(audienceID string) CreateResult {
	return CreateResult{Outcome: CreateCreated, AudienceID: audienceID}
}

func Conflict(recoveredID string) CreateResult {
	return CreateResult{Outcome: CreateConflict, AudienceID: recoveredID}
}

func Failed(err error) CreateResult {
	return CreateResult{Outcome: CreateFailed, Err: err}
}

// ResolutionPath records how an audience id was obtained
type ResolutionPath string

const (
	PathFound             ResolutionPath = "found"
	PathCreated           ResolutionPath = "created"
	PathConflictRecovered ResolutionPath = "conflict_recovered"
	PathConflictRelisted  ResolutionPath = "conflict_relisted"
)

// Provision is the id returned by AudienceProvisioner.Provision and the path that produced it
type Provision struct {
	AudienceID string
	Path       ResolutionPath
}

// AudienceProvisioner creates audiences and converges duplicate-name conflicts onto the winner
type AudienceProvisioner interface {
	Attempt(ctx context.Context, creds Credentials, advertiserID, name string) CreateResult
	Create(ctx context.Context, creds Credentials, advertiserID, name string) (string, error)
	Provision(ctx context.Context, creds Credentials, advertiserID, name string) (Provision, error)
}

type createAudienceRequest struct {
	Data createAudienceData `json:"data"`
}

type createAudienceData struct {
	Type       string                   `json:"type"`
	Attributes createAudienceAttributes `json:"attributes"`
}

type createAudienceAttributes struct {
	AdvertiserID string `json:"advertiserId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

type createAudienceResponse struct {
	Data struct {
		ID   flexibleID `json:"id"`
		Type string     `json:"type"`
	} `json:"data"`
}

type PlatformAudienceProvisioner struct {
	client  *PlatformClient
	catalog AudienceCatalog
}

func NewAudienceProvisioner(client *PlatformClient, catalog AudienceCatalog) *PlatformAudienceProvisioner {
	return &PlatformAudienceProvisioner{client: client, catalog: catalog}
}

// Attempt issues exactly one create request and classifies the reply
func (p *PlatformAudienceProvisioner) Attempt(ctx context.Context, creds Credentials, advertiserID, name string) CreateResult {
	if name == "" {
		return Failed(syncerror.InvalidField(syncerror.CodeAudienceNameRequired, "audienceName", name, "must not be empty"))
	}
	if err := ValidateAdvertiserID(advertiserID); err != nil {
		return Failed(err)
	}

	payload := createAudienceRequest{
		Data: createAudienceData{
			Type: utils.EntityTypeAudience,
			Attributes: createAudienceAttributes{
				AdvertiserID: advertiserID,
				Name:         name,
				Description:  name,
			},
		},
	}

	resp, err := p.client.do(ctx, creds, opCreateAudience, http.MethodPost, "/audiences", nil, payload)
	if err != nil {
		return Failed(err)
	}

	if resp.OK() {
		var out createAudienceResponse
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return Failed(syncerror.Retryable(syncerror.CodeMalformedResponse, "audience create: decode response", err))
		}
		if out.Data.ID == "" {
			return Failed(syncerror.Retryable(syncerror.CodeMalformedResponse, "audience create: response carries no id", nil))
		}
		return Created(string(out.Data.ID))
	}

	errs := decodeErrors(resp.Body)
	for _, e := range errs {
		if e.Code == utils.PlatformErrorDuplicateName {
			return Conflict(recoverAudienceID(e.Detail))
		}
	}

	se := syncerror.FromStatus(syncerror.KindPermanent, syncerror.CodeAudienceCreateRejected,
		"audience create", resp.Status, summarizeErrors(errs, resp.Body))
	return Failed(se)
}

// Provision creates the audience, or recovers the id of whoever created it first
func (p *PlatformAudienceProvisioner) Provision(ctx context.Context, creds Credentials, advertiserID, name string) (Provision, error) {
	result := p.Attempt(ctx, creds, advertiserID, name)

	switch result.Outcome {
	case CreateCreated:
		return Provision{AudienceID: result.AudienceID, Path: PathCreated}, nil

	case CreateConflict:
		if result.AudienceID != "" {
			log.Printf("platform: audience %q under advertiser %s already exists as %s", name, advertiserID, result.AudienceID)
			return Provision{AudienceID: result.AudienceID, Path: PathConflictRecovered}, nil
		}
		audience, err := p.catalog.FindByName(ctx, creds, advertiserID, name)
		if err != nil {
			return Provision{}, err
		}
		if audience == nil {
			return Provision{}, syncerror.Retryable(syncerror.CodeAudienceConflictUnresolved,
				fmt.Sprintf("audience %q reported as duplicate but not listed under advertiser %s", name, advertiserID), nil)
		}
		return Provision{AudienceID: audience.ID, Path: PathConflictRelisted}, nil

	default:
		return Provision{}, result.Err
	}
}

func (p *PlatformAudienceProvisioner) Create(ctx context.Context, creds Credentials, advertiserID, name string) (string, error) {
	prov, err := p.Provision(ctx, creds, advertiserID, name)
	if err != nil {
		return "", err
	}
	return prov.AudienceID, nil
}

// recoverAudienceID returns the last whitespace-delimited token of detail when it is numeric
func recoverAudienceID(detail string) string {
	fields := strings.Fields(detail)
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if !utils.IsNumeric(last) {
		return ""
	}
	return last
}
