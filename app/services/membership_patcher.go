package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
)

type OperationKind string

const (
	OperationAdd    OperationKind = "add"
	OperationRemove OperationKind = "remove"
)

func (k OperationKind) Valid() bool {
	return k == OperationAdd || k == OperationRemove
}

// ParseOperationKind maps "" to add and rejects anything other than add or remove
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return OperationAdd, nil
	}
	if !k.Valid() {
		return "", syncerror.InvalidField(syncerror.CodeInvalidOperation, "operation", s, "must be add or remove")
	}
	return k, nil
}

// MembershipOperation is one batched amendment of an audience's contact list
type MembershipOperation struct {
	Kind           OperationKind
	AudienceID     string
	Identifiers    []string
	IdentifierType string
}

func NewMembershipOperation(kind OperationKind, audienceID string, identifiers []string) MembershipOperation {
	return MembershipOperation{
		Kind:           kind,
		AudienceID:     audienceID,
		Identifiers:    identifiers,
		IdentifierType: utils.IdentifierTypeEmail,
	}
}

// AmendmentResult is the platform's account of an applied amendment
type AmendmentResult struct {
	Operation          string   `json:"operation"`
	RequestDate        string   `json:"request_date,omitempty"`
	IdentifierType     string   `json:"identifier_type"`
	ValidIdentifiers   int      `json:"valid_identifiers"`
	InvalidIdentifiers int      `json:"invalid_identifiers"`
	SampleInvalid      []string `json:"sample_invalid_identifiers,omitempty"`
}

// MembershipPatcher applies one amendment per call
type MembershipPatcher interface {
	Apply(ctx context.Context, creds Credentials, op MembershipOperation) (*AmendmentResult, error)
}

type contactlistAmendmentRequest struct {
	Data contactlistAmendmentData `json:"data"`
}

type contactlistAmendmentData struct {
	Type       string                         `json:"type"`
	Attributes contactlistAmendmentAttributes `json:"attributes"`
}

type contactlistAmendmentAttributes struct {
	Operation      string   `json:"operation"`
	IdentifierType string   `json:"identifierType"`
	Identifiers    []string `json:"identifiers"`
}

type contactlistAmendmentResponse struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Operation                string   `json:"operation"`
			RequestDate              string   `json:"requestDate"`
			IdentifierType           string   `json:"identifierType"`
			NbValidIdentifiers       int      `json:"nbValidIdentifiers"`
			NbInvalidIdentifiers     int      `json:"nbInvalidIdentifiers"`
			SampleInvalidIdentifiers []string `json:"sampleInvalidIdentifiers"`
		} `json:"attributes"`
	} `json:"data"`
}

type PlatformMembershipPatcher struct {
	client *PlatformClient
}

func NewMembershipPatcher(client *PlatformClient) *PlatformMembershipPatcher {
	return &PlatformMembershipPatcher{client: client}
}

// Apply sends the whole identifier list in a single PATCH. Any non-200 is a platform
// rejection and permanent; transport failures stay retryable.
func (p *PlatformMembershipPatcher) Apply(ctx context.Context, creds Credentials, op MembershipOperation) (*AmendmentResult, error) {
	if err := validateAudienceID(op.AudienceID); err != nil {
		return nil, err
	}
	if !op.Kind.Valid() {
		return nil, syncerror.InvalidField(syncerror.CodeInvalidOperation, "operation", string(op.Kind), "must be add or remove")
	}
	identifierType := op.IdentifierType
	if identifierType == "" {
		identifierType = utils.IdentifierTypeEmail
	}
	identifiers := op.Identifiers
	if identifiers == nil {
		identifiers = []string{}
	}

	payload := contactlistAmendmentRequest{
		Data: contactlistAmendmentData{
			Type: utils.EntityTypeContactlistAmendment,
			Attributes: contactlistAmendmentAttributes{
				Operation:      string(op.Kind),
				IdentifierType: identifierType,
				Identifiers:    identifiers,
			},
		},
	}

	path := "/audiences/" + url.PathEscape(op.AudienceID) + "/contactlist"
	resp, err := p.client.do(ctx, creds, opPatchContacts, http.MethodPatch, path, nil, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, syncerror.FromStatus(syncerror.KindPermanent, syncerror.CodeContactlistPatchRejected,
			"contactlist patch", resp.Status, summarizeErrors(decodeErrors(resp.Body), resp.Body))
	}

	result := &AmendmentResult{
		Operation:        string(op.Kind),
		IdentifierType:   identifierType,
		ValidIdentifiers: len(identifiers),
	}

	var out contactlistAmendmentResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		// The amendment was accepted; report what was sent.
		log.Printf("platform: contactlist patch for audience %s accepted with undecodable body: %v", op.AudienceID, err)
		return result, nil
	}

	if out.Data.Type == "" {
		return result, nil
	}

	attrs := out.Data.Attributes
	if attrs.Operation != "" {
		result.Operation = attrs.Operation
	}
	if attrs.IdentifierType != "" {
		result.IdentifierType = attrs.IdentifierType
	}
	result.RequestDate = attrs.RequestDate
	result.ValidIdentifiers = attrs.NbValidIdentifiers
	result.InvalidIdentifiers = attrs.NbInvalidIdentifiers
	result.SampleInvalid = attrs.SampleInvalidIdentifiers
	return result, nil
}
