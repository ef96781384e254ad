package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

const (
	FakeAPIVersion = "2023-01"
	FakeToken      = "fake-access-token"
)

// FakeAudience is an audience held by FakePlatform
type FakeAudience struct {
	ID           string
	Name         string
	AdvertiserID string
}

// PatchRecord is a contact list amendment received by FakePlatform
type PatchRecord struct {
	AudienceID     string
	Type           string
	Operation      string
	IdentifierType string
	Identifiers    []string
	Authorization  string
}

// CreateRecord is a create request received by FakePlatform
type CreateRecord struct {
	Type         string
	AdvertiserID string
	Name         string
	Description  string
}

// FakePlatform is an in-memory advertising platform served over httptest.
// Creation is atomic per name, so concurrent creators see duplicate-name conflicts.
type FakePlatform struct {
	Server *httptest.Server

	mu            sync.Mutex
	audiences     map[string][]FakeAudience
	createdViaAPI map[string]bool
	nextID        int64
	calls         map[string]int
	patches       []PatchRecord
	creates       []CreateRecord
	listQuery     []string

	// Failure injection. Zero values mean normal behavior.
	TokenStatus  int
	ListStatus   int
	CreateStatus int
	CreateErrors string // raw JSON body returned with CreateStatus
	PatchStatus  int
	PatchBody    string // raw body returned for a successful patch
	ConflictNoID bool   // omit the winner's id from the conflict detail
	HideFromList int    // number of list calls that hide audiences created through the API
	BeforeCreate func(name string)
}

func NewFakePlatform() *FakePlatform {
	f := &FakePlatform{
		audiences:     make(map[string][]FakeAudience),
		nextID:        5678,
		calls:         make(map[string]int),
		createdViaAPI: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", f.handleToken)
	mux.HandleFunc("GET /"+FakeAPIVersion+"/audiences", f.handleList)
	mux.HandleFunc("POST /"+FakeAPIVersion+"/audiences", f.handleCreate)
	mux.HandleFunc("PATCH /"+FakeAPIVersion+"/audiences/{id}/contactlist", f.handlePatch)
	f.Server = httptest.NewServer(mux)
	return f
}

func (f *FakePlatform) Close() {
	f.Server.Close()
}

func (f *FakePlatform) URL() string {
	return f.Server.URL
}

func (f *FakePlatform) TokenURL() string {
	return f.Server.URL + "/oauth2/token"
}

// SetNextID sets the id assigned to the next created audience
func (f *FakePlatform) SetNextID(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = id
}

// Seed adds an existing audience
func (f *FakePlatform) Seed(advertiserID, id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audiences[advertiserID] = append(f.audiences[advertiserID], FakeAudience{ID: id, Name: name, AdvertiserID: advertiserID})
}

// Calls returns how many requests of kind ("token", "list", "create", "patch") were served
func (f *FakePlatform) Calls(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *FakePlatform) Patches() []PatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PatchRecord, len(f.patches))
	copy(out, f.patches)
	return out
}

func (f *FakePlatform) Creates() []CreateRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CreateRecord, len(f.creates))
	copy(out, f.creates)
	return out
}

func (f *FakePlatform) ListQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.listQuery))
	copy(out, f.listQuery)
	return out
}

// Audiences returns the audiences of an advertiser
func (f *FakePlatform) Audiences(advertiserID string) []FakeAudience {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeAudience, len(f.audiences[advertiserID]))
	copy(out, f.audiences[advertiserID])
	return out
}

func (f *FakePlatform) count(kind string) {
	f.mu.Lock()
	f.calls[kind]++
	f.mu.Unlock()
}

func (f *FakePlatform) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+FakeToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"errors": []map[string]string{{"code": "authorization-token-invalid", "detail": "invalid bearer token"}},
		})
		return false
	}
	return true
}

func (f *FakePlatform) handleToken(w http.ResponseWriter, r *http.Request) {
	f.count("token")
	if f.TokenStatus != 0 && f.TokenStatus != http.StatusOK {
		writeJSON(w, f.TokenStatus, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_id") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": FakeToken,
		"token_type":   "Bearer",
		"expires_in":   900,
	})
}

func (f *FakePlatform) handleList(w http.ResponseWriter, r *http.Request) {
	f.count("list")
	if !f.authorized(w, r) {
		return
	}
	if f.ListStatus != 0 && f.ListStatus != http.StatusOK {
		writeJSON(w, f.ListStatus, map[string]any{
			"errors": []map[string]string{{"code": "too-many-requests", "detail": "rate limited"}},
		})
		return
	}

	advertiserID := r.URL.Query().Get("advertiserId")

	f.mu.Lock()
	f.listQuery = append(f.listQuery, advertiserID)
	hide := f.HideFromList > 0
	if hide {
		f.HideFromList--
	}
	data := make([]map[string]any, 0)
	for _, a := range f.audiences[advertiserID] {
		if hide && f.createdViaAPI[a.ID] {
			continue
		}
		data = append(data, map[string]any{
			"id":   a.ID,
			"type": "Audience",
			"attributes": map[string]any{
				"advertiserId": a.AdvertiserID,
				"name":         a.Name,
			},
		})
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (f *FakePlatform) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.count("create")
	if !f.authorized(w, r) {
		return
	}

	var body struct {
		Data struct {
			Type       string `json:"type"`
			Attributes struct {
				AdvertiserID string `json:"advertiserId"`
				Name         string `json:"name"`
				Description  string `json:"description"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{{"code": "invalid-body", "detail": err.Error()}},
		})
		return
	}
	attrs := body.Data.Attributes

	if f.BeforeCreate != nil {
		f.BeforeCreate(attrs.Name)
	}

	if f.CreateStatus != 0 && f.CreateStatus != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.CreateStatus)
		_, _ = w.Write([]byte(f.CreateErrors))
		return
	}

	f.mu.Lock()
	f.creates = append(f.creates, CreateRecord{
		Type:         body.Data.Type,
		AdvertiserID: attrs.AdvertiserID,
		Name:         attrs.Name,
		Description:  attrs.Description,
	})
	for _, a := range f.audiences[attrs.AdvertiserID] {
		if a.Name == attrs.Name {
			detail := fmt.Sprintf("Audience name %s already exists on audience %s", a.Name, a.ID)
			if f.ConflictNoID {
				detail = fmt.Sprintf("Audience name %s already exists", a.Name)
			}
			f.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"errors": []map[string]string{{
					"type":   "validation",
					"code":   "invalid-audience-name-duplicated",
					"title":  "Audience name is duplicated",
					"detail": detail,
				}},
			})
			return
		}
	}
	id := strconv.FormatInt(f.nextID, 10)
	f.nextID++
	f.audiences[attrs.AdvertiserID] = append(f.audiences[attrs.AdvertiserID], FakeAudience{
		ID:           id,
		Name:         attrs.Name,
		AdvertiserID: attrs.AdvertiserID,
	})
	f.createdViaAPI[id] = true
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "type": "Audience"}})
}

func (f *FakePlatform) handlePatch(w http.ResponseWriter, r *http.Request) {
	f.count("patch")
	if !f.authorized(w, r) {
		return
	}

	var body struct {
		Data struct {
			Type       string `json:"type"`
			Attributes struct {
				Operation      string   `json:"operation"`
				IdentifierType string   `json:"identifierType"`
				Identifiers    []string `json:"identifiers"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{{"code": "invalid-body", "detail": err.Error()}},
		})
		return
	}

	rec := PatchRecord{
		AudienceID:     r.PathValue("id"),
		Type:           body.Data.Type,
		Operation:      body.Data.Attributes.Operation,
		IdentifierType: body.Data.Attributes.IdentifierType,
		Identifiers:    body.Data.Attributes.Identifiers,
		Authorization:  r.Header.Get("Authorization"),
	}
	f.mu.Lock()
	f.patches = append(f.patches, rec)
	f.mu.Unlock()

	if f.PatchStatus != 0 && f.PatchStatus != http.StatusOK {
		writeJSON(w, f.PatchStatus, map[string]any{
			"errors": []map[string]string{{"code": "audience-not-found", "detail": "audience " + rec.AudienceID + " not found"}},
		})
		return
	}
	if f.PatchBody != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(f.PatchBody))
		return
	}

	var invalid []string
	valid := 0
	for _, id := range rec.Identifiers {
		if strings.TrimSpace(id) == "" {
			invalid = append(invalid, id)
			continue
		}
		valid++
	}
	if invalid == nil {
		invalid = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"type": "ContactlistAmendment",
			"attributes": map[string]any{
				"operation":                rec.Operation,
				"requestDate":              "2026-10-14T09:30:00.000Z",
				"identifierType":           rec.IdentifierType,
				"nbValidIdentifiers":       valid,
				"nbInvalidIdentifiers":     len(invalid),
				"sampleInvalidIdentifiers": invalid,
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
