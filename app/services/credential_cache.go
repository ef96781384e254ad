package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/amirphl/Orochi-Audience-Sync/syncerror"
	"github.com/amirphl/Orochi-Audience-Sync/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials is the client-credentials pair plus the bearer token obtained for
// one sync chain. It is a value: authenticating returns a new one.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
}

func (c Credentials) HasToken() bool {
	return c.AccessToken != ""
}

// WithToken returns a copy of c carrying token
func (c Credentials) WithToken(token string) Credentials {
	c.AccessToken = token
	return c
}

// String never prints the secret or the full token
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{ClientID: %s, ClientSecret: %s, AccessToken: %s}",
		c.ClientID, utils.MaskSecret(c.ClientSecret), utils.MaskSecret(c.AccessToken))
}

// CredentialCache attaches a bearer token to credentials, fetching one only when absent
type CredentialCache interface {
	Authenticate(ctx context.Context, creds Credentials) (Credentials, error)
}

// OAuth2CredentialCache performs the client-credentials grant against the platform token endpoint
type OAuth2CredentialCache struct {
	tokenURL   string
	httpClient *http.Client
}

func NewOAuth2CredentialCache(tokenURL string, httpClient *http.Client) *OAuth2CredentialCache {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuth2CredentialCache{tokenURL: tokenURL, httpClient: httpClient}
}

func (c *OAuth2CredentialCache) Authenticate(ctx context.Context, creds Credentials) (Credentials, error) {
	if creds.HasToken() {
		return creds, nil
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.Token(ctx)
	if err != nil {
		platformRequestsTotal.WithLabelValues(opToken, tokenFailureStatus(err)).Inc()
		log.Printf("platform: token issuance failed for client %s: %v", creds.ClientID, err)
		se := syncerror.Retryable(syncerror.CodeTokenIssuanceFailed, "token issuance failed", err)
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			se.StatusCode = re.Response.StatusCode
		}
		return creds, se
	}
	if token.AccessToken == "" {
		platformRequestsTotal.WithLabelValues(opToken, "empty").Inc()
		return creds, syncerror.Retryable(syncerror.CodeTokenIssuanceFailed, "token endpoint returned an empty access token", nil)
	}

	platformRequestsTotal.WithLabelValues(opToken, "200").Inc()
	return creds.WithToken(token.AccessToken), nil
}

func tokenFailureStatus(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return statusLabel(re.Response.StatusCode)
	}
	return statusTransportError
}
