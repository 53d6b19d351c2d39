package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrReauthRequired is returned when the stored credential can no longer be
// refreshed and the user must go through the consent flow again.
var ErrReauthRequired = errors.New("re-authentication required")

// ErrNotConnected is returned when no credential has been stored yet.
var ErrNotConnected = errors.New("calendar not connected")

// Scopes requested from Google. Events scope is enough for two-way sync.
var oauthScopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/calendar.readonly",
}

// CredentialProvider supplies a live calendar API credential. Token
// acquisition (the consent flow) happens outside the sync engine; the engine
// only checks connectivity and asks for a usable HTTP client.
type CredentialProvider interface {
	IsConnected() bool
	RefreshIfNeeded(ctx context.Context) error
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// OAuthCredentials is an oauth2-backed CredentialProvider. The embedded
// TokenSource refreshes access tokens transparently; RefreshIfNeeded forces
// a refresh up front so connectivity problems surface before paging starts.
type OAuthCredentials struct {
	mu     sync.Mutex
	config *oauth2.Config
	token  *oauth2.Token
}

func NewOAuthCredentials(clientID, clientSecret, redirectURL string) *OAuthCredentials {
	return &OAuthCredentials{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       oauthScopes,
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the consent URL for the surrounding application's OAuth flow.
func (c *OAuthCredentials) AuthURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (c *OAuthCredentials) Exchange(ctx context.Context, code string) error {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	c.SetToken(token)
	return nil
}

// SetToken installs an externally acquired token (e.g. restored from storage).
func (c *OAuthCredentials) SetToken(token *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *OAuthCredentials) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return false
	}
	// An expired access token still counts as connected if it can be refreshed.
	return c.token.Valid() || c.token.RefreshToken != ""
}

func (c *OAuthCredentials) RefreshIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return ErrNotConnected
	}
	if c.token.Valid() {
		return nil
	}

	fresh, err := c.config.TokenSource(ctx, c.token).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	c.token = fresh
	return nil
}

func (c *OAuthCredentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return nil, ErrNotConnected
	}
	return c.config.Client(ctx, c.token), nil
}
