package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// OAuthFlow tells the two Google round trips apart.
//
//   - FlowLink attaches a Google identity to the account that is already
//     signed in; Google returns to /oauth/callback.
//   - FlowLogin signs in with an identity linked earlier; Google returns to
//     /oauth/login-callback.
type OAuthFlow string

const (
	FlowLink  OAuthFlow = "link"
	FlowLogin OAuthFlow = "login"
)

// CallbackPath returns the route Google redirects to for flow.
func (f OAuthFlow) CallbackPath() string {
	if f == FlowLogin {
		return "/oauth/login-callback"
	}
	return "/oauth/callback"
}

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleUser is the part of the OpenID userinfo response we keep.
type GoogleUser struct {
	Subject       string `json:"sub"` // stable Google account id
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow.
//
// FLOW:
//  1. AuthURL sends the browser to Google with our client id, scopes and a
//     random state (also stored in the oauth_state cookie).
//  2. Google redirects back to the flow's callback with ?code=&state=.
//  3. Exchange trades the code for a token server-to-server, then reads
//     the userinfo endpoint with it.
//
// Each flow has its own redirect URI, so the provider keeps one config per
// flow. Google rejects an exchange whose redirect_uri differs from the one
// used to obtain the code.
type GoogleProvider struct {
	configs     map[OAuthFlow]*oauth2.Config
	userInfoURL string
}

// NewGoogleProvider builds a provider whose callbacks live under
// callbackBase, e.g. "http://localhost:8080".
func NewGoogleProvider(clientID, clientSecret, callbackBase string) *GoogleProvider {
	return newGoogleProvider(clientID, clientSecret, callbackBase, endpoints.Google, googleUserInfoURL)
}

func newGoogleProvider(clientID, clientSecret, callbackBase string, endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	base := strings.TrimRight(callbackBase, "/")
	p := &GoogleProvider{configs: make(map[OAuthFlow]*oauth2.Config, 2), userInfoURL: userInfoURL}
	for _, flow := range []OAuthFlow{FlowLink, FlowLogin} {
		p.configs[flow] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  base + flow.CallbackPath(),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		}
	}
	return p
}

func (p *GoogleProvider) config(flow OAuthFlow) *oauth2.Config {
	if c, ok := p.configs[flow]; ok {
		return c
	}
	return p.configs[FlowLink]
}

// AuthURL returns Google's consent URL for flow. Linking always shows the
// account chooser so a student can pick a different Google account than
// the one the browser is signed in to.
func (p *GoogleProvider) AuthURL(state string, flow OAuthFlow) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if flow == FlowLink {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "select_account"))
	}
	return p.config(flow).AuthCodeURL(state, opts...)
}

// Exchange completes the flow: code → token → userinfo.
func (p *GoogleProvider) Exchange(ctx context.Context, code string, flow OAuthFlow) (*GoogleUser, error) {
	cfg := p.config(flow)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var u GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo: %w", err)
	}
	if u.Subject == "" {
		return nil, fmt.Errorf("auth: Google returned a user without a subject")
	}
	return &u, nil
}
