package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
	"github.com/lingyun-ai/lingyun-go/pkg/observability"
)

const (
	// tokenSafetyMargin is subtracted from the advertised lifetime so
	// a token is never presented moments before the server rejects it.
	tokenSafetyMargin = 10 * time.Second

	// TenantHeader optionally scopes bearer-token requests to a tenant.
	TenantHeader = "X-Tenant-Id"
)

// TokenProvider exchanges an api key / secret key pair for a bearer
// token at the identity endpoint and caches it until near expiry.
//
// One mutex guards both the expiry check and the refresh call, so
// concurrent callers during a refresh wait for that refresh's result
// instead of issuing duplicate fetches.
type TokenProvider struct {
	cred        Credential
	identityURL string
	tenantID    string
	httpClient  *http.Client

	// now is injectable for expiry tests.
	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// TokenProviderOptions configures optional TokenProvider behavior.
type TokenProviderOptions struct {
	// TenantID, when set, is sent as the X-Tenant-Id header.
	TenantID string

	// HTTPClient overrides the client used for token fetches.
	HTTPClient *http.Client
}

// NewTokenProvider creates a TokenProvider against the given identity
// base URL (scheme and host, no path).
func NewTokenProvider(cred Credential, identityURL string, opts TokenProviderOptions) *TokenProvider {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenProvider{
		cred:        cred,
		identityURL: identityURL,
		tenantID:    opts.TenantID,
		httpClient:  client,
		now:         time.Now,
	}
}

// Apply attaches the bearer token, fetching or refreshing it first if
// the cached one is expired or missing.
func (p *TokenProvider) Apply(ctx context.Context, req *http.Request) error {
	token, err := p.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if p.tenantID != "" {
		req.Header.Set(TenantHeader, p.tenantID)
	}
	return nil
}

// Refresh discards the cached token. The next Apply performs a fresh
// fetch; used after the platform reports the token expired mid-flight.
func (p *TokenProvider) Refresh(context.Context) error {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
	return nil
}

// Token returns a valid access token, fetching a new one when the
// cached token is within the safety margin of its expiry.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}

	token, expiresAt, err := p.fetch(ctx)
	if err != nil {
		// Never fall back to the stale token.
		return "", err
	}
	p.token = token
	p.expiresAt = expiresAt
	return token, nil
}

// fetch performs the client_credentials exchange. Callers hold p.mu.
func (p *TokenProvider) fetch(ctx context.Context) (string, time.Time, error) {
	endpoint := fmt.Sprintf("%s/oauth/token?grant_type=client_credentials&client_id=%s&client_secret=%s",
		p.identityURL, url.QueryEscape(p.cred.Key), url.QueryEscape(p.cred.Secret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", time.Time{}, api.NewAuthError("building token request: " + err.Error())
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, api.NewAuthError("identity endpoint unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", time.Time{}, api.NewAuthError("reading token response: " + err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, api.NewAuthError(fmt.Sprintf("token fetch failed (HTTP %d): %s", resp.StatusCode, string(body)))
	}

	var tr api.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", time.Time{}, api.NewAuthError("parsing token response: " + err.Error())
	}
	if tr.Error != "" {
		return "", time.Time{}, api.NewAuthError(fmt.Sprintf("token fetch rejected: %s (%s)", tr.Error, tr.ErrorDesc))
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, api.NewAuthError("token response missing access_token")
	}

	observability.TokenRefreshesTotal.Inc()
	expiresAt := p.expiryOf(tr)
	return tr.AccessToken, expiresAt, nil
}

// expiryOf derives the cache deadline for a token: the advertised
// expires_in when present, otherwise the exp claim if the token is a
// JWT, otherwise a conservative one-minute lifetime.
func (p *TokenProvider) expiryOf(tr api.TokenResponse) time.Time {
	if tr.ExpiresIn > 0 {
		return p.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSafetyMargin)
	}

	parser := jwtlib.NewParser()
	claims := jwtlib.MapClaims{}
	if _, _, err := parser.ParseUnverified(tr.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Add(-tokenSafetyMargin)
		}
	}

	return p.now().Add(time.Minute - tokenSafetyMargin)
}
