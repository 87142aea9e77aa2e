package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken  = errors.New("missing authentication token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
	ErrUnknownKey    = errors.New("token signed with unknown key")
)

// jwksRefreshInterval bounds how often the key set is re-fetched. Keys
// rotate rarely; an unknown kid triggers an early refresh.
const jwksRefreshInterval = 10 * time.Minute

// clockSkewLeeway tolerates small clock drift between this service and
// the identity provider.
const clockSkewLeeway = 10 * time.Second

// Claims are the token claims this service consumes. Permissions arrives
// as either a list of strings or a comma-joined string.
type Claims struct {
	Email       string      `json:"email"`
	Permissions interface{} `json:"permissions"`
	jwt.RegisteredClaims
}

// DiscoveryDocument is the subset of the OIDC discovery document this
// service uses.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// OIDCConfig holds the identity-provider coordinates.
type OIDCConfig struct {
	DiscoveryURL string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Verifier validates bearer tokens against the configured OIDC provider.
// The discovery document is fetched once; the JWKS is cached and
// refreshed on an interval or when an unknown kid is seen.
type Verifier struct {
	cfg        OIDCConfig
	httpClient *http.Client

	mu          sync.RWMutex
	discovery   *DiscoveryDocument
	keys        map[string]*rsa.PublicKey
	keysFetched time.Time
}

// NewVerifier creates a verifier for the given provider coordinates.
func NewVerifier(cfg OIDCConfig) *Verifier {
	return &Verifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify parses and validates a token, checking signature, issuer,
// audience, and expiry (with leeway), and requires a subject.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	discovery, err := v.Discovery(ctx)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		return v.keyForKID(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(discovery.Issuer),
		jwt.WithAudience(v.cfg.ClientID),
		jwt.WithLeeway(clockSkewLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}

	return claims, nil
}

// Discovery returns the provider's discovery document, fetching it on
// first use.
func (v *Verifier) Discovery(ctx context.Context) (*DiscoveryDocument, error) {
	v.mu.RLock()
	if v.discovery != nil {
		doc := v.discovery
		v.mu.RUnlock()
		return doc, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.discovery != nil {
		return v.discovery, nil
	}

	var doc DiscoveryDocument
	if err := v.getJSON(ctx, v.cfg.DiscoveryURL, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch OIDC discovery document: %w", err)
	}
	if doc.Issuer == "" || doc.JWKSURI == "" {
		return nil, fmt.Errorf("incomplete OIDC discovery document from %s", v.cfg.DiscoveryURL)
	}
	v.discovery = &doc
	return v.discovery, nil
}

// keyForKID returns the RSA key for a kid, refreshing the JWKS cache
// when it is stale or the kid is unknown.
func (v *Verifier) keyForKID(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.keysFetched) < jwksRefreshInterval
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownKey
	}
	return key, nil
}

func (v *Verifier) refreshKeys(ctx context.Context) error {
	discovery, err := v.Discovery(ctx)
	if err != nil {
		return err
	}

	var keySet jwks
	if err := v.getJSON(ctx, discovery.JWKSURI, &keySet); err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	keys, err := keySet.publicKeys()
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keys = keys
	v.keysFetched = time.Now()
	v.mu.Unlock()
	return nil
}

// tokenResponse is the token-endpoint response for the code exchange.
type tokenResponse struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ExchangeCode posts an authorization code to the provider's token
// endpoint and returns the resulting id_token.
func (v *Verifier) ExchangeCode(ctx context.Context, code string) (string, error) {
	discovery, err := v.Discovery(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {v.cfg.ClientID},
		"client_secret": {v.cfg.ClientSecret},
		"redirect_uri":  {v.cfg.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, discovery.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.IDToken == "" {
		return "", fmt.Errorf("token response missing id_token")
	}
	return tr.IDToken, nil
}

func (v *Verifier) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
