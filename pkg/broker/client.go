package broker

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// scopes is the fixed scope set requested for every acquisition. The helper
// surfaces the OIDC identity token, so openid is mandatory; offline_access
// yields the refresh token that makes later runs silent.
var scopes = []string{oidc.ScopeOpenID, "email", "offline_access", "User.Read"}

// silentRenewalWindow is how close to expiry a cached identity token is
// still handed out without a refresh round-trip.
const silentRenewalWindow = 2 * time.Minute

// autoCloseTemplate is rendered to the browser once the interactive flow
// completes, closing the tab shortly after.
const autoCloseTemplate = `<html><body><script>setTimeout(function(){window.close()}, 500);</script></body></html>`

// ErrSilentUnavailable means silent reacquisition cannot produce a token
// and an interactive or device-code flow is needed. It is not a failure.
var ErrSilentUnavailable = errors.New("silent reacquisition unavailable")

// AuthError is an error outcome reported by the identity provider.
type AuthError struct {
	Code        string
	Description string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Result is a successful acquisition.
type Result struct {
	Account Account
	IDToken string
}

// Broker is the acquisition surface the orchestrator drives. The production
// implementation is Client; tests substitute fakes.
type Broker interface {
	Accounts() []Account
	AcquireSilent(ctx context.Context, acct Account) (*Result, error)
	AcquireInteractive(ctx context.Context) (*Result, error)
	AcquireDeviceCode(ctx context.Context) (*Result, error)
}

// Options configure a Client. TokenCache and HTTPCache are attached by
// reference; the broker mutates them in place and the caller persists them
// afterwards.
type Options struct {
	ClientID   string
	Authority  string
	TokenCache *TokenCache
	HTTPCache  *HTTPCache

	// Diag receives user-facing flow instructions (device-code message,
	// interactive fallback URL). Never the protocol stream.
	Diag io.Writer

	Log       *zap.Logger
	NoBrowser bool

	// OpenBrowser overrides the platform browser launcher.
	OpenBrowser func(url string) error
}

// Client acquires Entra identity tokens against one (client id, authority)
// pair. Authority discovery is lazy and goes through the persisted HTTP
// cache, so a run satisfied from the token cache does no network I/O.
type Client struct {
	opts     Options
	http     *http.Client
	log      *zap.Logger
	endpoint *oauth2.Endpoint
}

// New builds a broker client.
func New(opts Options) *Client {
	if opts.TokenCache == nil {
		opts.TokenCache = NewTokenCache()
	}
	if opts.HTTPCache == nil {
		opts.HTTPCache = NewHTTPCache(nil)
	}
	if opts.Diag == nil {
		opts.Diag = io.Discard
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = openBrowser
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		opts: opts,
		http: &http.Client{Transport: opts.HTTPCache, Timeout: 30 * time.Second},
		log:  log,
	}
}

// Accounts lists the accounts present in the attached token cache.
func (c *Client) Accounts() []Account {
	return c.opts.TokenCache.Accounts()
}

// endpoints discovers the authority's OAuth endpoints on first use.
func (c *Client) endpoints(ctx context.Context) (oauth2.Endpoint, error) {
	if c.endpoint != nil {
		return *c.endpoint, nil
	}
	issuer := strings.TrimRight(c.opts.Authority, "/") + "/v2.0"
	ctx = oidc.ClientContext(ctx, c.http)
	// Entra returns a templated issuer for common/organizations tenants.
	ctx = oidc.InsecureIssuerURLContext(ctx, issuer)
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("discovering authority %s: %w", c.opts.Authority, err)
	}
	ep := provider.Endpoint()
	c.endpoint = &ep
	return ep, nil
}

func (c *Client) oauthConfig(ctx context.Context, redirectURL string) (*oauth2.Config, error) {
	ep, err := c.endpoints(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:    c.opts.ClientID,
		Endpoint:    ep,
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}, nil
}

// AcquireSilent reuses the cached identity token when it is still fresh and
// otherwise redeems the account's refresh token. Any obstacle yields
// ErrSilentUnavailable; the caller falls through to an attended flow.
func (c *Client) AcquireSilent(ctx context.Context, acct Account) (*Result, error) {
	cred, ok := c.opts.TokenCache.credential(acct.HomeAccountID)
	if !ok {
		return nil, ErrSilentUnavailable
	}
	if cred.IDToken != "" {
		if exp, err := TokenExpiry(cred.IDToken); err == nil &&
			time.Until(time.Unix(exp, 0)) > silentRenewalWindow {
			c.log.Debug("cached identity token still fresh")
			return &Result{Account: acct, IDToken: cred.IDToken}, nil
		}
	}
	if cred.RefreshToken == "" {
		return nil, ErrSilentUnavailable
	}

	cfg, err := c.oauthConfig(ctx, "")
	if err != nil {
		c.log.Debug("authority discovery failed during silent flow", zap.Error(err))
		return nil, ErrSilentUnavailable
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		c.log.Debug("refresh token redemption failed", zap.Error(err))
		return nil, ErrSilentUnavailable
	}
	result, err := c.record(tok)
	if err != nil {
		c.log.Debug("silent token response unusable", zap.Error(err))
		return nil, ErrSilentUnavailable
	}
	return result, nil
}

// AcquireInteractive runs the browser-delegated authorization-code flow
// with PKCE on a loopback redirect. It blocks until the redirect arrives,
// the provider reports an error, or ctx ends.
func (c *Client) AcquireInteractive(ctx context.Context) (*Result, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}
	defer func() {
		_ = listener.Close()
	}()

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	cfg, err := c.oauthConfig(ctx, redirectURL)
	if err != nil {
		return nil, err
	}

	state, err := randomToken(24)
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	resultCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			if code := q.Get("error"); code != "" {
				errCh <- &AuthError{Code: code, Description: q.Get("error_description")}
				http.Error(w, "authentication failed", http.StatusBadRequest)
				return
			}
			if q.Get("state") != state {
				errCh <- errors.New("state mismatch in callback")
				http.Error(w, "invalid state", http.StatusBadRequest)
				return
			}
			code := q.Get("code")
			if code == "" {
				errCh <- errors.New("missing code in callback")
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
			if err != nil {
				errCh <- providerError(err)
				http.Error(w, "token exchange failed", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, autoCloseTemplate)
			resultCh <- tok
		}),
	}
	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		_ = server.Close()
	}()

	_, _ = fmt.Fprintf(c.opts.Diag, "Opening your browser to sign in. If nothing happens, visit:\n%s\n", authURL)
	if !c.opts.NoBrowser {
		_ = c.opts.OpenBrowser(authURL)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case tok := <-resultCh:
		return c.record(tok)
	}
}

// AcquireDeviceCode runs the device authorization grant: print the
// instruction message, then block polling the token endpoint until the user
// confirms out of band.
func (c *Client) AcquireDeviceCode(ctx context.Context) (*Result, error) {
	cfg, err := c.oauthConfig(ctx, "")
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint.DeviceAuthURL == "" {
		return nil, errors.New("authority does not advertise a device authorization endpoint")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, providerError(err)
	}
	_, _ = fmt.Fprintf(c.opts.Diag,
		"To sign in, use a web browser to open the page %s and enter the code %s to authenticate.\n",
		da.VerificationURI, da.UserCode)
	if !c.opts.NoBrowser && da.VerificationURIComplete != "" {
		_ = c.opts.OpenBrowser(da.VerificationURIComplete)
	}

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, providerError(err)
	}
	return c.record(tok)
}

// record folds a token response into the cache and builds the result. A
// response without a rotated refresh token keeps the account's previous
// one.
func (c *Client) record(tok *oauth2.Token) (*Result, error) {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, errors.New("token response carried no id_token")
	}
	acct, err := idTokenAccount(raw)
	if err != nil {
		return nil, err
	}
	cred := credentialSet{IDToken: raw, RefreshToken: tok.RefreshToken, Expiry: tok.Expiry}
	if cred.RefreshToken == "" {
		if prev, ok := c.opts.TokenCache.credential(acct.HomeAccountID); ok {
			cred.RefreshToken = prev.RefreshToken
		}
	}
	c.opts.TokenCache.put(acct, cred)
	return &Result{Account: acct, IDToken: raw}, nil
}

// providerError surfaces the provider's error code and description when the
// failure was an OAuth error response.
func providerError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.ErrorCode != "" {
		return &AuthError{Code: rerr.ErrorCode, Description: rerr.ErrorDescription}
	}
	return err
}

func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
