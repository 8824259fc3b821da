// Package authorizer drives the OAuth 2.0 authorization-code flow for a CLI:
// reuse or refresh a cached token, otherwise ask the user to authorize and
// collect the code from a local redirect listener or the console.
package authorizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/go-authgate/authcode-cli/callback"
	"github.com/go-authgate/authcode-cli/token"
	"github.com/go-authgate/authcode-cli/tui"
)

// Code sources reported to the Displayer.
const (
	SourceCallback = "callback"
	SourceConsole  = "console"
)

const (
	defaultResponseType = "code"
	codePrompt          = "input code: "
)

// Options configures an Authorizer.
type Options struct {
	ClientID     string
	ClientSecret string
	AuthorizeURI string
	TokenURI     string
	RedirectURI  string
	Scopes       []string
	// ResponseType defaults to "code".
	ResponseType string
	// ExtraParams are added to the authorization URL last and win on a
	// key collision.
	ExtraParams map[string]string

	// NoBrowser skips launching the browser. The callback listener and the
	// console prompt still run.
	NoBrowser bool
	// Now is the clock used for expiry checks and created_at stamps.
	Now func() time.Time
	// TokenFile defaults to token.DefaultFile.
	TokenFile string
	// Platform selects the browser launcher, defaults to runtime.GOOS.
	Platform string
	// CallbackHost is the address the redirect listener binds. Defaults to
	// the redirect URI host.
	CallbackHost string

	// CodeTimeout bounds the wait for a code. Zero waits until a code arrives
	// or the context is cancelled.
	CodeTimeout time.Duration
	// VerifyState sends a random state parameter and rejects callbacks that
	// do not echo it.
	VerifyState bool
	// ReauthOnRefreshFailure starts a new authorization when the token
	// endpoint rejects the refresh token instead of returning the error.
	ReauthOnRefreshFailure bool
}

// Exchanger talks to the token endpoint. *token.Client implements it.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code string) (*token.AccessToken, error)
	Refresh(ctx context.Context, refreshToken string) (*token.AccessToken, error)
}

// Option overrides a collaborator of the Authorizer.
type Option func(*Authorizer)

// WithLogger sets the diagnostics logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(a *Authorizer) { a.log = log }
}

// WithDisplayer sets where user-facing progress goes.
func WithDisplayer(d tui.Displayer) Option {
	return func(a *Authorizer) { a.display = d }
}

// WithPrompter sets how the console code is read.
func WithPrompter(p Prompter) Option {
	return func(a *Authorizer) { a.prompter = p }
}

// WithOpener sets the browser launcher.
func WithOpener(o Opener) Option {
	return func(a *Authorizer) { a.opener = o }
}

// WithExchanger replaces the token endpoint client.
func WithExchanger(e Exchanger) Option {
	return func(a *Authorizer) { a.exchanger = e }
}

// WithHTTPClient sets the HTTP client of the default token endpoint client.
func WithHTTPClient(c *retry.Client) Option {
	return func(a *Authorizer) { a.httpClient = c }
}

// Authorizer obtains access tokens. It is safe to reuse across calls but runs
// at most one authorization attempt at a time.
type Authorizer struct {
	opts       Options
	store      *token.Store
	exchanger  Exchanger
	httpClient *retry.Client
	opener     Opener
	prompter   Prompter
	display    tui.Displayer
	log        *zap.SugaredLogger

	mu sync.Mutex
}

// New creates an Authorizer. Missing endpoints or credentials are reported
// as *ConfigError when an operation needs them, not here.
func New(opts Options, options ...Option) (*Authorizer, error) {
	if opts.ResponseType == "" {
		opts.ResponseType = defaultResponseType
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenFile == "" {
		opts.TokenFile = token.DefaultFile
	}
	if opts.Platform == "" {
		opts.Platform = runtime.GOOS
	}

	a := &Authorizer{opts: opts}
	for _, o := range options {
		o(a)
	}
	if a.log == nil {
		a.log = zap.NewNop().Sugar()
	}
	if a.display == nil {
		a.display = tui.NoopDisplayer{}
	}
	if a.opener == nil {
		if opts.NoBrowser {
			a.opener = NoopOpener{}
		} else {
			a.opener = NewOpener(opts.Platform)
		}
	}
	if a.prompter == nil {
		a.prompter = PrompterFunc(func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
	}
	if a.exchanger == nil {
		clientOpts := []token.Option{token.WithLogger(a.log)}
		if a.httpClient != nil {
			clientOpts = append(clientOpts, token.WithHTTPClient(a.httpClient))
		}
		client, err := token.NewClient(token.Config{
			TokenURL:     opts.TokenURI,
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
		}, clientOpts...)
		if err != nil {
			return nil, err
		}
		a.exchanger = client
	}
	a.store = token.NewStore(opts.TokenFile, a.log)
	return a, nil
}

// Store returns the token store backing this Authorizer.
func (a *Authorizer) Store() *token.Store {
	return a.store
}

// Authorize returns a usable access token: the cached one if still valid, a
// refreshed one if it expired and has a refresh token, otherwise a new token
// from a full authorization.
func (a *Authorizer) Authorize(ctx context.Context) (*token.AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok, err := a.LoadAccessToken(ctx)
	if err != nil {
		var exchangeErr *token.ExchangeError
		if !a.opts.ReauthOnRefreshFailure || !errors.As(err, &exchangeErr) {
			return nil, err
		}
		a.log.Infow("refresh token rejected, starting a new authorization", "error", err)
		tok = nil
	}
	if tok != nil {
		return tok, nil
	}

	a.display.TokensNotFound()
	code, err := a.RequestAuthorizeCode(ctx)
	if err != nil {
		return nil, err
	}
	return a.RequestAccessToken(ctx, code)
}

// Token implements oauth2.TokenSource.
func (a *Authorizer) Token() (*oauth2.Token, error) {
	tok, err := a.Authorize(context.Background())
	if err != nil {
		return nil, err
	}
	return tok.OAuth2(), nil
}

// LoadAccessToken returns the cached token, refreshing it when expired. A
// missing or unreadable file, or an expired token without a refresh token,
// yields nil without error. Refresh failures are returned.
func (a *Authorizer) LoadAccessToken(ctx context.Context) (*token.AccessToken, error) {
	tok := a.store.Load()
	if tok == nil {
		return nil, nil
	}
	a.display.TokensFound()

	if !a.store.IsExpired(tok, a.opts.Now()) {
		a.display.TokenValid()
		return tok, nil
	}
	a.display.TokenExpired()

	if tok.RefreshToken == "" {
		a.log.Debugw("cached token expired without refresh token", "path", a.store.Path())
		return nil, nil
	}
	return a.refresh(ctx, tok)
}

func (a *Authorizer) refresh(ctx context.Context, old *token.AccessToken) (*token.AccessToken, error) {
	if err := a.requireTokenEndpoint(); err != nil {
		return nil, err
	}

	a.display.Refreshing()
	fresh, err := a.exchanger.Refresh(ctx, old.RefreshToken)
	if err != nil {
		a.display.RefreshFailed(err)
		return nil, err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = old.RefreshToken
	}
	a.display.RefreshOK()
	return a.save(fresh), nil
}

// RequestAccessToken exchanges code at the token endpoint and persists the
// result. A failed write is reported but the token is still returned.
func (a *Authorizer) RequestAccessToken(ctx context.Context, code string) (*token.AccessToken, error) {
	if err := a.requireTokenEndpoint(); err != nil {
		return nil, err
	}

	a.display.Exchanging()
	tok, err := a.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return a.save(tok), nil
}

func (a *Authorizer) save(tok *token.AccessToken) *token.AccessToken {
	now := a.opts.Now()
	saved, err := a.store.Save(tok, now)
	if err != nil {
		a.log.Warnw("failed to save token", "path", a.store.Path(), "error", err)
		a.display.TokenSaveFailed(err)
		stamped := *tok
		stamped.CreatedAt = now.UnixMilli()
		return &stamped
	}
	a.display.TokenSaved(a.store.Path())
	return saved
}

// AuthCodeURL builds the authorization URL. An empty state is omitted.
func (a *Authorizer) AuthCodeURL(state string) string {
	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", a.opts.ResponseType),
	}
	keys := make([]string, 0, len(a.opts.ExtraParams))
	for k := range a.opts.ExtraParams {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		params = append(params, oauth2.SetAuthURLParam(k, a.opts.ExtraParams[k]))
	}
	return a.oauthConfig().AuthCodeURL(state, params...)
}

func (a *Authorizer) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.opts.ClientID,
		ClientSecret: a.opts.ClientSecret,
		RedirectURL:  a.opts.RedirectURI,
		Scopes:       a.opts.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.opts.AuthorizeURI,
			TokenURL: a.opts.TokenURI,
		},
	}
}

// RequestAuthorizeCode runs one authorization attempt. It listens on the
// redirect URI, shows and optionally opens the authorization URL, prompts on
// the console, and returns whichever code arrives first. The listener is
// closed and the prompt abandoned before it returns.
func (a *Authorizer) RequestAuthorizeCode(ctx context.Context) (string, error) {
	if err := a.requireAuthorizeEndpoint(); err != nil {
		return "", err
	}
	redirect, err := url.Parse(a.opts.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	port, err := redirectPort(redirect)
	if err != nil {
		return "", err
	}
	host := a.opts.CallbackHost
	if host == "" {
		host = redirect.Hostname()
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	var state string
	if a.opts.VerifyState {
		state = uuid.NewString()
	}
	authURL := a.AuthCodeURL(state)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var deadline time.Time
	if a.opts.CodeTimeout > 0 {
		deadline = a.opts.Now().Add(a.opts.CodeTimeout)
		var cancelTimeout context.CancelFunc
		waitCtx, cancelTimeout = context.WithTimeout(waitCtx, a.opts.CodeTimeout)
		defer cancelTimeout()
	}

	pending := newPendingCode()
	server := callback.New(callback.Options{Port: port, Hostname: host})
	server.Handle(callbackPath, a.callbackHandler(pending, state))
	if err := server.Listen(); err != nil {
		return "", err
	}
	defer func() {
		if err := server.Close(); err != nil {
			a.log.Warnw("failed to close callback server", "error", err)
		}
	}()
	a.log.Debugw("callback server listening", "addr", server.Addr().String(), "path", callbackPath)

	a.display.AuthorizeURL(authURL)
	if !a.opts.NoBrowser {
		go func() {
			if err := a.opener.Open(authURL); err != nil {
				a.log.Debugw("browser launch failed", "error", err)
				a.display.BrowserOpenFailed(err)
			}
		}()
	}
	a.display.WaitingForCode(a.opts.RedirectURI, deadline)

	go a.promptForCode(waitCtx, pending)

	select {
	case res := <-pending.ch:
		if res.err != nil {
			return "", res.err
		}
		a.display.CodeReceived(res.source)
		return res.code, nil
	case <-waitCtx.Done():
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return "", ErrCodeTimeout
		}
		return "", waitCtx.Err()
	}
}

// promptForCode reads the code from the console. A closed console leaves the
// attempt to the callback.
func (a *Authorizer) promptForCode(ctx context.Context, pending *pendingCode) {
	code, err := a.prompter.Prompt(ctx, codePrompt)
	if ctx.Err() != nil {
		return
	}
	switch {
	case errors.Is(err, ErrPromptInterrupted):
		pending.resolve(codeResult{err: err})
	case err != nil:
		a.log.Debugw("console prompt unavailable, waiting for callback", "error", err)
	case strings.TrimSpace(code) == "":
		pending.resolve(codeResult{err: ErrEmptyCode})
	default:
		pending.resolve(codeResult{code: strings.TrimSpace(code), source: SourceConsole})
	}
}

// callbackHandler serves the redirect. A request without code, or with the
// wrong state, is answered with 400 and does not end the attempt.
func (a *Authorizer) callbackHandler(pending *pendingCode, state string) callback.Handler {
	return func(w http.ResponseWriter, _ *http.Request, _ string, params url.Values) {
		if errCode := params.Get("error"); errCode != "" {
			authErr := &AuthorizationError{Code: errCode, Description: params.Get("error_description")}
			writePage(w, http.StatusBadRequest, "Authorization failed: "+authErr.Error())
			pending.resolve(codeResult{err: authErr})
			return
		}
		if state != "" && params.Get("state") != state {
			a.log.Warnw("callback state mismatch, ignoring request")
			writePage(w, http.StatusBadRequest, "Invalid state parameter.")
			return
		}
		code := params.Get("code")
		if code == "" {
			a.log.Warnw("callback without code, ignoring request")
			writePage(w, http.StatusBadRequest, "Missing code parameter.")
			return
		}

		writePage(w, http.StatusOK, "Authorization complete. You can close this window.")
		if !pending.resolve(codeResult{code: code, source: SourceCallback}) {
			a.log.Debugw("duplicate callback ignored")
		}
	}
}

func writePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message + "\n"))
}

func (a *Authorizer) requireAuthorizeEndpoint() error {
	switch {
	case a.opts.ClientID == "":
		return &ConfigError{Option: "client id"}
	case a.opts.AuthorizeURI == "":
		return &ConfigError{Option: "authorize uri"}
	case a.opts.RedirectURI == "":
		return &ConfigError{Option: "redirect uri"}
	}
	return nil
}

func (a *Authorizer) requireTokenEndpoint() error {
	switch {
	case a.opts.ClientID == "":
		return &ConfigError{Option: "client id"}
	case a.opts.TokenURI == "":
		return &ConfigError{Option: "token uri"}
	}
	return nil
}

func redirectPort(u *url.URL) (int, error) {
	p := u.Port()
	if p == "" {
		if u.Scheme == "https" {
			return 443, nil
		}
		return 80, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid redirect URI port %q", p)
	}
	return port, nil
}

type codeResult struct {
	code   string
	source string
	err    error
}

// pendingCode is the single-assignment result of one attempt.
type pendingCode struct {
	once sync.Once
	ch   chan codeResult
}

func newPendingCode() *pendingCode {
	return &pendingCode{ch: make(chan codeResult, 1)}
}

// resolve stores r if nothing was stored yet and reports whether it did.
func (p *pendingCode) resolve(r codeResult) bool {
	accepted := false
	p.once.Do(func() {
		p.ch <- r
		accepted = true
	})
	return accepted
}
