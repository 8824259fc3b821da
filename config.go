package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/go-authgate/authcode-cli/credentials"
	"github.com/go-authgate/authcode-cli/token"
)

const defaultRedirectURI = "http://localhost:8888/callback"

// config is the fully resolved run configuration.
type config struct {
	clientID     string
	clientSecret string

	authorizeURI string
	tokenURI     string
	redirectURI  string
	scopes       []string
	responseType string
	params       map[string]string
	tokenFile    string

	noBrowser   bool
	codeTimeout time.Duration
	verifyState bool
	reauth      bool
	retries     int
	verifyURI   string
	verbose     bool
}

type flagValues struct {
	clientID      string
	secretKey     string
	clientSecrets string
	authorizeURI  string
	tokenURI      string
	redirectURI   string
	scope         string
	responseType  string
	params        []string
	tokenFile     string
	noBrowser     bool
	codeTimeout   time.Duration
	verifyState   bool
	reauth        bool
	retries       int
	verifyURI     string
	verbose       bool
}

func newFlagSet(f *flagValues) *pflag.FlagSet {
	fs := pflag.NewFlagSet("authcode-cli", pflag.ContinueOnError)
	fs.AddFlagSet(credentials.FlagSet(&f.clientID, &f.secretKey))
	fs.StringVar(&f.clientSecrets, "client-secrets", "",
		"client_secret.json downloaded from the provider (or CLIENT_SECRETS env)")
	fs.StringVar(&f.authorizeURI, "authorize-uri", "", "authorization endpoint (or AUTHORIZE_URI env)")
	fs.StringVar(&f.tokenURI, "token-uri", "", "token endpoint (or TOKEN_URI env)")
	fs.StringVar(&f.redirectURI, "redirect-uri", "",
		"redirect URI served locally (default: "+defaultRedirectURI+" or REDIRECT_URI env)")
	fs.StringVar(&f.scope, "scope", "", "scopes, space or comma separated (or SCOPE env)")
	fs.StringVar(&f.responseType, "response-type", "code", "response_type sent to the authorization endpoint")
	fs.StringArrayVar(&f.params, "param", nil, "extra authorization URL parameter key=value (repeatable)")
	fs.StringVar(&f.tokenFile, "token-file", "",
		"token storage file (default: "+token.DefaultFile+" or TOKEN_FILE env)")
	fs.BoolVar(&f.noBrowser, "no-browser", false, "do not open a browser, print the URL only")
	fs.DurationVar(&f.codeTimeout, "code-timeout", 0, "give up waiting for the code after this long (0 waits forever)")
	fs.BoolVar(&f.verifyState, "verify-state", false, "send and verify a random state parameter")
	fs.BoolVar(&f.reauth, "reauth-on-refresh-failure", false,
		"start a new authorization when the refresh token is rejected")
	fs.IntVar(&f.retries, "retries", 0, "retry failed HTTP requests this many times")
	fs.StringVar(&f.verifyURI, "verify-uri", "", "GET this URL with the token after authorizing")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	return fs
}

// loadConfig parses args and resolves every setting with priority
// flag > env > client secrets file > default.
func loadConfig(args []string) (*config, error) {
	var f flagValues
	fs := newFlagSet(&f)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	secrets := &credentials.ClientSecrets{}
	if path := getConfig(f.clientSecrets, "CLIENT_SECRETS", ""); path != "" {
		loaded, err := credentials.LoadClientSecrets(path)
		if err != nil {
			return nil, err
		}
		secrets = loaded
	}

	creds := credentials.Resolve(credentials.Options{Args: args, Getenv: os.Getenv})
	cfg := &config{
		clientID:     firstNonEmpty(creds.ClientID, secrets.ClientID),
		clientSecret: firstNonEmpty(creds.ClientSecret, secrets.ClientSecret),
		authorizeURI: getConfig(f.authorizeURI, "AUTHORIZE_URI", secrets.AuthURI),
		tokenURI:     getConfig(f.tokenURI, "TOKEN_URI", secrets.TokenURI),
		redirectURI: getConfig(f.redirectURI, "REDIRECT_URI",
			firstNonEmpty(secrets.RedirectURI(), defaultRedirectURI)),
		scopes:       parseScopes(getConfig(f.scope, "SCOPE", "")),
		responseType: f.responseType,
		tokenFile:    getConfig(f.tokenFile, "TOKEN_FILE", token.DefaultFile),
		noBrowser:    f.noBrowser,
		codeTimeout:  f.codeTimeout,
		verifyState:  f.verifyState,
		reauth:       f.reauth,
		retries:      f.retries,
		verifyURI:    f.verifyURI,
		verbose:      f.verbose,
	}

	params, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}
	cfg.params = params

	if cfg.retries < 0 {
		return nil, fmt.Errorf("--retries must not be negative, got: %d", cfg.retries)
	}
	if cfg.codeTimeout < 0 {
		return nil, fmt.Errorf("--code-timeout must not be negative, got: %s", cfg.codeTimeout)
	}

	for name, raw := range map[string]string{
		"authorize URI": cfg.authorizeURI,
		"token URI":     cfg.tokenURI,
		"verify URI":    cfg.verifyURI,
	} {
		if raw == "" {
			continue
		}
		if err := validateServerURL(raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if err := validateServerURL(cfg.redirectURI); err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}

	return cfg, nil
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseScopes splits on spaces and commas.
func parseScopes(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		params[k] = v
	}
	return params, nil
}

// validateServerURL validates that the URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// insecureEndpoints returns the configured remote endpoints that use plain HTTP.
// The local redirect URI is not included.
func insecureEndpoints(cfg *config) []string {
	var out []string
	for _, raw := range []string{cfg.authorizeURI, cfg.tokenURI, cfg.verifyURI} {
		if strings.HasPrefix(strings.ToLower(raw), "http://") {
			out = append(out, raw)
		}
	}
	return out
}
