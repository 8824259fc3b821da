package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	retry "github.com/appleboy/go-httpretry"
	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/go-authgate/authcode-cli/authorizer"
	"github.com/go-authgate/authcode-cli/token"
	"github.com/go-authgate/authcode-cli/tui"
)

const tokenVerificationTimeout = 10 * time.Second

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if insecure := insecureEndpoints(cfg); len(insecure) > 0 {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		for _, u := range insecure {
			fmt.Fprintf(os.Stderr, "⚠️    %s\n", u)
		}
		fmt.Fprintln(os.Stderr)
	}

	log := newLogger(cfg.verbose)
	defer func() { _ = log.Sync() }()

	retryClient, err := newRetryClient(cfg.retries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tok *token.AccessToken
	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted.
		// Keyboard input stays enabled for code entry; ctrl+c cancels ctx.
		codes := make(chan string, 1)
		m := tui.NewModel(codes, stop)
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p, codes)
		d.Banner()
		tok, err = run(ctx, cfg, log, retryClient, d, d)
		p.Quit()
		wg.Wait()
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		prompter := authorizer.NewConsolePrompter(readline.NewCancelableStdin(os.Stdin), os.Stderr)
		tok, err = run(ctx, cfg, log, retryClient, d, prompter)
	}
	if err != nil {
		os.Exit(1)
	}

	if err := printToken(os.Stdout, tok); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cfg *config,
	log *zap.SugaredLogger,
	httpClient *retry.Client,
	d tui.Displayer,
	prompter authorizer.Prompter,
) (*token.AccessToken, error) {
	a, err := authorizer.New(authorizer.Options{
		ClientID:               cfg.clientID,
		ClientSecret:           cfg.clientSecret,
		AuthorizeURI:           cfg.authorizeURI,
		TokenURI:               cfg.tokenURI,
		RedirectURI:            cfg.redirectURI,
		Scopes:                 cfg.scopes,
		ResponseType:           cfg.responseType,
		ExtraParams:            cfg.params,
		NoBrowser:              cfg.noBrowser,
		TokenFile:              cfg.tokenFile,
		CodeTimeout:            cfg.codeTimeout,
		VerifyState:            cfg.verifyState,
		ReauthOnRefreshFailure: cfg.reauth,
	},
		authorizer.WithLogger(log),
		authorizer.WithDisplayer(d),
		authorizer.WithPrompter(prompter),
		authorizer.WithHTTPClient(httpClient),
	)
	if err != nil {
		d.Fatal(err)
		return nil, err
	}

	tok, err := a.Authorize(ctx)
	if err != nil {
		d.Fatal(err)
		return nil, err
	}

	tokenPreview := tok.AccessToken
	if len(tokenPreview) > 50 {
		tokenPreview = tokenPreview[:50]
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	d.Done(tokenPreview, tokenType, time.Until(tok.ExpiresAt()).Round(time.Second))

	if cfg.verifyURI != "" {
		d.Verifying()
		body, err := verifyToken(ctx, httpClient, cfg.verifyURI, tok.AccessToken)
		if err != nil {
			d.VerifyFailed(err)
		} else {
			d.VerifyOK(body)
		}
	}

	return tok, nil
}

func newLogger(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

func newRetryClient(retries int) (*retry.Client, error) {
	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	client, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
		retry.WithMaxRetries(retries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return client, nil
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// verifyToken calls verifyURL with the bearer token and returns the body.
func verifyToken(
	ctx context.Context,
	client *retry.Client,
	verifyURL, accessToken string,
) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, tokenVerificationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, verifyURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.DoWithContext(reqCtx, req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
		}
		return "", fmt.Errorf("%s: %s", errResp.Error, errResp.ErrorDescription)
	}

	return string(body), nil
}

// printToken writes the token record as indented JSON.
func printToken(w io.Writer, tok *token.AccessToken) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tok)
}
