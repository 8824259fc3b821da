package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all user-facing output from the authorization flow.
type Displayer interface {
	Banner()
	TokensFound()
	TokenValid()
	TokenExpired()
	TokensNotFound()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	AuthorizeURL(url string)
	BrowserOpenFailed(err error)
	WaitingForCode(callbackURL string, deadline time.Time)
	CodeReceived(source string)
	Exchanging()
	TokenSaved(path string)
	TokenSaveFailed(err error)
	Verifying()
	VerifyOK(body string)
	VerifyFailed(err error)
	Done(preview, tokenType string, expiresIn time.Duration)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== OAuth Authorization Code Flow ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) TokensFound() {
	fmt.Fprintln(p.w, "Found cached token.")
}

func (p *PlainDisplayer) TokenValid() {
	fmt.Fprintln(p.w, "Access token is still valid, using it.")
}

func (p *PlainDisplayer) TokenExpired() {
	fmt.Fprintln(p.w, "Access token expired.")
}

func (p *PlainDisplayer) TokensNotFound() {
	fmt.Fprintln(p.w, "No usable cached token, starting authorization...")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully.")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) AuthorizeURL(url string) {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Open this link to authorize:\n%s\n", url)
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) BrowserOpenFailed(err error) {
	fmt.Fprintf(p.w, "Could not open a browser (%v). Open the URL above manually.\n", err)
}

func (p *PlainDisplayer) WaitingForCode(callbackURL string, deadline time.Time) {
	fmt.Fprintf(p.w, "Waiting for the redirect on %s\n", callbackURL)
	if !deadline.IsZero() {
		fmt.Fprintf(p.w, "(giving up in %s)\n", time.Until(deadline).Round(time.Second))
	}
	fmt.Fprintln(p.w, "or paste the code below.")
}

func (p *PlainDisplayer) CodeReceived(source string) {
	fmt.Fprintf(p.w, "\nAuthorization code received from %s.\n", source)
}

func (p *PlainDisplayer) Exchanging() {
	fmt.Fprintln(p.w, "Exchanging code for an access token...")
}

func (p *PlainDisplayer) TokenSaved(path string) {
	fmt.Fprintf(p.w, "Token saved to %s\n", path)
}

func (p *PlainDisplayer) TokenSaveFailed(err error) {
	fmt.Fprintf(p.w, "Warning: Failed to save token: %v\n", err)
}

func (p *PlainDisplayer) Verifying() {
	fmt.Fprintln(p.w, "\nVerifying token...")
}

func (p *PlainDisplayer) VerifyOK(body string) {
	if body != "" {
		fmt.Fprintf(p.w, "Token Info: %s\n", body)
	}
	fmt.Fprintln(p.w, "Token verified successfully!")
}

func (p *PlainDisplayer) VerifyFailed(err error) {
	fmt.Fprintf(p.w, "Token verification failed: %v\n", err)
}

func (p *PlainDisplayer) Done(preview, tokenType string, expiresIn time.Duration) {
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintln(p.w, "Current Token Info:")
	fmt.Fprintf(p.w, "Access Token: %s...\n", preview)
	fmt.Fprintf(p.w, "Token Type: %s\n", tokenType)
	fmt.Fprintf(p.w, "Expires In: %s\n", expiresIn.Round(time.Second))
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                              {}
func (NoopDisplayer) TokensFound()                         {}
func (NoopDisplayer) TokenValid()                          {}
func (NoopDisplayer) TokenExpired()                        {}
func (NoopDisplayer) TokensNotFound()                      {}
func (NoopDisplayer) Refreshing()                          {}
func (NoopDisplayer) RefreshOK()                           {}
func (NoopDisplayer) RefreshFailed(_ error)                {}
func (NoopDisplayer) AuthorizeURL(_ string)                {}
func (NoopDisplayer) BrowserOpenFailed(_ error)            {}
func (NoopDisplayer) WaitingForCode(_ string, _ time.Time) {}
func (NoopDisplayer) CodeReceived(_ string)                {}
func (NoopDisplayer) Exchanging()                          {}
func (NoopDisplayer) TokenSaved(_ string)                  {}
func (NoopDisplayer) TokenSaveFailed(_ error)              {}
func (NoopDisplayer) Verifying()                           {}
func (NoopDisplayer) VerifyOK(_ string)                    {}
func (NoopDisplayer) VerifyFailed(_ error)                 {}
func (NoopDisplayer) Done(_, _ string, _ time.Duration)    {}
func (NoopDisplayer) Fatal(_ error)                        {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program. It also
// collects the authorization code typed into the program's input field.
type ProgramDisplayer struct {
	p     *tea.Program
	codes <-chan string
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p and
// reads submitted codes from codes, the channel given to NewModel.
func NewProgramDisplayer(p *tea.Program, codes <-chan string) *ProgramDisplayer {
	return &ProgramDisplayer{p: p, codes: codes}
}

// Prompt shows the code input field and waits for a submission or ctx.
func (t *ProgramDisplayer) Prompt(ctx context.Context, message string) (string, error) {
	// Discard anything typed before this prompt.
	select {
	case <-t.codes:
	default:
	}

	t.p.Send(MsgPromptCode{Prompt: message})
	select {
	case code := <-t.codes:
		return code, nil
	case <-ctx.Done():
		t.p.Send(MsgPromptCancel{})
		return "", ctx.Err()
	}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) TokensFound() {
	t.p.Send(MsgTokensFound{})
}

func (t *ProgramDisplayer) TokenValid() {
	t.p.Send(MsgTokenValid{})
}

func (t *ProgramDisplayer) TokenExpired() {
	t.p.Send(MsgTokenExpired{})
}

func (t *ProgramDisplayer) TokensNotFound() {
	t.p.Send(MsgTokensNotFound{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) AuthorizeURL(url string) {
	t.p.Send(MsgAuthorizeURL{URL: url})
}

func (t *ProgramDisplayer) BrowserOpenFailed(err error) {
	t.p.Send(MsgBrowserOpenFailed{Err: err})
}

func (t *ProgramDisplayer) WaitingForCode(callbackURL string, deadline time.Time) {
	t.p.Send(MsgWaitingForCode{CallbackURL: callbackURL, Deadline: deadline})
}

func (t *ProgramDisplayer) CodeReceived(source string) {
	t.p.Send(MsgCodeReceived{Source: source})
}

func (t *ProgramDisplayer) Exchanging() {
	t.p.Send(MsgExchanging{})
}

func (t *ProgramDisplayer) TokenSaved(path string) {
	t.p.Send(MsgTokenSaved{Path: path})
}

func (t *ProgramDisplayer) TokenSaveFailed(err error) {
	t.p.Send(MsgTokenSaveFailed{Err: err})
}

func (t *ProgramDisplayer) Verifying() {
	t.p.Send(MsgVerifying{})
}

func (t *ProgramDisplayer) VerifyOK(body string) {
	t.p.Send(MsgVerifyOK{Body: body})
}

func (t *ProgramDisplayer) VerifyFailed(err error) {
	t.p.Send(MsgVerifyFailed{Err: err})
}

func (t *ProgramDisplayer) Done(preview, tokenType string, expiresIn time.Duration) {
	t.p.Send(MsgDone{Preview: preview, TokenType: tokenType, ExpiresIn: expiresIn})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
