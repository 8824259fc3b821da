package tui

import (
	"time"
)

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgTokensFound signals that a cached token was found on disk.
type MsgTokensFound struct{}

// MsgTokenValid signals that the cached access token is still valid.
type MsgTokenValid struct{}

// MsgTokenExpired signals that the cached access token has expired.
type MsgTokenExpired struct{}

// MsgTokensNotFound signals that no usable token was cached.
type MsgTokensNotFound struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgAuthorizeURL carries the URL the user has to visit.
type MsgAuthorizeURL struct{ URL string }

// MsgBrowserOpenFailed signals that the browser could not be launched.
type MsgBrowserOpenFailed struct{ Err error }

// MsgWaitingForCode signals that the callback listener is up. Deadline is
// zero when the wait is unbounded.
type MsgWaitingForCode struct {
	CallbackURL string
	Deadline    time.Time
}

// MsgPromptCode asks the model to show the code input field.
type MsgPromptCode struct{ Prompt string }

// MsgPromptCancel hides the code input field.
type MsgPromptCancel struct{}

// MsgCodeReceived signals that an authorization code arrived.
type MsgCodeReceived struct{ Source string }

// MsgExchanging signals that the code is being exchanged for a token.
type MsgExchanging struct{}

// MsgTokenSaved signals that the token was saved to disk.
type MsgTokenSaved struct{ Path string }

// MsgTokenSaveFailed signals that saving the token failed.
type MsgTokenSaveFailed struct{ Err error }

// MsgVerifying signals that token verification is in progress.
type MsgVerifying struct{}

// MsgVerifyOK signals that token verification succeeded.
type MsgVerifyOK struct{ Body string }

// MsgVerifyFailed signals that token verification failed.
type MsgVerifyFailed struct{ Err error }

// MsgDone signals successful completion.
type MsgDone struct {
	Preview   string
	TokenType string
	ExpiresIn time.Duration
}

// MsgFatal signals a fatal error that should terminate the flow.
type MsgFatal struct{ Err error }
