package authorizer

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCode is returned when the user submits an empty code at the console prompt.
	ErrEmptyCode = errors.New("empty code")

	// ErrCodeTimeout is returned when no code arrived within Options.CodeTimeout.
	ErrCodeTimeout = errors.New("timed out waiting for authorization code")

	// ErrPromptInterrupted is returned when the user interrupts the console prompt.
	ErrPromptInterrupted = errors.New("code prompt interrupted")
)

// ConfigError reports a required option that was not set when it was needed.
type ConfigError struct {
	Option string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required option: %s", e.Option)
}

// AuthorizationError is an error redirect from the authorization endpoint,
// e.g. the user denied consent.
type AuthorizationError struct {
	Code        string
	Description string
}

func (e *AuthorizationError) Error() string {
	if e.Description == "" {
		return "authorization failed: " + e.Code
	}
	return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
}
