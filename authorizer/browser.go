package authorizer

import (
	"fmt"
	"os/exec"
)

// Opener launches the user's browser at a URL. Implementations are best effort.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

// Open calls f(url).
func (f OpenerFunc) Open(url string) error {
	return f(url)
}

// NoopOpener never opens anything. It is used in console-only mode and on
// platforms without a known launcher.
type NoopOpener struct{}

// Open does nothing.
func (NoopOpener) Open(string) error { return nil }

type commandOpener struct {
	name string
	args []string
}

// NewOpener returns the launcher for platform, a runtime.GOOS value.
func NewOpener(platform string) Opener {
	switch platform {
	case "linux", "freebsd", "openbsd", "netbsd":
		return commandOpener{name: "xdg-open"}
	case "darwin":
		return commandOpener{name: "open"}
	case "windows":
		return commandOpener{name: "rundll32", args: []string{"url.dll,FileProtocolHandler"}}
	default:
		return NoopOpener{}
	}
}

// Open starts the launcher without waiting for the browser.
func (o commandOpener) Open(url string) error {
	cmd := exec.Command(o.name, append(o.args, url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
