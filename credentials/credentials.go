// Package credentials resolves the OAuth client id and secret from explicit
// options, command-line arguments and the process environment.
package credentials

import (
	"io"

	"github.com/spf13/pflag"
)

// Environment variables consulted when neither an explicit value nor a flag is given.
const (
	EnvClientID  = "AAUTH_CLIENT_ID"
	EnvSecretKey = "AAUTH_SECRET_KEY"
)

// Options are the inputs to Resolve.
type Options struct {
	// ClientID and ClientSecret win over every other source when set.
	ClientID     string
	ClientSecret string

	// Args is the argument vector without the program name. Only
	// --client-id/-c and --secret-key/-s are read; other flags are ignored.
	Args []string

	// Getenv looks up environment variables. Nil disables the environment source.
	Getenv func(string) string
}

// Credentials is the resolved client id/secret pair. Either may be empty.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Resolve merges the sources with priority: explicit option > flag > env > absent.
// Missing values are not an error here; consumers fail when they need them.
func Resolve(opts Options) Credentials {
	var creds Credentials

	if opts.Getenv != nil {
		creds.ClientID = opts.Getenv(EnvClientID)
		creds.ClientSecret = opts.Getenv(EnvSecretKey)
	}

	if len(opts.Args) > 0 {
		flagID, flagSecret := parseArgs(opts.Args)
		if flagID != "" {
			creds.ClientID = flagID
		}
		if flagSecret != "" {
			creds.ClientSecret = flagSecret
		}
	}

	if opts.ClientID != "" {
		creds.ClientID = opts.ClientID
	}
	if opts.ClientSecret != "" {
		creds.ClientSecret = opts.ClientSecret
	}

	return creds
}

// FlagSet returns a flag set describing the credential flags, bound to the given targets.
// The CLI merges it into its own flag set for usage output.
func FlagSet(clientID, secretKey *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("credentials", pflag.ContinueOnError)
	fs.StringVarP(clientID, "client-id", "c", "", "OAuth client ID (or "+EnvClientID+" env)")
	fs.StringVarP(secretKey, "secret-key", "s", "", "OAuth client secret (or "+EnvSecretKey+" env)")
	return fs
}

func parseArgs(args []string) (clientID, secretKey string) {
	fs := FlagSet(&clientID, &secretKey)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	// A malformed credential flag (e.g. missing value) leaves both values unset.
	if err := fs.Parse(args); err != nil {
		return "", ""
	}
	return clientID, secretKey
}
