package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ClientSecrets is the client registration downloaded from a provider console,
// in the layout Google uses for "installed" and "web" applications.
type ClientSecrets struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

type clientSecretsFile struct {
	Installed *ClientSecrets `json:"installed"`
	Web       *ClientSecrets `json:"web"`
}

// LoadClientSecrets reads a client_secret.json file. The "installed" entry is
// preferred over "web" when both are present.
func LoadClientSecrets(path string) (*ClientSecrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets: %w", err)
	}

	var file clientSecretsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}

	secrets := file.Installed
	if secrets == nil {
		secrets = file.Web
	}
	if secrets == nil {
		return nil, errors.New("client secrets file has neither an installed nor a web entry")
	}
	return secrets, nil
}

// RedirectURI returns the first registered redirect URI, or "".
func (c *ClientSecrets) RedirectURI() string {
	if len(c.RedirectURIs) == 0 {
		return ""
	}
	return c.RedirectURIs[0]
}
