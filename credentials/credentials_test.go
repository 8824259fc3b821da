package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestResolve_FlagForms(t *testing.T) {
	tests := [][]string{
		{"--client-id", "clientId", "--secret-key", "secretKey"},
		{"-c", "clientId", "-s", "secretKey"},
		{"--client-id=clientId", "--secret-key=secretKey"},
	}

	for _, args := range tests {
		creds := Resolve(Options{Args: args})
		assert.Equal(t, "clientId", creds.ClientID, "args %v", args)
		assert.Equal(t, "secretKey", creds.ClientSecret, "args %v", args)
	}
}

func TestResolve_Precedence(t *testing.T) {
	env := envOf(map[string]string{
		EnvClientID:  "env-id",
		EnvSecretKey: "env-secret",
	})

	tests := []struct {
		name       string
		opts       Options
		wantID     string
		wantSecret string
	}{
		{
			name:       "env only",
			opts:       Options{Getenv: env},
			wantID:     "env-id",
			wantSecret: "env-secret",
		},
		{
			name:       "flag beats env",
			opts:       Options{Getenv: env, Args: []string{"-c", "flag-id"}},
			wantID:     "flag-id",
			wantSecret: "env-secret",
		},
		{
			name: "explicit beats flag and env",
			opts: Options{
				ClientID:     "explicit-id",
				ClientSecret: "explicit-secret",
				Getenv:       env,
				Args:         []string{"-c", "flag-id", "-s", "flag-secret"},
			},
			wantID:     "explicit-id",
			wantSecret: "explicit-secret",
		},
		{
			name:       "unrecognized flags leave values untouched",
			opts:       Options{Getenv: env, Args: []string{"--verbose", "--scope", "a b"}},
			wantID:     "env-id",
			wantSecret: "env-secret",
		},
		{
			name: "nothing set",
			opts: Options{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := Resolve(tt.opts)
			assert.Equal(t, tt.wantID, creds.ClientID)
			assert.Equal(t, tt.wantSecret, creds.ClientSecret)
		})
	}
}

func TestLoadClientSecrets(t *testing.T) {
	dir := t.TempDir()

	installed := filepath.Join(dir, "installed.json")
	require.NoError(t, os.WriteFile(installed, []byte(`{
		"installed": {
			"client_id": "id.apps.example.com",
			"client_secret": "secret",
			"auth_uri": "https://accounts.example.com/o/oauth2/auth",
			"token_uri": "https://oauth2.example.com/token",
			"redirect_uris": ["http://localhost:8888/callback", "urn:ietf:wg:oauth:2.0:oob"]
		}
	}`), 0o600))

	secrets, err := LoadClientSecrets(installed)
	require.NoError(t, err)
	assert.Equal(t, "id.apps.example.com", secrets.ClientID)
	assert.Equal(t, "secret", secrets.ClientSecret)
	assert.Equal(t, "https://oauth2.example.com/token", secrets.TokenURI)
	assert.Equal(t, "http://localhost:8888/callback", secrets.RedirectURI())

	web := filepath.Join(dir, "web.json")
	require.NoError(t, os.WriteFile(web, []byte(`{"web":{"client_id":"web-id"}}`), 0o600))
	secrets, err = LoadClientSecrets(web)
	require.NoError(t, err)
	assert.Equal(t, "web-id", secrets.ClientID)
	assert.Empty(t, secrets.RedirectURI())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	_, err = LoadClientSecrets(empty)
	assert.Error(t, err)

	_, err = LoadClientSecrets(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
