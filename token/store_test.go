package token

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadSoftFailures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		create  bool
	}{
		{name: "missing file"},
		{name: "malformed json", content: "{not json", create: true},
		{name: "empty object", content: "{}", create: true},
		{name: "wrong shape", content: `["a","b"]`, create: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if tt.create {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			}
			assert.Nil(t, NewStore(path, nil).Load())
		})
	}
}

func TestStore_SaveStampsCreatedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := NewStore(path, nil)
	now := time.UnixMilli(1_700_000_000_123)

	saved, err := store.Save(&AccessToken{
		AccessToken:  "token",
		ExpiresIn:    1200,
		RefreshToken: "refresh",
		CreatedAt:    42, // provider supplied, must be overwritten
	}, now)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), saved.CreatedAt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk AccessToken
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, *saved, onDisk)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded := store.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, *saved, *loaded)
}

func TestStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewStore(path, nil)
	now := time.Now()

	_, err := store.Save(&AccessToken{AccessToken: "first", ExpiresIn: 60, RefreshToken: "r1", Scope: "a"}, now)
	require.NoError(t, err)
	_, err = store.Save(&AccessToken{AccessToken: "second", ExpiresIn: 60}, now)
	require.NoError(t, err)

	loaded := store.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, "second", loaded.AccessToken)
	assert.Empty(t, loaded.RefreshToken)
	assert.Empty(t, loaded.Scope)
}

func TestIsExpired(t *testing.T) {
	created := time.UnixMilli(1_000_000)
	tok := &AccessToken{AccessToken: "t", ExpiresIn: 60, CreatedAt: created.UnixMilli()}
	store := NewStore(filepath.Join(t.TempDir(), "t.json"), nil)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just issued", created, false},
		{"one ms before expiry", created.Add(60*time.Second - time.Millisecond), false},
		{"exactly at expiry", created.Add(60 * time.Second), true},
		{"after expiry", created.Add(time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.IsExpired(tok, tt.now))
		})
	}

	assert.Equal(t, created.Add(60*time.Second), tok.ExpiresAt())
}

func TestAccessToken_OAuth2(t *testing.T) {
	tok := &AccessToken{AccessToken: "a", RefreshToken: "r", ExpiresIn: 10, CreatedAt: 5_000}
	o := tok.OAuth2()
	assert.Equal(t, "a", o.AccessToken)
	assert.Equal(t, "r", o.RefreshToken)
	assert.Equal(t, "Bearer", o.TokenType)
	assert.Equal(t, time.UnixMilli(15_000), o.Expiry)
}
