package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draft-relay/internal/model"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAccountsFile(t *testing.T) {
	path := writeFile(t, `
[[accounts]]
email = "lab@example.org"
name = "Lab Inbox"
password = "app-password"
imap_addr = "imap.example.org:993"
smtp_addr = "smtp.example.org:587"
notification_target = "+15550001111"
auto_scan_enabled = true

[accounts.preferences]
tone = "friendly"
sign_off = "Cheers"
`)

	seeds, err := LoadAccountsFile(path)
	require.NoError(t, err)
	require.Len(t, seeds, 1)

	seed := seeds[0]
	assert.Equal(t, "lab@example.org", seed.Username)
	assert.Equal(t, 5, seed.AutoScanIntervalMinutes)
	assert.Equal(t, "friendly", seed.Preferences.Tone)

	account := seed.Account()
	assert.Equal(t, model.ProviderIMAP, account.Provider)
	assert.Equal(t, model.ProviderIMAP, account.Credential.Provider)
	assert.Equal(t, "imap.example.org:993", account.Credential.IMAPAddr)
	assert.True(t, account.AutoScanEnabled)
	assert.Equal(t, "+15550001111", account.NotificationTarget)
}

func TestLoadAccountsFileRejectsInvalidEntries(t *testing.T) {
	tests := map[string]string{
		"missing email": `
[[accounts]]
imap_addr = "imap:993"
smtp_addr = "smtp:587"
`,
		"missing servers": `
[[accounts]]
email = "a@example.org"
`,
		"interval out of range": `
[[accounts]]
email = "a@example.org"
imap_addr = "imap:993"
smtp_addr = "smtp:587"
auto_scan_interval_minutes = 90
`,
		"malformed": `[[accounts]`,
	}
	for name, content := range tests {
		content := content
		t.Run(name, func(t *testing.T) {
			_, err := LoadAccountsFile(writeFile(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadAccountsFileMissing(t *testing.T) {
	_, err := LoadAccountsFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
