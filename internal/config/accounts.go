package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"draft-relay/internal/model"
)

// AccountSeed is one [[accounts]] entry of the accounts file. It is used
// to register IMAP mailboxes, which have no OAuth connect flow.
type AccountSeed struct {
	Email                   string                 `toml:"email"`
	Name                    string                 `toml:"name"`
	Username                string                 `toml:"username"`
	Password                string                 `toml:"password"`
	IMAPAddr                string                 `toml:"imap_addr"`
	SMTPAddr                string                 `toml:"smtp_addr"`
	NotificationTarget      string                 `toml:"notification_target"`
	AutoScanEnabled         bool                   `toml:"auto_scan_enabled"`
	AutoScanIntervalMinutes int                    `toml:"auto_scan_interval_minutes"`
	Preferences             model.ReplyPreferences `toml:"preferences"`
}

type accountsFile struct {
	Accounts []AccountSeed `toml:"accounts"`
}

func LoadAccountsFile(path string) ([]AccountSeed, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat accounts file %s: %w", path, err)
	}

	var file accountsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}

	for i, seed := range file.Accounts {
		if seed.Email == "" {
			return nil, fmt.Errorf("accounts[%d]: email is required", i)
		}
		if seed.IMAPAddr == "" || seed.SMTPAddr == "" {
			return nil, fmt.Errorf("accounts[%d] (%s): imap_addr and smtp_addr are required", i, seed.Email)
		}
		if seed.Username == "" {
			file.Accounts[i].Username = seed.Email
		}
		if seed.AutoScanIntervalMinutes == 0 {
			file.Accounts[i].AutoScanIntervalMinutes = 5
		}
		if n := file.Accounts[i].AutoScanIntervalMinutes; n < model.MinAutoScanIntervalMinutes || n > model.MaxAutoScanIntervalMinutes {
			return nil, fmt.Errorf("accounts[%d] (%s): auto_scan_interval_minutes must be between 1 and 60", i, seed.Email)
		}
	}

	return file.Accounts, nil
}

// Account builds the model for a seed entry.
func (s AccountSeed) Account() *model.Account {
	account := model.NewAccount(s.Email, s.Name, model.ProviderIMAP, model.Credential{
		Username: s.Username,
		Password: s.Password,
		IMAPAddr: s.IMAPAddr,
		SMTPAddr: s.SMTPAddr,
	})
	account.NotificationTarget = s.NotificationTarget
	account.AutoScanEnabled = s.AutoScanEnabled
	account.AutoScanIntervalMinutes = s.AutoScanIntervalMinutes
	account.ReplyPreferences = s.Preferences
	return account
}
