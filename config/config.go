// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type FilterConfig struct {
	Type string

	// Action taken on a match. Exactly one of MoveTo/Delete; a filter
	// with neither only flags the mail and lets the chain continue.
	MoveTo string
	Delete bool

	// political: additional patterns on top of the built-in ones
	Patterns []string

	// sender: blocked sender addresses or domains
	Senders []string

	// spamd: host:port of a running spamd instance
	SpamdHost string
}

type Config struct {
	Database string

	ImapHost string
	User     string
	Password string

	Folder string

	Catchup bool
	Workers int

	IdleTimeoutSeconds  int
	PollIntervalSeconds int

	DryRun bool

	Filters []FilterConfig

	Loglevel *string
}

func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		Database:            "watch.db",
		Folder:              "INBOX",
		Workers:             1,
		IdleTimeoutSeconds:  300,
		PollIntervalSeconds: 2,
		DryRun:              true,
	}

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Database, "Database name must not be empty, set to a filename for the sqlite database"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.ImapHost, "ImapHost must not be empty, set to host:port of the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.User, "User must not be empty, set to username on the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Password, "Password must not be empty, set to password of User on the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Folder, "Folder must not be empty, set to the folder to watch"); err != nil {
		return err
	}

	if c.Workers < 1 {
		return fmt.Errorf("Workers must be at least 1, got %d", c.Workers)
	}

	if c.IdleTimeoutSeconds < 1 {
		return fmt.Errorf("IdleTimeoutSeconds must be at least 1, got %d", c.IdleTimeoutSeconds)
	}

	if c.PollIntervalSeconds < 1 {
		return fmt.Errorf("PollIntervalSeconds must be at least 1, got %d", c.PollIntervalSeconds)
	}

	for i, f := range c.Filters {
		if err := validateNonEmptyStringField(f.Type, fmt.Sprintf("Filter %d has no Type, set to one of the registered filter types", i)); err != nil {
			return err
		}

		if len(strings.TrimSpace(f.MoveTo)) > 0 && f.Delete {
			return fmt.Errorf("Filter %d: MoveTo and Delete cannot be set at the same time", i)
		}

		if f.Type == "spamd" {
			if err := validateNonEmptyStringField(f.SpamdHost, fmt.Sprintf("Filter %d: SpamdHost must be set for spamd filters", i)); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
