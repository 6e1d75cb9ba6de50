// SPDX-License-Identifier: GPL-3.0-or-later
package watcher

import (
	"fmt"
	"time"
)

type ConfigFunc func(c *configuration) error

// Catchup resumes from the persisted cursor instead of the mailbox's
// current highest uid, so mails that arrived while the process was
// down get processed too.
func Catchup() ConfigFunc {
	return func(c *configuration) error {
		c.Catchup = true

		return nil
	}
}

func Folder(folder string) ConfigFunc {
	return func(c *configuration) error {
		if len(folder) == 0 {
			return fmt.Errorf("Folder cannot be empty")
		}

		c.Folder = folder
		return nil
	}
}

func IdleTimeout(timeout time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if timeout <= 0 {
			return fmt.Errorf("IdleTimeout must be positive")
		}

		c.IdleTimeout = timeout
		return nil
	}
}

type configuration struct {
	Folder string

	Catchup bool

	// Idle is bounded so servers don't drop the connection as dead; a
	// timeout simply triggers another search cycle.
	IdleTimeout time.Duration
}
