// SPDX-License-Identifier: GPL-3.0-or-later
package filters

import (
	"fmt"

	"github.com/jkoelker/go-imap-watch/domain"
)

// action is what a filter does with a matched mail. Move and delete
// are terminal: the mail is gone from the folder and the chain must
// stop. A flag-only action leaves the mail in place, so the chain may
// keep going.
type action struct {
	moveTo string
	delete bool
}

func (a action) take(actions domain.MailActions, fetched *domain.FetchedMail) (bool, error) {
	if a.delete {
		err := actions.Delete(fetched.Uid)
		if err != nil {
			return false, fmt.Errorf("could not delete mail: %w", err)
		}

		return true, nil
	}

	if len(a.moveTo) > 0 {
		err := actions.Move(fetched.Uid, a.moveTo)
		if err != nil {
			return false, fmt.Errorf("could not move mail: %w", err)
		}

		return true, nil
	}

	err := actions.Flag(fetched.Uid, `\Flagged`)
	if err != nil {
		return false, fmt.Errorf("could not flag mail: %w", err)
	}

	return false, nil
}
