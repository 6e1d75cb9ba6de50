// SPDX-License-Identifier: GPL-3.0-or-later
package filterchain

import (
	"fmt"

	"github.com/jkoelker/go-imap-watch/domain"
	"github.com/jkoelker/go-imap-watch/log"
	"github.com/jkoelker/go-imap-watch/mail"

	"github.com/sirupsen/logrus"
)

// Entry is one registered filter. Names come from the registry and
// only exist for logging.
type Entry struct {
	Name   string
	Filter domain.Filter
}

// Chain dispatches a fetched mail through its filters in registration
// order. The first filter reporting a terminal action stops the chain;
// a failing filter is logged and skipped, it neither stops the chain
// nor affects other mails.
type Chain struct {
	entries []Entry

	l *logrus.Logger
}

func New(entries ...Entry) *Chain {
	return &Chain{
		entries: entries,
		l:       log.Logger(log.LOG_FILTERCHAIN),
	}
}

func (c *Chain) Run(actions domain.MailActions, fetched *domain.FetchedMail) {
	baseLogger := c.l.WithFields(logrus.Fields{"uid": fetched.Uid, "subject": mail.ShortSubject(fetched.Envelope.Subject)})

	for _, entry := range c.entries {
		baseLogger.WithFields(logrus.Fields{"filter": entry.Name}).Debug("Sending mail to filter")

		processed, err := c.apply(entry, actions, fetched)
		if err != nil {
			baseLogger.WithFields(logrus.Fields{"filter": entry.Name, "error": err}).Error("Filter failed, continuing with next filter")
			continue
		}

		if processed {
			baseLogger.WithFields(logrus.Fields{"filter": entry.Name}).Info("Filter took terminal action, stopping chain")
			return
		}
	}

	baseLogger.Debug("No filter acted on mail")
}

func (c *Chain) apply(entry Entry, actions domain.MailActions, fetched *domain.FetchedMail) (processed bool, err error) {
	// A misbehaving filter must not take down the worker.
	defer func() {
		if r := recover(); r != nil {
			processed = false
			err = fmt.Errorf("filter panicked: %v", r)
		}
	}()

	return entry.Filter.Apply(actions, fetched)
}
