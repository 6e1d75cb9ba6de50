// SPDX-License-Identifier: GPL-3.0-or-later
package filters

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jkoelker/go-imap-watch/domain"
	"github.com/jkoelker/go-imap-watch/log"
	"github.com/jkoelker/go-imap-watch/mail"

	"github.com/sirupsen/logrus"
	"github.com/teamwork/spamc"
)

const SpamdTimeout = 20 * time.Second

// Spamd asks a running SpamAssassin daemon for an opinion and acts on
// mails it classifies as spam.
type Spamd struct {
	client *spamc.Client

	action action

	l *logrus.Logger
}

func NewSpamd(host string, action action) (*Spamd, error) {
	client := spamc.New(host, &net.Dialer{
		Timeout: SpamdTimeout,
	})
	err := client.Ping(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("could not ping spamd: %w", err)
	}

	return &Spamd{
		client: client,
		action: action,
		l:      log.Logger(log.LOG_FILTER),
	}, nil
}

func (s *Spamd) Apply(actions domain.MailActions, fetched *domain.FetchedMail) (bool, error) {
	out, err := s.client.Check(context.TODO(), bytes.NewReader(fetched.RawMail), nil)
	if err != nil {
		return false, fmt.Errorf("could not check mail with spamd: %w", err)
	}

	if !out.IsSpam {
		s.l.WithFields(logrus.Fields{"uid": fetched.Uid, "score": out.Score}).Debug("Mail is not spam")
		return false, nil
	}

	s.l.WithFields(logrus.Fields{"uid": fetched.Uid, "subject": mail.ShortSubject(fetched.Envelope.Subject), "score": out.Score}).Info("Mail classified as spam")
	return s.action.take(actions, fetched)
}
