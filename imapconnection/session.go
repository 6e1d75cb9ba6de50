// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/jkoelker/go-imap-watch/domain"
	"github.com/jkoelker/go-imap-watch/log"
	"github.com/jkoelker/go-imap-watch/mail"

	"github.com/emersion/go-imap"
	move "github.com/emersion/go-imap-move"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

// Factory dials a fresh, short-lived session for every single fetch.
// The primary session spends most of its time in IDLE and cannot
// service fetches, and a mailbox may go hours between mails, so a
// long-lived second connection would just get dropped by the server.
type Factory struct {
	server, user, password string

	dryRun bool

	l *logrus.Logger
}

func NewFactory(server string, user string, password string, dryRun bool) *Factory {
	return &Factory{
		server:   server,
		user:     user,
		password: password,
		dryRun:   dryRun,
		l:        log.Logger(log.LOG_IMAP),
	}
}

func (f *Factory) Dial(folder string) (domain.FetchSession, error) {
	imapClient, err := client.DialTLS(f.server, nil)
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	err = imapClient.Login(f.user, f.password)
	if err != nil {
		return nil, fmt.Errorf("could not login to imap: %w", err)
	}

	session := &Session{
		connection: imapClient,
		folder:     folder,
		dryRun:     f.dryRun,
		l:          f.l,
	}

	uidPlusClient := uidplus.NewClient(imapClient)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		return nil, fmt.Errorf("could not check for UIDPLUS support: %w", err)
	}

	moveClient := move.NewClient(imapClient)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		return nil, fmt.Errorf("could not check for MOVE support: %w", err)
	}

	if uidPlusSupported {
		session.mailDeleter = &uidPlusDeleter{
			flagger:       session,
			uidplusClient: uidPlusClient,
		}
	} else {
		f.l.Debug("UIDPLUS not supported on server, falling back to flag&expunge")
		session.mailDeleter = &compatibilityDeleter{
			connection: imapClient,
			flagger:    session,
		}
	}

	if moveSupported {
		session.mailMover = &moveMover{
			moveClient: moveClient,
		}
	} else {
		f.l.Debug("MOVE not supported on server, falling back to copy&delete")
		session.mailMover = &compatibilityMover{
			connection: imapClient,
			deleter:    session.mailDeleter,
		}
	}

	_, err = imapClient.Select(folder, false)
	if err != nil {
		return nil, fmt.Errorf("could not select folder: %w", err)
	}

	return session, nil
}

// Session is an ephemeral per-fetch connection. It also carries the
// mailbox actions the filter chain may take on the fetched mail.
type Session struct {
	connection *client.Client
	folder     string

	mailDeleter deleter
	mailMover   mover

	dryRun bool

	l *logrus.Logger
}

// FetchFull retrieves envelope and full body for a single uid. It
// returns domain.ErrMailNotFound when the uid no longer exists in the
// folder, which callers treat as "skip, not fatal".
func (s *Session) FetchFull(uid uint32) (*domain.FetchedMail, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}
	fetchItems := []imap.FetchItem{imap.FetchEnvelope, fullBodySection.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.connection.UidFetch(seqset, fetchItems, messages)
	}()

	var fetched *domain.FetchedMail
	for msg := range messages {
		r := msg.GetBody(fullBodySection)
		if r == nil {
			continue
		}

		rawBody, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("could not read mail body: %w", err)
		}

		fetched = &domain.FetchedMail{
			Uid:      msg.Uid,
			Envelope: buildEnvelope(msg.Envelope),
			RawMail:  rawBody,
		}
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch mail: %w", err)
	}

	if fetched == nil {
		return nil, domain.ErrMailNotFound
	}

	return fetched, nil
}

func (s *Session) Move(uid uint32, folder string) error {
	if s.dryRun {
		s.l.WithFields(logrus.Fields{"uid": uid, "destination": folder}).Info("Not moving mail due to dry-run")
		return nil
	}

	return s.mailMover.move([]uint32{uid}, folder)
}

func (s *Session) Delete(uid uint32) error {
	if s.dryRun {
		s.l.WithFields(logrus.Fields{"uid": uid}).Info("Not deleting mail due to dry-run")
		return nil
	}

	return s.mailDeleter.delete([]uint32{uid})
}

func (s *Session) Flag(uid uint32, flags ...string) error {
	if s.dryRun {
		s.l.WithFields(logrus.Fields{"uid": uid, "flags": flags}).Info("Not flagging mail due to dry-run")
		return nil
	}

	items := make([]interface{}, len(flags))
	for i, flag := range flags {
		items[i] = flag
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err := s.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), items, nil)
	if err != nil {
		return fmt.Errorf("could not store flags: %w", err)
	}

	return nil
}

func (s *Session) flagDeleted(uids []uint32) (*imap.SeqSet, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	err := s.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
	if err != nil {
		return nil, fmt.Errorf("could not set delete flag: %w", err)
	}

	return seqset, nil
}

func (s *Session) Close() error {
	return s.connection.Logout()
}

func buildEnvelope(envelope *imap.Envelope) domain.Envelope {
	if envelope == nil {
		return domain.Envelope{}
	}

	senders := []string{}
	for _, addr := range envelope.From {
		senders = append(senders, addr.Address())
	}

	subject, err := mail.DecodeHeader(envelope.Subject)
	if err != nil {
		// An undecodable subject is no reason to drop the mail,
		// filters still get the raw header value.
		subject = envelope.Subject
	}

	return domain.Envelope{
		Sender:  strings.Join(senders, ","),
		Date:    envelope.Date,
		Subject: subject,
	}
}
