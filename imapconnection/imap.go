// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"context"
	"fmt"
	"time"

	"github.com/jkoelker/go-imap-watch/domain"
	"github.com/jkoelker/go-imap-watch/log"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

// ImapConnection is the primary, long-lived session owned by the watch
// loop. It alternates between uid searches and IDLE; it must never be
// used for fetches while idling, which is why workers dial their own
// sessions through Factory.
type ImapConnection struct {
	connection *client.Client

	server, user, password string

	selectedFolder string

	l *logrus.Logger
}

func NewImapConnection(server string, user string, password string) (*ImapConnection, error) {
	imapClient, err := client.DialTLS(server, nil)
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	err = imapClient.Login(user, password)
	if err != nil {
		return nil, fmt.Errorf("could not login to imap: %w", err)
	}

	conn := &ImapConnection{
		connection: imapClient,
		server:     server,
		user:       user,
		password:   password,
		l:          log.Logger(log.LOG_IMAP),
	}

	conn.l.WithFields(logrus.Fields{"server": server}).Debug("Logged in to server")

	return conn, nil
}

func (ic *ImapConnection) Select(folder string) (uint32, error) {
	m, err := ic.connection.Select(folder, false)
	if err != nil {
		return 0, fmt.Errorf("could not select folder: %w", err)
	}

	ic.selectedFolder = folder
	return m.UidValidity, nil
}

// HighestUid returns the uid of the most recent mail in the selected
// folder, or 0 when the folder is empty.
func (ic *ImapConnection) HighestUid() (uint32, error) {
	seqset, err := imap.ParseSeqSet("*")
	if err != nil {
		return 0, fmt.Errorf("could not build seqset: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Uid = seqset
	ids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("could not search for highest uid: %w", err)
	}

	highest := uint32(0)
	for _, id := range ids {
		if id > highest {
			highest = id
		}
	}

	return highest, nil
}

// UidsFrom lists all uids in the inclusive range lowest:*. The server
// does not guarantee any ordering of the result.
func (ic *ImapConnection) UidsFrom(lowest uint32) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Uid = uidRange(lowest)
	ids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search uid range: %w", err)
	}

	return ids, nil
}

// uidRange builds the seqset lowest:*. A zero start must be clamped:
// uids begin at 1, and the range 0:* collapses to the seqset "*",
// which matches only the single highest uid.
func uidRange(lowest uint32) *imap.SeqSet {
	if lowest == 0 {
		lowest = 1
	}

	seqset := &imap.SeqSet{}
	seqset.AddRange(lowest, 0)
	return seqset
}

// WaitForChange idles until the server reports folder activity, the
// timeout elapses or ctx is cancelled. A timeout is a normal wake, not
// an error; the caller simply searches again.
func (ic *ImapConnection) WaitForChange(ctx context.Context, timeout time.Duration) (domain.WakeReason, error) {
	updates := make(chan client.Update, 16)
	ic.connection.Updates = updates

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.Idle(stop, nil)
	}()

	reason, idleErr := awaitWake(ctx, timeout, updates, done, stop)

	// Detach the updates channel before it goes out of scope so the
	// client never blocks trying to deliver to it.
	ic.connection.Updates = nil
	for {
		select {
		case <-updates:
			continue
		default:
		}
		break
	}

	if idleErr != nil {
		return reason, fmt.Errorf("idle failed: %w", idleErr)
	}

	ic.l.WithFields(logrus.Fields{"folder": ic.selectedFolder, "reason": reason}).Debug("Woke up from idle")
	return reason, nil
}

// awaitWake waits for the first wake condition, then stops the idle
// and keeps consuming updates until it has returned. A server burst
// can fill the updates buffer; the client's reader then blocks on the
// next send, so waiting for the completion alone would deadlock.
func awaitWake(ctx context.Context, timeout time.Duration, updates <-chan client.Update, done <-chan error, stop chan<- struct{}) (domain.WakeReason, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	reason := domain.WakeTimeout
	var idleErr error
	finished := false

	select {
	case <-updates:
		reason = domain.WakeActivity
	case <-timer.C:
		reason = domain.WakeTimeout
	case <-ctx.Done():
		reason = domain.WakeCancelled
	case idleErr = <-done:
		// Idle ended on its own, either a protocol error or a server
		// that terminated the command after signalling activity.
		reason = domain.WakeActivity
		finished = true
	}

	close(stop)

	for !finished {
		select {
		case <-updates:
		case idleErr = <-done:
			finished = true
		}
	}

	return reason, idleErr
}

func (ic *ImapConnection) Close() error {
	return ic.connection.Logout()
}
