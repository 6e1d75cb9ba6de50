// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/imap.go -package=mocks . ImapConnector,FetchSession,SessionFactory

// ErrMailNotFound is returned by FetchFull when the uid vanished
// between detection and fetch (deleted by another client). Callers
// skip the mail, this is not fatal.
var ErrMailNotFound = errors.New("mail no longer exists in folder")

type WakeReason int

const (
	WakeActivity  = WakeReason(0)
	WakeTimeout   = WakeReason(1)
	WakeCancelled = WakeReason(2)
)

// ImapConnector is the primary, long-lived session owned by the watch
// loop. It is the only session that enters IDLE and must never be
// shared with the pipeline workers.
type ImapConnector interface {
	Select(folder string) (uint32, error)
	HighestUid() (uint32, error)
	UidsFrom(lowest uint32) ([]uint32, error)
	WaitForChange(ctx context.Context, timeout time.Duration) (WakeReason, error)

	Close() error
}

// MailActions is the mailbox surface filters may act on. A filter that
// used one of these to move or delete the mail it was given must
// report a terminal action to the chain.
type MailActions interface {
	Move(uid uint32, folder string) error
	Delete(uid uint32) error
	Flag(uid uint32, flags ...string) error
}

// FetchSession is a short-lived secondary session opened by a worker
// for a single mail: fetch, run the chain (which may act through
// MailActions), close.
type FetchSession interface {
	MailActions

	FetchFull(uid uint32) (*FetchedMail, error)
	Close() error
}

type SessionFactory interface {
	Dial(folder string) (FetchSession, error)
}
