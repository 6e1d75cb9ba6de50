// SPDX-License-Identifier: GPL-3.0-or-later
package watcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jkoelker/go-imap-watch/domain"
	"github.com/jkoelker/go-imap-watch/log"

	"github.com/sirupsen/logrus"
)

const DefaultIdleTimeout = 5 * time.Minute

// Enqueuer is the processing pipeline as the watch loop sees it.
type Enqueuer interface {
	Enqueue(uid uint32)
}

// Watcher owns the primary session and the cursor. It alternates
// between searching the folder for uids beyond the cursor and idling
// until the server reports activity. Newly found uids are handed to
// the pipeline in ascending order; the cursor is advanced and
// persisted once per detection cycle.
//
// Errors on the primary session are fatal: the loop prefers to stop
// cleanly and be restarted externally over in-process reconnection.
type Watcher struct {
	connection domain.ImapConnector
	cursors    domain.CursorStore
	pipeline   Enqueuer

	configuration *configuration

	l *logrus.Logger
}

func NewWatcher(connection domain.ImapConnector, cursors domain.CursorStore, pipeline Enqueuer, configFunc ...ConfigFunc) (*Watcher, error) {
	config := &configuration{
		Folder:      "INBOX",
		IdleTimeout: DefaultIdleTimeout,
	}
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &Watcher{
		connection:    connection,
		cursors:       cursors,
		pipeline:      pipeline,
		configuration: config,
		l:             log.Logger(log.LOG_WATCHER),
	}, nil
}

// Run drives detection cycles until ctx is cancelled. It returns nil
// on cancellation and the underlying error when the primary session or
// the cursor store fails.
func (w *Watcher) Run(ctx context.Context) error {
	uidValidity, err := w.connection.Select(w.configuration.Folder)
	if err != nil {
		return fmt.Errorf("could not select folder %s: %w", w.configuration.Folder, err)
	}
	w.l.WithFields(logrus.Fields{"folder": w.configuration.Folder, "uidvalidity": uidValidity}).Debug("Selected folder")

	cursor, err := w.establishCursor()
	if err != nil {
		return err
	}
	w.l.WithFields(logrus.Fields{"folder": w.configuration.Folder, "cursor": cursor}).Info("Watching folder")

	for {
		if ctx.Err() != nil {
			return nil
		}

		cursor, err = w.cycle(cursor)
		if err != nil {
			return err
		}

		reason, err := w.connection.WaitForChange(ctx, w.configuration.IdleTimeout)
		if err != nil {
			return fmt.Errorf("could not wait for folder activity: %w", err)
		}

		if reason == domain.WakeCancelled {
			w.l.Debug("Wait was cancelled, leaving watch loop")
			return nil
		}
		// Activity and timeout both just trigger another search; the
		// notification payload only carries session-local sequence
		// numbers, so it is never trusted for uids.
	}
}

// establishCursor determines where watching starts: the persisted
// cursor when catch-up is requested and one exists, otherwise the
// folder's current highest uid (no backlog is processed in that case).
func (w *Watcher) establishCursor() (uint32, error) {
	if w.configuration.Catchup {
		cursor, found, err := w.cursors.Load(w.configuration.Folder)
		if err != nil {
			return 0, fmt.Errorf("could not load cursor: %w", err)
		}

		if found {
			w.l.WithFields(logrus.Fields{"cursor": cursor}).Info("Catching up from persisted cursor")
			return cursor, nil
		}

		w.l.Info("Catch-up requested but no cursor is persisted, starting fresh")
	}

	cursor, err := w.connection.HighestUid()
	if err != nil {
		return 0, fmt.Errorf("could not determine highest uid: %w", err)
	}

	err = w.cursors.Save(w.configuration.Folder, cursor)
	if err != nil {
		return 0, fmt.Errorf("could not persist starting cursor: %w", err)
	}

	return cursor, nil
}

// cycle runs one detection pass: search the inclusive range cursor:*,
// enqueue everything strictly beyond the cursor in ascending order,
// then advance and persist the cursor. A failed cursor write is fatal,
// continuing past it would reprocess without bound.
func (w *Watcher) cycle(cursor uint32) (uint32, error) {
	results, err := w.connection.UidsFrom(cursor)
	if err != nil {
		return 0, fmt.Errorf("could not search for new uids: %w", err)
	}

	// The search result is not guaranteed to be ordered.
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })

	// The cursor uid itself is only in the result as the range
	// boundary, it was already handed off in a previous cycle.
	newUids := []uint32{}
	for _, uid := range results {
		if uid > cursor {
			newUids = append(newUids, uid)
		}
	}

	if len(newUids) == 0 {
		w.l.WithFields(logrus.Fields{"cursor": cursor}).Debug("No new mails beyond cursor")
		return cursor, nil
	}

	for _, uid := range newUids {
		w.l.WithFields(logrus.Fields{"uid": uid}).Debug("Enqueueing mail for processing")
		w.pipeline.Enqueue(uid)
	}

	newCursor := newUids[len(newUids)-1]
	err = w.cursors.Save(w.configuration.Folder, newCursor)
	if err != nil {
		return 0, fmt.Errorf("could not persist cursor: %w", err)
	}

	w.l.WithFields(logrus.Fields{"newmails": len(newUids), "cursor": newCursor}).Info("Detected new mails")
	return newCursor, nil
}
