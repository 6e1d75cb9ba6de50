// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jkoelker/go-imap-watch/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-cursors",
			Up: []string{
				`CREATE TABLE cursors (
					folder TEXT NOT NULL PRIMARY KEY,
					uid INTEGER NOT NULL
				)`,
			},
			Down: []string{`DROP TABLE cursors`},
		},
	},
}

type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func NewPersistence(datasource string) (*Persistence, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Info("Connected")

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return nil, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrations, migrate.Up)
	if err != nil {
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Persistence{
		db: db,
		l:  l,
	}, nil
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

// Load returns the persisted cursor for folder, or found=false when
// this folder has never been watched before.
func (p *Persistence) Load(folder string) (uint32, bool, error) {
	var uid uint32
	err := p.db.Get(
		&uid,
		`SELECT uid FROM cursors WHERE folder = ?`,
		folder,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("could not query db: %w", err)
	}

	p.l.WithFields(logrus.Fields{"folder": folder, "uid": uid}).Debug("Loaded cursor")
	return uid, true, nil
}

// Save overwrites the cursor for folder, last write wins.
func (p *Persistence) Save(folder string, uid uint32) error {
	_, err := p.db.Exec(
		"INSERT OR REPLACE INTO cursors (folder, uid) VALUES (?, ?)",
		folder,
		uid,
	)

	if err != nil {
		return fmt.Errorf("could not save cursor: %w", err)
	}

	p.l.WithFields(logrus.Fields{"folder": folder, "uid": uid}).Debug("Persisted cursor")
	return nil
}
