// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package database owns the embedded sqlite store shared by the whole
// agent. WAL mode keeps collectors writing while the API reads.
package database

import (
	"embed"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/geotunnel/edge-agent/pkg/util/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Manager wraps the sqlite handle with pragma setup and migrations.
type Manager struct {
	db   *sqlx.DB
	path string
}

// Open connects to the database file, applying pragmas and migrations.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Manager, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating database directory for %s", path)
		}
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", path)
	}
	// sqlite allows a single writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-10000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=30000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "applying %q", p)
		}
	}

	m := &Manager{db: db, path: path}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("database connected: %s (WAL mode enabled)", path)
	return m, nil
}

func (m *Manager) migrate() error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "listing migrations")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		script, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", name)
		}
		if _, err := m.db.Exec(string(script)); err != nil {
			return errors.Wrapf(err, "applying migration %s", name)
		}
		log.Debugf("migration applied: %s", name)
	}
	return nil
}

// DB exposes the underlying handle for the typed stores.
func (m *Manager) DB() *sqlx.DB { return m.db }

// Transaction runs fn inside a transaction, committing on success and
// rolling back on error.
func (m *Manager) Transaction(fn func(tx *sqlx.Tx) error) error {
	tx, err := m.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("rollback failed: %v", rbErr) //nolint:errcheck
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// Ping verifies the connection is alive.
func (m *Manager) Ping() error {
	return errors.Wrap(m.db.Ping(), "pinging database")
}

// Vacuum reclaims space.
func (m *Manager) Vacuum() error {
	_, err := m.db.Exec("VACUUM")
	return errors.Wrap(err, "vacuuming database")
}

// Close closes the database.
func (m *Manager) Close() error {
	return m.db.Close()
}
