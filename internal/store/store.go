package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/poe/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is recorded in PRAGMA user_version. A database written by a
// newer schema is refused rather than silently reused.
const schemaVersion = 1

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store holds claim records, the event journal and the chain height in one
// SQLite file. Several processes may open the same file; every claim write
// is a single conditional statement, so uniqueness and ownership checks
// hold across them.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and brings its schema to
// schemaVersion.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection per handle; other handles and processes wait on
	// busy_timeout
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if version < schemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores rec unless claim is already registered.
func (s *Store) Insert(ctx context.Context, claim ir.Claim, rec ir.Record) (bool, error) {
	at, err := rec.RegisteredAt.Int64()
	if err != nil {
		return false, fmt.Errorf("insert claim: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO claims (claim_key, claim, owner, registered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(claim_key) DO NOTHING
	`, ir.ClaimKey(claim), blob(claim), string(rec.Owner), at)
	if err != nil {
		return false, fmt.Errorf("insert claim: %w", err)
	}
	return changedOne(res, "insert claim")
}

// Replace overwrites the record for claim if owner holds it.
func (s *Store) Replace(ctx context.Context, claim ir.Claim, owner ir.AccountID, rec ir.Record) (bool, error) {
	at, err := rec.RegisteredAt.Int64()
	if err != nil {
		return false, fmt.Errorf("replace claim: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE claims SET owner = ?, registered_at = ?
		WHERE claim_key = ? AND owner = ?
	`, string(rec.Owner), at, ir.ClaimKey(claim), string(owner))
	if err != nil {
		return false, fmt.Errorf("replace claim: %w", err)
	}
	return changedOne(res, "replace claim")
}

// Remove deletes claim if owner holds it.
func (s *Store) Remove(ctx context.Context, claim ir.Claim, owner ir.AccountID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM claims WHERE claim_key = ? AND owner = ?
	`, ir.ClaimKey(claim), string(owner))
	if err != nil {
		return false, fmt.Errorf("remove claim: %w", err)
	}
	return changedOne(res, "remove claim")
}

// changedOne reports whether a keyed write matched its row.
func changedOne(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n == 1, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
