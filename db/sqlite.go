package db

import (
	"database/sql"
	"errors"
	"fmt"

	"athena/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS variables (
	scope  INTEGER NOT NULL,
	owner  INTEGER NOT NULL,
	name   TEXT    NOT NULL,
	idx    INTEGER NOT NULL,
	num    INTEGER NOT NULL DEFAULT 0,
	str    TEXT    NOT NULL DEFAULT '',
	is_str INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (scope, owner, name, idx)
)`

// SQLiteBackend persists variables in a SQLite database
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at dsn
func OpenSQLite(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// one writer; the scheduler serialises scripts anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Load(k Key) (types.Value, bool, error) {
	var (
		num   int64
		str   string
		isStr bool
	)
	err := b.db.QueryRow(
		`SELECT num, str, is_str FROM variables WHERE scope = ? AND owner = ? AND name = ? AND idx = ?`,
		int(k.Scope), k.Owner, k.Name, k.Index,
	).Scan(&num, &str, &isStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if isStr {
		return types.NewStr(str), true, nil
	}
	return types.NewInt(num), true, nil
}

func (b *SQLiteBackend) Save(k Key, v types.Value) error {
	var (
		num   int64
		str   string
		isStr bool
	)
	if types.IsString(v) {
		str, isStr = v.String(), true
	} else {
		num, _ = types.ToInt(v)
	}
	_, err := b.db.Exec(
		`INSERT INTO variables (scope, owner, name, idx, num, str, is_str) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (scope, owner, name, idx) DO UPDATE SET num = excluded.num, str = excluded.str, is_str = excluded.is_str`,
		int(k.Scope), k.Owner, k.Name, k.Index, num, str, isStr,
	)
	return err
}

func (b *SQLiteBackend) Delete(k Key) error {
	_, err := b.db.Exec(
		`DELETE FROM variables WHERE scope = ? AND owner = ? AND name = ? AND idx = ?`,
		int(k.Scope), k.Owner, k.Name, k.Index,
	)
	return err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
