// Package sqlite implements the CredentialStore port on an embedded SQLite
// database, for installations that prefer a queryable store over the JSON
// file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*RecordRepo)(nil)

// RecordRepo is the SQLite implementation of the CredentialStore port.
// Put stages records in memory; Save commits all staged records in one
// transaction, mirroring the all-or-nothing semantics of the file store.
type RecordRepo struct {
	db     *DB
	staged map[string]model.CredentialRecord
}

// NewRecordRepo creates a RecordRepo on an open database.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{
		db:     db,
		staged: make(map[string]model.CredentialRecord),
	}
}

// Fetch returns the record for domain, or (nil, nil) when none is stored.
// Staged records win over persisted ones; a wildcard domain resolves to
// its base domain's record.
func (r *RecordRepo) Fetch(ctx context.Context, domain string) (*model.CredentialRecord, error) {
	key := model.NormalizeDomain(domain)
	if rec, ok := r.staged[key]; ok {
		return &rec, nil
	}

	const query = `SELECT username, password, fulldomain, subdomain, allow_from FROM records WHERE domain = ?`

	rec := model.CredentialRecord{Domain: key}
	var allowFrom string
	err := r.db.Conn.QueryRowContext(ctx, query, key).Scan(
		&rec.Username, &rec.Password, &rec.FullDomain, &rec.SubDomain, &allowFrom,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Path: r.db.path, Op: "read", Err: err}
	}

	if err := json.Unmarshal([]byte(allowFrom), &rec.AllowFrom); err != nil {
		return nil, &model.StorageError{Path: r.db.path, Op: "read", Err: fmt.Errorf("allow_from for %s: %w", key, err)}
	}

	return &rec, nil
}

// Put stages a record under its normalized domain. The database is not
// touched until Save.
func (r *RecordRepo) Put(ctx context.Context, rec model.CredentialRecord) error {
	rec.Domain = model.NormalizeDomain(rec.Domain)
	r.staged[rec.Domain] = rec
	return nil
}

// Save commits all staged records in a single transaction and clears the
// stage. Existing rows for the same domain are replaced.
func (r *RecordRepo) Save(ctx context.Context) error {
	if len(r.staged) == 0 {
		return nil
	}

	tx, err := r.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return &model.StorageError{Path: r.db.path, Op: "write", Err: err}
	}
	defer tx.Rollback()

	const query = `INSERT OR REPLACE INTO records (domain, username, password, fulldomain, subdomain, allow_from, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`

	for domain, rec := range r.staged {
		allowFrom, err := json.Marshal(rec.AllowFrom)
		if err != nil {
			return &model.StorageError{Path: r.db.path, Op: "write", Err: fmt.Errorf("allow_from for %s: %w", domain, err)}
		}
		if _, err := tx.ExecContext(ctx, query, domain, rec.Username, rec.Password, rec.FullDomain, rec.SubDomain, string(allowFrom)); err != nil {
			return &model.StorageError{Path: r.db.path, Op: "write", Err: fmt.Errorf("record for %s: %w", domain, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &model.StorageError{Path: r.db.path, Op: "write", Err: err}
	}

	r.staged = make(map[string]model.CredentialRecord)
	return nil
}

// All returns every record keyed by domain, staged records included.
func (r *RecordRepo) All(ctx context.Context) (map[string]model.CredentialRecord, error) {
	const query = `SELECT domain, username, password, fulldomain, subdomain, allow_from FROM records ORDER BY domain`

	rows, err := r.db.Conn.QueryContext(ctx, query)
	if err != nil {
		return nil, &model.StorageError{Path: r.db.path, Op: "read", Err: err}
	}
	defer rows.Close()

	out := make(map[string]model.CredentialRecord)
	for rows.Next() {
		var rec model.CredentialRecord
		var allowFrom string
		if err := rows.Scan(&rec.Domain, &rec.Username, &rec.Password, &rec.FullDomain, &rec.SubDomain, &allowFrom); err != nil {
			return nil, &model.StorageError{Path: r.db.path, Op: "read", Err: err}
		}
		if err := json.Unmarshal([]byte(allowFrom), &rec.AllowFrom); err != nil {
			return nil, &model.StorageError{Path: r.db.path, Op: "read", Err: fmt.Errorf("allow_from for %s: %w", rec.Domain, err)}
		}
		out[rec.Domain] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Path: r.db.path, Op: "read", Err: err}
	}

	for domain, rec := range r.staged {
		out[domain] = rec
	}

	return out, nil
}
