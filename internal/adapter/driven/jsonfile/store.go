// Package jsonfile implements the CredentialStore port on a single JSON
// file keyed by domain. Existing acmedns.json credential files load
// unchanged.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/natefinch/atomic"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*Store)(nil)

// Store keeps credential records in memory, keyed by registered domain,
// and persists them to a JSON file on Save. It is not safe for concurrent
// use.
type Store struct {
	path    string
	records map[string]model.CredentialRecord
}

// Open reads the store file at path. A missing or empty file yields an
// empty store; an unreadable or malformed file is a StorageError, so a
// present-but-broken store never silently triggers re-registration.
func Open(path string) (*Store, error) {
	store := &Store{
		path:    path,
		records: make(map[string]model.CredentialRecord),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, &model.StorageError{Path: path, Op: "read", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return store, nil
	}

	if err := json.Unmarshal(data, &store.records); err != nil {
		return nil, &model.StorageError{Path: path, Op: "parse", Err: err}
	}
	for domain, rec := range store.records {
		rec.Domain = domain
		store.records[domain] = rec
	}

	return store, nil
}

// Fetch returns the record for domain, or (nil, nil) when none is stored.
// A wildcard domain resolves to its base domain's record.
func (s *Store) Fetch(ctx context.Context, domain string) (*model.CredentialRecord, error) {
	rec, ok := s.records[model.NormalizeDomain(domain)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put stages a record under its normalized domain. The file is not touched
// until Save.
func (s *Store) Put(ctx context.Context, rec model.CredentialRecord) error {
	rec.Domain = model.NormalizeDomain(rec.Domain)
	s.records[rec.Domain] = rec
	return nil
}

// Save writes all records to the store file. The write is atomic, so a
// crash mid-save leaves the previous file intact; a fresh file is created
// with mode 0600.
func (s *Store) Save(ctx context.Context) error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return &model.StorageError{Path: s.path, Op: "encode", Err: err}
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return &model.StorageError{Path: s.path, Op: "write", Err: err}
	}
	return nil
}

// All returns every stored record keyed by domain.
func (s *Store) All(ctx context.Context) (map[string]model.CredentialRecord, error) {
	out := make(map[string]model.CredentialRecord, len(s.records))
	for domain, rec := range s.records {
		out[domain] = rec
	}
	return out, nil
}
