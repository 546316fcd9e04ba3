// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Store is a durable backend for cache entries. Implementations must be
// safe for concurrent use.
type Store interface {
	// Put persists one entry.
	Put(entry *Entry) error

	// Delete removes one entry by key.
	Delete(key string) error

	// LoadAll returns every persisted entry.
	LoadAll() ([]*Entry, error)

	// Close releases the backend.
	Close() error
}

// BadgerStore persists cache entries in an embedded Badger database with
// per-entry TTL so stale entries expire without a sweep.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerStore opens (or creates) a Badger-backed store at dir.
//
// Inputs:
//
//	dir - Database directory.
//	ttl - Entry time-to-live. Zero disables expiry.
//
// Outputs:
//
//	*BadgerStore - Open store.
//	error - Badger open failure.
func OpenBadgerStore(dir string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

// Put persists an entry under its cache key.
func (s *BadgerStore) Put(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serializing entry %s: %w", entry.Key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(entry.Key), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes an entry. Missing keys are not an error.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// LoadAll returns every unexpired entry. Individual undecodable entries
// are skipped rather than failing the whole load.
func (s *BadgerStore) LoadAll() ([]*Entry, error) {
	var entries []*Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return nil
				}
				entries = append(entries, &entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading badger entries: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
