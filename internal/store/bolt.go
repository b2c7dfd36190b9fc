// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var macroBucket = []byte("macros")

// Bolt is a BoltDB-backed store. Each macro is one JSON value in the
// "macros" bucket, keyed by its normalized name.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens or creates a Bolt database at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(macroBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Get retrieves a macro by name.
func (b *Bolt) Get(name string) (*Macro, error) {
	var m *Macro
	err := b.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(macroBucket).Get([]byte(Key(name)))
		if bs == nil {
			return nil
		}
		m = &Macro{}
		return json.Unmarshal(bs, m)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading macro %s", name)
	}
	return m, nil
}

// Put stores a macro.
func (b *Bolt) Put(m *Macro) error {
	if err := m.Validate(); err != nil {
		return err
	}
	js, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(macroBucket).Put([]byte(Key(m.Name)), js)
	})
}

// Delete removes a macro by name.
func (b *Bolt) Delete(name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(macroBucket).Delete([]byte(Key(name)))
	})
}

// List returns every macro sorted by name.
func (b *Bolt) List() ([]*Macro, error) {
	var out []*Macro
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(macroBucket).Cursor()
		for k, bs := c.First(); k != nil; k, bs = c.Next() {
			var m Macro
			if err := json.Unmarshal(bs, &m); err != nil {
				return errors.Wrapf(err, "decoding macro %s", k)
			}
			out = append(out, &m)
		}
		return nil
	})
	return out, err
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
