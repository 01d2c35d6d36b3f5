// Package db persists light client state in a pebble key-value store.
package db

import (
	"encoding/json"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "db")

// ErrNotFound is returned for missing keys.
var ErrNotFound = errors.New("not found")

// KeyValueStore is the storage the light client needs.
type KeyValueStore interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// NewBatch returns a write batch that is applied atomically by Write.
	NewBatch() Batch
	Close() error
}

// Batch buffers writes until Write is called.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	Write() error
}

// Database is a KeyValueStore backed by pebble.
type Database struct {
	path string
	db   *pebble.DB
}

const minHandles = 16

func open(path string, fs vfs.FS, handles int, readonly bool) (*Database, error) {
	if handles < minHandles {
		handles = minHandles
	}
	db, err := pebble.Open(path, &pebble.Options{
		FS:           fs,
		MaxOpenFiles: handles,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
		},
		ReadOnly: readonly,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open database at %q", path)
	}
	return &Database{path: path, db: db}, nil
}

// New opens the pebble database in path, creating it if needed.
func New(path string, handles int, readonly bool) (*Database, error) {
	db, err := open(path, vfs.Default, handles, readonly)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"path": path, "handles": handles, "readonly": readonly}).Info("Opened database")
	return db, nil
}

// NewMemory returns a database that lives in memory only.
func NewMemory() (*Database, error) {
	return open("", vfs.NewMem(), minHandles, false)
}

func (db *Database) Path() string {
	return db.path
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Has(key []byte) (bool, error) {
	_, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (db *Database) Get(key []byte) ([]byte, error) {
	dat, closer, err := db.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	ret := make([]byte, len(dat))
	copy(ret, dat)
	closer.Close()
	return ret, nil
}

// Set writes key synchronously. The store is small and rarely written, so
// every write is made durable.
func (db *Database) Set(key, value []byte) error {
	return db.db.Set(key, value, pebble.Sync)
}

func (db *Database) Delete(key []byte) error {
	return db.db.Delete(key, pebble.Sync)
}

func (db *Database) NewBatch() Batch {
	return &batch{b: db.db.NewBatch()}
}

type batch struct {
	b *pebble.Batch
}

func (b *batch) Set(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	return b.b.Delete(key, nil)
}

func (b *batch) Write() error {
	return b.b.Commit(pebble.Sync)
}

// ReadJSON decodes the value at key into v.
func ReadJSON(db KeyValueStore, key string, v interface{}) error {
	blob, err := db.Get([]byte(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return errors.Wrapf(err, "could not decode %q", key)
	}
	return nil
}

// WriteJSON encodes v into the value at key.
func WriteJSON(w interface{ Set(key, value []byte) error }, key string, v interface{}) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "could not encode %q", key)
	}
	return w.Set([]byte(key), blob)
}
