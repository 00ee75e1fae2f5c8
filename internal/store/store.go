// Package store keeps encoded carriers between an encode request and the
// download that fetches them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	prefixMeta = "carrier:meta:"
	prefixBlob = "carrier:blob:"

	DefaultTTL = 24 * time.Hour
	gcInterval = 10 * time.Minute
)

var ErrNotFound = errors.New("carrier not found")

// Object describes a stored carrier.
type Object struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	Digest      string    `json:"digest,omitempty"`
	Created     time.Time `json:"created"`
}

type Store struct {
	db  *badger.DB
	ttl time.Duration
	log logrus.FieldLogger
}

type Options struct {
	// Path is the badger directory. Empty keeps everything in memory.
	Path   string
	TTL    time.Duration
	Logger logrus.FieldLogger
}

func Open(o Options) (*Store, error) {
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	opts := badger.DefaultOptions(o.Path).
		WithLogger(o.Logger.WithField("component", "badger")).
		WithLoggingLevel(badger.WARNING)
	if o.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open carrier store: %w", err)
	}
	return &Store{db: db, ttl: o.TTL, log: o.Logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores b under a fresh id. Both entries expire together after the TTL.
func (s *Store) Put(obj Object, b []byte) (Object, error) {
	obj.ID = uuid.NewString()
	obj.Size = len(b)
	if obj.Created.IsZero() {
		obj.Created = time.Now().UTC()
	}
	meta, err := json.Marshal(obj)
	if err != nil {
		return Object{}, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry([]byte(prefixMeta+obj.ID), meta).WithTTL(s.ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(prefixBlob+obj.ID), b).WithTTL(s.ttl))
	})
	if err != nil {
		return Object{}, err
	}
	s.log.WithFields(logrus.Fields{"id": obj.ID, "name": obj.Name, "size": obj.Size}).Debug("carrier stored")
	return obj, nil
}

// Get returns the object and its bytes, or ErrNotFound once it has expired.
func (s *Store) Get(id string) (Object, []byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Object{}, nil, ErrNotFound
	}
	var (
		obj Object
		b   []byte
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixMeta + id))
		if err != nil {
			return err
		}
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &obj) }); err != nil {
			return err
		}
		item, err = txn.Get([]byte(prefixBlob + id))
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Object{}, nil, ErrNotFound
	}
	if err != nil {
		return Object{}, nil, err
	}
	return obj, b, nil
}

// Delete removes a carrier before its TTL runs out. Unknown or expired ids
// give ErrNotFound.
func (s *Store) Delete(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixMeta + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(prefixMeta + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixBlob + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.log.WithField("id", id).Debug("carrier deleted")
	return nil
}

// Run reclaims value log space until ctx is done.
func (s *Store) Run(ctx context.Context) {
	if s.db.Opts().InMemory {
		return
	}
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}
