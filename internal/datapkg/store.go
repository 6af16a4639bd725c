package datapkg

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"snesclient/internal/protocol"
)

const clientBucket = "client"

const (
	keyDataPackage        = "dataPackage"
	keyDataPackageVersion = "dataPackageVersion"
	keyClientID           = "clientId"
)

// Store is the BoltDB-backed local cache: the data package keyed by its
// version stamp, and the client identity generated once and reused.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens the local cache at the provided path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(clientBucket))
		if err != nil {
			return fmt.Errorf("create client bucket: %w", err)
		}
		return nil
	})
}

// CachedDataPackage loads the cached package and its version stamp.
// ok is false when no usable cache exists.
func (s *Store) CachedDataPackage() (contents *protocol.DataPackageContents, version int, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(clientBucket))
		rawVersion := bucket.Get([]byte(keyDataPackageVersion))
		rawPackage := bucket.Get([]byte(keyDataPackage))
		if rawVersion == nil || rawPackage == nil {
			return nil
		}

		parsed, convErr := strconv.Atoi(string(rawVersion))
		if convErr != nil {
			return nil
		}

		var decoded protocol.DataPackageContents
		if jsonErr := json.Unmarshal(rawPackage, &decoded); jsonErr != nil {
			return nil
		}

		contents = &decoded
		version = parsed
		ok = true
		return nil
	})
	if err != nil {
		return nil, 0, false, fmt.Errorf("load data package cache: %w", err)
	}
	return contents, version, ok, nil
}

// SaveDataPackage persists a package and its version stamp. Version 0
// denotes a custom, non-cacheable package and is rejected by the caller;
// this method stores whatever it is given.
func (s *Store) SaveDataPackage(contents *protocol.DataPackageContents) error {
	payload, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("marshal data package: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(clientBucket))
		if err := bucket.Put([]byte(keyDataPackageVersion), []byte(strconv.Itoa(contents.Version))); err != nil {
			return err
		}
		return bucket.Put([]byte(keyDataPackage), payload)
	})
	if err != nil {
		return fmt.Errorf("save data package cache: %w", err)
	}
	return nil
}

// ClientID returns the persisted client identity, generating and
// storing one on first use.
func (s *Store) ClientID() (string, error) {
	var id string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(clientBucket))
		if existing := bucket.Get([]byte(keyClientID)); existing != nil {
			id = string(existing)
			return nil
		}
		id = strconv.FormatUint(rand.Uint64(), 10)
		return bucket.Put([]byte(keyClientID), []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("load client id: %w", err)
	}
	return id, nil
}
