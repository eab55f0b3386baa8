package catalog

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var (
	catalogBucket = []byte("catalog")
	productsKey   = []byte("products")
)

// BoltStore keeps the same whole-collection document in a bbolt bucket.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the database file
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create bolt dir")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(catalogBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create catalog bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.db.View(func(tx *bolt.Tx) error {
		// the value is only valid inside the transaction
		data := tx.Bucket(catalogBucket).Get(productsKey)
		var err error
		products, err = decodeProducts(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *BoltStore) Save(ctx context.Context, products []domain.Product) error {
	data, err := encodeProducts(products)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(catalogBucket).Put(productsKey, data)
	})
}

// Close releases the database file lock
func (s *BoltStore) Close() error {
	return s.db.Close()
}
