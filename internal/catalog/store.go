package catalog

import (
	"context"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the local product catalog. Every call is a full read or a full
// overwrite; there is no locking between concurrent writers.
type Store interface {
	// Load returns the whole collection; a missing backing file is an empty catalog
	Load(ctx context.Context) ([]domain.Product, error)

	// Save replaces the whole collection
	Save(ctx context.Context, products []domain.Product) error
}

// JSONFileStore keeps the catalog as a pretty-printed JSON array in one file
type JSONFileStore struct {
	path string
}

// NewJSONFileStore creates a file-backed store
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Path returns the backing file
func (s *JSONFileStore) Path() string {
	return s.path
}

func (s *JSONFileStore) Load(ctx context.Context) ([]domain.Product, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Product{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", s.path)
	}
	return decodeProducts(data)
}

func (s *JSONFileStore) Save(ctx context.Context, products []domain.Product) error {
	data, err := encodeProducts(products)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create catalog dir")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write catalog %s", s.path)
	}
	zap.L().Debug("catalog saved",
		zap.String("namespace", "catalog"),
		zap.String("path", s.path),
		zap.Int("count", len(products)),
	)
	return nil
}

func decodeProducts(data []byte) ([]domain.Product, error) {
	products := []domain.Product{}
	if len(data) == 0 {
		return products, nil
	}
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return products, nil
}

func encodeProducts(products []domain.Product) ([]byte, error) {
	if products == nil {
		products = []domain.Product{}
	}
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode catalog")
	}
	return data, nil
}

// FindByRemoteID returns the index of the record stamped with the remote id, or -1
func FindByRemoteID(products []domain.Product, remoteID int64) int {
	if remoteID <= 0 {
		return -1
	}
	for i := range products {
		if products[i].RemoteID == remoteID {
			return i
		}
	}
	return -1
}
