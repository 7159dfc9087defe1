package store

import (
	"context"
	"errors"
	"fmt"

	"market-pulse-api/pkg/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	artifactKeyPrefix = "artifact:"
	metadataKeyPrefix = "metadata:"
)

// BadgerRepository stores artifacts in BadgerDB. Artifact and metadata are written in one
// transaction.
type BadgerRepository struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) a BadgerDB at dir with badger's own logging disabled.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("BadgerDBのオープンに失敗しました: %w", err)
	}
	return db, nil
}

// NewBadgerRepository wraps an open database.
func NewBadgerRepository(db *badger.DB, log zerolog.Logger) *BadgerRepository {
	return &BadgerRepository{db: db, log: log}
}

// Close closes the underlying database.
func (r *BadgerRepository) Close() error {
	return r.db.Close()
}

// Load reads and validates the artifact of productID.
func (r *BadgerRepository) Load(_ context.Context, productID string) (*models.ModelArtifact, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(artifactKeyPrefix + productID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &models.ModelNotFoundError{ProductID: productID}
		}
		if err != nil {
			return fmt.Errorf("get artifact: %w", err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeArtifact(productID, data)
}

// Save stores the artifact and its metadata atomically.
func (r *BadgerRepository) Save(_ context.Context, productID string, artifact *models.ModelArtifact) error {
	data, meta, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(artifactKeyPrefix+productID), data); err != nil {
			return fmt.Errorf("set artifact: %w", err)
		}
		if err := txn.Set([]byte(metadataKeyPrefix+productID), meta); err != nil {
			return fmt.Errorf("set metadata: %w", err)
		}
		return nil
	})
}

// Evict deletes the artifact and metadata keys.
func (r *BadgerRepository) Evict(_ context.Context, productID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, k := range []string{artifactKeyPrefix + productID, metadataKeyPrefix + productID} {
			if err := txn.Delete([]byte(k)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// List returns metadata of every stored product in key order.
func (r *BadgerRepository) List(_ context.Context) ([]models.TrainingMetadata, error) {
	var out []models.TrainingMetadata
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(metadataKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			keyID := string(item.Key()[len(prefix):])
			var meta models.TrainingMetadata
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				r.log.Warn().Err(err).Str("product_id", keyID).Msg("メタデータを読み込めないため一覧から除外します")
				continue
			}
			if meta.ProductID == "" {
				meta.ProductID = keyID
			}
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	return out, nil
}
