package store

import (
	"context"
	"sync"

	"market-pulse-api/pkg/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedRepository decorates a Repository with a ModelCache. Concurrent cache misses for the
// same product share one underlying Load.
//
// Every Save and Evict bumps a per-product generation. A miss only publishes what it read
// when the generation is unchanged, so a load that raced a retrain or an eviction cannot
// put the superseded artifact back into the cache.
type CachedRepository struct {
	repo  Repository
	cache ModelCache
	group singleflight.Group
	log   zerolog.Logger

	mu  sync.Mutex
	gen map[string]uint64
}

// NewCachedRepository wraps repo with cache.
func NewCachedRepository(repo Repository, cache ModelCache, log zerolog.Logger) *CachedRepository {
	return &CachedRepository{repo: repo, cache: cache, log: log, gen: make(map[string]uint64)}
}

func (r *CachedRepository) generation(productID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[productID]
}

// publishIfCurrent stores artifact only when no Save or Evict happened since gen was taken.
func (r *CachedRepository) publishIfCurrent(productID string, gen uint64, artifact *models.ModelArtifact) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[productID] != gen {
		return false
	}
	r.cache.Set(productID, artifact)
	return true
}

// invalidate bumps the generation and replaces (or drops) the cached entry in one step.
func (r *CachedRepository) invalidate(productID string, artifact *models.ModelArtifact) {
	r.mu.Lock()
	r.gen[productID]++
	if artifact != nil {
		r.cache.Set(productID, artifact)
	} else {
		r.cache.Delete(productID)
	}
	r.mu.Unlock()
	r.group.Forget(productID)
}

// Load serves from the cache and coalesces concurrent misses for one id.
func (r *CachedRepository) Load(ctx context.Context, productID string) (*models.ModelArtifact, error) {
	if artifact, ok := r.cache.Get(productID); ok {
		return artifact, nil
	}

	v, err, shared := r.group.Do(productID, func() (interface{}, error) {
		gen := r.generation(productID)
		artifact, err := r.repo.Load(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !r.publishIfCurrent(productID, gen, artifact) {
			r.log.Debug().Str("product_id", productID).Msg("読み込み中にモデルが更新されたためキャッシュしません")
		}
		return artifact, nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("product_id", productID).Bool("shared", shared).Msg("モデルをストアから読み込みました")
	return v.(*models.ModelArtifact), nil
}

// Save persists first and only then publishes the new artifact to the cache.
func (r *CachedRepository) Save(ctx context.Context, productID string, artifact *models.ModelArtifact) error {
	if err := r.repo.Save(ctx, productID, artifact); err != nil {
		return err
	}
	r.invalidate(productID, artifact)
	return nil
}

// Evict removes the artifact from the store, then drops the cached copy.
func (r *CachedRepository) Evict(ctx context.Context, productID string) error {
	err := r.repo.Evict(ctx, productID)
	r.invalidate(productID, nil)
	return err
}

func (r *CachedRepository) List(ctx context.Context) ([]models.TrainingMetadata, error) {
	return r.repo.List(ctx)
}
