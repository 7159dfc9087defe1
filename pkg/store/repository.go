// Package store persists per-product model artifacts and caches them in memory.
package store

import (
	"context"
	"fmt"

	"market-pulse-api/pkg/models"

	"github.com/goccy/go-json"
)

// Repository is a keyed store of model artifacts. Load returns *models.ModelNotFoundError
// for unknown ids and *models.CorruptArtifactError for undecodable or incomplete artifacts.
type Repository interface {
	Load(ctx context.Context, productID string) (*models.ModelArtifact, error)
	Save(ctx context.Context, productID string, artifact *models.ModelArtifact) error
	Evict(ctx context.Context, productID string) error
	List(ctx context.Context) ([]models.TrainingMetadata, error)
}

func encodeArtifact(artifact *models.ModelArtifact) ([]byte, []byte, error) {
	data, err := json.Marshal(artifact)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal artifact: %w", err)
	}
	meta, err := json.Marshal(artifact.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, meta, nil
}

func decodeArtifact(productID string, data []byte) (*models.ModelArtifact, error) {
	var artifact models.ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, &models.CorruptArtifactError{ProductID: productID, Err: err}
	}
	if artifact.ProductID == "" {
		artifact.ProductID = productID
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &artifact, nil
}
