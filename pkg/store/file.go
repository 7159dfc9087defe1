package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"market-pulse-api/pkg/models"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	artifactPrefix = "xgboost_"
	metadataSuffix = "_metadata.json"
)

// FileRepository stores one JSON artifact plus a metadata sidecar per product in a directory.
type FileRepository struct {
	dir string
	log zerolog.Logger
}

// NewFileRepository creates dir if needed.
func NewFileRepository(dir string, log zerolog.Logger) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("モデルディレクトリの作成に失敗しました: %w", err)
	}
	return &FileRepository{dir: dir, log: log}, nil
}

func (r *FileRepository) artifactPath(productID string) string {
	return filepath.Join(r.dir, artifactPrefix+productID+".json")
}

func (r *FileRepository) metadataPath(productID string) string {
	return filepath.Join(r.dir, artifactPrefix+productID+metadataSuffix)
}

// Load reads and validates the artifact of productID.
func (r *FileRepository) Load(_ context.Context, productID string) (*models.ModelArtifact, error) {
	data, err := os.ReadFile(r.artifactPath(productID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &models.ModelNotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return decodeArtifact(productID, data)
}

// Save writes the artifact and its metadata. Each file is written to a temp file and renamed
// so readers never see a partial artifact.
func (r *FileRepository) Save(_ context.Context, productID string, artifact *models.ModelArtifact) error {
	data, meta, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	if err := writeAtomic(r.dir, r.artifactPath(productID), data); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := writeAtomic(r.dir, r.metadataPath(productID), meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Evict removes both files. Missing files are ignored.
func (r *FileRepository) Evict(_ context.Context, productID string) error {
	for _, p := range []string{r.artifactPath(productID), r.metadataPath(productID)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// List returns metadata of every stored product sorted by product id.
func (r *FileRepository) List(_ context.Context) ([]models.TrainingMetadata, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, artifactPrefix+"*"+metadataSuffix))
	if err != nil {
		return nil, err
	}
	out := make([]models.TrainingMetadata, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}
		fileID := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), artifactPrefix), metadataSuffix)
		var meta models.TrainingMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			r.log.Warn().Err(err).Str("product_id", fileID).Str("path", m).Msg("メタデータを読み込めないため一覧から除外します")
			continue
		}
		if meta.ProductID == "" {
			meta.ProductID = fileID
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
