package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProductID is returned for empty, overlong or non-alphanumeric product ids.
	ErrInvalidProductID = errors.New("無効な製品IDです（英数字・アンダースコア・ハイフン・空白、1〜100文字）")
	// ErrInvalidRequest wraps every other caller-side validation failure.
	ErrInvalidRequest = errors.New("リクエストが不正です")
)

// DataInsufficientError 学習に必要な日数が不足している
type DataInsufficientError struct {
	Required int
	Actual   int
}

func (e *DataInsufficientError) Error() string {
	return fmt.Sprintf("データ不足: 最低%d日分が必要ですが、%d日分しかありません (required=%d, actual=%d)",
		e.Required, e.Actual, e.Required, e.Actual)
}

// SchemaError 必須フィールドが欠落している
type SchemaError struct {
	Field  string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		if e.Row > 0 {
			return fmt.Sprintf("フィールド '%s' が不正です (行 %d): %s", e.Field, e.Row, e.Reason)
		}
		return fmt.Sprintf("フィールド '%s' が不正です: %s", e.Field, e.Reason)
	}
	if e.Row > 0 {
		return fmt.Sprintf("必須フィールド '%s' がありません (行 %d)", e.Field, e.Row)
	}
	return fmt.Sprintf("必須フィールド '%s' がありません", e.Field)
}

// ModelNotFoundError 製品の学習済みモデルが存在しない
type ModelNotFoundError struct {
	ProductID string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("製品 %s の学習済みモデルが見つかりません", e.ProductID)
}

// CorruptArtifactError モデルは読み込めたが必要な要素が欠けている
type CorruptArtifactError struct {
	ProductID string
	Missing   []string
	Err       error
}

func (e *CorruptArtifactError) Error() string {
	msg := fmt.Sprintf("製品 %s のモデルファイルが破損しています", e.ProductID)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (欠落: %s)", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + "。再学習してください"
}

func (e *CorruptArtifactError) Unwrap() error { return e.Err }

// TrainingFailureError 回帰モデルの学習に失敗した
type TrainingFailureError struct {
	Stage string
	Err   error
}

func (e *TrainingFailureError) Error() string {
	return fmt.Sprintf("モデル学習に失敗しました (%s): %v", e.Stage, e.Err)
}

func (e *TrainingFailureError) Unwrap() error { return e.Err }

// Validate reports which required parts of the artifact are absent.
func (a *ModelArtifact) Validate() error {
	var missing []string
	if a.Models.Lower == nil || len(a.Models.Lower.Trees) == 0 {
		missing = append(missing, "models.lower")
	}
	if a.Models.Median == nil || len(a.Models.Median.Trees) == 0 {
		missing = append(missing, "models.median")
	}
	if a.Models.Upper == nil || len(a.Models.Upper.Trees) == 0 {
		missing = append(missing, "models.upper")
	}
	if len(a.FeatureColumns) == 0 {
		missing = append(missing, "feature_columns")
	}
	if len(a.History) == 0 {
		missing = append(missing, "history")
	}
	if len(missing) == 0 {
		nf := len(a.FeatureColumns)
		if !a.Models.Lower.Valid(nf) || !a.Models.Median.Valid(nf) || !a.Models.Upper.Valid(nf) {
			missing = append(missing, "models")
		}
	}
	if len(missing) > 0 {
		return &CorruptArtifactError{ProductID: a.ProductID, Missing: missing}
	}
	return nil
}
