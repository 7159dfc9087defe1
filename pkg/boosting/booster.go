// Package boosting implements gradient-boosted regression trees with squared-error and
// quantile (pinball) objectives, early stopping, and row/column subsampling.
package boosting

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Objective selects the training loss.
type Objective string

const (
	ObjectiveSquaredError Objective = "reg:squarederror"
	ObjectiveQuantile     Objective = "reg:quantileerror"
)

var (
	ErrEmptyInput        = errors.New("boosting: empty training set")
	ErrDimensionMismatch = errors.New("boosting: dimension mismatch")
	ErrNonFinite         = errors.New("boosting: non-finite value in input")
	ErrInvalidParams     = errors.New("boosting: invalid parameters")
)

// Params mirrors the usual xgboost knobs.
type Params struct {
	Objective           Objective `json:"objective"`
	QuantileAlpha       float64   `json:"quantile_alpha,omitempty"`
	MaxDepth            int       `json:"max_depth"`
	LearningRate        float64   `json:"learning_rate"`
	NEstimators         int       `json:"n_estimators"`
	Subsample           float64   `json:"subsample"`
	ColsampleByTree     float64   `json:"colsample_bytree"`
	MinChildWeight      float64   `json:"min_child_weight"`
	Lambda              float64   `json:"lambda"`
	EarlyStoppingRounds int       `json:"early_stopping_rounds"`
	Seed                int64     `json:"seed"`
}

// DefaultParams returns the squared-error configuration used for demand models.
func DefaultParams() Params {
	return Params{
		Objective:           ObjectiveSquaredError,
		MaxDepth:            4,
		LearningRate:        0.1,
		NEstimators:         200,
		Subsample:           0.8,
		ColsampleByTree:     0.8,
		MinChildWeight:      3,
		Lambda:              1,
		EarlyStoppingRounds: 15,
		Seed:                42,
	}
}

// QuantileParams returns DefaultParams switched to the pinball loss at alpha.
func QuantileParams(alpha float64) Params {
	p := DefaultParams()
	p.Objective = ObjectiveQuantile
	p.QuantileAlpha = alpha
	return p
}

func (p Params) validate() error {
	switch {
	case p.Objective != ObjectiveSquaredError && p.Objective != ObjectiveQuantile:
		return fmt.Errorf("%w: unknown objective %q", ErrInvalidParams, p.Objective)
	case p.Objective == ObjectiveQuantile && (p.QuantileAlpha <= 0 || p.QuantileAlpha >= 1):
		return fmt.Errorf("%w: quantile_alpha must be in (0,1), got %v", ErrInvalidParams, p.QuantileAlpha)
	case p.MaxDepth < 1:
		return fmt.Errorf("%w: max_depth must be >= 1", ErrInvalidParams)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate must be in (0,1]", ErrInvalidParams)
	case p.NEstimators < 1:
		return fmt.Errorf("%w: n_estimators must be >= 1", ErrInvalidParams)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("%w: subsample must be in (0,1]", ErrInvalidParams)
	case p.ColsampleByTree <= 0 || p.ColsampleByTree > 1:
		return fmt.Errorf("%w: colsample_bytree must be in (0,1]", ErrInvalidParams)
	case p.MinChildWeight < 0 || p.Lambda < 0:
		return fmt.Errorf("%w: min_child_weight and lambda must be >= 0", ErrInvalidParams)
	}
	return nil
}

// Booster is a fitted additive tree ensemble.
type Booster struct {
	Params        Params  `json:"params"`
	BaseScore     float64 `json:"base_score"`
	NumFeatures   int     `json:"num_features"`
	Trees         []*Tree `json:"trees"`
	BestIteration int     `json:"best_iteration"`
	BestScore     float64 `json:"best_score"`
}

// Fit trains a booster on (x, y). When valX is non-empty the validation loss drives early
// stopping and the returned ensemble is truncated to the best iteration.
func Fit(params Params, x [][]float64, y []float64, valX [][]float64, valY []float64) (*Booster, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	nf, err := checkMatrix(x, y, -1)
	if err != nil {
		return nil, err
	}
	hasVal := len(valX) > 0
	if hasVal {
		if _, err := checkMatrix(valX, valY, nf); err != nil {
			return nil, fmt.Errorf("validation set: %w", err)
		}
	}

	n := len(x)
	base := baseScore(params, y)
	b := &Booster{Params: params, BaseScore: base, NumFeatures: nf, BestScore: math.Inf(1)}

	pred := filled(n, base)
	valPred := filled(len(valX), base)
	rng := rand.New(rand.NewSource(params.Seed))
	builder := &treeBuilder{
		params: params,
		x:      x,
		y:      y,
		pred:   pred,
		grad:   make([]float64, n),
		hess:   make([]float64, n),
	}

	rowCount := max(1, int(math.Ceil(float64(n)*params.Subsample)))
	colCount := max(1, int(math.Round(float64(nf)*params.ColsampleByTree)))

	for iter := 0; iter < params.NEstimators; iter++ {
		computeGradients(params, y, pred, builder.grad, builder.hess)

		rows := rng.Perm(n)[:rowCount]
		sort.Ints(rows)
		builder.features = rng.Perm(nf)[:colCount]
		sort.Ints(builder.features)

		tree := builder.build(rows)
		b.Trees = append(b.Trees, tree)
		for i := range x {
			pred[i] += tree.Predict(x[i])
		}

		if !hasVal {
			b.BestIteration = iter
			continue
		}
		for i := range valX {
			valPred[i] += tree.Predict(valX[i])
		}
		score := evalLoss(params, valY, valPred)
		if score < b.BestScore {
			b.BestScore = score
			b.BestIteration = iter
		} else if params.EarlyStoppingRounds > 0 && iter-b.BestIteration >= params.EarlyStoppingRounds {
			break
		}
	}

	if hasVal {
		b.Trees = b.Trees[:b.BestIteration+1]
	} else {
		b.BestScore = evalLoss(params, y, pred)
	}
	return b, nil
}

// Predict scores one feature row.
func (b *Booster) Predict(row []float64) float64 {
	out := b.BaseScore
	for _, t := range b.Trees {
		out += t.Predict(row)
	}
	return out
}

// PredictBatch scores every row of x.
func (b *Booster) PredictBatch(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = b.Predict(row)
	}
	return out
}

// FeatureImportances returns total split gain per feature normalized to sum to 1.
func (b *Booster) FeatureImportances() []float64 {
	imp := make([]float64, b.NumFeatures)
	var total float64
	for _, t := range b.Trees {
		for _, n := range t.Nodes {
			if n.Feature >= 0 && n.Feature < b.NumFeatures {
				imp[n.Feature] += n.Gain
				total += n.Gain
			}
		}
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

// Valid reports whether the booster can score rows of width nf. Every tree must pass the
// structural check so that Predict never indexes outside a row or the node table.
func (b *Booster) Valid(nf int) bool {
	if b == nil || b.NumFeatures != nf || len(b.Trees) == 0 {
		return false
	}
	for _, t := range b.Trees {
		if !t.valid(nf) {
			return false
		}
	}
	return true
}

func checkMatrix(x [][]float64, y []float64, width int) (int, error) {
	if len(x) == 0 {
		return 0, ErrEmptyInput
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d rows but %d targets", ErrDimensionMismatch, len(x), len(y))
	}
	if width < 0 {
		width = len(x[0])
	}
	if width == 0 {
		return 0, fmt.Errorf("%w: no feature columns", ErrDimensionMismatch)
	}
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: row %d", ErrNonFinite, i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, fmt.Errorf("%w: target %d", ErrNonFinite, i)
		}
	}
	return width, nil
}

func baseScore(p Params, y []float64) float64 {
	if p.Objective == ObjectiveQuantile {
		return quantile(y, p.QuantileAlpha)
	}
	var sum float64
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}

func computeGradients(p Params, y, pred, grad, hess []float64) {
	for i := range y {
		hess[i] = 1
		if p.Objective == ObjectiveQuantile {
			if y[i] > pred[i] {
				grad[i] = -p.QuantileAlpha
			} else {
				grad[i] = 1 - p.QuantileAlpha
			}
			continue
		}
		grad[i] = pred[i] - y[i]
	}
}

// evalLoss is RMSE for squared error and mean pinball loss for the quantile objective.
func evalLoss(p Params, y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i := range y {
		diff := y[i] - pred[i]
		if p.Objective == ObjectiveQuantile {
			if diff >= 0 {
				sum += p.QuantileAlpha * diff
			} else {
				sum += (p.QuantileAlpha - 1) * diff
			}
			continue
		}
		sum += diff * diff
	}
	if p.Objective == ObjectiveQuantile {
		return sum / float64(len(y))
	}
	return math.Sqrt(sum / float64(len(y)))
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
