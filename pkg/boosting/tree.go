package boosting

import (
	"math"
	"sort"
)

// Node is one entry of a flattened regression tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Gain      float64 `json:"gain,omitempty"`
	Cover     float64 `json:"cover,omitempty"`
}

// Tree is a binary regression tree stored as a node slice; the root is Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for a single row. Rows go left when x < threshold.
func (t *Tree) Predict(row []float64) float64 {
	if t == nil || len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if row[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// valid checks that each split reads an existing column and that both children exist and sit
// after their parent. Forward-only children rule out cycles.
func (t *Tree) valid(nf int) bool {
	if t == nil || len(t.Nodes) == 0 {
		return false
	}
	n := len(t.Nodes)
	for i, node := range t.Nodes {
		if node.Feature < 0 {
			continue
		}
		if node.Feature >= nf {
			return false
		}
		if node.Left <= i || node.Left >= n || node.Right <= i || node.Right >= n {
			return false
		}
	}
	return true
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if t == nil || len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// treeBuilder grows one tree over a gradient/hessian snapshot.
type treeBuilder struct {
	params   Params
	x        [][]float64
	y        []float64
	pred     []float64
	grad     []float64
	hess     []float64
	features []int
	nodes    []Node
}

type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (b *treeBuilder) build(rows []int) *Tree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)
	return &Tree{Nodes: append([]Node(nil), b.nodes...)}
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	b.nodes[idx].Cover = h

	if depth >= b.params.MaxDepth || len(rows) < 2 {
		b.nodes[idx].Value = b.leafValue(rows, g, h)
		return idx
	}

	best := b.bestSplit(rows, g, h)
	if best == nil {
		b.nodes[idx].Value = b.leafValue(rows, g, h)
		return idx
	}

	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	b.nodes[idx] = Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
		Gain:      best.gain,
		Cover:     h,
	}
	return idx
}

func (b *treeBuilder) bestSplit(rows []int, g, h float64) *splitCandidate {
	lambda := b.params.Lambda
	parentScore := g * g / (h + lambda)
	var best *splitCandidate

	sorted := make([]int, len(rows))
	for _, f := range b.features {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		var gl, hl float64
		for i := 0; i < len(sorted)-1; i++ {
			r := sorted[i]
			gl += b.grad[r]
			hl += b.hess[r]

			cur := b.x[r][f]
			next := b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			gr := g - gl
			hr := h - hl
			if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
				continue
			}
			gain := 0.5 * (gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parentScore)
			if gain <= 1e-12 || (best != nil && gain <= best.gain) {
				continue
			}
			best = &splitCandidate{
				feature:   f,
				threshold: cur + (next-cur)/2,
				gain:      gain,
				left:      append([]int(nil), sorted[:i+1]...),
				right:     append([]int(nil), sorted[i+1:]...),
			}
		}
	}
	return best
}

func (b *treeBuilder) leafValue(rows []int, g, h float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	if b.params.Objective == ObjectiveQuantile {
		residuals := make([]float64, len(rows))
		for i, r := range rows {
			residuals[i] = b.y[r] - b.pred[r]
		}
		return b.params.LearningRate * quantile(residuals, b.params.QuantileAlpha)
	}
	return -g / (h + b.params.Lambda) * b.params.LearningRate
}

// quantile returns the q-quantile of values using linear interpolation between order statistics.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}
