package predictor

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ForestParams controls random forest training
type ForestParams struct {
	Trees           int   `json:"trees"`
	Seed            int64 `json:"seed"`
	MaxDepth        int   `json:"maxDepth"` // 0 means unlimited
	MinSamplesSplit int   `json:"minSamplesSplit"`
	MaxFeatures     int   `json:"maxFeatures"` // 0 means sqrt of the feature count
}

func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, Seed: 42, MinSamplesSplit: 2}
}

// Node is a decision tree node. Leaves have Feature == -1 and carry class fractions.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a CART classification tree stored as a flat node slice with the root at 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a bagged ensemble of gini trees with class probability output
type Forest struct {
	NumFeatures int    `json:"numFeatures"`
	NumClasses  int    `json:"numClasses"`
	Trees       []Tree `json:"trees"`
}

// FitForest trains a forest on x with integer class labels in [0, numClasses)
func FitForest(x [][]float64, y []int, numClasses int, p ForestParams) (*Forest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%d rows but %d labels", len(x), len(y))
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	if p.Trees < 1 {
		return nil, fmt.Errorf("need at least 1 tree, got %d", p.Trees)
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
		if y[i] < 0 || y[i] >= numClasses {
			return nil, fmt.Errorf("label %d of row %d out of range", y[i], i)
		}
	}

	maxFeatures := p.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > width {
		maxFeatures = int(math.Sqrt(float64(width)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}
	minSplit := p.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}

	rng := rand.New(rand.NewSource(p.Seed))
	f := &Forest{NumFeatures: width, NumClasses: numClasses, Trees: make([]Tree, 0, p.Trees)}
	for t := 0; t < p.Trees; t++ {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		b := &treeBuilder{
			x:           x,
			y:           y,
			numClasses:  numClasses,
			maxFeatures: maxFeatures,
			maxDepth:    p.MaxDepth,
			minSplit:    minSplit,
			rng:         rng,
		}
		b.build(sample, 0)
		f.Trees = append(f.Trees, Tree{Nodes: b.nodes})
	}
	return f, nil
}

// PredictProba averages the leaf class fractions of every tree
func (f *Forest) PredictProba(row []float64) ([]float64, error) {
	if len(row) != f.NumFeatures {
		return nil, fmt.Errorf("forest expects %d features, got %d", f.NumFeatures, len(row))
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	proba := make([]float64, f.NumClasses)
	for ti := range f.Trees {
		leaf, err := f.Trees[ti].leaf(row)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		for c, v := range leaf.Value {
			proba[c] += v
		}
	}
	var sum float64
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
		sum += proba[c]
	}
	if sum > 0 {
		for c := range proba {
			proba[c] /= sum
		}
	}
	return proba, nil
}

// Validate checks the structural integrity of a decoded forest
func (f *Forest) Validate() error {
	if f.NumFeatures < 1 || f.NumClasses < 2 || len(f.Trees) == 0 {
		return fmt.Errorf("forest is empty or malformed")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				if len(n.Value) != f.NumClasses {
					return fmt.Errorf("tree %d leaf %d has %d class values", ti, ni, len(n.Value))
				}
				continue
			}
			if n.Feature >= f.NumFeatures || n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}

func (t *Tree) leaf(row []float64) (*Node, error) {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n, nil
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		if i <= 0 || i >= len(t.Nodes) {
			return nil, fmt.Errorf("node index %d out of range", i)
		}
	}
	return nil, fmt.Errorf("cycle detected")
}

type treeBuilder struct {
	x           [][]float64
	y           []int
	numClasses  int
	maxFeatures int
	maxDepth    int
	minSplit    int
	rng         *rand.Rand
	nodes       []Node
}

// build grows the subtree for the sample and returns its node index
func (b *treeBuilder) build(sample []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	counts := b.classCounts(sample)
	if len(sample) < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) || pure(counts) {
		b.nodes[idx].Value = fractions(counts, len(sample))
		return idx
	}

	feature, threshold, ok := b.bestSplit(sample, counts)
	if !ok {
		b.nodes[idx].Value = fractions(counts, len(sample))
		return idx
	}

	var left, right []int
	for _, s := range sample {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

// bestSplit scans a random subset of features for the threshold with the lowest weighted gini
func (b *treeBuilder) bestSplit(sample []int, total []int) (int, float64, bool) {
	n := len(sample)
	parent := gini(total, n)
	bestScore := parent - 1e-12
	bestFeature, bestThreshold, found := -1, 0.0, false

	features := b.rng.Perm(len(b.x[0]))[:b.maxFeatures]
	sorted := make([]int, n)
	left := make([]int, b.numClasses)
	right := make([]int, b.numClasses)

	for _, f := range features {
		copy(sorted, sample)
		sort.SliceStable(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })

		for c := range left {
			left[c] = 0
			right[c] = total[c]
		}
		for i := 0; i < n-1; i++ {
			cls := b.y[sorted[i]]
			left[cls]++
			right[cls]--
			cur, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			nl, nr := i+1, n-i-1
			score := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (b *treeBuilder) classCounts(sample []int) []int {
	counts := make([]int, b.numClasses)
	for _, s := range sample {
		counts[b.y[s]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func pure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func fractions(counts []int, n int) []float64 {
	v := make([]float64, len(counts))
	if n == 0 {
		return v
	}
	for i, c := range counts {
		v[i] = float64(c) / float64(n)
	}
	return v
}
