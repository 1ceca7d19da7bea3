package domain

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
)

// ForestOptions controls random forest training. Zero values select defaults.
type ForestOptions struct {
	Trees          int    `json:"trees"`
	MaxDepth       int    `json:"max_depth"` // 0 grows trees until leaves are pure
	MinSamplesLeaf int    `json:"min_samples_leaf"`
	MaxFeatures    int    `json:"max_features"` // 0 uses sqrt(width)
	Seed           uint64 `json:"seed"`
}

const (
	defaultTrees = 100
	defaultSeed  = 42
)

func (o ForestOptions) withDefaults(width int) ForestOptions {
	if o.Trees <= 0 {
		o.Trees = defaultTrees
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	if o.MinSamplesLeaf <= 0 {
		o.MinSamplesLeaf = 1
	}
	if o.MaxFeatures <= 0 || o.MaxFeatures > width {
		o.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(width)))))
	}
	if o.Seed == 0 {
		o.Seed = defaultSeed
	}
	return o
}

// node is a flattened CART node. Leaves have Feature == -1 and carry the
// class distribution of the training rows that reached them.
type node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Dist      []float64 `json:"d,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t tree) leaf(row []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Dist
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type forest struct {
	Trees      []tree `json:"trees"`
	NumClasses int    `json:"num_classes"`
}

// predict averages the leaf class distributions of every tree.
func (f forest) predict(row []float64) []float64 {
	probs := make([]float64, f.NumClasses)
	for _, t := range f.Trees {
		for c, p := range t.leaf(row) {
			probs[c] += p
		}
	}
	if n := float64(len(f.Trees)); n > 0 {
		for c := range probs {
			probs[c] /= n
		}
	}
	return probs
}

// growForest fits opts.Trees bootstrapped trees. Each tree draws from its own
// PCG stream keyed by (seed, tree index), so the result does not depend on
// scheduling.
func growForest(x [][]float64, y []int, numClasses int, opts ForestOptions) forest {
	f := forest{Trees: make([]tree, opts.Trees), NumClasses: numClasses}

	workers := min(runtime.GOMAXPROCS(0), opts.Trees)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewPCG(opts.Seed, uint64(i)))
				b := &treeBuilder{x: x, y: y, numClasses: numClasses, opts: opts, rng: rng}
				f.Trees[i] = b.grow(bootstrap(len(y), rng))
			}
		}()
	}
	for i := range opts.Trees {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return f
}

func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

type treeBuilder struct {
	x          [][]float64
	y          []int
	numClasses int
	opts       ForestOptions
	rng        *rand.Rand
	nodes      []node
}

func (b *treeBuilder) grow(idx []int) tree {
	b.nodes = b.nodes[:0]
	b.build(idx, 0)
	return tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	counts := b.classCounts(idx)

	if isPure(counts) ||
		len(idx) < 2*b.opts.MinSamplesLeaf ||
		(b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) {
		return b.leaf(counts, len(idx))
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return b.leaf(counts, len(idx))
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return b.leaf(counts, len(idx))
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: feature, Threshold: threshold})
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) leaf(counts []int, n int) int {
	dist := make([]float64, b.numClasses)
	for c, cnt := range counts {
		dist[c] = float64(cnt) / float64(n)
	}
	b.nodes = append(b.nodes, node{Feature: -1, Dist: dist})
	return len(b.nodes) - 1
}

func (b *treeBuilder) classCounts(idx []int) []int {
	counts := make([]int, b.numClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

// bestSplit evaluates a random subset of MaxFeatures columns and returns the
// split with the lowest weighted Gini impurity. If none of the sampled columns
// can be split, the remaining columns are tried in the same random order.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	width := len(b.x[idx[0]])
	order := b.rng.Perm(width)

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := math.Inf(1)

	sorted := make([]int, len(idx))
	for visited, feature := range order {
		if visited >= b.opts.MaxFeatures && bestFeature >= 0 {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][feature] < b.x[sorted[c]][feature]
		})

		impurity, threshold, ok := b.scanFeature(sorted, feature)
		if ok && impurity < bestImpurity {
			bestFeature, bestThreshold, bestImpurity = feature, threshold, impurity
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// scanFeature sweeps a column sorted by value and returns the best threshold.
func (b *treeBuilder) scanFeature(sorted []int, feature int) (float64, float64, bool) {
	n := len(sorted)
	right := b.classCounts(sorted)
	left := make([]int, b.numClasses)
	minLeaf := b.opts.MinSamplesLeaf

	best := math.Inf(1)
	threshold := 0.0
	found := false
	for pos := 0; pos < n-1; pos++ {
		c := b.y[sorted[pos]]
		left[c]++
		right[c]--

		nl := pos + 1
		nr := n - nl
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		lo, hi := b.x[sorted[pos]][feature], b.x[sorted[pos+1]][feature]
		if lo == hi {
			continue
		}
		impurity := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
		if impurity < best {
			best = impurity
			threshold = lo + (hi-lo)/2
			if threshold >= hi {
				threshold = lo
			}
			found = true
		}
	}
	return best, threshold, found
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
