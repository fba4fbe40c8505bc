package classifier

import "sort"

// Node is a regression tree node. Leaves carry the already shrunk margin
// contribution in Value.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
}

func (n *Node) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// binned is the training matrix quantized to the distinct values of each
// feature, so split search is a scan over bins instead of a sort per node.
type binned struct {
	// values[f] sorted distinct values of feature f
	values [][]float64
	// bins[f][i] index into values[f] for row i
	bins [][]int
}

func newBinned(x [][]float64, numFeatures int) *binned {
	b := &binned{
		values: make([][]float64, numFeatures),
		bins:   make([][]int, numFeatures),
	}
	for f := 0; f < numFeatures; f++ {
		seen := make(map[float64]struct{})
		for _, row := range x {
			seen[row[f]] = struct{}{}
		}
		vals := make([]float64, 0, len(seen))
		for v := range seen {
			vals = append(vals, v)
		}
		sort.Float64s(vals)

		index := make(map[float64]int, len(vals))
		for i, v := range vals {
			index[v] = i
		}
		bins := make([]int, len(x))
		for i, row := range x {
			bins[i] = index[row[f]]
		}
		b.values[f] = vals
		b.bins[f] = bins
	}
	return b
}

// treeBuilder grows one tree on gradient/hessian statistics
type treeBuilder struct {
	params Params
	data   *binned
	grad   []float64
	hess   []float64
}

type split struct {
	feature   int
	bin       int
	threshold float64
	gain      float64
}

func (tb *treeBuilder) build(rows []int, depth int) *Node {
	var g, h float64
	for _, i := range rows {
		g += tb.grad[i]
		h += tb.hess[i]
	}

	if depth < tb.params.MaxDepth && h >= 2*tb.params.MinChildWeight {
		if best, ok := tb.bestSplit(rows, g, h); ok {
			left, right := tb.partition(rows, best)
			return &Node{
				Feature:   best.feature,
				Threshold: best.threshold,
				Left:      tb.build(left, depth+1),
				Right:     tb.build(right, depth+1),
			}
		}
	}

	return &Node{Leaf: true, Value: -g / (h + tb.params.Lambda) * tb.params.LearningRate}
}

func (tb *treeBuilder) score(g, h float64) float64 {
	return g * g / (h + tb.params.Lambda)
}

func (tb *treeBuilder) bestSplit(rows []int, g, h float64) (split, bool) {
	best := split{gain: 0}
	found := false
	parent := tb.score(g, h)

	for f, vals := range tb.data.values {
		if len(vals) < 2 {
			continue
		}
		gBins := make([]float64, len(vals))
		hBins := make([]float64, len(vals))
		bins := tb.data.bins[f]
		for _, i := range rows {
			gBins[bins[i]] += tb.grad[i]
			hBins[bins[i]] += tb.hess[i]
		}

		var gl, hl float64
		for b := 0; b < len(vals)-1; b++ {
			gl += gBins[b]
			hl += hBins[b]
			gr, hr := g-gl, h-hl
			if hl < tb.params.MinChildWeight || hr < tb.params.MinChildWeight {
				continue
			}
			gain := 0.5*(tb.score(gl, hl)+tb.score(gr, hr)-parent) - tb.params.Gamma
			if gain > best.gain {
				best = split{
					feature:   f,
					bin:       b,
					threshold: (vals[b] + vals[b+1]) / 2,
					gain:      gain,
				}
				found = true
			}
		}
	}
	return best, found
}

func (tb *treeBuilder) partition(rows []int, s split) (left, right []int) {
	bins := tb.data.bins[s.feature]
	for _, i := range rows {
		if bins[i] <= s.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
