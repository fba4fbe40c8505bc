// Package classifier implements a gradient-boosted decision tree binary
// classifier with logistic loss, plus the train/test split and the
// classification report used to evaluate it.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"flight-delay/internal/models"
)

// Params configures boosting
type Params struct {
	NumTrees       int     `json:"num_trees"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	Lambda         float64 `json:"lambda"`
	Gamma          float64 `json:"gamma"`
	MinChildWeight float64 `json:"min_child_weight"`
	// ScalePosWeight multiplies the gradient and hessian of positive rows
	ScalePosWeight float64 `json:"scale_pos_weight"`
	// TestSize fraction of rows held out for evaluation by Fit
	TestSize float64 `json:"test_size"`
	// Seed for the train/test shuffle
	Seed int64 `json:"seed"`
}

// DefaultParams returns the boosting defaults
func DefaultParams() Params {
	return Params{
		NumTrees:       100,
		LearningRate:   0.1,
		MaxDepth:       3,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 1,
		ScalePosWeight: 1,
		TestSize:       0.33,
		Seed:           42,
	}
}

func (p Params) validate() error {
	switch {
	case p.NumTrees <= 0:
		return errors.New("num_trees must be positive")
	case p.LearningRate <= 0:
		return errors.New("learning_rate must be positive")
	case p.MaxDepth < 0:
		return errors.New("max_depth must not be negative")
	case p.Lambda < 0:
		return errors.New("lambda must not be negative")
	case p.MinChildWeight <= 0:
		return errors.New("min_child_weight must be positive")
	case p.ScalePosWeight <= 0:
		return errors.New("scale_pos_weight must be positive")
	}
	return nil
}

// Classifier is a fitted ensemble. It is never modified after Train returns.
type Classifier struct {
	Params      Params  `json:"params"`
	NumFeatures int     `json:"num_features"`
	BaseMargin  float64 `json:"base_margin"`
	Trees       []*Node `json:"trees"`
}

// Train fits a classifier on x (rows of NumFeatures columns) and binary labels y
func Train(x [][]float64, y []int, params Params) (*Classifier, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("%w: no training rows", models.ErrData)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d feature rows but %d labels", models.ErrData, len(x), len(y))
	}
	numFeatures := len(x[0])
	for i, row := range x {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", models.ErrData, i, len(row), numFeatures)
		}
		if y[i] != 0 && y[i] != 1 {
			return nil, fmt.Errorf("%w: label %d at row %d is not binary", models.ErrData, y[i], i)
		}
	}

	clf := &Classifier{
		Params:      params,
		NumFeatures: numFeatures,
		BaseMargin:  0, // logit(0.5)
		Trees:       make([]*Node, 0, params.NumTrees),
	}

	n := len(x)
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = clf.BaseMargin
	}
	weight := make([]float64, n)
	for i, label := range y {
		weight[i] = 1
		if label == 1 {
			weight[i] = params.ScalePosWeight
		}
	}

	tb := &treeBuilder{
		params: params,
		data:   newBinned(x, numFeatures),
		grad:   make([]float64, n),
		hess:   make([]float64, n),
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	for t := 0; t < params.NumTrees; t++ {
		for i := range margin {
			p := sigmoid(margin[i])
			tb.grad[i] = weight[i] * (p - float64(y[i]))
			tb.hess[i] = weight[i] * math.Max(p*(1-p), 1e-16)
		}
		tree := tb.build(rows, 0)
		clf.Trees = append(clf.Trees, tree)
		for i, row := range x {
			margin[i] += tree.predict(row)
		}
	}

	return clf, nil
}

func (c *Classifier) margin(row []float64) float64 {
	m := c.BaseMargin
	for _, t := range c.Trees {
		m += t.predict(row)
	}
	return m
}

func (c *Classifier) checkWidth(x [][]float64) error {
	for i, row := range x {
		if len(row) != c.NumFeatures {
			return fmt.Errorf("%w: row %d has %d features, model expects %d", models.ErrData, i, len(row), c.NumFeatures)
		}
	}
	return nil
}

// PredictProba returns [p(0), p(1)] per row
func (c *Classifier) PredictProba(x [][]float64) ([][2]float64, error) {
	if err := c.checkWidth(x); err != nil {
		return nil, err
	}
	out := make([][2]float64, len(x))
	for i, row := range x {
		p := sigmoid(c.margin(row))
		out[i] = [2]float64{1 - p, p}
	}
	return out, nil
}

// Predict returns 1 where p(1) > 0.5, else 0
func (c *Classifier) Predict(x [][]float64) ([]int, error) {
	proba, err := c.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		if p[1] > 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

// Marshal serializes the classifier as JSON
func (c *Classifier) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal decodes a classifier written by Marshal
func Unmarshal(data []byte) (*Classifier, error) {
	var c Classifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode classifier: %w", err)
	}
	if c.NumFeatures <= 0 || len(c.Trees) == 0 {
		return nil, errors.New("decode classifier: empty model")
	}
	for i, t := range c.Trees {
		if err := t.check(c.NumFeatures); err != nil {
			return nil, fmt.Errorf("decode classifier: tree %d: %w", i, err)
		}
	}
	return &c, nil
}

func (n *Node) check(numFeatures int) error {
	if n == nil {
		return errors.New("nil node")
	}
	if n.Leaf {
		return nil
	}
	if n.Feature < 0 || n.Feature >= numFeatures {
		return fmt.Errorf("feature index %d out of range", n.Feature)
	}
	if err := n.Left.check(numFeatures); err != nil {
		return err
	}
	return n.Right.check(numFeatures)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
