package classifier

import (
	"fmt"
	"math"
	"math/rand"

	"flight-delay/internal/models"
)

// TrainTestSplit shuffles row indices with a fixed seed and holds out
// ceil(testSize*n) of them for evaluation.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %.2f must be in (0,1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if n < 2 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: %d rows are too few to split", models.ErrData, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// ScalePosWeight is negatives/positives in y. It fails when y has a single class.
func ScalePosWeight(y []int) (float64, error) {
	var pos, neg int
	for _, label := range y {
		if label == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0, fmt.Errorf("%w: training partition has %d positive and %d negative rows", models.ErrData, pos, neg)
	}
	return float64(neg) / float64(pos), nil
}

// Fit splits x/y into train and test partitions, trains on the first
// with the class-imbalance weight of that partition and reports on the second.
func Fit(x [][]float64, y []int, params Params) (models.MetricsReport, *Classifier, error) {
	if len(x) != len(y) {
		return models.MetricsReport{}, nil, fmt.Errorf("%w: %d feature rows but %d labels", models.ErrData, len(x), len(y))
	}

	trainIdx, testIdx, err := TrainTestSplit(len(x), params.TestSize, params.Seed)
	if err != nil {
		return models.MetricsReport{}, nil, err
	}
	xTrain, yTrain := subset(x, y, trainIdx)
	xTest, yTest := subset(x, y, testIdx)

	spw, err := ScalePosWeight(yTrain)
	if err != nil {
		return models.MetricsReport{}, nil, err
	}
	params.ScalePosWeight = spw

	clf, err := Train(xTrain, yTrain, params)
	if err != nil {
		return models.MetricsReport{}, nil, err
	}

	yPred, err := clf.Predict(xTest)
	if err != nil {
		return models.MetricsReport{}, nil, err
	}
	return Report(yTest, yPred), clf, nil
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}
