package classifier

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-delay/internal/models"
)

// learnable builds binary rows where the label is feature 1 OR feature 5
func learnable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		row := make([]float64, 10)
		for j := range row {
			if rng.Float64() < 0.2 {
				row[j] = 1
			}
		}
		x[i] = row
		if row[1] == 1 || row[5] == 1 {
			y[i] = 1
		}
	}
	return x, y
}

func accuracy(yTrue, yPred []int) float64 {
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue))
}

func majorityBaseline(y []int) float64 {
	pos := 0
	for _, v := range y {
		pos += v
	}
	if pos*2 > len(y) {
		return float64(pos) / float64(len(y))
	}
	return float64(len(y)-pos) / float64(len(y))
}

func TestFit_BeatsMajorityBaseline(t *testing.T) {
	x, y := learnable(300, 1)

	report, clf, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)
	require.NotNil(t, clf)

	pred, err := clf.Predict(x)
	require.NoError(t, err)

	acc := accuracy(y, pred)
	assert.Greater(t, acc, majorityBaseline(y))
	assert.Greater(t, report.Accuracy, majorityBaseline(y))
	assert.Equal(t, 99, report.MacroAvg.Support)
	assert.Equal(t, 99, report.NoDelay.Support+report.Delay.Support)
}

func TestFit_Reproducible(t *testing.T) {
	x, y := learnable(200, 7)

	r1, c1, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)
	r2, c2, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	p1, _ := c1.PredictProba(x)
	p2, _ := c2.PredictProba(x)
	assert.Equal(t, p1, p2)
}

func TestFit_SetsScalePosWeight(t *testing.T) {
	x, y := learnable(300, 3)
	_, clf, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)

	train, _, err := TrainTestSplit(len(x), 0.33, 42)
	require.NoError(t, err)
	var pos, neg float64
	for _, i := range train {
		if y[i] == 1 {
			pos++
		} else {
			neg++
		}
	}
	assert.InDelta(t, neg/pos, clf.Params.ScalePosWeight, 1e-12)
}

func TestFit_SingleClass(t *testing.T) {
	x, _ := learnable(50, 1)
	y := make([]int, 50)

	_, _, err := Fit(x, y, DefaultParams())
	require.ErrorIs(t, err, models.ErrData)
}

func TestFit_LengthMismatch(t *testing.T) {
	x, y := learnable(50, 1)
	_, _, err := Fit(x, y[:10], DefaultParams())
	require.ErrorIs(t, err, models.ErrData)
}

func TestPredictProba_SumsToOne(t *testing.T) {
	x, y := learnable(150, 2)
	_, clf, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)

	proba, err := clf.PredictProba(x)
	require.NoError(t, err)
	for _, p := range proba {
		assert.InDelta(t, 1.0, p[0]+p[1], 1e-12)
		assert.True(t, p[1] >= 0 && p[1] <= 1)
	}
}

func TestPredict_WrongWidth(t *testing.T) {
	x, y := learnable(150, 2)
	_, clf, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)

	_, err = clf.Predict([][]float64{{1, 0, 1}})
	require.ErrorIs(t, err, models.ErrData)
}

func TestMarshal_PreservesPredictions(t *testing.T) {
	x, y := learnable(150, 4)
	_, clf, err := Fit(x, y, DefaultParams())
	require.NoError(t, err)

	data, err := clf.Marshal()
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	want, _ := clf.PredictProba(x)
	got, _ := decoded.PredictProba(x)
	assert.Equal(t, want, got)
}

func TestUnmarshal_Rejects(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"num_features":10,"trees":[]}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"num_features":2,"trees":[{"feature":5,"threshold":0.5,"left":{"leaf":true},"right":{"leaf":true}}]}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"num_features":2,"trees":[{"feature":1,"threshold":0.5,"left":{"leaf":true}}]}`))
	assert.Error(t, err)
}

func TestTrain_InvalidParams(t *testing.T) {
	x, y := learnable(20, 1)
	p := DefaultParams()
	p.NumTrees = 0
	_, err := Train(x, y, p)
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(300, 0.33, 42)
	require.NoError(t, err)
	assert.Len(t, test, 99)
	assert.Len(t, train, 201)

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}

	train2, test2, err := TrainTestSplit(300, 0.33, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestTrainTestSplit_TooFewRows(t *testing.T) {
	_, _, err := TrainTestSplit(1, 0.33, 42)
	require.ErrorIs(t, err, models.ErrData)
}

func TestReport(t *testing.T) {
	r := Report([]int{0, 0, 1, 1, 1}, []int{0, 1, 1, 1, 0})

	assert.InDelta(t, 0.6, r.Accuracy, 1e-9)

	assert.InDelta(t, 2.0/3, r.Delay.Precision, 1e-9)
	assert.InDelta(t, 2.0/3, r.Delay.Recall, 1e-9)
	assert.InDelta(t, 2.0/3, r.Delay.F1Score, 1e-9)
	assert.Equal(t, 3, r.Delay.Support)

	assert.InDelta(t, 0.5, r.NoDelay.Precision, 1e-9)
	assert.InDelta(t, 0.5, r.NoDelay.Recall, 1e-9)
	assert.Equal(t, 2, r.NoDelay.Support)

	assert.InDelta(t, (0.5+2.0/3)/2, r.MacroAvg.Precision, 1e-9)
	assert.InDelta(t, 0.4*0.5+0.6*2.0/3, r.WeightedAvg.Precision, 1e-9)
	assert.Equal(t, 5, r.WeightedAvg.Support)
}

func TestReport_NoPredictedPositives(t *testing.T) {
	r := Report([]int{0, 1}, []int{0, 0})
	assert.Equal(t, 0.0, r.Delay.Precision)
	assert.Equal(t, 0.0, r.Delay.F1Score)
	assert.InDelta(t, 0.5, r.Accuracy, 1e-9)
}

func BenchmarkTrain(b *testing.B) {
	x, y := learnable(5000, 1)
	p := DefaultParams()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Train(x, y, p)
	}
}
