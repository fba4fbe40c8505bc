package classifier

import "flight-delay/internal/models"

// Report computes the binary classification report. Ratios with a zero
// denominator are reported as 0.
func Report(yTrue, yPred []int) models.MetricsReport {
	var tp, fp, fn, tn int
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			tp++
		case yTrue[i] == 0 && yPred[i] == 1:
			fp++
		case yTrue[i] == 1 && yPred[i] == 0:
			fn++
		default:
			tn++
		}
	}

	// class 0 is "positive" from its own point of view: tn are its hits
	noDelay := classMetrics(tn, fn, fp)
	delay := classMetrics(tp, fp, fn)
	total := len(yTrue)

	r := models.MetricsReport{
		NoDelay: noDelay,
		Delay:   delay,
		MacroAvg: models.ClassMetrics{
			Precision: (noDelay.Precision + delay.Precision) / 2,
			Recall:    (noDelay.Recall + delay.Recall) / 2,
			F1Score:   (noDelay.F1Score + delay.F1Score) / 2,
			Support:   total,
		},
		WeightedAvg: models.ClassMetrics{Support: total},
	}
	if total > 0 {
		r.Accuracy = float64(tp+tn) / float64(total)
		w0 := float64(noDelay.Support) / float64(total)
		w1 := float64(delay.Support) / float64(total)
		r.WeightedAvg.Precision = w0*noDelay.Precision + w1*delay.Precision
		r.WeightedAvg.Recall = w0*noDelay.Recall + w1*delay.Recall
		r.WeightedAvg.F1Score = w0*noDelay.F1Score + w1*delay.F1Score
	}
	return r
}

func classMetrics(hits, falseAlarms, misses int) models.ClassMetrics {
	m := models.ClassMetrics{
		Precision: ratio(hits, hits+falseAlarms),
		Recall:    ratio(hits, hits+misses),
		Support:   hits + misses,
	}
	if m.Precision+m.Recall > 0 {
		m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
