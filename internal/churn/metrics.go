package churn

// ConfusionMatrix counts holdout outcomes; positive class is "churned".
type ConfusionMatrix struct {
	TrueNegatives  int `json:"true_negatives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	TruePositives  int `json:"true_positives"`
}

// ClassMetrics is one row of the classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the per-class classification report.
type Report struct {
	Retained ClassMetrics `json:"retained"`
	Churned  ClassMetrics `json:"churned"`
}

// Metrics is the evaluation bundle returned by Train. ROCAUC is nil, not an
// error, when the holdout contains a single class.
type Metrics struct {
	Accuracy        float64         `json:"accuracy"`
	Precision       float64         `json:"precision"`
	Recall          float64         `json:"recall"`
	F1              float64         `json:"f1"`
	ROCAUC          *float64        `json:"roc_auc"`
	ConfusionMatrix ConfusionMatrix `json:"confusion_matrix"`
	Report          Report          `json:"classification_report"`
	TrainRows       int             `json:"train_rows"`
	TestRows        int             `json:"test_rows"`
}

func evaluate(m *Model, xs [][]float64, ys []float64) Metrics {
	if len(xs) == 0 {
		return Metrics{}
	}

	var cm ConfusionMatrix
	probs := make([]float64, len(xs))
	for i, x := range xs {
		probs[i] = m.PredictProbability(x)
		pred := probs[i] >= 0.5
		actual := ys[i] >= 0.5
		switch {
		case actual && pred:
			cm.TruePositives++
		case actual && !pred:
			cm.FalseNegatives++
		case !actual && pred:
			cm.FalsePositives++
		default:
			cm.TrueNegatives++
		}
	}

	churned := ClassMetrics{
		Precision: ratio(cm.TruePositives, cm.TruePositives+cm.FalsePositives),
		Recall:    ratio(cm.TruePositives, cm.TruePositives+cm.FalseNegatives),
		Support:   cm.TruePositives + cm.FalseNegatives,
	}
	churned.F1 = f1(churned.Precision, churned.Recall)

	retained := ClassMetrics{
		Precision: ratio(cm.TrueNegatives, cm.TrueNegatives+cm.FalseNegatives),
		Recall:    ratio(cm.TrueNegatives, cm.TrueNegatives+cm.FalsePositives),
		Support:   cm.TrueNegatives + cm.FalsePositives,
	}
	retained.F1 = f1(retained.Precision, retained.Recall)

	return Metrics{
		Accuracy:        ratio(cm.TruePositives+cm.TrueNegatives, len(xs)),
		Precision:       churned.Precision,
		Recall:          churned.Recall,
		F1:              churned.F1,
		ROCAUC:          rocAUC(probs, ys),
		ConfusionMatrix: cm,
		Report:          Report{Retained: retained, Churned: churned},
	}
}

// rocAUC computes AUC as the Mann-Whitney pair statistic; ties score half.
// Returns nil when the holdout has a single class (AUC undefined).
func rocAUC(probs, ys []float64) *float64 {
	var posCount, negCount int
	for _, y := range ys {
		if y >= 0.5 {
			posCount++
		} else {
			negCount++
		}
	}
	if posCount == 0 || negCount == 0 {
		return nil
	}

	wins := 0.0
	for i, yi := range ys {
		if yi < 0.5 {
			continue
		}
		for j, yj := range ys {
			if yj >= 0.5 {
				continue
			}
			switch {
			case probs[i] > probs[j]:
				wins++
			case probs[i] == probs[j]:
				wins += 0.5
			}
		}
	}
	auc := wins / float64(posCount*negCount)
	return &auc
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
