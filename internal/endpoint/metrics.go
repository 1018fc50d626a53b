package endpoint

import (
	"fmt"
	"math"
	"sort"

	"github.com/sageworks-ml/sageworks/internal/frame"
	"github.com/sageworks-ml/sageworks/internal/model"
)

// RegressionMetrics computes the standard regression performance
// metrics over actual/predicted pairs. Pairs with NaN predictions are
// skipped.
func RegressionMetrics(actual, predicted []float64) (model.Metrics, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("actual and predicted lengths differ: %d vs %d", len(actual), len(predicted))
	}

	var absErrors []float64
	var sumAbs, sumSq, sumActual float64
	var mapeSum float64
	var mapeCount int
	n := 0
	for i := range actual {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		err := actual[i] - predicted[i]
		absErrors = append(absErrors, math.Abs(err))
		sumAbs += math.Abs(err)
		sumSq += err * err
		sumActual += actual[i]
		if actual[i] != 0 {
			mapeSum += math.Abs(err / actual[i])
			mapeCount++
		}
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("no valid actual/predicted pairs")
	}

	mean := sumActual / float64(n)
	var ssTot float64
	for i := range actual {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		ssTot += (actual[i] - mean) * (actual[i] - mean)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - sumSq/ssTot
	}
	mape := 0.0
	if mapeCount > 0 {
		mape = mapeSum / float64(mapeCount) * 100
	}

	sort.Float64s(absErrors)
	medae := absErrors[len(absErrors)/2]
	if len(absErrors)%2 == 0 {
		medae = (absErrors[len(absErrors)/2-1] + absErrors[len(absErrors)/2]) / 2
	}

	return model.Metrics{
		"MAE":     sumAbs / float64(n),
		"RMSE":    math.Sqrt(sumSq / float64(n)),
		"R2":      r2,
		"MAPE":    mape,
		"MedAE":   medae,
		"NumRows": float64(n),
	}, nil
}

// ClassificationMetrics computes per-class precision, recall, fscore,
// and support. When per-class probabilities are provided, a one-vs-rest
// ROC AUC is added per class. Returns one metrics row per class label,
// in sorted label order with the label under "class".
func ClassificationMetrics(actual, predicted []string, probabilities map[string][]float64) ([]string, []model.Metrics, error) {
	if len(actual) != len(predicted) {
		return nil, nil, fmt.Errorf("actual and predicted lengths differ: %d vs %d", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return nil, nil, fmt.Errorf("no valid actual/predicted pairs")
	}

	classSet := map[string]bool{}
	for _, a := range actual {
		classSet[a] = true
	}
	classes := make([]string, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	var rows []model.Metrics
	for _, class := range classes {
		var tp, fp, fn, support float64
		for i := range actual {
			switch {
			case actual[i] == class && predicted[i] == class:
				tp++
			case actual[i] != class && predicted[i] == class:
				fp++
			case actual[i] == class && predicted[i] != class:
				fn++
			}
			if actual[i] == class {
				support++
			}
		}
		precision := 0.0
		if tp+fp > 0 {
			precision = tp / (tp + fp)
		}
		recall := 0.0
		if tp+fn > 0 {
			recall = tp / (tp + fn)
		}
		fscore := 0.0
		if precision+recall > 0 {
			fscore = 2 * precision * recall / (precision + recall)
		}
		row := model.Metrics{
			"precision": precision,
			"recall":    recall,
			"fscore":    fscore,
			"support":   support,
		}
		if scores, ok := probabilities[class]; ok && len(scores) == len(actual) {
			row["roc_auc"] = rocAUC(actual, scores, class)
		}
		rows = append(rows, row)
	}
	return classes, rows, nil
}

// ConfusionMatrix counts actual label by predicted label.
func ConfusionMatrix(actual, predicted []string) map[string]map[string]int {
	cm := make(map[string]map[string]int)
	for i := range actual {
		if cm[actual[i]] == nil {
			cm[actual[i]] = make(map[string]int)
		}
		cm[actual[i]][predicted[i]]++
	}
	return cm
}

// rocAUC computes the one-vs-rest AUC for a class via the rank method
// (equivalent to the Mann-Whitney U statistic), with tied scores
// assigned their average rank.
func rocAUC(actual []string, scores []float64, class string) float64 {
	type scored struct {
		score float64
		pos   bool
	}
	items := make([]scored, len(actual))
	for i := range actual {
		items[i] = scored{score: scores[i], pos: actual[i] == class}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score < items[j].score })

	var nPos, nNeg float64
	var rankSum float64
	i := 0
	for i < len(items) {
		j := i
		for j < len(items) && items[j].score == items[i].score {
			j++
		}
		// Average rank over the tie group, ranks are 1-based.
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if items[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}
	for _, it := range items {
		if it.pos {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// framePairs extracts the actual and predicted float columns from an
// inference result frame.
func framePairs(f *frame.Frame, target string) (actual, predicted []float64, err error) {
	actual, err = f.Float64Column(target)
	if err != nil {
		return nil, nil, err
	}
	predicted, err = f.Float64Column("prediction")
	if err != nil {
		return nil, nil, err
	}
	return actual, predicted, nil
}
