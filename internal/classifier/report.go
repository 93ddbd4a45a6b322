package classifier

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// ClassMetrics holds per-label precision, recall, F1 and support.
type ClassMetrics struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarises predictions against ground truth.
type Report struct {
	Classes  []ClassMetrics
	Accuracy float64
	MacroF1  float64
	Total    int
}

// Evaluate compares predicted labels with true labels over numLabels classes.
// Precision and recall with an empty denominator are reported as 0.
func Evaluate(yTrue, yPred []int, numLabels int) (Report, error) {
	if len(yTrue) != len(yPred) {
		return Report{}, fmt.Errorf("%w: %d true labels, %d predictions", ErrShapeMismatch, len(yTrue), len(yPred))
	}
	if numLabels < 1 {
		return Report{}, fmt.Errorf("need at least one label, got %d", numLabels)
	}

	tp := make([]int, numLabels)
	predicted := make([]int, numLabels)
	support := make([]int, numLabels)
	correct := 0
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= numLabels || p < 0 || p >= numLabels {
			return Report{}, fmt.Errorf("%w: pair %d is (%d, %d)", ErrLabelOutOfRange, i, t, p)
		}
		support[t]++
		predicted[p]++
		if t == p {
			tp[t]++
			correct++
		}
	}

	r := Report{Total: len(yTrue)}
	if r.Total > 0 {
		r.Accuracy = float64(correct) / float64(r.Total)
	}

	var f1Sum float64
	for l := 0; l < numLabels; l++ {
		m := ClassMetrics{Label: l, Support: support[l]}
		if predicted[l] > 0 {
			m.Precision = float64(tp[l]) / float64(predicted[l])
		}
		if support[l] > 0 {
			m.Recall = float64(tp[l]) / float64(support[l])
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		f1Sum += m.F1
		r.Classes = append(r.Classes, m)
	}
	r.MacroF1 = f1Sum / float64(numLabels)
	return r, nil
}

// String renders the report as an aligned table.
func (r Report) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "label\tprecision\trecall\tf1\tsupport\t")
	for _, c := range r.Classes {
		fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%d\t\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(w, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.Total)
	fmt.Fprintf(w, "macro f1\t\t\t%.2f\t%d\t\n", r.MacroF1, r.Total)
	w.Flush()
	return b.String()
}
