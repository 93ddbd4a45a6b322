package classifier

// ClassWeights computes balanced weights, n_samples / (n_classes * count),
// over the labels that actually occur. Rare labels get larger weights.
func ClassWeights(labels []int) map[int]float64 {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}

	weights := make(map[int]float64, len(counts))
	if len(counts) == 0 {
		return weights
	}
	n := float64(len(labels))
	k := float64(len(counts))
	for l, c := range counts {
		weights[l] = n / (k * float64(c))
	}
	return weights
}
