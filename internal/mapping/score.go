package mapping

import "math"

// RICEScore computes (reach * impact * confidence) / effort rounded to two
// decimals. It reports false when any input is missing or effort is not positive.
func RICEScore(reach, impact, confidence, effort *float64) (float64, bool) {
	if reach == nil || impact == nil || confidence == nil || effort == nil {
		return 0, false
	}
	if *effort <= 0 {
		return 0, false
	}
	return round2((*reach * *impact * *confidence) / *effort), true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
