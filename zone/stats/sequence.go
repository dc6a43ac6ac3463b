package stats

import (
	"strings"

	"github.com/kogriv/bquant-sub003/zone"
)

// SequenceAnalysis is the transition/pattern record of spec §4.5 "Sequence
// analysis", computed when the population has at least 3 zones.
type SequenceAnalysis struct {
	Transitions         map[string]int
	TransitionProbability map[string]float64
	Patterns2            map[string]int
	Patterns3            map[string]int
}

// CountTransitions returns raw counts of `from_to_to` zone_type transitions
// across the chronologically ordered zone sequence. Exported for reuse by
// the sequence_hypothesis chi-square test.
func CountTransitions(zones []*zone.Zone) map[string]int {
	counts := map[string]int{}
	for i := 1; i < len(zones); i++ {
		key := zones[i-1].Type + "_to_" + zones[i].Type
		counts[key]++
	}
	return counts
}

// AnalyzeSequence computes transitions, transition probabilities, and
// length-2/length-3 sequence pattern counts over the chronological zone
// type sequence.
func AnalyzeSequence(zones []*zone.Zone) *SequenceAnalysis {
	if len(zones) < 3 {
		return nil
	}
	transitions := CountTransitions(zones)

	fromTotals := map[string]int{}
	for i := 1; i < len(zones); i++ {
		fromTotals[zones[i-1].Type]++
	}
	probs := make(map[string]float64, len(transitions))
	for key, count := range transitions {
		from := strings.SplitN(key, "_to_", 2)[0]
		if total := fromTotals[from]; total > 0 {
			probs[key] = float64(count) / float64(total)
		}
	}

	types := make([]string, len(zones))
	for i, z := range zones {
		types[i] = z.Type
	}
	patterns2 := ngramCounts(types, 2)
	patterns3 := ngramCounts(types, 3)

	return &SequenceAnalysis{
		Transitions:           transitions,
		TransitionProbability: probs,
		Patterns2:             patterns2,
		Patterns3:             patterns3,
	}
}

func ngramCounts(types []string, n int) map[string]int {
	if len(types) < n {
		return map[string]int{}
	}
	counts := map[string]int{}
	for i := 0; i+n <= len(types); i++ {
		key := strings.Join(types[i:i+n], "->")
		counts[key]++
	}
	return counts
}
