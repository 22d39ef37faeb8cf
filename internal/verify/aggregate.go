package verify

import (
	"github.com/cruxlabs/crux/internal/model"
)

// misleadingShare is the fraction of the combined true/false mass the
// minority side must hold for the aggregate to read as misleading
// rather than a clean true or false.
const misleadingShare = 0.4

// stanceLabel maps an agent stance to the verdict label it votes for.
func stanceLabel(s model.Stance) model.Label {
	switch s {
	case model.StanceSupports:
		return model.LabelTrue
	case model.StanceRefutes:
		return model.LabelFalse
	default:
		return model.LabelUnverified
	}
}

// Aggregate computes the verdict label and confidence from the findings
// via a weighted vote. Confidence is the weighted average of per-role
// confidence, so it is bounded by the minimum and maximum individual
// confidences. The label is the argmax of weighted confidence mass per
// label; ties prefer unverified.
func Aggregate(findings []model.AgentFinding, weights map[model.Role]float64) (model.Label, float64) {
	if len(findings) == 0 {
		return model.LabelUnverified, 0
	}

	var weightSum, confSum float64
	mass := make(map[model.Label]float64)

	for _, f := range findings {
		w, ok := weights[f.Role]
		if !ok {
			w = 1
		}
		weightSum += w
		confSum += w * f.Confidence
		mass[stanceLabel(f.Stance)] += w * f.Confidence
	}

	confidence := 0.0
	if weightSum > 0 {
		confidence = confSum / weightSum
	}

	label := argmaxLabel(mass)

	// Significant mass on both specific labels reads as misleading.
	if label == model.LabelTrue || label == model.LabelFalse {
		specific := mass[model.LabelTrue] + mass[model.LabelFalse]
		minority := mass[model.LabelTrue]
		if label == model.LabelTrue {
			minority = mass[model.LabelFalse]
		}
		if specific > 0 && minority/specific >= misleadingShare {
			label = model.LabelMisleading
		}
	}

	return label, confidence
}

// argmaxLabel picks the label with the highest mass. Ties are broken in
// favor of unverified, the conservative bias; a tie between the two
// specific labels also reads as unverified.
func argmaxLabel(mass map[model.Label]float64) model.Label {
	best := model.LabelUnverified
	bestMass := mass[model.LabelUnverified]

	for _, label := range []model.Label{model.LabelTrue, model.LabelFalse} {
		m := mass[label]
		if m > bestMass {
			best = label
			bestMass = m
		} else if m == bestMass && best != model.LabelUnverified {
			best = model.LabelUnverified
		}
	}

	if bestMass == 0 {
		return model.LabelUnverified
	}
	return best
}
