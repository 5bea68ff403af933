// Package scoring implements the quality scoring formulas for verification
// reviews. Two distinct formulas are maintained intentionally: ComputeQuality
// grades the overall review outcome from AI confidence, corrections, anomalies,
// and elapsed processing time, while CorrectionImpact measures extraction
// accuracy from the correction count alone. They use different per-correction
// weights (8 vs 5 points) and are not interchangeable.
package scoring

// Severity classifies how serious a detected anomaly is.
type Severity string

// Anomaly severity levels.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Grade is a discrete letter grade derived from a quality score.
type Grade string

// Quality grades, best to worst.
const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// Band categorizes a correction-impact score.
type Band string

// Correction-impact bands, best to worst.
const (
	BandExcellent  Band = "excellent"
	BandGood       Band = "good"
	BandAcceptable Band = "acceptable"
	BandPoor       Band = "poor"
	BandCritical   Band = "critical"
)

// Penalty weights for the overall quality formula.
const (
	correctionPenalty   = 8.0
	highAnomalyPenalty  = 15.0
	mediumAnomalyWeight = 8.0
	lowAnomalyPenalty   = 3.0

	// Reviews longer than the optimal period accrue a time penalty of
	// timePenaltyRate points per additional optimal-period multiple.
	optimalSeconds  = 300.0
	timePenaltyRate = 5.0
)

// Quality is the result of the overall quality formula: a score in [0,100]
// and its letter grade.
type Quality struct {
	Score float64 `json:"score"`
	Grade Grade   `json:"grade"`
}

// Impact is the result of the correction-impact formula: a score in [0,100]
// and its band.
type Impact struct {
	Score float64 `json:"score"`
	Band  Band    `json:"band"`
}

// ComputeQuality derives the overall review quality from the AI confidence
// ([0,1]), the number of human corrections, the severities of detected
// anomalies, and the elapsed processing time in seconds. The score starts at
// confidence x 100, loses 8 points per correction, loses 15/8/3 points per
// high/medium/low anomaly, loses 5 points per optimal period beyond the first
// five minutes, and is clamped to [0,100].
func ComputeQuality(aiConfidence float64, corrections int, anomalies []Severity, processingSeconds float64) Quality {
	score := aiConfidence * 100

	score -= float64(corrections) * correctionPenalty

	for _, sev := range anomalies {
		switch sev {
		case SeverityHigh:
			score -= highAnomalyPenalty
		case SeverityMedium:
			score -= mediumAnomalyWeight
		case SeverityLow:
			score -= lowAnomalyPenalty
		}
	}

	if processingSeconds > optimalSeconds {
		score -= (processingSeconds - optimalSeconds) / optimalSeconds * timePenaltyRate
	}

	score = clamp(score)

	return Quality{Score: score, Grade: gradeFor(score)}
}

// CorrectionImpact derives extraction accuracy from the correction count
// alone: max(0, 100 - 5n). Used where anomalies and timing are not in play,
// such as field-level correction review.
func CorrectionImpact(corrections int) Impact {
	score := 100 - 5*float64(corrections)
	if score < 0 {
		score = 0
	}
	return Impact{Score: score, Band: bandFor(score)}
}

func gradeFor(score float64) Grade {
	switch {
	case score >= 95:
		return GradeAPlus
	case score >= 90:
		return GradeA
	case score >= 85:
		return GradeBPlus
	case score >= 80:
		return GradeB
	case score >= 75:
		return GradeCPlus
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeF
	}
}

func bandFor(score float64) Band {
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 80:
		return BandGood
	case score >= 70:
		return BandAcceptable
	case score >= 60:
		return BandPoor
	default:
		return BandCritical
	}
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
