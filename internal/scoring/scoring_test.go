package scoring_test

import (
	"math"
	"testing"

	"github.com/veriflowhq/veriflow/internal/scoring"
)

func TestComputeQuality(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		corrected  int
		anomalies  []scoring.Severity
		seconds    float64
		wantScore  float64
		wantGrade  scoring.Grade
	}{
		{
			name:       "perfect review",
			confidence: 1.0,
			corrected:  0,
			anomalies:  nil,
			seconds:    100,
			wantScore:  100,
			wantGrade:  scoring.GradeAPlus,
		},
		{
			name:       "corrections and high anomaly",
			confidence: 0.8,
			corrected:  2,
			anomalies:  []scoring.Severity{scoring.SeverityHigh},
			seconds:    300,
			wantScore:  49,
			wantGrade:  scoring.GradeF,
		},
		{
			name:       "anomaly severities sum",
			confidence: 1.0,
			corrected:  0,
			anomalies: []scoring.Severity{
				scoring.SeverityHigh,
				scoring.SeverityMedium,
				scoring.SeverityLow,
			},
			seconds:   60,
			wantScore: 74,
			wantGrade: scoring.GradeC,
		},
		{
			name:       "time penalty beyond optimal period",
			confidence: 1.0,
			corrected:  0,
			anomalies:  nil,
			seconds:    600,
			wantScore:  95,
			wantGrade:  scoring.GradeAPlus,
		},
		{
			name:       "time penalty uncapped",
			confidence: 1.0,
			corrected:  0,
			anomalies:  nil,
			seconds:    3300,
			wantScore:  50,
			wantGrade:  scoring.GradeF,
		},
		{
			name:       "clamped at zero",
			confidence: 0.2,
			corrected:  5,
			anomalies:  []scoring.Severity{scoring.SeverityHigh, scoring.SeverityHigh},
			seconds:    60,
			wantScore:  0,
			wantGrade:  scoring.GradeF,
		},
		{
			name:       "exact grade boundary",
			confidence: 0.9,
			corrected:  0,
			anomalies:  nil,
			seconds:    60,
			wantScore:  90,
			wantGrade:  scoring.GradeA,
		},
		{
			name:       "unknown severity ignored",
			confidence: 1.0,
			corrected:  0,
			anomalies:  []scoring.Severity{"unclassified"},
			seconds:    60,
			wantScore:  100,
			wantGrade:  scoring.GradeAPlus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoring.ComputeQuality(tt.confidence, tt.corrected, tt.anomalies, tt.seconds)
			if math.Abs(got.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Grade != tt.wantGrade {
				t.Errorf("Grade = %v, want %v", got.Grade, tt.wantGrade)
			}
		})
	}
}

func TestCorrectionImpact(t *testing.T) {
	tests := []struct {
		name      string
		corrected int
		wantScore float64
		wantBand  scoring.Band
	}{
		{"no corrections", 0, 100, scoring.BandExcellent},
		{"three corrections", 3, 85, scoring.BandGood},
		{"five corrections", 5, 75, scoring.BandAcceptable},
		{"seven corrections", 7, 65, scoring.BandPoor},
		{"nine corrections", 9, 55, scoring.BandCritical},
		{"floors at zero", 25, 0, scoring.BandCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoring.CorrectionImpact(tt.corrected)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Band != tt.wantBand {
				t.Errorf("Band = %v, want %v", got.Band, tt.wantBand)
			}
		})
	}
}
