package engine

import (
	"fmt"
	"math"
	"strings"

	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

// Standardized questionnaire instruments with dedicated scoring rules.
const (
	InstrumentTHI   = "THI"
	InstrumentHHIA  = "HHIA"
	InstrumentSSQ12 = "SSQ12"
)

// SurveyScore is the computed result for one questionnaire submission.
// Breakdown is only populated for structured instruments and currently
// mirrors the primary result under a single subscale key.
type SurveyScore struct {
	TotalScore       int                    `json:"total_score"`
	MaxPossibleScore int                    `json:"max_possible_score"`
	PercentageScore  float64                `json:"percentage_score"`
	Breakdown        map[string]SubscaleScore `json:"breakdown,omitempty"`
}

// SubscaleScore is one entry of a structured instrument's breakdown map.
type SubscaleScore struct {
	TotalScore       int     `json:"total_score"`
	MaxPossibleScore int     `json:"max_possible_score"`
	PercentageScore  float64 `json:"percentage_score"`
}

// surveyScorer converts ordered raw responses into a score.
type surveyScorer interface {
	Score(responses []int) (SurveyScore, error)
}

// mappedPointScorer covers instruments whose responses are categorical
// choices mapped to fixed point values (THI, HHIA: {1,2,3} -> {0,2,4}).
type mappedPointScorer struct {
	itemCount     int
	points        map[int]int
	pointsPerItem int
}

func (s mappedPointScorer) Score(responses []int) (SurveyScore, error) {
	if len(responses) != s.itemCount {
		return SurveyScore{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("expected %d responses, got %d", s.itemCount, len(responses)))
	}
	total := 0
	for i, raw := range responses {
		mapped, ok := s.points[raw]
		if !ok {
			return SurveyScore{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("response %d out of range: %d", i+1, raw))
		}
		total += mapped
	}
	max := s.itemCount * s.pointsPerItem
	return structuredScore(total, max), nil
}

// directValueScorer covers instruments whose responses are used as-is on a
// bounded numeric scale (SSQ12: 0-10 per item).
type directValueScorer struct {
	itemCount int
	minValue  int
	maxValue  int
}

func (s directValueScorer) Score(responses []int) (SurveyScore, error) {
	if len(responses) != s.itemCount {
		return SurveyScore{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("expected %d responses, got %d", s.itemCount, len(responses)))
	}
	total := 0
	for i, raw := range responses {
		if raw < s.minValue || raw > s.maxValue {
			return SurveyScore{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("response %d out of range: %d", i+1, raw))
		}
		total += raw
	}
	max := s.itemCount * s.maxValue
	return structuredScore(total, max), nil
}

// likertScorer is the fallback for unrecognized instruments: a generic 1-5
// Likert scale over however many items were submitted.
type likertScorer struct{}

func (likertScorer) Score(responses []int) (SurveyScore, error) {
	if len(responses) == 0 {
		return SurveyScore{}, appErrors.Clone(appErrors.ErrValidation, "at least one response required")
	}
	total := 0
	for i, raw := range responses {
		if raw < 1 || raw > 5 {
			return SurveyScore{}, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("response %d out of range: %d", i+1, raw))
		}
		total += raw
	}
	max := len(responses) * 5
	pct := float64(total) / float64(max) * 100
	pct = math.Round(pct*10) / 10
	return SurveyScore{TotalScore: total, MaxPossibleScore: max, PercentageScore: pct}, nil
}

var instrumentScorers = map[string]surveyScorer{
	InstrumentTHI:   mappedPointScorer{itemCount: 25, points: map[int]int{1: 0, 2: 2, 3: 4}, pointsPerItem: 4},
	InstrumentHHIA:  mappedPointScorer{itemCount: 25, points: map[int]int{1: 0, 2: 2, 3: 4}, pointsPerItem: 4},
	InstrumentSSQ12: directValueScorer{itemCount: 12, minValue: 0, maxValue: 10},
}

// ScoreSurvey scores the ordered raw responses for the given instrument
// type. Unrecognized instruments fall back to the generic Likert scorer.
func ScoreSurvey(instrumentType string, responses []int) (SurveyScore, error) {
	scorer, ok := instrumentScorers[strings.ToUpper(strings.TrimSpace(instrumentType))]
	if !ok {
		scorer = likertScorer{}
	}
	return scorer.Score(responses)
}

func structuredScore(total, max int) SurveyScore {
	pct := 0.0
	if max > 0 {
		pct = float64(total) / float64(max) * 100
	}
	return SurveyScore{
		TotalScore:       total,
		MaxPossibleScore: max,
		PercentageScore:  pct,
		Breakdown: map[string]SubscaleScore{
			"overall": {TotalScore: total, MaxPossibleScore: max, PercentageScore: pct},
		},
	}
}
