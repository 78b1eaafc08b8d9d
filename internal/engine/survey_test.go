package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

func repeat(value, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestScoreSurveyTHIBounds(t *testing.T) {
	score, err := ScoreSurvey("THI", repeat(1, 25))
	require.NoError(t, err)
	assert.Equal(t, 0, score.TotalScore)
	assert.Equal(t, 100, score.MaxPossibleScore)
	assert.Equal(t, 0.0, score.PercentageScore)

	score, err = ScoreSurvey("THI", repeat(3, 25))
	require.NoError(t, err)
	assert.Equal(t, 100, score.TotalScore)
	assert.Equal(t, 100, score.MaxPossibleScore)
	assert.Equal(t, 100.0, score.PercentageScore)
}

func TestScoreSurveyTHIMapping(t *testing.T) {
	responses := repeat(1, 25)
	responses[0] = 2
	responses[1] = 3

	score, err := ScoreSurvey("thi", responses)
	require.NoError(t, err)
	assert.Equal(t, 6, score.TotalScore)
	assert.InDelta(t, 6.0, score.PercentageScore, 0.0001)
	require.Contains(t, score.Breakdown, "overall")
	assert.Equal(t, 6, score.Breakdown["overall"].TotalScore)
}

func TestScoreSurveyHHIAMirrorsTHI(t *testing.T) {
	score, err := ScoreSurvey("HHIA", repeat(2, 25))
	require.NoError(t, err)
	assert.Equal(t, 50, score.TotalScore)
	assert.Equal(t, 100, score.MaxPossibleScore)
}

func TestScoreSurveySSQ12(t *testing.T) {
	score, err := ScoreSurvey("SSQ12", repeat(5, 12))
	require.NoError(t, err)
	assert.Equal(t, 60, score.TotalScore)
	assert.Equal(t, 120, score.MaxPossibleScore)
	assert.Equal(t, 50.0, score.PercentageScore)
}

func TestScoreSurveyGenericLikertFallback(t *testing.T) {
	score, err := ScoreSurvey("MOOD_CHECK", []int{3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 12, score.TotalScore)
	assert.Equal(t, 15, score.MaxPossibleScore)
	assert.Equal(t, 80.0, score.PercentageScore)
	assert.Nil(t, score.Breakdown)

	// one-decimal rounding: 7/15 = 46.666... -> 46.7
	score, err = ScoreSurvey("MOOD_CHECK", []int{1, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, 46.7, score.PercentageScore)
}

func TestScoreSurveyMalformedResponses(t *testing.T) {
	cases := []struct {
		name       string
		instrument string
		responses  []int
	}{
		{"thi wrong count", "THI", repeat(1, 24)},
		{"thi out of range", "THI", append(repeat(1, 24), 4)},
		{"ssq12 wrong count", "SSQ12", repeat(5, 11)},
		{"ssq12 out of range", "SSQ12", append(repeat(5, 11), 11)},
		{"likert out of range", "OTHER", []int{1, 6}},
		{"likert empty", "OTHER", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ScoreSurvey(c.instrument, c.responses)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}
