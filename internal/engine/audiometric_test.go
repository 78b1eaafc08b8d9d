package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

func TestComputeAudiometricAveragesUniform(t *testing.T) {
	thresholds := map[int]float64{250: 20, 500: 20, 1000: 20, 2000: 20, 4000: 20, 8000: 20}

	averages, err := ComputeAudiometricAverages(thresholds)
	require.NoError(t, err)
	assert.Equal(t, 20, averages.FourFrequency)
	assert.Equal(t, 20, averages.SixFrequency)
}

func TestComputeAudiometricAveragesRounding(t *testing.T) {
	thresholds := map[int]float64{250: 10, 500: 15, 1000: 20, 2000: 25, 4000: 32, 8000: 60}

	averages, err := ComputeAudiometricAverages(thresholds)
	require.NoError(t, err)
	assert.Equal(t, 23, averages.FourFrequency) // (15+20+25+32)/4 = 23
	assert.Equal(t, 27, averages.SixFrequency)  // 162/6 = 27
}

func TestComputeAudiometricAveragesMissingFrequency(t *testing.T) {
	thresholds := map[int]float64{500: 20, 1000: 20, 2000: 20, 4000: 20, 8000: 20}

	_, err := ComputeAudiometricAverages(thresholds)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "250")
}

func TestComputeAudiometricAveragesNonNumeric(t *testing.T) {
	thresholds := map[int]float64{250: 20, 500: math.NaN(), 1000: 20, 2000: 20, 4000: 20, 8000: 20}

	_, err := ComputeAudiometricAverages(thresholds)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestComputeAudiometricAveragesIgnoresExtraFrequencies(t *testing.T) {
	thresholds := map[int]float64{250: 10, 500: 10, 1000: 10, 2000: 10, 3000: 90, 4000: 10, 6000: 90, 8000: 10}

	averages, err := ComputeAudiometricAverages(thresholds)
	require.NoError(t, err)
	assert.Equal(t, 10, averages.FourFrequency)
	assert.Equal(t, 10, averages.SixFrequency)
}
