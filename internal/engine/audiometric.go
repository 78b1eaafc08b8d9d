package engine

import (
	"fmt"
	"math"

	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

// Frequency sets (Hz) backing the two pure-tone averages.
var (
	fourFreqSet = []int{500, 1000, 2000, 4000}
	sixFreqSet  = []int{250, 500, 1000, 2000, 4000, 8000}
)

// AudiometricAverages holds the derived pure-tone averages in whole dB HL.
type AudiometricAverages struct {
	FourFrequency int `json:"four_frequency"`
	SixFrequency  int `json:"six_frequency"`
}

// ComputeAudiometricAverages derives the 4-frequency (500/1k/2k/4k Hz) and
// 6-frequency (250/500/1k/2k/4k/8k Hz) averages from per-frequency
// thresholds. Both are simple arithmetic means rounded to the nearest whole
// dB. A missing or non-numeric required threshold fails validation.
//
// TODO(clinical review): confirm whether the 6-frequency average should use
// a weighted convention instead of a simple mean.
func ComputeAudiometricAverages(thresholds map[int]float64) (AudiometricAverages, error) {
	avg4, err := meanOf(thresholds, fourFreqSet)
	if err != nil {
		return AudiometricAverages{}, err
	}
	avg6, err := meanOf(thresholds, sixFreqSet)
	if err != nil {
		return AudiometricAverages{}, err
	}
	return AudiometricAverages{FourFrequency: avg4, SixFrequency: avg6}, nil
}

func meanOf(thresholds map[int]float64, frequencies []int) (int, error) {
	sum := 0.0
	for _, hz := range frequencies {
		value, ok := thresholds[hz]
		if !ok {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing threshold for %d Hz", hz))
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("threshold for %d Hz is not a number", hz))
		}
		sum += value
	}
	return int(math.Round(sum / float64(len(frequencies)))), nil
}
