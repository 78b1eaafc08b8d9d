// Package engine implements the adherence and scoring core: frequency
// resolution, submission eligibility, progress aggregation, questionnaire
// scoring and audiometric averages. Everything here is a pure function over
// caller-supplied inputs; the current date is always an explicit argument.
package engine

import (
	"fmt"
	"math"

	"github.com/melodia-health/melodia-api/internal/models"
	appErrors "github.com/melodia-health/melodia-api/pkg/errors"
)

// activeWeeksPerMonth converts an active-weekday count into the average
// number of active days in a calendar month.
const activeWeeksPerMonth = 4.33

// ResolveRequiredPerDay converts a prescribed frequency and unit into the
// number of occurrences required on each active day.
//
// Daily frequencies apply to every active day independently and ignore the
// active-day count. Weekly and monthly frequencies are spread across the
// active days and require activeDayCount > 0.
func ResolveRequiredPerDay(frequency int, unit models.FrequencyUnit, activeDayCount int) (int, error) {
	if frequency < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "frequency must be a positive integer")
	}

	switch unit {
	case models.FrequencyDaily:
		return frequency, nil
	case models.FrequencyWeekly:
		if activeDayCount <= 0 {
			return 0, appErrors.Clone(appErrors.ErrConfiguration, "weekly frequency requires at least one active weekday")
		}
		return ceilDiv(frequency, activeDayCount), nil
	case models.FrequencyMonthly:
		if activeDayCount <= 0 {
			return 0, appErrors.Clone(appErrors.ErrConfiguration, "monthly frequency requires at least one active weekday")
		}
		activeDaysPerMonth := int(math.Round(float64(activeDayCount) * activeWeeksPerMonth))
		if activeDaysPerMonth <= 0 {
			return 0, appErrors.Clone(appErrors.ErrComputation, "active days per month resolved to zero")
		}
		return ceilDiv(frequency, activeDaysPerMonth), nil
	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported frequency unit %q", unit))
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
