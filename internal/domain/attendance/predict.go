package attendance

import (
	"math"

	"github.com/smartattd/smartattd/internal/domain/shared"
)

// DefaultTargetFraction is the attendance ratio a student needs to be safe.
const DefaultTargetFraction = 0.75

// HoursNeeded returns the smallest number of additional hours x such that
// (attended+x)/(total+x) >= target, assuming every further conducted hour is
// attended. It returns 0 when the target is already met.
//
// With nothing conducted yet (total == 0) one attended hour reaches 100%,
// so the answer is 1.
func HoursNeeded(attended, total int, target float64) (int, error) {
	if !(target > 0 && target < 1) {
		return 0, shared.ErrInvalidTarget
	}
	if err := (Hours{Total: total, Attended: attended}).Validate(); err != nil {
		return 0, err
	}
	if total == 0 {
		return 1, nil
	}
	if meetsTarget(attended, total, 0, target) {
		return 0, nil
	}

	x := int(math.Ceil((target*float64(total) - float64(attended)) / (1 - target)))
	if x < 1 {
		x = 1
	}

	// The closed form can land one off under float rounding; walk to the
	// minimal x as evaluated by meetsTarget.
	for !meetsTarget(attended, total, x, target) {
		x++
	}
	for x > 1 && meetsTarget(attended, total, x-1, target) {
		x--
	}
	return x, nil
}

// ProjectedPercentage is the percentage after attending extra more hours.
func ProjectedPercentage(attended, total, extra int) float64 {
	pct, _ := Percentage(attended+extra, total+extra)
	return pct
}

func meetsTarget(attended, total, extra int, target float64) bool {
	return float64(attended+extra)/float64(total+extra) >= target
}
