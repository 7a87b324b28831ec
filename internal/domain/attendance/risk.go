package attendance

import "math"

// Band is the risk classification of an attendance percentage.
type Band string

const (
	// BandSafe - at or above the safe threshold.
	BandSafe Band = "safe"
	// BandWarning - between the warning and the safe threshold.
	BandWarning Band = "warning"
	// BandCritical - below the warning threshold, or nothing conducted yet.
	BandCritical Band = "critical"
)

// IsValid checks that the band is one of the known values.
func (b Band) IsValid() bool {
	switch b {
	case BandSafe, BandWarning, BandCritical:
		return true
	default:
		return false
	}
}

// Label returns the capitalised form used in reports.
func (b Band) Label() string {
	switch b {
	case BandSafe:
		return "Safe"
	case BandWarning:
		return "Warning"
	case BandCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Thresholds are inclusive lower bounds, in whole percent.
type Thresholds struct {
	SafePercent    int
	WarningPercent int
}

// DefaultThresholds returns 75% safe / 65% warning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SafePercent:    75,
		WarningPercent: 65,
	}
}

// IsValid checks 0 < warning < safe <= 100.
func (t Thresholds) IsValid() bool {
	return t.WarningPercent > 0 && t.WarningPercent < t.SafePercent && t.SafePercent <= 100
}

// Classify maps hours to a band.
// Zero conducted hours is Critical: the student cannot be verified safe.
// Comparisons are done on integers so boundaries are exact.
func (t Thresholds) Classify(attended, total int) Band {
	if total <= 0 {
		return BandCritical
	}
	scaled := attended * 100
	switch {
	case scaled >= t.SafePercent*total:
		return BandSafe
	case scaled >= t.WarningPercent*total:
		return BandWarning
	default:
		return BandCritical
	}
}

// Classify maps hours to a band using DefaultThresholds.
func Classify(attended, total int) Band {
	return DefaultThresholds().Classify(attended, total)
}

// Percentage returns attended/total*100. ok is false when total is zero.
func Percentage(attended, total int) (pct float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	return float64(attended) / float64(total) * 100, true
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
