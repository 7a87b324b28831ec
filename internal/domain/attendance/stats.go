package attendance

// ClassStats is the class-level summary of a filtered record set.
type ClassStats struct {
	TotalStudents int     `json:"totalStudents"`
	Safe          int     `json:"safe"`
	Warning       int     `json:"warning"`
	Critical      int     `json:"critical"`
	AvgPercentage float64 `json:"avgPercentage"`

	// HasData is false for the "no data entered yet" branch.
	HasData bool `json:"hasData"`
	// Recorded is the number of records aggregated.
	Recorded int `json:"recorded"`
}

// Aggregate summarises records with the default thresholds.
func Aggregate(records []*Record, totalStudentCount int) ClassStats {
	return DefaultThresholds().Aggregate(records, totalStudentCount)
}

// Aggregate summarises records that the caller has already filtered.
//
// An empty set reports every student as critical with a 0.0 average; this is
// the "no data entered yet" state and does not go through Classify.
// Otherwise each record is classified, and the average is the mean of the
// per-record percentages. Records with no conducted hours count as critical
// but are left out of the average.
func (t Thresholds) Aggregate(records []*Record, totalStudentCount int) ClassStats {
	if len(records) == 0 {
		return ClassStats{
			TotalStudents: totalStudentCount,
			Critical:      totalStudentCount,
			AvgPercentage: 0.0,
		}
	}

	stats := ClassStats{
		TotalStudents: totalStudentCount,
		HasData:       true,
	}

	var sum float64
	var counted int
	for _, r := range records {
		if r == nil {
			continue
		}
		stats.Recorded++

		switch t.Classify(r.AttendedHours, r.TotalHours) {
		case BandSafe:
			stats.Safe++
		case BandWarning:
			stats.Warning++
		default:
			stats.Critical++
		}

		if pct, ok := Percentage(r.AttendedHours, r.TotalHours); ok {
			sum += pct
			counted++
		}
	}

	if counted > 0 {
		stats.AvgPercentage = Round1(sum / float64(counted))
	}
	return stats
}
