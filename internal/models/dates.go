package models

import (
	"time"
	// Keep the reference zone loadable on images without a tzdata package.
	_ "time/tzdata"
)

// RefZone is the reference timezone all bucket dates are computed in.
var RefZone = mustLoadRefZone()

func mustLoadRefZone() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		panic("load Asia/Seoul: " + err.Error())
	}
	return loc
}

// BucketDate formats t as a bucket date in the reference timezone.
func BucketDate(t time.Time) string {
	return t.In(RefZone).Format("2006-01-02")
}

// Today returns the current bucket date.
func Today() string {
	return BucketDate(time.Now())
}

// BucketExpiry returns midnight of date+retainDays in the reference timezone.
// Counts expire relative to the logical day they belong to, not to the
// wall-clock time the increment happened, so late or backfilled writes still
// expire on schedule. ok is false when date does not parse.
func BucketExpiry(date string, retainDays int) (time.Time, bool) {
	d, err := time.ParseInLocation("2006-01-02", date, RefZone)
	if err != nil {
		return time.Time{}, false
	}
	return d.AddDate(0, 0, retainDays), true
}
