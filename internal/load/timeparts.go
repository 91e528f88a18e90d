package load

import "time"

// TimeParts is the decomposition stored in the times dimension
type TimeParts struct {
	StartTime time.Time `yaml:"start_time"`
	Hour      int       `yaml:"hour"`
	Day       int       `yaml:"day"`
	Week      int       `yaml:"week"`
	Month     int       `yaml:"month"`
	Year      int       `yaml:"year"`
	Weekday   int       `yaml:"weekday"`
}

// DecomposeEpoch splits epoch seconds the way the times insert does: UTC,
// ISO week number and Sunday as weekday 0.
func DecomposeEpoch(epoch int64) TimeParts {
	ts := time.Unix(epoch, 0).UTC()
	_, week := ts.ISOWeek()
	return TimeParts{
		StartTime: ts,
		Hour:      ts.Hour(),
		Day:       ts.Day(),
		Week:      week,
		Month:     int(ts.Month()),
		Year:      ts.Year(),
		Weekday:   int(ts.Weekday()),
	}
}
