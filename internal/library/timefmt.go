package library

import "time"

const (
	// TimestampLayout is fixed width and always UTC, so the text columns sort chronologically.
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"
	DateLayout      = "2006-01-02"

	// rows written by older tooling carry no zone; they are read as UTC
	naiveLayout = "2006-01-02T15:04:05.999999999"
)

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t.UTC(), nil
	}
	if t, nerr := time.ParseInLocation(naiveLayout, s, time.UTC); nerr == nil {
		return t, nil
	}
	return time.Time{}, err
}

// calendarDays counts whole days between the UTC calendar dates of from and to.
func calendarDays(from, to time.Time) int {
	from, to = from.UTC(), to.UTC()
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
