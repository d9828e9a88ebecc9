package attendance

import (
	"strconv"
	"strings"
	"time"
)

// ReportDateLayout is the dd-MM-yyyy layout used in file names and stored observations.
const ReportDateLayout = "02-01-2006"

var fallbackLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// ParseDate reads "dd/MM/yyyy[ HH:mm[:ss]]" (dashes are accepted as separators) in loc.
// Values that do not read day-first are tried as ISO-8601 timestamps. It reports false for
// anything it cannot read.
func ParseDate(value string, loc *time.Location) (time.Time, bool) {
	str := strings.TrimSpace(value)
	if str == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	if parsed, ok := parseDayFirst(str, loc); ok {
		return parsed, true
	}
	for _, layout := range fallbackLayouts {
		if parsed, err := time.ParseInLocation(layout, str, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func parseDayFirst(str string, loc *time.Location) (time.Time, bool) {
	parts := strings.FieldsFunc(str, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) < 3 {
		return time.Time{}, false
	}

	day, okDay := leadingInt(parts[0])
	month, okMonth := leadingInt(parts[1])
	year, okYear := leadingInt(parts[2])
	if !okDay || !okMonth || !okYear {
		return time.Time{}, false
	}
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
		return time.Time{}, false
	}

	var hour, minute, second int
	if idx := strings.Index(str, " "); idx > 0 {
		clock := strings.Split(str[idx+1:], ":")
		values := []*int{&hour, &minute, &second}
		for i := 0; i < len(clock) && i < len(values); i++ {
			n, ok := leadingInt(clock[i])
			if !ok {
				return time.Time{}, false
			}
			*values[i] = n
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
			return time.Time{}, false
		}
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), true
}

// EarliestDate scans the start and end columns of every data row (the header row is skipped)
// and returns the earliest readable timestamp.
func EarliestDate(rows [][]string, loc *time.Location) (time.Time, bool) {
	var earliest time.Time
	found := false
	for i := 1; i < len(rows); i++ {
		for _, col := range []int{colStart, colEnd} {
			parsed, ok := ParseDate(cell(rows[i], col), loc)
			if !ok {
				continue
			}
			if !found || parsed.Before(earliest) {
				earliest = parsed
				found = true
			}
		}
	}
	return earliest, found
}

// ReportDate formats the earliest timestamp of rows as dd-MM-yyyy.
func ReportDate(rows [][]string, loc *time.Location) (string, bool) {
	earliest, ok := EarliestDate(rows, loc)
	if !ok {
		return "", false
	}
	if loc != nil {
		earliest = earliest.In(loc)
	}
	return earliest.Format(ReportDateLayout), true
}

func leadingInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(value[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
