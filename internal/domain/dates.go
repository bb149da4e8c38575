package domain

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// SortableDate rewrites a dd.mm.yyyy date as yyyy-mm-dd so that plain string
// comparison is chronological. Input that does not split into three
// dot-separated parts is returned unchanged.
func SortableDate(dmy string) string {
	parts := strings.Split(dmy, ".")
	if len(parts) != 3 {
		return dmy
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}

// CivilDate parses a dd.mm.yyyy date.
func CivilDate(dmy string) (civil.Date, bool) {
	parts := strings.Split(strings.TrimSpace(dmy), ".")
	if len(parts) != 3 {
		return civil.Date{}, false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return civil.Date{}, false
	}
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}
