package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Tried in order; the first calendar-valid match wins.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[^0-9])([0-9]{4})\s*年\s*([0-9]{1,2})\s*月\s*([0-9]{1,2})(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:^|[^0-9])([0-9]{4})-([0-9]{1,2})-([0-9]{1,2})(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:^|[^0-9])([0-9]{4})/([0-9]{1,2})/([0-9]{1,2})(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:^|[^0-9])([0-9]{4})([0-9]{2})([0-9]{2})(?:[^0-9]|$)`),
}

// Date finds an invoice date and normalises it to YYYY-MM-DD.
func Date(text string) (string, bool) {
	for _, re := range datePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			y, _ := strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			d, _ := strconv.Atoi(m[3])
			if validDate(y, mo, d) {
				return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
			}
		}
	}
	return "", false
}

func validDate(y, m, d int) bool {
	if y < 1 || m < 1 || m > 12 || d < 1 {
		return false
	}
	// day 0 of the next month is the last day of this one
	last := time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return d <= last
}
