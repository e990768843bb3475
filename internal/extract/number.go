package extract

import (
	"regexp"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

var (
	reDigitRun      = regexp.MustCompile(`[0-9]+`)
	reCheckCode     = regexp.MustCompile(`校验码[：:]?\s*([0-9]{8,12})`)
	reMachineNumber = regexp.MustCompile(`机器编号[：:]?\s*([0-9]{12})`)
)

// InvoiceNumber returns the first 8-12 digit run of the first fragment that
// carries a number anchor; failing that, the longest run anywhere (earliest on ties).
// Runs are whole: a longer digit string is never cut down to fit.
func InvoiceNumber(texts []string) (string, bool) {
	for _, t := range texts {
		if !containsAny(t, constants.InvoiceNumberAnchors) {
			continue
		}
		if runs := numberRuns(t); len(runs) > 0 {
			return runs[0], true
		}
	}

	best := ""
	for _, t := range texts {
		for _, m := range numberRuns(t) {
			if len(m) > len(best) {
				best = m
			}
		}
	}
	return best, best != ""
}

// numberRuns lists the maximal digit runs of t that are 8 to 12 digits long.
func numberRuns(t string) []string {
	var out []string
	for _, m := range reDigitRun.FindAllString(t, -1) {
		if len(m) >= 8 && len(m) <= 12 {
			out = append(out, m)
		}
	}
	return out
}

// CheckCode returns the digits directly after the check-code label.
func CheckCode(text string) (string, bool) {
	return submatch(reCheckCode, text)
}

// MachineNumber returns the 12 digits directly after the machine-number label.
func MachineNumber(text string) (string, bool) {
	return submatch(reMachineNumber, text)
}

func submatch(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
