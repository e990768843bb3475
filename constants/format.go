package constants

import (
	"fmt"
	"strings"
)

// OutputFormat selects how much of a recognition result is returned.
type OutputFormat string

const (
	FormatStandard OutputFormat = "standard"
	FormatDetailed OutputFormat = "detailed"
	FormatRaw      OutputFormat = "raw"
)

// ParseOutputFormat accepts the three known formats; empty means standard.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatStandard, nil
	case FormatStandard, FormatDetailed, FormatRaw:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}
