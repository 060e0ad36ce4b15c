package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Serial numbers are YYYYMMDD followed by a daily counter zero-padded to
// three digits. Past 999 the counter simply grows a digit.

// SerialDateLayout is the date prefix of a serial number.
const SerialDateLayout = "20060102"

// MaxAllocationAttempts bounds how often a create is retried after losing
// an allocation race.
const MaxAllocationAttempts = 5

// SerialPrefix returns the serial prefix for day.
func SerialPrefix(day time.Time) string {
	return day.Format(SerialDateLayout)
}

// FormatSerial renders the serial for counter on day.
func FormatSerial(day time.Time, counter int64) string {
	return fmt.Sprintf("%s%03d", SerialPrefix(day), counter)
}

// NextSerial returns the next serial for day given every existing serial
// that starts with day's prefix. The counter is one past the numeric
// maximum of the existing suffixes.
//
// Suffixes that are not plain digits (update may rewrite a serial to
// anything) are returned in skipped and ignored. A generated serial is
// always all digits so it cannot collide with them.
func NextSerial(day time.Time, existing []string) (serial string, skipped []string) {
	prefix := SerialPrefix(day)
	var highest int64
	for _, sn := range existing {
		suffix, ok := strings.CutPrefix(sn, prefix)
		if !ok {
			continue
		}
		n, err := parseCounter(suffix)
		if err != nil {
			skipped = append(skipped, sn)
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return FormatSerial(day, highest+1), skipped
}

func parseCounter(suffix string) (int64, error) {
	if suffix == "" {
		return 0, fmt.Errorf("empty serial counter")
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("serial counter %q is not numeric", suffix)
		}
	}
	return strconv.ParseInt(suffix, 10, 64)
}
