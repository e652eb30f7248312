package console

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatTimestamp renders t like "January 2nd 2006, 3:04:05 pm" in t's
// location.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s %s %d, %s",
		t.Month(), humanize.Ordinal(t.Day()), t.Year(), t.Format("3:04:05 pm"))
}
