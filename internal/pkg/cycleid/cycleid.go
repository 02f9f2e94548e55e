// Package cycleid mints inspection cycle identifiers.
//
// The identifier keeps the legacy minute-resolution timestamp prefix
// (YYYY_MM_DD_HHMM) so existing ids sort and read the same, and appends a
// short random suffix so two cycles started within the same minute cannot
// collide and silently merge into one document.
package cycleid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeLayout = "2006_01_02_1504"

// New returns a fresh cycle id for the given start time.
func New(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.Format(timeLayout), uuid.NewString()[:8])
}

// Timestamp returns the document timestamp recorded alongside a cycle.
func Timestamp(now time.Time) string {
	return now.Format("2006-01-02 15:04:05")
}
