package price

import (
	"errors"
	"fmt"
	"time"
)

// ErrConstraint wraps store constraint violations (foreign key to a missing
// seller or catalog item, non-positive price). These are programming errors.
var ErrConstraint = errors.New("price observation constraint violation")

// DataOutOfRangeError is returned by Append when no partition covers the
// observation's month. Partitions must be provisioned ahead of the write path.
type DataOutOfRangeError struct {
	ObservedAt time.Time
	Partition  string
}

func (e *DataOutOfRangeError) Error() string {
	return fmt.Sprintf("no partition %s for observation at %s", e.Partition, e.ObservedAt.UTC().Format(time.RFC3339))
}

// PartitionName returns the name of the monthly partition holding t.
func PartitionName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("price_observations_y%04dm%02d", t.Year(), int(t.Month()))
}

// MonthStart truncates t to the first instant of its UTC month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
