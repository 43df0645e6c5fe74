package daemon

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimeSeriesRecorder records the last N safety-net tick times.
type TimeSeriesRecorder struct {
	MaxRecordCount int
	// Interval is the expected gap between two records.
	Interval    time.Duration
	RecordTimes []time.Time
	mu          *sync.Mutex
}

// NewTimeSeriesRecorder returns a new TimeSeriesRecorder.
func NewTimeSeriesRecorder(maxRecordCount int, interval time.Duration) *TimeSeriesRecorder {
	return &TimeSeriesRecorder{
		MaxRecordCount: maxRecordCount,
		Interval:       interval,
		RecordTimes:    make([]time.Time, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecordNow adds a new record with the current time.
func (r *TimeSeriesRecorder) AddRecordNow() {
	r.AddRecord(time.Now())
}

// AddRecord adds a new record.
func (r *TimeSeriesRecorder) AddRecord(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	// This will prevent time.Since from returning values that are not accurate (especially when the system is in sleep mode).
	t = t.Round(0)

	if len(r.RecordTimes) >= r.MaxRecordCount {
		r.RecordTimes = r.RecordTimes[1:]
	}
	r.RecordTimes = append(r.RecordTimes, t)
}

// GetRecordsIn returns the number of continuous records in the last duration.
func (r *TimeSeriesRecorder) GetRecordsIn(last time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The last record must be within the last duration.
	if len(r.RecordTimes) > 0 && time.Since(r.RecordTimes[len(r.RecordTimes)-1]) >= r.Interval+time.Second {
		return 0
	}

	// Find continuous records from the end of the list.
	// Continuous records are defined as the time difference between
	// two adjacent records is less than Interval+1 second.
	count := 0
	for i := len(r.RecordTimes) - 1; i >= 0; i-- {
		record := r.RecordTimes[i]
		if time.Since(record) > last {
			break
		}

		theRecordAfter := record
		if i+1 < len(r.RecordTimes) {
			theRecordAfter = r.RecordTimes[i+1]
		}

		if theRecordAfter.Sub(record) >= r.Interval+time.Second {
			break
		}
		count++
	}

	return count
}

// GetLastRecord returns the last record.
func (r *TimeSeriesRecorder) GetLastRecord() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.RecordTimes) == 0 {
		return time.Time{}
	}

	return r.RecordTimes[len(r.RecordTimes)-1]
}

// checkMissedTicks reports whether the safety-net ticker was stalled, which
// usually means the system was asleep. It must be called before the
// current tick is recorded.
func checkMissedTicks(r *TimeSeriesRecorder, now time.Time) bool {
	last := r.GetLastRecord()
	if last.IsZero() {
		return false
	}

	gap := now.Round(0).Sub(last)
	if gap < 2*r.Interval {
		return false
	}

	logrus.WithFields(logrus.Fields{
		"gap":                 gap.Round(time.Second).String(),
		"interval":            r.Interval.String(),
		"continuousTicks":     r.GetRecordsIn(10 * r.Interval),
		"lastTickBeforeStall": last.Format(time.RFC3339),
	}).Info("possibly missed safety-net ticks, system may have been asleep")
	return true
}
