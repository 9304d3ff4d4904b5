// Package progress estimates throughput and renders a one-line status.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// minSpeed is the throughput below which no ETA is shown.
const minSpeed = 0.01

// Time unit divisors for duration formatting.
const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	percentScale     = 100
)

// etaPending is shown while the ETA cannot be computed yet.
const etaPending = "Calculating..."

// Sample is a point-in-time read of the scan counters.
type Sample struct {
	// Ordinal is the last physical line committed.
	Ordinal   int64
	Processed int64
	Valid     int64
}

// Snapshot is a derived view of progress at one instant.
type Snapshot struct {
	Sample

	Total int64
	// Percent is in [0, 100], or -1 when the total is unknown.
	Percent float64
	// Speed is in lines per second.
	Speed    float64
	ETA      time.Duration
	ETAKnown bool
	Elapsed  time.Duration
}

// Estimator turns successive samples into snapshots. It is not safe for
// concurrent use.
type Estimator struct {
	total int64
	start time.Time

	last   Sample
	lastAt time.Time
	speed  float64
}

// NewEstimator starts estimating from origin, the position the run began at.
// A non-positive total means the input size is unknown.
func NewEstimator(total int64, origin Sample, now time.Time) *Estimator {
	return &Estimator{
		total:  total,
		start:  now,
		last:   origin,
		lastAt: now,
	}
}

// Observe records a sample and returns the resulting snapshot. Speed is the
// line delta over the time since the previous sample; a zero interval keeps
// the previous speed.
func (e *Estimator) Observe(s Sample, now time.Time) Snapshot {
	dt := now.Sub(e.lastAt).Seconds()
	if dt > 0 {
		e.speed = float64(s.Ordinal-e.last.Ordinal) / dt
		e.last = s
		e.lastAt = now
	}

	snap := Snapshot{
		Sample:  s,
		Total:   e.total,
		Percent: -1,
		Speed:   e.speed,
		Elapsed: now.Sub(e.start),
	}

	if e.total > 0 {
		snap.Percent = min(float64(s.Ordinal)*percentScale/float64(e.total), percentScale)

		if e.speed >= minSpeed {
			remaining := max(e.total-s.Ordinal, 0)
			snap.ETA = time.Duration(float64(remaining) / e.speed * float64(time.Second))
			snap.ETAKnown = true
		}
	}

	return snap
}

// Render formats a snapshot as a single status line without line control codes.
func Render(s Snapshot) string {
	var b strings.Builder

	if s.Percent < 0 {
		b.WriteString("[  ?%] ")
		b.WriteString(humanize.Comma(s.Ordinal))
	} else {
		fmt.Fprintf(&b, "[%3.0f%%] %s/%s", s.Percent, humanize.Comma(s.Ordinal), humanize.Comma(s.Total))
	}

	b.WriteString(" lines, ")
	b.WriteString(color.GreenString("%s valid", humanize.Comma(s.Valid)))
	b.WriteString(", ")
	b.WriteString(FormatSpeed(s.Speed))

	if s.Total > 0 {
		b.WriteString(", ETA: ")

		if s.ETAKnown {
			b.WriteString(FormatDuration(s.ETA))
		} else {
			b.WriteString(etaPending)
		}
	}

	return b.String()
}

// FormatSpeed renders a line rate with an SI prefix, e.g. "1.2k lines/s".
func FormatSpeed(speed float64) string {
	value, prefix := humanize.ComputeSI(speed)

	return fmt.Sprintf("%.1f%s lines/s", value, prefix)
}

// FormatDuration renders d as MM:SS, or HH:MM:SS from one hour up.
func FormatDuration(d time.Duration) string {
	total := int64(max(d, 0) / time.Second)
	hours := total / secondsPerHour
	minutes := total % secondsPerHour / secondsPerMinute
	secs := total % secondsPerMinute

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}

	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
