package scan

import (
	"log/slog"
	"sync/atomic"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/dispatch"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/progress"
)

// Stats are the committed scan counters. The coordinator writes them; the
// progress reporter reads them concurrently.
type Stats struct {
	committed atomic.Int64
	offset    atomic.Int64
	processed atomic.Int64
	valid     atomic.Int64
}

// newStats seeds the counters from a resumed record, if any.
func newStats(rec *checkpoint.Record) *Stats {
	s := &Stats{}

	if rec != nil {
		s.committed.Store(rec.Committed)
		s.offset.Store(rec.Offset)
		s.processed.Store(rec.Processed)
		s.valid.Store(rec.Valid)
	}

	return s
}

// commit advances the counters past a chunk.
func (s *Stats) commit(chunk *dispatch.Chunk) {
	s.processed.Add(int64(len(chunk.Results)))
	s.valid.Add(chunk.ValidCount())
	s.offset.Store(chunk.EndOffset())
	s.committed.Store(chunk.LastOrdinal())
}

// Committed returns the last committed physical line ordinal.
func (s *Stats) Committed() int64 { return s.committed.Load() }

// Offset returns the input byte offset just past the committed line.
func (s *Stats) Offset() int64 { return s.offset.Load() }

// Processed returns the number of candidate lines validated.
func (s *Stats) Processed() int64 { return s.processed.Load() }

// Valid returns the number of valid lines emitted.
func (s *Stats) Valid() int64 { return s.valid.Load() }

// Sample returns the counters for the progress reporter.
func (s *Stats) Sample() progress.Sample {
	return progress.Sample{
		Ordinal:   s.Committed(),
		Processed: s.Processed(),
		Valid:     s.Valid(),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("committed", s.Committed()),
		slog.Int64("processed", s.Processed()),
		slog.Int64("valid", s.Valid()),
	)
}
