package bridge

// Stats is a snapshot of a session's traffic counters.
type Stats struct {
	Dispatches uint64
	DMAReads   uint64
	DMAWrites  uint64
	Connects   uint64
	Failures   uint64
}

// Stats returns the current counter values.
func (s *Session) Stats() Stats {
	return Stats{
		Dispatches: s.dispatches.Load(),
		DMAReads:   s.dmaReads.Load(),
		DMAWrites:  s.dmaWrites.Load(),
		Connects:   s.connects.Load(),
		Failures:   s.failures.Load(),
	}
}
