package metrics

import coremetrics "github.com/sevaops/seva/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignment forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAssignment(recs []coremetrics.AssignmentRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition forwards state changes to sinks that support them.
func (m *MultiSink) RecordTransition(rec coremetrics.TransitionRecord) error {
	for _, s := range m.Sinks {
		if tr, ok := s.(coremetrics.TransitionRecorder); ok {
			if err := tr.RecordTransition(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRepairs forwards reconciler repairs to sinks that support them.
func (m *MultiSink) RecordRepairs(recs []coremetrics.RepairRecord) error {
	for _, s := range m.Sinks {
		if rr, ok := s.(coremetrics.RepairRecorder); ok {
			if err := rr.RecordRepairs(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSuggestedFloor forwards the advisory floor to sinks that support it.
func (m *MultiSink) RecordSuggestedFloor(v float64) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(coremetrics.FloorRecorder); ok {
			if err := fr.RecordSuggestedFloor(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRejection forwards rejections to sinks that support them.
func (m *MultiSink) RecordRejection(rec coremetrics.RejectionRecord) error {
	for _, s := range m.Sinks {
		if rr, ok := s.(coremetrics.RejectionRecorder); ok {
			if err := rr.RecordRejection(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
