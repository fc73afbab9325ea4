package core

// RecordStore is the append-only persistence sink for events, gate results
// and outcome records. The core never assumes a specific storage engine;
// read access is used only by the learner for its rolling window.
type RecordStore interface {
	// AppendEvent records a delivered event for audit.
	AppendEvent(event Event) error

	// AppendGateResult records a gate evaluation.
	AppendGateResult(result GateResult) error

	// AppendOutcome records an outcome (executed or blocked) for learning.
	AppendOutcome(record OutcomeRecord) error

	// Outcomes returns up to limit most recent outcome records, newest last.
	Outcomes(limit int) ([]OutcomeRecord, error)
}
