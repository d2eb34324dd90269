package enums

// AssignmentOutcome is the per-order result of an ingestion or assignment run.
type AssignmentOutcome string

const (
	AssignmentOutcomeCreated      AssignmentOutcome = "created"
	AssignmentOutcomeAssigned     AssignmentOutcome = "assigned"
	AssignmentOutcomeSkipped      AssignmentOutcome = "skipped"
	AssignmentOutcomeUnassignable AssignmentOutcome = "unassignable"
	AssignmentOutcomeInvalid      AssignmentOutcome = "invalid"
	AssignmentOutcomeFailed       AssignmentOutcome = "failed"
)

// String implements fmt.Stringer.
func (o AssignmentOutcome) String() string {
	return string(o)
}

// AssignmentReason records which branch of the engine produced a decision.
type AssignmentReason string

const (
	AssignmentReasonStrict       AssignmentReason = "strict"
	AssignmentReasonOpen         AssignmentReason = "open"
	AssignmentReasonFallback     AssignmentReason = "fallback"
	AssignmentReasonUnassignable AssignmentReason = "unassignable"
	AssignmentReasonExisting     AssignmentReason = "existing"
	AssignmentReasonInFlight     AssignmentReason = "in_flight"
	AssignmentReasonClosed       AssignmentReason = "closed"
)

// String implements fmt.Stringer.
func (r AssignmentReason) String() string {
	return string(r)
}
