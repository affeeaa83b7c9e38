package protocol

// Phase describes how far an inbound transaction exchange has progressed. It is surfaced for observability - a
// failure in any phase aborts the whole exchange with nothing recorded.
type Phase int32

const (
	// PhaseIdle means that the exchange has not started yet.
	PhaseIdle Phase = iota

	// PhaseAwaitingEncryptedPayload means that the flow is waiting for the encrypted payload (confidential mode only).
	PhaseAwaitingEncryptedPayload

	// PhaseAwaitingTransaction means that the flow is waiting for the signed transaction.
	PhaseAwaitingTransaction

	// PhaseResolvingDependencies means that the flow is fetching the transaction's dependency closure.
	PhaseResolvingDependencies

	// PhaseVerifying means that the flow is verifying the transaction.
	PhaseVerifying

	// PhasePreRecordCheck means that the flow is running the caller's pre-record hook.
	PhasePreRecordCheck

	// PhaseRecording means that the flow is durably recording the transaction.
	PhaseRecording

	// PhaseDone means that the exchange finished successfully.
	PhaseDone

	// PhaseFailed means that the exchange was aborted.
	PhaseFailed
)

// String returns a human-readable version of the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Phase(Idle)"
	case PhaseAwaitingEncryptedPayload:
		return "Phase(AwaitingEncryptedPayload)"
	case PhaseAwaitingTransaction:
		return "Phase(AwaitingTransaction)"
	case PhaseResolvingDependencies:
		return "Phase(ResolvingDependencies)"
	case PhaseVerifying:
		return "Phase(Verifying)"
	case PhasePreRecordCheck:
		return "Phase(PreRecordCheck)"
	case PhaseRecording:
		return "Phase(Recording)"
	case PhaseDone:
		return "Phase(Done)"
	case PhaseFailed:
		return "Phase(Failed)"
	default:
		return "Phase(Unknown)"
	}
}
