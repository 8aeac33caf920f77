package flow

// State is a step of the pipeline. Every flow moves through
// Building, AwaitingSignatures, Serializing, Broadcasting and Done, and can
// reach Failed from any of them. Nothing is retried.
type State int

const (
	StateBuilding State = iota
	StateAwaitingSignatures
	StateSerializing
	StateBroadcasting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateAwaitingSignatures:
		return "awaiting-signatures"
	case StateSerializing:
		return "serializing"
	case StateBroadcasting:
		return "broadcasting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Kind names a flow.
type Kind string

const (
	KindPayment Kind = "payment"
	KindListing Kind = "listing"
	KindMint    Kind = "mint"
)
